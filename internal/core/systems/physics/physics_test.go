package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelateProjection(t *testing.T) {
	from := Pose{Position: Vec3{X: 0, Y: 0, Z: 0}}
	target := Vec3{X: 3, Y: 4, Z: 12}

	assert.InDelta(t, 5, Relate(from, target, Planar).Distance, 1e-9)
	assert.InDelta(t, 13, Relate(from, target, Spatial).Distance, 1e-9)
}

func TestRelateBearing(t *testing.T) {
	// Facing +y with the target along +x.
	from := Pose{Yaw: math.Pi / 2}
	r := Relate(from, Vec3{X: 1}, Planar)
	assert.InDelta(t, 0, r.Yaw, 1e-9)
	assert.InDelta(t, -math.Pi/2, r.RelativeBearing, 1e-9)
}

func TestNormalizeAngle(t *testing.T) {
	assert.InDelta(t, math.Pi, NormalizeAngle(-math.Pi), 1e-9)
	assert.InDelta(t, math.Pi, NormalizeAngle(3*math.Pi), 1e-9)
	assert.InDelta(t, -math.Pi/2, NormalizeAngle(3*math.Pi/2), 1e-9)
	assert.InDelta(t, 0.5, NormalizeAngle(0.5), 1e-9)
	assert.InDelta(t, 180, Degrees(math.Pi), 1e-9)
}

func TestParseProjection(t *testing.T) {
	p, err := ParseProjection("spatial")
	require.NoError(t, err)
	assert.Equal(t, Spatial, p)

	p, err = ParseProjection("")
	require.NoError(t, err)
	assert.Equal(t, Planar, p)

	_, err = ParseProjection("polar")
	assert.ErrorIs(t, err, ErrUnknownProjection)
}
