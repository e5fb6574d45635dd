package grid

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrientIsBijection(t *testing.T) {
	for _, facing := range Directions {
		o := Orient(facing)
		seen := MaskOf(o.Forward, o.Backward, o.Left, o.Right)
		assert.Equal(t, MaskOf(North, East, South, West), seen, "facing %s", facing)
		assert.Equal(t, facing, o.Forward)
	}
}

func TestOrientBackwardTwiceIsIdentity(t *testing.T) {
	for _, facing := range Directions {
		assert.Equal(t, facing, Orient(Orient(facing).Backward).Backward)
		assert.Equal(t, facing, facing.Left().Right())
		assert.Equal(t, facing, facing.Right().Right().Right().Right())
	}
}

func TestOrientTable(t *testing.T) {
	tests := []struct {
		facing Direction
		want   Orientation
	}{
		{North, Orientation{Forward: North, Backward: South, Left: West, Right: East}},
		{East, Orientation{Forward: East, Backward: West, Left: North, Right: South}},
		{South, Orientation{Forward: South, Backward: North, Left: East, Right: West}},
		{West, Orientation{Forward: West, Backward: East, Left: South, Right: North}},
	}
	for _, tt := range tests {
		t.Run(tt.facing.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Orient(tt.facing))
		})
	}
}

func TestOrientPanicsOnInvalidFacing(t *testing.T) {
	assert.Panics(t, func() { Orient(Direction(3)) })
	assert.Panics(t, func() { Point{}.Translate(0) })
}

func TestTranslate(t *testing.T) {
	p := Point{X: 5, Y: 5}
	assert.Equal(t, Point{X: 5, Y: 4}, p.Translate(North))
	assert.Equal(t, Point{X: 6, Y: 5}, p.Translate(East))
	assert.Equal(t, Point{X: 5, Y: 6}, p.Translate(South))
	assert.Equal(t, Point{X: 4, Y: 5}, p.Translate(West))
}

func TestResolveHeading(t *testing.T) {
	o := Orient(East)
	assert.Equal(t, East, o.Resolve(Forward))
	assert.Equal(t, West, o.Resolve(Backward))
	assert.Equal(t, North, o.Resolve(Left))
	assert.Equal(t, South, o.Resolve(Right))
	assert.Equal(t, North, o.Resolve(HeadNorth))
	assert.Panics(t, func() { o.Resolve(NoHeading) })
}

func TestHeadingJSON(t *testing.T) {
	var payload struct {
		Dir Heading `json:"dir"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"dir":"forward"}`), &payload))
	assert.Equal(t, Forward, payload.Dir)
	assert.True(t, payload.Dir.Relative())

	require.Error(t, json.Unmarshal([]byte(`{"dir":"up"}`), &payload))

	out, err := json.Marshal(struct {
		Dir Heading `json:"dir"`
	}{HeadWest})
	require.NoError(t, err)
	assert.JSONEq(t, `{"dir":"west"}`, string(out))
}

func TestYaw(t *testing.T) {
	assert.InDelta(t, 0, East.Yaw(), 1e-9)
	assert.InDelta(t, -math.Pi/2, North.Yaw(), 1e-9)
	assert.InDelta(t, math.Pi, West.Yaw(), 1e-9)
}

func TestMask(t *testing.T) {
	m := MaskOf(North, West)
	assert.True(t, m.Has(North))
	assert.False(t, m.Has(East))
	assert.True(t, m.With(East).Has(East))
	assert.False(t, m.Without(North).Has(North))
}
