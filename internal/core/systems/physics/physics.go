package physics

import (
	"errors"
	"fmt"
	"math"
)

var ErrUnknownProjection = errors.New("unknown distance projection")

// Lightweight spatial helpers for sensors. Only what the waypoint and radar
// sensors need lives here.

type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

// Pose is a position plus a heading (yaw, radians, measured from +x towards +y).
type Pose struct {
	Position Vec3
	Yaw      float64
}

// Projection selects which components take part in a distance.
type Projection uint8

const (
	// Planar ignores the z component.
	Planar Projection = iota
	Spatial
)

func (p Projection) String() string {
	if p == Spatial {
		return "spatial"
	}
	return "planar"
}

// ParseProjection accepts "planar" and "spatial". An empty string means planar.
func ParseProjection(s string) (Projection, error) {
	switch s {
	case "", "planar":
		return Planar, nil
	case "spatial":
		return Spatial, nil
	default:
		return Planar, fmt.Errorf("%w: %q", ErrUnknownProjection, s)
	}
}

// Norm returns the length of v under the projection.
func (p Projection) Norm(v Vec3) float64 {
	if p == Spatial {
		return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
	}
	return math.Hypot(v.X, v.Y)
}

// Relationship describes where a target is as seen from a pose.
type Relationship struct {
	Distance float64
	// Yaw is the absolute bearing of the target, radians.
	Yaw float64
	// RelativeBearing is Yaw minus the pose heading, normalized to (-pi, pi].
	RelativeBearing float64
}

func Relate(from Pose, target Vec3, projection Projection) Relationship {
	d := target.Sub(from.Position)
	yaw := math.Atan2(d.Y, d.X)
	return Relationship{
		Distance:        projection.Norm(d),
		Yaw:             yaw,
		RelativeBearing: NormalizeAngle(yaw - from.Yaw),
	}
}

// NormalizeAngle wraps a radians value into (-pi, pi].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

