package waypoint

import (
	"fmt"
	"math"

	"github.com/zeusync/inputlink/internal/core/facts"
)

// BearingEncoding decides how yaw, relative-bearing and abs-relative-bearing
// are represented as leaves. It is chosen when a tracker is built and never
// changes afterwards.
type BearingEncoding interface {
	Name() string
	// Create adds the three bearing leaves under group, all zero.
	Create(tree *facts.Tree, group facts.Handle) BearingLeaves
}

// BearingLeaves updates the leaves made by one Create call. Values are degrees.
type BearingLeaves interface {
	Update(tree *facts.Tree, yaw, relativeBearing, absRelativeBearing float64)
}

// IntegerBearings stores bearings as int leaves rounded to the nearest degree.
type IntegerBearings struct{}

func (IntegerBearings) Name() string { return "int" }

func (IntegerBearings) Create(tree *facts.Tree, group facts.Handle) BearingLeaves {
	return &intLeaves{
		yaw:         tree.CreateInt(group, "yaw", 0),
		relative:    tree.CreateInt(group, "relative-bearing", 0),
		absRelative: tree.CreateInt(group, "abs-relative-bearing", 0),
	}
}

type intLeaves struct {
	yaw, relative, absRelative facts.IntLeaf
}

func (l *intLeaves) Update(tree *facts.Tree, yaw, relativeBearing, absRelativeBearing float64) {
	tree.SetInt(l.yaw, int64(math.Round(yaw)))
	tree.SetInt(l.relative, int64(math.Round(relativeBearing)))
	tree.SetInt(l.absRelative, int64(math.Round(absRelativeBearing)))
}

// FloatBearings stores bearings as float leaves in degrees.
type FloatBearings struct{}

func (FloatBearings) Name() string { return "float" }

func (FloatBearings) Create(tree *facts.Tree, group facts.Handle) BearingLeaves {
	return &floatLeaves{
		yaw:         tree.CreateFloat(group, "yaw", 0),
		relative:    tree.CreateFloat(group, "relative-bearing", 0),
		absRelative: tree.CreateFloat(group, "abs-relative-bearing", 0),
	}
}

type floatLeaves struct {
	yaw, relative, absRelative facts.FloatLeaf
}

func (l *floatLeaves) Update(tree *facts.Tree, yaw, relativeBearing, absRelativeBearing float64) {
	tree.SetFloat(l.yaw, yaw)
	tree.SetFloat(l.relative, relativeBearing)
	tree.SetFloat(l.absRelative, absRelativeBearing)
}

// ParseEncoding maps "int" and "float" to an encoding; empty means int.
func ParseEncoding(name string) (BearingEncoding, error) {
	switch name {
	case "", "int":
		return IntegerBearings{}, nil
	case "float":
		return FloatBearings{}, nil
	default:
		return nil, fmt.Errorf("unknown bearing encoding %q", name)
	}
}
