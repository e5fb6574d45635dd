// Package waypoint maintains one dynamic fact subtree per named waypoint,
// reporting distance and bearing from a moving pose.
package waypoint

import (
	"math"

	"github.com/zeusync/inputlink/internal/core/facts"
	"github.com/zeusync/inputlink/internal/core/systems/physics"
)

// Tracker owns the subtree of a single waypoint. It is unmaterialized until
// the first Update and again after Disable.
type Tracker struct {
	name       string
	target     physics.Vec3
	parent     facts.Handle
	encoding   BearingEncoding
	projection physics.Projection

	group    facts.Handle
	distance facts.FloatLeaf
	bearings BearingLeaves
}

func NewTracker(name string, target physics.Vec3, parent facts.Handle, encoding BearingEncoding, projection physics.Projection) *Tracker {
	if encoding == nil {
		encoding = IntegerBearings{}
	}
	return &Tracker{
		name:       name,
		target:     target,
		parent:     parent,
		encoding:   encoding,
		projection: projection,
	}
}

func (t *Tracker) Name() string { return t.name }

func (t *Tracker) Target() physics.Vec3 { return t.target }

// Matches reports whether the tracker is the one registered under name.
func (t *Tracker) Matches(name string) bool { return t.name == name }

func (t *Tracker) IsDisabled() bool { return t.group.IsZero() }

// Group is the handle of the waypoint group, zero while unmaterialized.
func (t *Tracker) Group() facts.Handle { return t.group }

// Update materializes the subtree if needed and refreshes distance and
// bearings from pose.
func (t *Tracker) Update(tree *facts.Tree, pose physics.Pose) {
	if t.IsDisabled() {
		t.materialize(tree)
	}

	r := physics.Relate(pose, t.target, t.projection)
	tree.SetFloat(t.distance, r.Distance)

	yaw := physics.Degrees(r.Yaw)
	relative := physics.Degrees(r.RelativeBearing)
	t.bearings.Update(tree, yaw, relative, math.Abs(relative))
}

// Disable destroys the subtree. Calling it on a disabled tracker does nothing.
func (t *Tracker) Disable(tree *facts.Tree) {
	if t.IsDisabled() {
		return
	}
	tree.Destroy(t.group)
	t.group = facts.Handle{}
	t.distance = facts.FloatLeaf{}
	t.bearings = nil
}

func (t *Tracker) materialize(tree *facts.Tree) {
	t.group = tree.CreateGroup(t.parent, "waypoint")
	tree.CreateString(t.group, "id", t.name)
	tree.CreateFloat(t.group, "x", t.target.X)
	tree.CreateFloat(t.group, "y", t.target.Y)
	tree.CreateFloat(t.group, "z", t.target.Z)
	t.distance = tree.CreateFloat(t.group, "distance", 0)
	t.bearings = t.encoding.Create(tree, t.group)
}
