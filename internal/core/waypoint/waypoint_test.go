package waypoint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/inputlink/internal/core/facts"
	"github.com/zeusync/inputlink/internal/core/systems/physics"
)

func newSet(t *testing.T, enc BearingEncoding) (*facts.Tree, *Set) {
	t.Helper()
	tree := facts.NewTree("input-link")
	group := tree.CreateGroup(tree.Root(), "waypoints")
	tree.Commit()
	return tree, NewSet(tree, group, enc, physics.Planar)
}

func TestTrackerMaterializesOnFirstUpdate(t *testing.T) {
	tree, set := newSet(t, IntegerBearings{})
	tr := set.AddOrUpdate("A", physics.Vec3{X: 1, Y: 2, Z: 3})
	assert.True(t, tr.IsDisabled())
	assert.Equal(t, 0, tree.Pending())

	set.Update(physics.Pose{})
	tree.Commit()
	require.False(t, tr.IsDisabled())

	snap := tree.Snapshot()
	id, ok := snap.StringAt("waypoints", "waypoint", "id")
	require.True(t, ok)
	assert.Equal(t, "A", id)
	z, _ := snap.FloatAt("waypoints", "waypoint", "z")
	assert.Equal(t, 3.0, z)
	dist, _ := snap.FloatAt("waypoints", "waypoint", "distance")
	assert.InDelta(t, math.Sqrt(5), dist, 1e-9)
	yaw, ok := snap.IntAt("waypoints", "waypoint", "yaw")
	require.True(t, ok, "int encoding stores yaw as an int leaf")
	assert.Equal(t, int64(63), yaw)
}

func TestFloatEncoding(t *testing.T) {
	tree, set := newSet(t, FloatBearings{})
	set.AddOrUpdate("B", physics.Vec3{X: 0, Y: 1})
	// Facing east, the target lies a quarter turn towards +y.
	set.Update(physics.Pose{Yaw: 0})
	tree.Commit()

	snap := tree.Snapshot()
	rel, ok := snap.FloatAt("waypoints", "waypoint", "relative-bearing")
	require.True(t, ok)
	assert.InDelta(t, 90, rel, 1e-9)

	set.Update(physics.Pose{Yaw: math.Pi})
	tree.Commit()
	rel, _ = tree.Snapshot().FloatAt("waypoints", "waypoint", "relative-bearing")
	abs, _ := tree.Snapshot().FloatAt("waypoints", "waypoint", "abs-relative-bearing")
	assert.InDelta(t, -90, rel, 1e-9)
	assert.InDelta(t, 90, abs, 1e-9)
}

func TestDisableRoundTrip(t *testing.T) {
	tree, set := newSet(t, IntegerBearings{})
	baseline := tree.Count()

	tr := set.AddOrUpdate("A", physics.Vec3{X: 1, Y: 2, Z: 3})
	set.Update(physics.Pose{})
	tree.Commit()
	first := tr.Group()
	assert.Greater(t, tree.Count(), baseline)

	tr.Disable(tree)
	tree.Commit()
	assert.True(t, tr.IsDisabled())
	assert.Equal(t, baseline, tree.Count(), "no residual fact nodes")
	assert.False(t, tree.Valid(first))
	_, ok := tree.Snapshot().Lookup("waypoints", "waypoint")
	assert.False(t, ok)

	tr.Disable(tree)
	assert.Equal(t, 0, tree.Pending(), "disable is idempotent")

	set.AddOrUpdate("A", physics.Vec3{X: 1, Y: 2, Z: 3})
	set.Update(physics.Pose{})
	tree.Commit()
	require.False(t, tr.IsDisabled())
	assert.NotEqual(t, first.ID(), tr.Group().ID())
	assert.True(t, tree.Valid(tr.Group()))
}

func TestAddOrUpdateIsIdempotent(t *testing.T) {
	tree, set := newSet(t, IntegerBearings{})
	a := set.AddOrUpdate("A", physics.Vec3{X: 1})
	set.Update(physics.Pose{})
	tree.Commit()
	group := a.Group()

	assert.Same(t, a, set.AddOrUpdate("A", physics.Vec3{X: 1}))
	assert.Equal(t, group, a.Group(), "same target keeps the subtree")
	assert.Equal(t, 1, set.Len())

	set.AddOrUpdate("A", physics.Vec3{X: 4})
	assert.True(t, a.IsDisabled(), "moved target drops the old subtree")
	set.Update(physics.Pose{})
	tree.Commit()
	x, _ := tree.Snapshot().FloatAt("waypoints", "waypoint", "x")
	assert.Equal(t, 4.0, x)
	waypoints, _ := tree.Snapshot().Lookup("waypoints")
	assert.Len(t, waypoints.ChildrenNamed("waypoint"), 1)
}

func TestRemove(t *testing.T) {
	tree, set := newSet(t, IntegerBearings{})
	set.AddOrUpdate("A", physics.Vec3{X: 1})
	set.AddOrUpdate("B", physics.Vec3{Y: 1})
	set.Update(physics.Pose{})
	tree.Commit()

	assert.True(t, set.Remove("A"))
	assert.False(t, set.Remove("A"))
	assert.Equal(t, []string{"B"}, set.Names())
	tree.Commit()

	waypoints, _ := tree.Snapshot().Lookup("waypoints")
	nodes := waypoints.ChildrenNamed("waypoint")
	require.Len(t, nodes, 1)
	id, _ := nodes[0].Child("id")
	assert.Equal(t, "B", id.Value)
}

func TestParseEncoding(t *testing.T) {
	enc, err := ParseEncoding("float")
	require.NoError(t, err)
	assert.Equal(t, "float", enc.Name())
	enc, err = ParseEncoding("")
	require.NoError(t, err)
	assert.Equal(t, "int", enc.Name())
	_, err = ParseEncoding("radians")
	assert.Error(t, err)
}
