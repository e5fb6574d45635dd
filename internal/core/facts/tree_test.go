package facts

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/inputlink/internal/core/events/bus"
)

func requirePanicsWith(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value is %T", r)
		assert.True(t, errors.Is(err, target), "got %v, want %v", err, target)
	}()
	fn()
}

func TestCreateUpdateCommit(t *testing.T) {
	tree := NewTree("input-link")
	blocked := tree.CreateGroup(tree.Root(), "blocked")
	forward := tree.CreateString(blocked, "forward", "no")
	x := tree.CreateInt(tree.Root(), "x", 1)
	random := tree.CreateFloat(tree.Root(), "random", 0)

	_, ok := tree.Snapshot().Lookup("blocked", "forward")
	assert.False(t, ok, "creates are invisible before commit")

	batch := tree.Commit()
	require.Len(t, batch.Changes, 4)
	assert.Equal(t, uint64(1), batch.Version)

	snap := tree.Snapshot()
	v, ok := snap.StringAt("blocked", "forward")
	require.True(t, ok)
	assert.Equal(t, "no", v)

	tree.SetString(forward, "yes")
	tree.SetInt(x, 2)
	tree.SetFloat(random, 0.5)

	old, _ := tree.Snapshot().IntAt("x")
	assert.Equal(t, int64(1), old, "updates are invisible before commit")
	assert.Equal(t, int64(2), tree.Value(x.Handle))

	batch = tree.Commit()
	require.Len(t, batch.Changes, 3)
	for _, c := range batch.Changes {
		assert.Equal(t, OpUpdate, c.Op)
	}
	got, _ := tree.Snapshot().IntAt("x")
	assert.Equal(t, int64(2), got)
	f, _ := tree.Snapshot().FloatAt("random")
	assert.Equal(t, 0.5, f)

	// The previous snapshot is immutable.
	prev, _ := snap.StringAt("blocked", "forward")
	assert.Equal(t, "no", prev)
}

func TestUnchangedValueRecordsNothing(t *testing.T) {
	tree := NewTree("root")
	x := tree.CreateInt(tree.Root(), "x", 3)
	tree.Commit()

	tree.SetInt(x, 3)
	assert.Equal(t, 0, tree.Pending())
	batch := tree.Commit()
	assert.True(t, batch.Empty())
	assert.Equal(t, uint64(1), batch.Version)
}

func TestUpdateKindMismatchPanics(t *testing.T) {
	tree := NewTree("root")
	x := tree.CreateInt(tree.Root(), "x", 3)
	name := tree.CreateString(tree.Root(), "name", "red")

	requirePanicsWith(t, ErrKindMismatch, func() { tree.Update(x.Handle, "three") })
	requirePanicsWith(t, ErrKindMismatch, func() { tree.Update(name.Handle, 1.5) })
	requirePanicsWith(t, ErrKindMismatch, func() { tree.Update(name.Handle, true) })

	tree.Update(x.Handle, 4)
	assert.Equal(t, int64(4), tree.Value(x.Handle))
}

func TestCreateUnderLeafPanics(t *testing.T) {
	tree := NewTree("root")
	x := tree.CreateInt(tree.Root(), "x", 3)
	requirePanicsWith(t, ErrNotGroup, func() { tree.CreateGroup(x.Handle, "nested") })
}

func TestDestroyInvalidatesDescendants(t *testing.T) {
	tree := NewTree("root")
	wp := tree.CreateGroup(tree.Root(), "waypoint")
	id := tree.CreateString(wp, "id", "A")
	dist := tree.CreateFloat(wp, "distance", 1)
	tree.Commit()
	require.Equal(t, 4, tree.Count())

	tree.Destroy(wp)
	assert.False(t, tree.Valid(wp))
	assert.False(t, tree.Valid(id.Handle))
	assert.False(t, tree.Valid(dist.Handle))
	assert.Equal(t, 1, tree.Count())

	requirePanicsWith(t, ErrStaleHandle, func() { tree.SetFloat(dist, 2) })
	requirePanicsWith(t, ErrStaleHandle, func() { tree.Destroy(wp) })
	requirePanicsWith(t, ErrStaleHandle, func() { tree.CreateString(wp, "late", "x") })

	_, ok := tree.Snapshot().Lookup("waypoint")
	assert.True(t, ok, "destroy is invisible before commit")
	batch := tree.Commit()
	require.Len(t, batch.Changes, 1)
	assert.Equal(t, OpDestroy, batch.Changes[0].Op)
	_, ok = tree.Snapshot().Lookup("waypoint")
	assert.False(t, ok)

	// Slots are reused but the new handles are unrelated to the old ones.
	wp2 := tree.CreateGroup(tree.Root(), "waypoint")
	assert.NotEqual(t, wp.ID(), wp2.ID())
	assert.False(t, tree.Valid(wp))
	assert.True(t, tree.Valid(wp2))
}

func TestDestroyRootPanics(t *testing.T) {
	tree := NewTree("root")
	assert.PanicsWithError(t, ErrRootDestroy.Error(), func() { tree.Destroy(tree.Root()) })
	requirePanicsWith(t, ErrStaleHandle, func() { tree.SetInt(IntLeaf{}, 1) })
}

func TestChildrenKeepCreationOrder(t *testing.T) {
	tree := NewTree("root")
	for _, name := range []string{"a", "b", "c"} {
		tree.CreateGroup(tree.Root(), name)
	}
	tree.Commit()
	var names []string
	for _, c := range tree.Snapshot().Root.Children {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestDigestTracksContent(t *testing.T) {
	a := NewTree("root")
	b := NewTree("root")
	for _, tree := range []*Tree{a, b} {
		tree.CreateInt(tree.Root(), "x", 1)
		tree.Commit()
	}
	assert.Equal(t, a.Snapshot().Digest(), b.Snapshot().Digest())

	x := a.CreateInt(a.Root(), "y", 2)
	a.Commit()
	assert.NotEqual(t, a.Snapshot().Digest(), b.Snapshot().Digest())
	a.Destroy(x.Handle)
	a.Commit()
	assert.Equal(t, a.Snapshot().Digest(), b.Snapshot().Digest())
}

func TestCommitPublishesOnBus(t *testing.T) {
	b := bus.New()
	var batches []Batch
	_, err := b.Subscribe(bus.TypeFactsCommitted, func(e bus.Event) error {
		assert.Equal(t, "red", e.Source())
		batches = append(batches, e.Data().(Batch))
		return nil
	})
	require.NoError(t, err)

	tree := NewTree("input-link", WithBus(b, "red"))
	tree.CreateInt(tree.Root(), "x", 1)
	tree.Commit()
	tree.Commit()

	require.Len(t, batches, 1, "empty commits are not announced")
	assert.Equal(t, "red", batches[0].Source)
	assert.Same(t, tree.Snapshot(), batches[0].Snapshot)
}

func TestDigestEncodesWideGroups(t *testing.T) {
	wide := &Node{Name: "g", Kind: KindGroup}
	for range 300 {
		wide.Children = append(wide.Children, &Node{Name: "c", Kind: KindGroup})
	}
	enc := appendNode(nil, wide)
	header := len("g") + 2
	assert.Equal(t, []byte{0xac, 0x02}, enc[header:header+2], "300 as uvarint")

	narrow := &Node{Name: "g", Kind: KindGroup, Children: wide.Children[:44]}
	assert.NotEqual(t, digest(wide), digest(narrow))
}

func TestSnapshotJSON(t *testing.T) {
	tree := NewTree("input-link")
	tree.CreateString(tree.Root(), "direction", "north")
	tree.Commit()

	raw, err := json.Marshal(tree.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name":"direction"`)
	assert.Contains(t, string(raw), `"kind":"string"`)
	assert.Contains(t, string(raw), `"value":"north"`)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))
	v, ok := decoded.StringAt("direction")
	require.True(t, ok)
	assert.Equal(t, "north", v)
}

func TestBatchJSONRoundTripsOps(t *testing.T) {
	tree := NewTree("root")
	leaf := tree.CreateInt(tree.Root(), "x", 1)
	tree.Commit()
	tree.SetInt(leaf, 2)
	raw, err := json.Marshal(tree.Commit())
	require.NoError(t, err)

	var b Batch
	require.NoError(t, json.Unmarshal(raw, &b))
	require.Len(t, b.Changes, 1)
	assert.Equal(t, OpUpdate, b.Changes[0].Op)
	assert.Equal(t, KindInt, b.Changes[0].Kind)

	var k Kind
	assert.Error(t, k.UnmarshalText([]byte("blob")))
}

// A reader polling snapshots while the writer commits must see x and y move
// together.
func TestCommitAtomicity(t *testing.T) {
	tree := NewTree("root")
	x := tree.CreateInt(tree.Root(), "x", 0)
	y := tree.CreateInt(tree.Root(), "y", 0)
	tree.Commit()

	const rounds = 2000
	var wg sync.WaitGroup
	wg.Add(1)
	torn := 0
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			snap := tree.Snapshot()
			xv, _ := snap.IntAt("x")
			yv, _ := snap.IntAt("y")
			if xv != yv {
				torn++
			}
		}
	}()
	for i := int64(1); i <= rounds; i++ {
		tree.SetInt(x, i)
		tree.SetInt(y, i)
		tree.Commit()
	}
	wg.Wait()
	assert.Zero(t, torn)
}
