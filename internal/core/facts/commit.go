package facts

import (
	"fmt"

	"github.com/zeusync/inputlink/internal/core/events/bus"
	"github.com/zeusync/inputlink/internal/core/observability/log"
)

type Op uint8

const (
	OpCreate Op = iota + 1
	OpUpdate
	OpDestroy
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDestroy:
		return "destroy"
	default:
		return "unknown"
	}
}

func (o Op) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Op) UnmarshalText(text []byte) error {
	for _, candidate := range []Op{OpCreate, OpUpdate, OpDestroy} {
		if candidate.String() == string(text) {
			*o = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown change op %q", text)
}

// Change is one queued mutation. Destroying a group yields a single change for
// the group; its descendants go with it.
type Change struct {
	Op     Op     `json:"op"`
	ID     uint64 `json:"id"`
	Parent uint64 `json:"parent"`
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
	Value  any    `json:"value,omitempty"`
}

// Batch is everything one Commit made visible.
type Batch struct {
	Source   string    `json:"source"`
	Version  uint64    `json:"version"`
	Changes  []Change  `json:"changes"`
	Snapshot *Snapshot `json:"-"`
}

func (b Batch) Empty() bool { return len(b.Changes) == 0 }

// Commit publishes every pending change as one batch. Readers of Snapshot see
// either all of it or none of it. An empty commit changes nothing and returns
// an empty batch carrying the current version.
func (t *Tree) Commit() Batch {
	if len(t.pending) == 0 {
		return Batch{Source: t.source, Version: t.version, Snapshot: t.committed.Load()}
	}

	changes := t.pending
	t.pending = nil
	t.version++

	snap := t.buildSnapshot()
	t.committed.Store(snap)

	batch := Batch{Source: t.source, Version: t.version, Changes: changes, Snapshot: snap}
	if t.bus != nil {
		if err := t.bus.Publish(bus.NewEvent(bus.TypeFactsCommitted, t.source, batch, nil)); err != nil {
			t.log.Warn("commit subscriber failed",
				log.String("tree", t.name), log.Uint64("version", t.version), log.Error(err))
		}
	}
	return batch
}

// Snapshot returns the last committed state.
func (t *Tree) Snapshot() *Snapshot {
	return t.committed.Load()
}

func (t *Tree) buildSnapshot() *Snapshot {
	root := t.snapshotNode(0)
	snap := &Snapshot{Version: t.version, Root: root}
	snap.digest = digest(root)
	return snap
}

func (t *Tree) snapshotNode(index uint32) *Node {
	n := &t.nodes[index]
	out := &Node{
		ID:    Handle{index: index, gen: n.gen}.ID(),
		Name:  n.name,
		Kind:  n.kind,
		Value: n.value,
	}
	if len(n.children) > 0 {
		out.Children = make([]*Node, len(n.children))
		for i, c := range n.children {
			out.Children[i] = t.snapshotNode(c)
		}
	}
	return out
}
