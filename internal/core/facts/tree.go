// Package facts implements the perception fact tree: a typed tree of groups
// and scalar leaves with stable handles, mutated in place and made visible to
// readers in atomic batches.
package facts

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/zeusync/inputlink/internal/core/events/bus"
	"github.com/zeusync/inputlink/internal/core/observability/log"
)

// Contract violations. Tree methods panic with errors wrapping these.
var (
	ErrStaleHandle  = errors.New("stale fact handle")
	ErrKindMismatch = errors.New("fact kind mismatch")
	ErrNotGroup     = errors.New("fact parent is not a group")
	ErrRootDestroy  = errors.New("fact tree root cannot be destroyed")
)

type Kind uint8

const (
	KindGroup Kind = iota + 1
	KindString
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(text []byte) error {
	for _, candidate := range []Kind{KindGroup, KindString, KindInt, KindFloat} {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown fact kind %q", text)
}

// Handle identifies one node for its whole lifetime. Once the node is
// destroyed the handle is stale forever, even if its slot is reused.
type Handle struct {
	index uint32
	gen   uint32
}

// ID packs the handle into a single number; two live nodes never share one and
// a recreated node never reuses the ID of a destroyed one.
func (h Handle) ID() uint64 { return uint64(h.gen)<<32 | uint64(h.index) }

func (h Handle) IsZero() bool { return h.gen == 0 }

// Leaf handles typed by kind.
type (
	StringLeaf struct{ Handle }
	IntLeaf    struct{ Handle }
	FloatLeaf  struct{ Handle }
)

type node struct {
	name     string
	kind     Kind
	parent   uint32
	children []uint32
	value    any
	gen      uint32
	live     bool
}

// Tree is owned by a single writer goroutine. Snapshot may be called from any
// goroutine.
type Tree struct {
	name    string
	nodes   []node
	free    []uint32
	pending []Change
	version uint64

	committed atomic.Pointer[Snapshot]

	bus    bus.EventBus
	source string
	log    log.Log
}

type Option func(*Tree)

// WithBus publishes every non-empty commit as a bus.TypeFactsCommitted event
// with the given source.
func WithBus(b bus.EventBus, source string) Option {
	return func(t *Tree) {
		t.bus = b
		t.source = source
	}
}

func WithLogger(l log.Log) Option {
	return func(t *Tree) { t.log = l }
}

// NewTree creates a tree whose root group is named rootName. The root exists
// in the initial committed snapshot.
func NewTree(rootName string, opts ...Option) *Tree {
	t := &Tree{name: rootName, log: log.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	t.nodes = append(t.nodes, node{name: rootName, kind: KindGroup, gen: 1, live: true})
	t.committed.Store(t.buildSnapshot())
	return t
}

func (t *Tree) Root() Handle { return Handle{index: 0, gen: t.nodes[0].gen} }

// Version is the number of non-empty commits so far.
func (t *Tree) Version() uint64 { return t.version }

// Pending reports how many changes wait for the next commit.
func (t *Tree) Pending() int { return len(t.pending) }

// Count returns the number of live nodes in the working tree, root included.
func (t *Tree) Count() int {
	n := 0
	for i := range t.nodes {
		if t.nodes[i].live {
			n++
		}
	}
	return n
}

// Valid reports whether h refers to a live node.
func (t *Tree) Valid(h Handle) bool {
	if h.IsZero() || int(h.index) >= len(t.nodes) {
		return false
	}
	n := &t.nodes[h.index]
	return n.live && n.gen == h.gen
}

func (t *Tree) CreateGroup(parent Handle, name string) Handle {
	return t.create(parent, name, KindGroup, nil)
}

func (t *Tree) CreateString(parent Handle, name, value string) StringLeaf {
	return StringLeaf{t.create(parent, name, KindString, value)}
}

func (t *Tree) CreateInt(parent Handle, name string, value int64) IntLeaf {
	return IntLeaf{t.create(parent, name, KindInt, value)}
}

func (t *Tree) CreateFloat(parent Handle, name string, value float64) FloatLeaf {
	return FloatLeaf{t.create(parent, name, KindFloat, value)}
}

func (t *Tree) SetString(l StringLeaf, value string) { t.set(l.Handle, KindString, value) }

func (t *Tree) SetInt(l IntLeaf, value int64) { t.set(l.Handle, KindInt, value) }

func (t *Tree) SetFloat(l FloatLeaf, value float64) { t.set(l.Handle, KindFloat, value) }

// Update sets a leaf from an untyped value. Accepted types are string, int,
// int64 and float64; the type must match the leaf's kind.
func (t *Tree) Update(h Handle, value any) {
	switch v := value.(type) {
	case string:
		t.set(h, KindString, v)
	case int:
		t.set(h, KindInt, int64(v))
	case int64:
		t.set(h, KindInt, v)
	case float64:
		t.set(h, KindFloat, v)
	default:
		panic(fmt.Errorf("%w: unsupported value type %T", ErrKindMismatch, value))
	}
}

// Value returns the working (uncommitted) value of a leaf.
func (t *Tree) Value(h Handle) any {
	return t.resolve(h).value
}

// Destroy removes the node and all of its descendants. Every handle into the
// removed subtree becomes stale.
func (t *Tree) Destroy(h Handle) {
	n := t.resolve(h)
	if h.index == 0 {
		panic(ErrRootDestroy)
	}
	parent := &t.nodes[n.parent]
	for i, c := range parent.children {
		if c == h.index {
			parent.children = append(parent.children[:i:i], parent.children[i+1:]...)
			break
		}
	}
	t.pending = append(t.pending, Change{
		Op:     OpDestroy,
		ID:     h.ID(),
		Parent: Handle{index: n.parent, gen: parent.gen}.ID(),
		Name:   n.name,
		Kind:   n.kind,
	})
	t.release(h.index)
}

func (t *Tree) release(index uint32) {
	n := &t.nodes[index]
	children := n.children
	n.children = nil
	n.value = nil
	n.live = false
	n.gen++
	t.free = append(t.free, index)
	for _, c := range children {
		t.release(c)
	}
}

func (t *Tree) create(parent Handle, name string, kind Kind, value any) Handle {
	p := t.resolve(parent)
	if p.kind != KindGroup {
		panic(fmt.Errorf("%w: %q is %s", ErrNotGroup, p.name, p.kind))
	}

	n := node{name: name, kind: kind, parent: parent.index, value: value, live: true}
	var index uint32
	if k := len(t.free); k > 0 {
		index = t.free[k-1]
		t.free = t.free[:k-1]
		n.gen = t.nodes[index].gen
		t.nodes[index] = n
	} else {
		index = uint32(len(t.nodes))
		n.gen = 1
		t.nodes = append(t.nodes, n)
	}
	// t.nodes may have been reallocated; index the parent again.
	t.nodes[parent.index].children = append(t.nodes[parent.index].children, index)

	h := Handle{index: index, gen: n.gen}
	t.pending = append(t.pending, Change{
		Op:     OpCreate,
		ID:     h.ID(),
		Parent: parent.ID(),
		Name:   name,
		Kind:   kind,
		Value:  value,
	})
	return h
}

func (t *Tree) set(h Handle, kind Kind, value any) {
	n := t.resolve(h)
	if n.kind != kind {
		panic(fmt.Errorf("%w: %q is %s, got %s", ErrKindMismatch, n.name, n.kind, kind))
	}
	if n.value == value {
		return
	}
	n.value = value
	t.pending = append(t.pending, Change{
		Op:     OpUpdate,
		ID:     h.ID(),
		Parent: Handle{index: n.parent, gen: t.nodes[n.parent].gen}.ID(),
		Name:   n.name,
		Kind:   kind,
		Value:  value,
	})
}

func (t *Tree) resolve(h Handle) *node {
	if h.IsZero() || int(h.index) >= len(t.nodes) {
		panic(fmt.Errorf("%w: %d", ErrStaleHandle, h.ID()))
	}
	n := &t.nodes[h.index]
	if !n.live || n.gen != h.gen {
		panic(fmt.Errorf("%w: %d", ErrStaleHandle, h.ID()))
	}
	return n
}
