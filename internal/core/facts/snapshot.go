package facts

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Node is an immutable copy of a committed fact.
type Node struct {
	ID       uint64  `json:"id"`
	Name     string  `json:"name"`
	Kind     Kind    `json:"kind"`
	Value    any     `json:"value,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Child returns the first child with the given name.
func (n *Node) Child(name string) (*Node, bool) {
	for _, c := range n.Children {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ChildrenNamed returns every child with the given name, in creation order.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Snapshot is the committed fact tree at one version. It is never mutated.
type Snapshot struct {
	Version uint64 `json:"version"`
	Root    *Node  `json:"root"`

	digest uint64
}

// Digest is an xxhash of names, kinds and values in tree order. Node IDs do
// not take part, so equal content yields equal digests.
func (s *Snapshot) Digest() uint64 { return s.digest }

// Lookup walks the path from the root, taking the first child with each name.
func (s *Snapshot) Lookup(path ...string) (*Node, bool) {
	n := s.Root
	for _, name := range path {
		var ok bool
		if n, ok = n.Child(name); !ok {
			return nil, false
		}
	}
	return n, true
}

func (s *Snapshot) StringAt(path ...string) (string, bool) {
	n, ok := s.Lookup(path...)
	if !ok || n.Kind != KindString {
		return "", false
	}
	v, _ := n.Value.(string)
	return v, true
}

func (s *Snapshot) IntAt(path ...string) (int64, bool) {
	n, ok := s.Lookup(path...)
	if !ok || n.Kind != KindInt {
		return 0, false
	}
	// Decoded JSON carries numbers as float64.
	switch v := n.Value.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, true
	}
}

func (s *Snapshot) FloatAt(path ...string) (float64, bool) {
	n, ok := s.Lookup(path...)
	if !ok || n.Kind != KindFloat {
		return 0, false
	}
	v, _ := n.Value.(float64)
	return v, true
}

func digest(root *Node) uint64 {
	return xxhash.Sum64(appendNode(nil, root))
}

// appendNode appends the digest encoding of n and its subtree to b: name, kind,
// value, uvarint child count, children, end marker.
func appendNode(b []byte, n *Node) []byte {
	b = append(b, n.Name...)
	b = append(b, 0, byte(n.Kind))
	switch v := n.Value.(type) {
	case string:
		b = append(b, v...)
	case int64:
		b = binary.LittleEndian.AppendUint64(b, uint64(v))
	case float64:
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
	}
	b = binary.AppendUvarint(b, uint64(len(n.Children)))
	for _, c := range n.Children {
		b = appendNode(b, c)
	}
	return append(b, 0xff)
}
