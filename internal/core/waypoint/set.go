package waypoint

import (
	"github.com/zeusync/inputlink/internal/core/facts"
	"github.com/zeusync/inputlink/internal/core/systems/physics"
)

// Set is the collection of waypoints of one entity, kept in registration
// order. All waypoint groups live under a single parent group.
type Set struct {
	tree       *facts.Tree
	parent     facts.Handle
	encoding   BearingEncoding
	projection physics.Projection
	trackers   []*Tracker
}

func NewSet(tree *facts.Tree, parent facts.Handle, encoding BearingEncoding, projection physics.Projection) *Set {
	if encoding == nil {
		encoding = IntegerBearings{}
	}
	return &Set{tree: tree, parent: parent, encoding: encoding, projection: projection}
}

func (s *Set) Encoding() BearingEncoding { return s.encoding }

// AddOrUpdate registers a waypoint. Re-adding the same name and target is a
// no-op; a new target for an existing name discards the old subtree, and the
// next Update materializes a fresh one.
func (s *Set) AddOrUpdate(name string, target physics.Vec3) *Tracker {
	if t := s.Get(name); t != nil {
		if t.Target() == target {
			return t
		}
		t.Disable(s.tree)
		t.target = target
		return t
	}
	t := NewTracker(name, target, s.parent, s.encoding, s.projection)
	s.trackers = append(s.trackers, t)
	return t
}

// Remove disables and forgets the waypoint. It reports whether it existed.
func (s *Set) Remove(name string) bool {
	for i, t := range s.trackers {
		if t.Matches(name) {
			t.Disable(s.tree)
			s.trackers = append(s.trackers[:i:i], s.trackers[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Set) Get(name string) *Tracker {
	for _, t := range s.trackers {
		if t.Matches(name) {
			return t
		}
	}
	return nil
}

func (s *Set) Len() int { return len(s.trackers) }

func (s *Set) Names() []string {
	names := make([]string, len(s.trackers))
	for i, t := range s.trackers {
		names[i] = t.Name()
	}
	return names
}

// Update refreshes every waypoint from pose, materializing as needed.
func (s *Set) Update(pose physics.Pose) {
	for _, t := range s.trackers {
		t.Update(s.tree, pose)
	}
}
