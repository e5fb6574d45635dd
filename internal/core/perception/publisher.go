// Package perception mirrors one entity's situation into its fact tree once per
// tick. The subtree is built once at registration; every later tick only
// updates leaves in place and commits.
package perception

import (
	"github.com/zeusync/inputlink/internal/core/facts"
	"github.com/zeusync/inputlink/internal/core/grid"
	"github.com/zeusync/inputlink/internal/core/systems/physics"
	"github.com/zeusync/inputlink/internal/core/waypoint"
	"github.com/zeusync/inputlink/internal/core/world"
)

const (
	yes = "yes"
	no  = "no"
	on  = "on"
	off = "off"
)

// Rand is the shared pseudo-random source behind the random leaf.
// Float64 must return values in [0,1).
type Rand interface {
	Float64() float64
}

type Options struct {
	Encoding   waypoint.BearingEncoding
	Projection physics.Projection
	Rand       Rand
	// Fuel adds a fuel leaf mirroring the world's shared fuel level.
	Fuel bool
}

type relativeLeaves struct {
	forward, backward, left, right facts.StringLeaf
}

func createRelative(tree *facts.Tree, parent facts.Handle, name string, o grid.Orientation, mask grid.Mask) relativeLeaves {
	g := tree.CreateGroup(parent, name)
	return relativeLeaves{
		forward:  tree.CreateString(g, "forward", yesNo(mask.Has(o.Forward))),
		backward: tree.CreateString(g, "backward", yesNo(mask.Has(o.Backward))),
		left:     tree.CreateString(g, "left", yesNo(mask.Has(o.Left))),
		right:    tree.CreateString(g, "right", yesNo(mask.Has(o.Right))),
	}
}

func (r relativeLeaves) update(tree *facts.Tree, o grid.Orientation, mask grid.Mask) {
	tree.SetString(r.forward, yesNo(mask.Has(o.Forward)))
	tree.SetString(r.backward, yesNo(mask.Has(o.Backward)))
	tree.SetString(r.left, yesNo(mask.Has(o.Left)))
	tree.SetString(r.right, yesNo(mask.Has(o.Right)))
}

// Publisher owns the perception subtree of a single entity.
type Publisher struct {
	entity *world.Entity
	tree   *facts.Tree
	rand   Rand
	closed bool

	blocked  relativeLeaves
	incoming relativeLeaves
	rwaves   relativeLeaves

	clock     facts.IntLeaf
	direction facts.StringLeaf
	health    facts.IntLeaf
	energy    facts.IntLeaf
	missiles  facts.IntLeaf
	x, y      facts.IntLeaf
	score     facts.IntLeaf

	energyRecharger facts.StringLeaf
	healthRecharger facts.StringLeaf

	radarDistance facts.IntLeaf
	radarSetting  facts.IntLeaf
	radarStatus   facts.StringLeaf

	shieldStatus facts.StringLeaf
	random       facts.FloatLeaf
	resurrect    facts.StringLeaf
	fuel         *facts.IntLeaf

	waypoints *waypoint.Set
}

// NewPublisher builds the entity's fixed perception subtree under the tree's
// root from the entity's current state and view, and commits it.
func NewPublisher(e *world.Entity, tree *facts.Tree, view world.View, opts Options) *Publisher {
	root := tree.Root()
	p := &Publisher{entity: e, tree: tree, rand: opts.Rand}

	o := grid.Orient(e.Facing)
	p.blocked = createRelative(tree, root, "blocked", o, view.BlockedMask(e.Location))
	p.incoming = createRelative(tree, root, "incoming", o, view.IncomingMask(e.Location))
	p.rwaves = createRelative(tree, root, "rwaves", o, view.RadarWaveMask(e.Location))

	p.clock = tree.CreateInt(root, "clock", 0)
	p.direction = tree.CreateString(root, "direction", e.Facing.String())
	p.health = tree.CreateInt(root, "health", int64(e.Health))
	p.energy = tree.CreateInt(root, "energy", int64(e.Energy))
	p.missiles = tree.CreateInt(root, "missiles", int64(e.Missiles))
	p.x = tree.CreateInt(root, "x", int64(e.Location.X))
	p.y = tree.CreateInt(root, "y", int64(e.Location.Y))
	cell := view.Cell(e.Location)
	p.energyRecharger = tree.CreateString(root, "energyrecharger", yesNo(cell.IsEnergyRecharger()))
	p.healthRecharger = tree.CreateString(root, "healthrecharger", yesNo(cell.IsHealthRecharger()))

	radar := tree.CreateGroup(root, "radar")
	p.radarDistance = tree.CreateInt(radar, "distance", int64(e.RadarDistance))
	p.radarSetting = tree.CreateInt(radar, "setting", int64(e.RadarSetting))
	p.radarStatus = tree.CreateString(radar, "status", onOff(e.RadarOn))

	p.shieldStatus = tree.CreateString(root, "shield-status", onOff(e.Shields))
	tree.CreateString(root, "my-color", e.Color)
	p.random = tree.CreateFloat(root, "random", p.draw())
	p.score = tree.CreateInt(root, "score", int64(e.Score))
	p.resurrect = tree.CreateString(root, "resurrect", yesNo(e.Resurrected))
	if opts.Fuel {
		level, _ := view.Fuel()
		leaf := tree.CreateInt(root, "fuel", int64(level))
		p.fuel = &leaf
	}

	p.waypoints = waypoint.NewSet(tree, tree.CreateGroup(root, "waypoints"), opts.Encoding, opts.Projection)

	tree.Commit()
	return p
}

func (p *Publisher) Entity() *world.Entity { return p.entity }

func (p *Publisher) Tree() *facts.Tree { return p.tree }

func (p *Publisher) Waypoints() *waypoint.Set { return p.waypoints }

func (p *Publisher) Closed() bool { return p.closed }

// Republish brings every leaf in line with the entity and the world at tick,
// then commits once. It is a no-op after Close.
func (p *Publisher) Republish(view world.View, tick uint64) facts.Batch {
	if p.closed || !p.tree.Valid(p.clock.Handle) {
		return facts.Batch{}
	}
	e, t := p.entity, p.tree

	o := grid.Orient(e.Facing)
	p.blocked.update(t, o, view.BlockedMask(e.Location))
	p.incoming.update(t, o, view.IncomingMask(e.Location))
	p.rwaves.update(t, o, view.RadarWaveMask(e.Location))

	t.SetInt(p.clock, int64(tick))
	t.SetString(p.direction, e.Facing.String())
	t.SetInt(p.health, int64(e.Health))
	t.SetInt(p.energy, int64(e.Energy))
	t.SetInt(p.missiles, int64(e.Missiles))
	t.SetInt(p.x, int64(e.Location.X))
	t.SetInt(p.y, int64(e.Location.Y))
	t.SetInt(p.score, int64(e.Score))
	t.SetString(p.resurrect, yesNo(e.Resurrected))

	cell := view.Cell(e.Location)
	t.SetString(p.energyRecharger, yesNo(cell.IsEnergyRecharger()))
	t.SetString(p.healthRecharger, yesNo(cell.IsHealthRecharger()))

	t.SetInt(p.radarDistance, int64(e.RadarDistance))
	t.SetInt(p.radarSetting, int64(e.RadarSetting))
	t.SetString(p.radarStatus, onOff(e.RadarOn))
	t.SetString(p.shieldStatus, onOff(e.Shields))

	t.SetFloat(p.random, p.draw())
	if p.fuel != nil {
		if level, ok := view.Fuel(); ok {
			t.SetInt(*p.fuel, int64(level))
		}
	}

	p.waypoints.Update(e.Pose())
	return t.Commit()
}

// AddOrUpdateWaypoint registers a waypoint; its subtree appears on the next
// Republish.
func (p *Publisher) AddOrUpdateWaypoint(name string, target physics.Vec3) {
	if p.closed {
		return
	}
	p.waypoints.AddOrUpdate(name, target)
}

func (p *Publisher) RemoveWaypoint(name string) bool {
	if p.closed {
		return false
	}
	return p.waypoints.Remove(name)
}

// Close detaches the publisher from its entity. The last committed snapshot
// stays readable.
func (p *Publisher) Close() {
	p.closed = true
}

func (p *Publisher) draw() float64 {
	if p.rand == nil {
		return 0
	}
	return p.rand.Float64()
}

func yesNo(b bool) string {
	if b {
		return yes
	}
	return no
}

func onOff(b bool) string {
	if b {
		return on
	}
	return off
}
