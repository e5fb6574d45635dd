package world

import "github.com/zeusync/inputlink/internal/core/grid"

// Missile travels one cell per tick along Direction until it hits a wall, an
// obstacle or an entity other than its owner.
type Missile struct {
	Owner     *Entity
	Position  grid.Point
	Direction grid.Direction
}

type OutcomeKind uint8

const (
	OutcomeHit OutcomeKind = iota + 1
	OutcomeAbsorbed
	OutcomeKill
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeHit:
		return "hit"
	case OutcomeAbsorbed:
		return "absorbed"
	case OutcomeKill:
		return "kill"
	default:
		return "unknown"
	}
}

// Outcome reports a missile reaching an entity during Update.
type Outcome struct {
	Kind    OutcomeKind
	Shooter *Entity
	Target  *Entity
	// Removed is set when a kill took the target off the map for good.
	Removed bool
}

// Fire launches a missile from e's cell along its facing. It reports false and
// changes nothing when e has no missiles left.
func (w *World) Fire(e *Entity) bool {
	if e.Missiles <= 0 {
		return false
	}
	e.Missiles--
	w.missiles = append(w.missiles, &Missile{Owner: e, Position: e.Location, Direction: e.Facing})
	return true
}

func (w *World) Missiles() []Missile {
	out := make([]Missile, len(w.missiles))
	for i, m := range w.missiles {
		out[i] = *m
	}
	return out
}

// Update is the world-wide pass run once per tick after every proposed action
// has been applied. It advances missiles, drains and regenerates resources,
// refuels, recomputes radar distances and incoming masks, and respawns or
// removes eliminated entities.
func (w *World) Update() []Outcome {
	for _, e := range w.entities {
		e.Resurrected = false
	}

	outcomes := w.advanceMissiles()

	for i := range w.rwaves {
		w.rwaves[i] = 0
	}
	for _, e := range w.entities {
		w.regenerate(e)
		e.RadarDistance = w.traceRadar(e)
	}

	w.recomputeIncoming()
	return outcomes
}

func (w *World) advanceMissiles() []Outcome {
	var outcomes []Outcome
	kept := w.missiles[:0]
	for _, m := range w.missiles {
		if !w.Traversable(m.Position, m.Direction) {
			continue
		}
		m.Position = m.Position.Translate(m.Direction)
		target := w.Cell(m.Position).Occupant
		if target == nil || target == m.Owner {
			kept = append(kept, m)
			continue
		}
		outcomes = append(outcomes, w.hit(m.Owner, target))
	}
	for i := len(kept); i < len(w.missiles); i++ {
		w.missiles[i] = nil
	}
	w.missiles = kept
	return outcomes
}

func (w *World) hit(shooter, target *Entity) Outcome {
	if target.Shields {
		return Outcome{Kind: OutcomeAbsorbed, Shooter: shooter, Target: target}
	}
	target.Health -= w.rules.MissileDamage
	if target.Health > 0 {
		return Outcome{Kind: OutcomeHit, Shooter: shooter, Target: target}
	}
	target.Health = 0
	out := Outcome{Kind: OutcomeKill, Shooter: shooter, Target: target}
	if w.rules.Respawn {
		w.respawn(target)
	} else {
		_, _ = w.RemoveEntity(target.ID)
		out.Removed = true
	}
	return out
}

func (w *World) regenerate(e *Entity) {
	if e.Shields {
		e.Energy -= w.rules.ShieldEnergyCost
	}
	if e.RadarOn {
		e.Energy -= e.RadarSetting
	}
	if e.Energy <= 0 {
		e.Energy = 0
		e.Shields = false
		e.RadarOn = false
	}

	cell := w.Cell(e.Location)
	if cell.IsEnergyRecharger() {
		e.Energy = min(e.Energy+w.rules.RechargeRate, e.initial.Energy)
	}
	if cell.IsHealthRecharger() {
		e.Health = min(e.Health+w.rules.RechargeRate, e.initial.Health)
	}
	if cell.IsFuelStation() && w.fuelEnabled {
		w.fuel = w.fuelCapacity
	}
}

// traceRadar counts clear cells ahead of e, up to its radar power, and marks
// every cell the beam covers as reached from e's side. The first occupied cell
// counts and stops the beam.
func (w *World) traceRadar(e *Entity) int {
	if !e.RadarOn {
		return 0
	}
	from := e.Facing.Opposite()
	p := e.Location
	dist := 0
	for dist < e.RadarSetting && w.Traversable(p, e.Facing) {
		p = p.Translate(e.Facing)
		dist++
		i := w.index(p)
		w.rwaves[i] = w.rwaves[i].With(from)
		if w.cells[i].Occupant != nil {
			break
		}
	}
	return dist
}

func (w *World) recomputeIncoming() {
	for i := range w.incoming {
		w.incoming[i] = 0
	}
	for _, m := range w.missiles {
		from := m.Direction.Opposite()
		p := m.Position
		for w.Traversable(p, m.Direction) {
			p = p.Translate(m.Direction)
			i := w.index(p)
			w.incoming[i] = w.incoming[i].With(from)
			if w.cells[i].Occupant != nil {
				break
			}
		}
	}
}

// respawn resets e and places it on its spawn cell, or on the first free cell
// in row-major order when the spawn cell is taken.
func (w *World) respawn(e *Entity) {
	e.resetResources()
	e.Facing = e.spawnFacing
	e.Resurrected = true

	if dest, ok := w.respawnPoint(e); ok {
		w.Relocate(e, dest)
	}
}

func (w *World) respawnPoint(e *Entity) (grid.Point, bool) {
	if w.free(e.spawn, e) {
		return e.spawn, true
	}
	for y := 0; y < w.height; y++ {
		for x := 0; x < w.width; x++ {
			if p := (grid.Point{X: x, Y: y}); w.free(p, e) {
				return p, true
			}
		}
	}
	return grid.Point{}, false
}

func (w *World) free(p grid.Point, self *Entity) bool {
	c := w.Cell(p)
	return !c.IsObstacle() && (c.Occupant == nil || c.Occupant == self)
}
