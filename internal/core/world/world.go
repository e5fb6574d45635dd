// Package world holds the authoritative simulation state: the grid map, its
// cells and walls, the shared fuel resource, entities and missiles in flight.
package world

import (
	"errors"
	"fmt"

	"github.com/zeusync/inputlink/internal/core/grid"
)

var (
	ErrOutOfBounds    = errors.New("location out of bounds")
	ErrCellOccupied   = errors.New("cell is occupied")
	ErrCellObstacle   = errors.New("cell is an obstacle")
	ErrDuplicateName  = errors.New("entity name already registered")
	ErrInvalidFacing  = errors.New("entity facing is not a cardinal direction")
	ErrEntityNotFound = errors.New("entity not found")
	ErrInvalidSize    = errors.New("map dimensions must be positive")
)

type CellFlags uint8

const (
	Obstacle CellFlags = 1 << iota
	EnergyRecharger
	HealthRecharger
	FuelStation
)

type Cell struct {
	Flags    CellFlags
	Occupant *Entity
}

func (c Cell) Has(f CellFlags) bool { return c.Flags&f != 0 }

func (c Cell) IsObstacle() bool        { return c.Has(Obstacle) }
func (c Cell) IsEnergyRecharger() bool { return c.Has(EnergyRecharger) }
func (c Cell) IsHealthRecharger() bool { return c.Has(HealthRecharger) }
func (c Cell) IsFuelStation() bool     { return c.Has(FuelStation) }

// View is the read side of the world consumed by perception publishers.
type View interface {
	Cell(p grid.Point) Cell
	BlockedMask(p grid.Point) grid.Mask
	IncomingMask(p grid.Point) grid.Mask
	RadarWaveMask(p grid.Point) grid.Mask
	Fuel() (int, bool)
}

var _ View = (*World)(nil)

// World is exclusively owned by the engine during a tick; it does no locking.
type World struct {
	width, height int
	cells         []Cell
	walls         []grid.Mask
	incoming      []grid.Mask
	rwaves        []grid.Mask

	fuelEnabled  bool
	fuel         int
	fuelCapacity int

	rules    Rules
	entities []*Entity
	missiles []*Missile
}

func New(width, height int, rules Rules) (*World, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	n := width * height
	return &World{
		width:    width,
		height:   height,
		cells:    make([]Cell, n),
		walls:    make([]grid.Mask, n),
		incoming: make([]grid.Mask, n),
		rwaves:   make([]grid.Mask, n),
		rules:    rules,
	}, nil
}

func (w *World) Width() int   { return w.width }
func (w *World) Height() int  { return w.height }
func (w *World) Rules() Rules { return w.rules }

func (w *World) InBounds(p grid.Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < w.width && p.Y < w.height
}

func (w *World) index(p grid.Point) int { return p.Y*w.width + p.X }

// Cell returns the cell at p. Locations outside the map read as obstacles.
func (w *World) Cell(p grid.Point) Cell {
	if !w.InBounds(p) {
		return Cell{Flags: Obstacle}
	}
	return w.cells[w.index(p)]
}

func (w *World) SetFlags(p grid.Point, flags CellFlags) error {
	if !w.InBounds(p) {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	w.cells[w.index(p)].Flags |= flags
	return nil
}

// AddWall blocks the edge between p and its neighbour towards d, from both sides.
func (w *World) AddWall(p grid.Point, d grid.Direction) error {
	if !w.InBounds(p) {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	w.walls[w.index(p)] = w.walls[w.index(p)].With(d)
	if q := p.Translate(d); w.InBounds(q) {
		w.walls[w.index(q)] = w.walls[w.index(q)].With(d.Opposite())
	}
	return nil
}

// Traversable reports whether something at from may step towards d: the
// destination is on the map, no wall sits on the shared edge and the
// destination is not an obstacle. Occupancy is not considered.
func (w *World) Traversable(from grid.Point, d grid.Direction) bool {
	to := from.Translate(d)
	if !w.InBounds(to) || !w.InBounds(from) {
		return false
	}
	if w.walls[w.index(from)].Has(d) {
		return false
	}
	return !w.cells[w.index(to)].IsObstacle()
}

func (w *World) Occupied(p grid.Point) bool {
	return w.Cell(p).Occupant != nil
}

// BlockedMask holds every direction in which a step from p would fail:
// untraversable edges and occupied neighbours.
func (w *World) BlockedMask(p grid.Point) grid.Mask {
	var m grid.Mask
	for _, d := range grid.Directions {
		if !w.Traversable(p, d) || w.Occupied(p.Translate(d)) {
			m = m.With(d)
		}
	}
	return m
}

// IncomingMask holds the directions from which a missile is approaching p.
// It is recomputed by Update.
func (w *World) IncomingMask(p grid.Point) grid.Mask {
	if !w.InBounds(p) {
		return 0
	}
	return w.incoming[w.index(p)]
}

// RadarWaveMask reports the directions from which a radar beam reached p
// during the last Update.
func (w *World) RadarWaveMask(p grid.Point) grid.Mask {
	if !w.InBounds(p) {
		return 0
	}
	return w.rwaves[w.index(p)]
}

// EnableFuel turns on the shared fuel resource consumed by every legal move.
func (w *World) EnableFuel(initial, capacity int) {
	w.fuelEnabled = true
	w.fuel = initial
	w.fuelCapacity = capacity
}

// Fuel returns the shared fuel level and whether the world uses fuel at all.
func (w *World) Fuel() (int, bool) { return w.fuel, w.fuelEnabled }

func (w *World) ConsumeSharedResource() {
	if w.fuelEnabled {
		w.fuel--
	}
}

func (w *World) SharedResourceNegative() bool {
	return w.fuelEnabled && w.fuel < 0
}

// AddEntity places e on the map and appends it to the registration order.
func (w *World) AddEntity(e *Entity) error {
	if !e.Facing.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidFacing, e.Name)
	}
	if !w.InBounds(e.Location) {
		return fmt.Errorf("%w: %s at %s", ErrOutOfBounds, e.Name, e.Location)
	}
	cell := w.Cell(e.Location)
	if cell.IsObstacle() {
		return fmt.Errorf("%w: %s at %s", ErrCellObstacle, e.Name, e.Location)
	}
	if cell.Occupant != nil {
		return fmt.Errorf("%w: %s at %s", ErrCellOccupied, e.Name, e.Location)
	}
	if w.EntityByName(e.Name) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateName, e.Name)
	}
	w.cells[w.index(e.Location)].Occupant = e
	w.entities = append(w.entities, e)
	return nil
}

// RemoveEntity vacates the entity's cell and drops it from the roster.
func (w *World) RemoveEntity(id string) (*Entity, error) {
	for i, e := range w.entities {
		if e.ID != id {
			continue
		}
		if w.InBounds(e.Location) && w.cells[w.index(e.Location)].Occupant == e {
			w.cells[w.index(e.Location)].Occupant = nil
		}
		w.entities = append(w.entities[:i:i], w.entities[i+1:]...)
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
}

// Entities returns the roster in registration order. The slice is a copy.
func (w *World) Entities() []*Entity {
	return append([]*Entity(nil), w.entities...)
}

func (w *World) Entity(id string) *Entity {
	for _, e := range w.entities {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (w *World) EntityByName(name string) *Entity {
	for _, e := range w.entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Relocate moves e to the in-bounds cell to, vacating its old cell.
func (w *World) Relocate(e *Entity, to grid.Point) {
	if w.cells[w.index(e.Location)].Occupant == e {
		w.cells[w.index(e.Location)].Occupant = nil
	}
	e.Location = to
	w.cells[w.index(to)].Occupant = e
}
