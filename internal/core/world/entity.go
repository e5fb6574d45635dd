package world

import (
	"github.com/google/uuid"

	"github.com/zeusync/inputlink/internal/core/grid"
	"github.com/zeusync/inputlink/internal/core/systems/physics"
)

// Resources are the consumable quantities an entity starts and respawns with.
type Resources struct {
	Health   int `yaml:"health"`
	Energy   int `yaml:"energy"`
	Missiles int `yaml:"missiles"`
}

// Entity is a situated agent. The World owns every registered entity; only the
// engine and the world's update pass mutate it.
type Entity struct {
	ID    string
	Name  string
	Color string

	Location grid.Point
	Facing   grid.Direction

	Health   int
	Energy   int
	Missiles int
	Score    int

	RadarOn       bool
	RadarSetting  int
	RadarDistance int
	Shields       bool

	// Resurrected is true for the tick in which the entity respawned.
	Resurrected bool

	spawn       grid.Point
	spawnFacing grid.Direction
	initial     Resources
}

func NewEntity(name, color string, at grid.Point, facing grid.Direction, initial Resources) *Entity {
	e := &Entity{
		ID:          uuid.NewString(),
		Name:        name,
		Color:       color,
		Location:    at,
		Facing:      facing,
		spawn:       at,
		spawnFacing: facing,
		initial:     initial,
	}
	e.resetResources()
	return e
}

func (e *Entity) Initial() Resources { return e.initial }

func (e *Entity) Spawn() grid.Point { return e.spawn }

// Pose places the entity in the continuous frame used by waypoint sensors.
func (e *Entity) Pose() physics.Pose {
	return physics.Pose{
		Position: physics.Vec3{X: float64(e.Location.X), Y: float64(e.Location.Y)},
		Yaw:      e.Facing.Yaw(),
	}
}

func (e *Entity) Alive() bool { return e.Health > 0 }

func (e *Entity) resetResources() {
	e.Health = e.initial.Health
	e.Energy = e.initial.Energy
	e.Missiles = e.initial.Missiles
	e.RadarOn = false
	e.RadarSetting = 0
	e.RadarDistance = 0
	e.Shields = false
}
