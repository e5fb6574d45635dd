package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/inputlink/internal/core/grid"
	"github.com/zeusync/inputlink/internal/core/observability/log"
	"github.com/zeusync/inputlink/internal/core/systems/physics"
	"github.com/zeusync/inputlink/internal/core/waypoint"
)

const minimal = `
map: {width: 4, height: 3}
entities:
  - {name: tank, start: {x: 1, y: 1}, facing: north}
`

func TestDecodeAppliesDefaults(t *testing.T) {
	c, err := Decode(strings.NewReader(minimal))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), c.Seed)
	assert.Equal(t, 50*time.Millisecond, c.TickInterval)
	assert.Equal(t, -1, c.Rules.LegalMoveCost)
	assert.Equal(t, -2, c.Rules.IllegalMovePenalty)
	assert.Equal(t, 1000, c.Rules.Initial.Health)
	assert.Equal(t, log.LevelInfo, c.LogLevel())
	assert.Equal(t, waypoint.IntegerBearings{}, c.Encoding())
	assert.Equal(t, physics.Planar, c.Projection())
	require.Len(t, c.Entities, 1)
	assert.Equal(t, grid.North, c.Entities[0].Facing)
}

func TestDecodeOverridesPartialRules(t *testing.T) {
	c, err := Decode(strings.NewReader(minimal + `
tick_interval: 250ms
rules: {legal_move_cost: -3, respawn: false}
perception: {bearing_encoding: float, projection: spatial}
`))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, c.TickInterval)
	assert.Equal(t, -3, c.Rules.LegalMoveCost)
	assert.False(t, c.Rules.Respawn)
	assert.Equal(t, 400, c.Rules.MissileDamage, "unset rules keep their defaults")
	assert.Equal(t, waypoint.FloatBearings{}, c.Encoding())
	assert.Equal(t, physics.Spatial, c.Projection())
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader(minimal + "speed: 3\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty map", "map: {width: 0, height: 3}\n"},
		{"bad facing", "map: {width: 2, height: 2}\nentities: [{name: a, start: {x: 0, y: 0}}]\n"},
		{"duplicate entity", "map: {width: 2, height: 2}\nentities: [{name: a, facing: east}, {name: a, facing: east}]\n"},
		{"fuel over capacity", "map: {width: 2, height: 2}\nfuel: {enabled: true, initial: 5, capacity: 1}\n"},
		{"bad encoding", "map: {width: 2, height: 2}\nperception: {bearing_encoding: hex}\n"},
		{"bad log level", "map: {width: 2, height: 2}\nlog: {level: loud}\n"},
		{"wall without side", "map: {width: 2, height: 2, walls: [{at: {x: 0, y: 0}}]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestBuildWorld(t *testing.T) {
	c, err := Decode(strings.NewReader(`
map:
  width: 3
  height: 3
  walls: [{at: {x: 0, y: 0}, side: east}]
  obstacles: [{x: 2, y: 2}]
  energy_rechargers: [{x: 1, y: 1}]
  fuel_stations: [{x: 0, y: 2}]
fuel: {enabled: true, initial: 3, capacity: 9}
`))
	require.NoError(t, err)

	w, err := c.BuildWorld()
	require.NoError(t, err)
	assert.False(t, w.Traversable(grid.Point{X: 0, Y: 0}, grid.East))
	assert.True(t, w.Cell(grid.Point{X: 2, Y: 2}).IsObstacle())
	assert.True(t, w.Cell(grid.Point{X: 1, Y: 1}).IsEnergyRecharger())
	assert.True(t, w.Cell(grid.Point{X: 0, Y: 2}).IsFuelStation())
	fuel, enabled := w.Fuel()
	assert.True(t, enabled)
	assert.Equal(t, 3, fuel)
}

func TestBuildWorldRejectsOffMapFeatures(t *testing.T) {
	c, err := Decode(strings.NewReader("map: {width: 2, height: 2, obstacles: [{x: 5, y: 0}]}\n"))
	require.NoError(t, err)
	_, err = c.BuildWorld()
	assert.Error(t, err)
}

func TestLoadScenarioFile(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "..", "configs", "scenario.yaml"))
	require.NoError(t, err)
	assert.Len(t, c.Entities, 2)
	assert.True(t, c.Fuel.Enabled)
	require.Len(t, c.Entities[0].Waypoints, 1)
	assert.Equal(t, "home", c.Entities[0].Waypoints[0].Name)

	_, err = c.BuildWorld()
	require.NoError(t, err)

	e := c.NewEntity(c.Entities[1])
	assert.Equal(t, "blue", e.Name)
	assert.Equal(t, grid.West, e.Facing)
	assert.Equal(t, 15, e.Missiles)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
