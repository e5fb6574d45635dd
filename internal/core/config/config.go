// Package config loads a scenario: the map, the rules, the entities and the
// settings of the surrounding services.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/inputlink/internal/core/grid"
	"github.com/zeusync/inputlink/internal/core/observability/log"
	"github.com/zeusync/inputlink/internal/core/systems/physics"
	"github.com/zeusync/inputlink/internal/core/waypoint"
	"github.com/zeusync/inputlink/internal/core/world"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Seed         uint64        `yaml:"seed"`
	TickInterval time.Duration `yaml:"tick_interval"`
	MaxTicks     uint64        `yaml:"max_ticks"`

	Log        LogConfig        `yaml:"log"`
	Map        MapConfig        `yaml:"map"`
	Fuel       FuelConfig       `yaml:"fuel"`
	Rules      world.Rules      `yaml:"rules"`
	Perception PerceptionConfig `yaml:"perception"`
	Entities   []EntityConfig   `yaml:"entities"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Ledger     LedgerConfig     `yaml:"ledger"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type MapConfig struct {
	Width            int          `yaml:"width"`
	Height           int          `yaml:"height"`
	Walls            []WallConfig `yaml:"walls"`
	Obstacles        []grid.Point `yaml:"obstacles"`
	EnergyRechargers []grid.Point `yaml:"energy_rechargers"`
	HealthRechargers []grid.Point `yaml:"health_rechargers"`
	FuelStations     []grid.Point `yaml:"fuel_stations"`
}

// WallConfig blocks the Side edge of the cell At.
type WallConfig struct {
	At   grid.Point     `yaml:"at"`
	Side grid.Direction `yaml:"side"`
}

type FuelConfig struct {
	Enabled  bool `yaml:"enabled"`
	Initial  int  `yaml:"initial"`
	Capacity int  `yaml:"capacity"`
}

type PerceptionConfig struct {
	// BearingEncoding is "int" or "float".
	BearingEncoding string `yaml:"bearing_encoding"`
	// Projection is "planar" or "spatial".
	Projection string `yaml:"projection"`
}

type EntityConfig struct {
	Name      string           `yaml:"name"`
	Color     string           `yaml:"color"`
	Start     grid.Point       `yaml:"start"`
	Facing    grid.Direction   `yaml:"facing"`
	Waypoints []WaypointConfig `yaml:"waypoints"`
}

type WaypointConfig struct {
	Name   string       `yaml:"name"`
	Target physics.Vec3 `yaml:"target"`
}

type BridgeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
	// SendSnapshots streams full snapshots instead of change batches.
	SendSnapshots bool `yaml:"send_snapshots"`
}

type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Default returns a config carrying every default; Decode fills it in.
func Default() *Config {
	return &Config{
		Seed:         1,
		TickInterval: 50 * time.Millisecond,
		Log:          LogConfig{Level: "info", Encoding: "json"},
		Rules:        world.DefaultRules(),
		Perception:   PerceptionConfig{BearingEncoding: "int", Projection: "planar"},
		Bridge:       BridgeConfig{Addr: ":8080", Path: "/ws"},
		Ledger:       LedgerConfig{DSN: "file:ledger.db"},
	}
}

// Load reads and validates the scenario at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads YAML from r over the defaults. Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Map.Width <= 0 || c.Map.Height <= 0 {
		errs = append(errs, fmt.Errorf("map: size %dx%d must be positive", c.Map.Width, c.Map.Height))
	}
	if c.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("tick_interval: %s is negative", c.TickInterval))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		errs = append(errs, fmt.Errorf("log: unknown encoding %q", c.Log.Encoding))
	}
	if c.Fuel.Enabled && c.Fuel.Capacity < c.Fuel.Initial {
		errs = append(errs, fmt.Errorf("fuel: capacity %d below initial %d", c.Fuel.Capacity, c.Fuel.Initial))
	}
	if c.Rules.MaxRadarPower < 0 {
		errs = append(errs, fmt.Errorf("rules: max_radar_power %d is negative", c.Rules.MaxRadarPower))
	}
	if _, err := waypoint.ParseEncoding(c.Perception.BearingEncoding); err != nil {
		errs = append(errs, fmt.Errorf("perception: %w", err))
	}
	if _, err := physics.ParseProjection(c.Perception.Projection); err != nil {
		errs = append(errs, fmt.Errorf("perception: %w", err))
	}
	for _, w := range c.Map.Walls {
		if !w.Side.Valid() {
			errs = append(errs, fmt.Errorf("map: wall at %s has no side", w.At))
		}
	}

	names := make(map[string]struct{}, len(c.Entities))
	for i, e := range c.Entities {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("entities[%d]: name is required", i))
		}
		if _, dup := names[e.Name]; dup {
			errs = append(errs, fmt.Errorf("entities[%d]: duplicate name %q", i, e.Name))
		}
		names[e.Name] = struct{}{}
		if !e.Facing.Valid() {
			errs = append(errs, fmt.Errorf("entities[%d]: facing is required", i))
		}
	}

	if c.Bridge.Enabled && c.Bridge.Addr == "" {
		errs = append(errs, errors.New("bridge: addr is required"))
	}
	if c.Ledger.Enabled && c.Ledger.DSN == "" {
		errs = append(errs, errors.New("ledger: dsn is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c *Config) LogLevel() log.Level {
	l, _ := log.ParseLevel(c.Log.Level)
	return l
}

func (c *Config) Encoding() waypoint.BearingEncoding {
	enc, _ := waypoint.ParseEncoding(c.Perception.BearingEncoding)
	return enc
}

func (c *Config) Projection() physics.Projection {
	p, _ := physics.ParseProjection(c.Perception.Projection)
	return p
}

// BuildWorld lays out the map. Entities are not placed.
func (c *Config) BuildWorld() (*world.World, error) {
	w, err := world.New(c.Map.Width, c.Map.Height, c.Rules)
	if err != nil {
		return nil, err
	}
	flags := []struct {
		points []grid.Point
		flag   world.CellFlags
	}{
		{c.Map.Obstacles, world.Obstacle},
		{c.Map.EnergyRechargers, world.EnergyRecharger},
		{c.Map.HealthRechargers, world.HealthRecharger},
		{c.Map.FuelStations, world.FuelStation},
	}
	for _, f := range flags {
		for _, p := range f.points {
			if err := w.SetFlags(p, f.flag); err != nil {
				return nil, fmt.Errorf("map: %w", err)
			}
		}
	}
	for _, wall := range c.Map.Walls {
		if err := w.AddWall(wall.At, wall.Side); err != nil {
			return nil, fmt.Errorf("map: wall: %w", err)
		}
	}
	if c.Fuel.Enabled {
		w.EnableFuel(c.Fuel.Initial, c.Fuel.Capacity)
	}
	return w, nil
}

// NewEntity builds the entity described by ec with the scenario's initial
// resources.
func (c *Config) NewEntity(ec EntityConfig) *world.Entity {
	return world.NewEntity(ec.Name, ec.Color, ec.Start, ec.Facing, c.Rules.Initial)
}
