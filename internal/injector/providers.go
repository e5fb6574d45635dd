package injector

import (
	"fmt"

	"github.com/zeusync/inputlink/internal/bridge"
	"github.com/zeusync/inputlink/internal/core/config"
	"github.com/zeusync/inputlink/internal/core/engine"
	"github.com/zeusync/inputlink/internal/core/events/bus"
	"github.com/zeusync/inputlink/internal/core/ledger"
	"github.com/zeusync/inputlink/internal/core/observability/log"
	"github.com/zeusync/inputlink/internal/core/world"
)

// App is the assembled process. Bridge and Ledger are nil when disabled.
type App struct {
	Config *config.Config
	Log    *log.Logger
	Bus    bus.EventBus
	Engine *engine.Engine
	Runner *engine.Runner
	Bridge *bridge.Server
	Ledger *ledger.Ledger
}

func ProvideLogger(cfg *config.Config) *log.Logger {
	return log.NewWithOptions(log.Options{Level: cfg.LogLevel(), Encoding: cfg.Log.Encoding})
}

func ProvideBus() bus.EventBus {
	return bus.New()
}

func ProvideWorld(cfg *config.Config) (*world.World, error) {
	return cfg.BuildWorld()
}

// ProvideEngine builds the engine and registers every configured entity with
// its waypoints, in configuration order.
func ProvideEngine(cfg *config.Config, w *world.World, b bus.EventBus, l *log.Logger) (*engine.Engine, error) {
	e := engine.New(w, engine.Options{
		Bus:        b,
		Logger:     l,
		Seed:       cfg.Seed,
		Encoding:   cfg.Encoding(),
		Projection: cfg.Projection(),
	})
	for _, ec := range cfg.Entities {
		ent := cfg.NewEntity(ec)
		if err := e.Register(ent); err != nil {
			return nil, err
		}
		for _, wp := range ec.Waypoints {
			if err := e.AddOrUpdateWaypoint(ent.ID, wp.Name, wp.Target); err != nil {
				return nil, fmt.Errorf("waypoint %s/%s: %w", ec.Name, wp.Name, err)
			}
		}
	}
	return e, nil
}

func ProvideRunner(cfg *config.Config, e *engine.Engine) *engine.Runner {
	return engine.NewRunner(e, engine.RunnerOptions{Interval: cfg.TickInterval, MaxTicks: cfg.MaxTicks})
}

func ProvideLedger(cfg *config.Config, b bus.EventBus, l *log.Logger) (*ledger.Ledger, func(), error) {
	if !cfg.Ledger.Enabled {
		return nil, func() {}, nil
	}
	lg, err := ledger.Open(cfg.Ledger.DSN, l)
	if err != nil {
		return nil, nil, err
	}
	if err := lg.Attach(b); err != nil {
		_ = lg.Close()
		return nil, nil, err
	}
	return lg, func() {
		if err := lg.Close(); err != nil {
			l.Warn("ledger close failed", log.Error(err))
		}
	}, nil
}

func ProvideBridge(cfg *config.Config, e *engine.Engine, b bus.EventBus, l *log.Logger) (*bridge.Server, func(), error) {
	if !cfg.Bridge.Enabled {
		return nil, func() {}, nil
	}
	srv, err := bridge.NewServer(e, b, bridge.Options{
		Addr:          cfg.Bridge.Addr,
		Path:          cfg.Bridge.Path,
		SendSnapshots: cfg.Bridge.SendSnapshots,
	}, l)
	if err != nil {
		return nil, nil, err
	}
	return srv, srv.Close, nil
}
