package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/inputlink/internal/core/config"
	"github.com/zeusync/inputlink/internal/core/observability/log"
	"github.com/zeusync/inputlink/internal/injector"
)

func main() {
	path := flag.String("config", "configs/scenario.yaml", "scenario file")
	flag.Parse()

	if err := run(*path); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	app, cleanup, err := injector.InitializeApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer func() { _ = app.Log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer app.Engine.Shutdown()
		err := app.Runner.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		// A finished run ends the process.
		stop()
		return err
	})
	if app.Bridge != nil {
		g.Go(func() error { return app.Bridge.ListenAndServe(ctx) })
	}

	app.Log.Info("simulation started",
		log.Int("entities", len(cfg.Entities)),
		log.Duration("interval", cfg.TickInterval),
		log.Uint64("max_ticks", cfg.MaxTicks))

	err = g.Wait()
	app.Log.Info("simulation stopped", log.Uint64("ticks", app.Engine.Tick()))
	return err
}
