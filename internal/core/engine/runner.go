package engine

import (
	"context"
	"time"

	"github.com/zeusync/inputlink/internal/core/facts"
	"github.com/zeusync/inputlink/internal/core/observability/log"
	"github.com/zeusync/inputlink/internal/core/world"
)

// Agent decides the next action of one entity from its committed perception.
// Decide runs between ticks, never concurrently with Step.
type Agent interface {
	EntityID() string
	Decide(ctx context.Context, perception *facts.Snapshot) (world.ProposedAction, error)
}

// AgentFunc adapts a function to Agent.
type AgentFunc struct {
	ID string
	Fn func(ctx context.Context, perception *facts.Snapshot) (world.ProposedAction, error)
}

func (a AgentFunc) EntityID() string { return a.ID }

func (a AgentFunc) Decide(ctx context.Context, perception *facts.Snapshot) (world.ProposedAction, error) {
	return a.Fn(ctx, perception)
}

type RunnerOptions struct {
	// Interval is the minimum wall time between tick starts. Zero runs ticks
	// back to back.
	Interval time.Duration
	// MaxTicks stops the runner after that many completed ticks. Zero means
	// no limit.
	MaxTicks uint64
}

// Runner drives an Engine: before each tick it asks every agent for an action,
// then steps the engine.
type Runner struct {
	engine *Engine
	agents []Agent
	opts   RunnerOptions
	log    log.Log
}

func NewRunner(e *Engine, opts RunnerOptions, agents ...Agent) *Runner {
	return &Runner{engine: e, agents: agents, opts: opts, log: e.log.Named("runner")}
}

// Run ticks until ctx is done, the engine is shut down or MaxTicks is reached.
// It returns ctx.Err() when stopped by the context and nil otherwise.
func (r *Runner) Run(ctx context.Context) error {
	var ticker *time.Ticker
	if r.opts.Interval > 0 {
		ticker = time.NewTicker(r.opts.Interval)
		defer ticker.Stop()
	}

	var completed uint64
	for r.opts.MaxTicks == 0 || completed < r.opts.MaxTicks {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.collect(ctx)
		res := r.engine.Step(ctx)
		if !res.Completed {
			r.log.Info("runner stopped", log.Tick(res.Tick))
			return ctx.Err()
		}
		completed++

		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
	r.log.Info("tick limit reached", log.Uint64("ticks", completed))
	return nil
}

func (r *Runner) collect(ctx context.Context) {
	for _, a := range r.agents {
		snap, ok := r.engine.Snapshot(a.EntityID())
		if !ok {
			continue
		}
		action, err := a.Decide(ctx, snap)
		if err != nil {
			r.log.Warn("agent decision failed", log.String("entity", a.EntityID()), log.Error(err))
			continue
		}
		if err := r.engine.Propose(a.EntityID(), action); err != nil {
			r.log.Warn("action rejected", log.String("entity", a.EntityID()), log.Error(err))
		}
	}
}
