// Package engine advances the world one tick at a time: it resolves the actions
// proposed for every entity in registration order, runs the world-wide update
// pass, republishes perception and bumps the tick counter.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/inputlink/internal/core/events/bus"
	"github.com/zeusync/inputlink/internal/core/facts"
	"github.com/zeusync/inputlink/internal/core/grid"
	"github.com/zeusync/inputlink/internal/core/observability/log"
	"github.com/zeusync/inputlink/internal/core/perception"
	"github.com/zeusync/inputlink/internal/core/systems/physics"
	"github.com/zeusync/inputlink/internal/core/waypoint"
	"github.com/zeusync/inputlink/internal/core/world"
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrInvalidAction = errors.New("invalid proposed action")
)

// Score reasons reported on bus.TypeScoreAdjusted.
const (
	ReasonLegalMove    = "legal-move"
	ReasonIllegalMove  = "illegal-move"
	ReasonFuelNegative = "fuel-negative"
	ReasonHit          = "hit"
	ReasonKill         = "kill"
)

// State is the phase of the tick currently being processed.
type State uint32

const (
	StateIdle State = iota
	StateResolvingActions
	StateApplyingEffects
	StatePublishing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolvingActions:
		return "resolving-actions"
	case StateApplyingEffects:
		return "applying-effects"
	case StatePublishing:
		return "publishing"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// Result describes one call to Step. Completed is false when the tick was cut
// short by cancellation; such a tick must not be re-run and its perception was
// not republished.
type Result struct {
	Tick      uint64
	Completed bool
	Processed int
}

type Options struct {
	Bus    bus.EventBus
	Logger log.Log
	// Seed drives the shared random source behind every random leaf.
	Seed       uint64
	Encoding   waypoint.BearingEncoding
	Projection physics.Projection
}

// Engine is driven by a single goroutine calling Step. Propose and Snapshot
// are safe to call from any goroutine; registration and waypoint calls are
// serialized with Step.
type Engine struct {
	world *world.World
	bus   bus.EventBus
	log   log.Log
	rand  *rand.Rand

	encoding   waypoint.BearingEncoding
	projection physics.Projection

	// tickMu serializes Step with roster and waypoint changes.
	tickMu sync.Mutex

	rosterMu   sync.RWMutex
	publishers map[string]*perception.Publisher

	mailboxMu sync.Mutex
	mailbox   map[string]world.ProposedAction

	tick     atomic.Uint64
	state    atomic.Uint32
	shutdown atomic.Bool
}

func New(w *world.World, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{
		world:      w,
		bus:        opts.Bus,
		log:        logger.Named("engine"),
		rand:       rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		encoding:   opts.Encoding,
		projection: opts.Projection,
		publishers: make(map[string]*perception.Publisher),
		mailbox:    make(map[string]world.ProposedAction),
	}
}

func (e *Engine) World() *world.World { return e.world }

// Tick is the number of completed ticks.
func (e *Engine) Tick() uint64 { return e.tick.Load() }

func (e *Engine) State() State { return State(e.state.Load()) }

// Shutdown asks the running and every later Step to abort before the next entity.
func (e *Engine) Shutdown() { e.shutdown.Store(true) }

// Register places ent in the world and builds its perception tree.
func (e *Engine) Register(ent *world.Entity) error {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	if err := e.world.AddEntity(ent); err != nil {
		return fmt.Errorf("register %s: %w", ent.Name, err)
	}

	opts := []facts.Option{facts.WithLogger(e.log)}
	if e.bus != nil {
		opts = append(opts, facts.WithBus(e.bus, ent.ID))
	}
	_, fuel := e.world.Fuel()
	p := perception.NewPublisher(ent, facts.NewTree("input-link", opts...), e.world, perception.Options{
		Encoding:   e.encoding,
		Projection: e.projection,
		Rand:       e.rand,
		Fuel:       fuel,
	})

	e.rosterMu.Lock()
	e.publishers[ent.ID] = p
	e.rosterMu.Unlock()

	e.log.Info("entity registered", log.Entity(ent.Name), log.String("id", ent.ID), log.Stringer("at", ent.Location))
	return nil
}

// Remove takes the entity off the map. Its last committed snapshot stays
// readable until the entity is forgotten by the caller.
func (e *Engine) Remove(id string) error {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	ent, err := e.world.RemoveEntity(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	e.closePublisher(id)
	e.log.Info("entity removed", log.Entity(ent.Name))
	return nil
}

func (e *Engine) closePublisher(id string) {
	e.rosterMu.Lock()
	defer e.rosterMu.Unlock()
	if p, ok := e.publishers[id]; ok {
		p.Close()
		delete(e.publishers, id)
	}
	e.mailboxMu.Lock()
	delete(e.mailbox, id)
	e.mailboxMu.Unlock()
}

// Propose stores the action for the entity's next tick, replacing any earlier
// proposal that has not been consumed yet.
func (e *Engine) Propose(id string, action world.ProposedAction) error {
	if err := validate(action); err != nil {
		return err
	}
	e.rosterMu.RLock()
	_, ok := e.publishers[id]
	e.rosterMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}

	e.mailboxMu.Lock()
	e.mailbox[id] = action
	e.mailboxMu.Unlock()
	return nil
}

func validate(a world.ProposedAction) error {
	if a.Move && a.MoveDirection == grid.NoHeading {
		return fmt.Errorf("%w: move without a direction", ErrInvalidAction)
	}
	if a.Rotate && a.RotateDirection == grid.NoHeading {
		return fmt.Errorf("%w: rotate without a direction", ErrInvalidAction)
	}
	if a.RadarPower && a.RadarPowerSetting < 0 {
		return fmt.Errorf("%w: negative radar power %d", ErrInvalidAction, a.RadarPowerSetting)
	}
	return nil
}

// Snapshot returns the entity's last committed perception.
func (e *Engine) Snapshot(id string) (*facts.Snapshot, bool) {
	e.rosterMu.RLock()
	p, ok := e.publishers[id]
	e.rosterMu.RUnlock()
	if !ok {
		return nil, false
	}
	return p.Tree().Snapshot(), true
}

// EntityID resolves a registered entity by name.
func (e *Engine) EntityID(name string) (string, bool) {
	e.rosterMu.RLock()
	defer e.rosterMu.RUnlock()
	for id, p := range e.publishers {
		if p.Entity().Name == name {
			return id, true
		}
	}
	return "", false
}

// AddOrUpdateWaypoint registers a waypoint for the entity. Calling it again
// with the same name and target changes nothing.
func (e *Engine) AddOrUpdateWaypoint(id, name string, target physics.Vec3) error {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	p, err := e.publisher(id)
	if err != nil {
		return err
	}
	p.AddOrUpdateWaypoint(name, target)
	return nil
}

// RemoveWaypoint reports whether the waypoint existed.
func (e *Engine) RemoveWaypoint(id, name string) (bool, error) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	p, err := e.publisher(id)
	if err != nil {
		return false, err
	}
	return p.RemoveWaypoint(name), nil
}

func (e *Engine) publisher(id string) (*perception.Publisher, error) {
	e.rosterMu.RLock()
	defer e.rosterMu.RUnlock()
	p, ok := e.publishers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	return p, nil
}

// Step runs one tick.
func (e *Engine) Step(ctx context.Context) Result {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	defer e.setState(StateIdle)

	start := time.Now()
	tick := e.tick.Load()
	res := Result{Tick: tick}

	entities := e.world.Entities()
	abort := func() Result {
		e.log.Info("tick aborted", log.Tick(tick), log.Int("processed", res.Processed))
		e.emit(bus.TypeTickAborted, "", bus.TickReport{
			Tick: tick, Processed: res.Processed, Entities: len(entities), Duration: time.Since(start),
		})
		return res
	}
	if e.cancelled(ctx) {
		return abort()
	}

	e.setState(StateResolvingActions)
	actions := e.drain()
	for _, ent := range entities {
		if e.cancelled(ctx) {
			return abort()
		}
		e.resolve(ent, actions[ent.ID], tick)
		res.Processed++
	}

	e.setState(StateApplyingEffects)
	for _, o := range e.world.Update() {
		e.settle(o, tick)
	}

	e.setState(StatePublishing)
	live := e.world.Entities()
	for _, ent := range live {
		if p, err := e.publisher(ent.ID); err == nil {
			p.Republish(e.world, tick)
		}
	}

	e.tick.Add(1)
	res.Completed = true
	e.emit(bus.TypeTickCompleted, "", bus.TickReport{
		Tick: tick, Processed: res.Processed, Entities: len(live), Duration: time.Since(start),
	})
	return res
}

func (e *Engine) setState(s State) { e.state.Store(uint32(s)) }

func (e *Engine) cancelled(ctx context.Context) bool {
	return e.shutdown.Load() || ctx.Err() != nil
}

func (e *Engine) drain() map[string]world.ProposedAction {
	e.mailboxMu.Lock()
	defer e.mailboxMu.Unlock()
	actions := e.mailbox
	e.mailbox = make(map[string]world.ProposedAction, len(actions))
	return actions
}

// resolve applies one action, axis by axis: move, rotate, fire, radar, radar
// power, shields.
func (e *Engine) resolve(ent *world.Entity, a world.ProposedAction, tick uint64) {
	if a.Move {
		e.move(ent, a.MoveDirection, tick)
	}
	if a.Rotate {
		ent.Facing = grid.Orient(ent.Facing).Resolve(a.RotateDirection)
	}
	if a.Fire {
		e.world.Fire(ent)
	}
	if a.Radar {
		ent.RadarOn = a.RadarSetting
	}
	if a.RadarPower {
		ent.RadarSetting = min(a.RadarPowerSetting, e.world.Rules().MaxRadarPower)
	}
	if a.Shields {
		ent.Shields = a.ShieldsSetting
	}
}

func (e *Engine) move(ent *world.Entity, h grid.Heading, tick uint64) {
	rules := e.world.Rules()
	d := grid.Orient(ent.Facing).Resolve(h)
	to := ent.Location.Translate(d)

	// First mover wins: a cell taken earlier in this tick stays taken.
	if !e.world.Traversable(ent.Location, d) || e.world.Occupied(to) {
		e.log.Debug("illegal move", log.Tick(tick), log.Entity(ent.Name), log.Stringer("to", to))
		e.adjust(ent, rules.IllegalMovePenalty, ReasonIllegalMove, tick)
		return
	}

	e.world.ConsumeSharedResource()
	if e.world.SharedResourceNegative() {
		e.adjust(ent, rules.FuelNegativePenalty, ReasonFuelNegative, tick)
		return
	}
	e.world.Relocate(ent, to)
	e.adjust(ent, rules.LegalMoveCost, ReasonLegalMove, tick)
}

func (e *Engine) settle(o world.Outcome, tick uint64) {
	rules := e.world.Rules()
	switch o.Kind {
	case world.OutcomeHit:
		e.adjust(o.Shooter, rules.HitReward, ReasonHit, tick)
	case world.OutcomeKill:
		e.adjust(o.Shooter, rules.KillReward, ReasonKill, tick)
		e.log.Info("entity eliminated",
			log.Tick(tick), log.Entity(o.Target.Name), log.String("by", o.Shooter.Name), log.Bool("removed", o.Removed))
		if o.Removed {
			e.closePublisher(o.Target.ID)
		}
	}
}

func (e *Engine) adjust(ent *world.Entity, delta int, reason string, tick uint64) {
	if delta == 0 {
		return
	}
	ent.Score += delta
	e.emit(bus.TypeScoreAdjusted, ent.ID, bus.ScoreAdjustment{
		Tick:     tick,
		EntityID: ent.ID,
		Entity:   ent.Name,
		Delta:    delta,
		Total:    ent.Score,
		Reason:   reason,
	})
}

func (e *Engine) emit(typ, source string, data any) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(bus.NewEvent(typ, source, data, nil)); err != nil {
		e.log.Warn("event handler failed", log.String("type", typ), log.Error(err))
	}
}
