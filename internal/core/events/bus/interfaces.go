package bus

import "time"

// Event types emitted by the simulation.
const (
	// TypeFactsCommitted carries a facts.Batch; Source is the entity id.
	TypeFactsCommitted = "facts.committed"
	// TypeScoreAdjusted carries a ScoreAdjustment.
	TypeScoreAdjusted = "score.adjusted"
	// TypeTickCompleted carries a TickReport.
	TypeTickCompleted = "tick.completed"
	// TypeTickAborted carries a TickReport for a tick cut short by shutdown.
	TypeTickAborted = "tick.aborted"
)

// EventBus is an in-process pub/sub event bus.
//
// - Type-based fan-out: handlers subscribe by Event.Type() string.
// - Synchronous delivery: Publish calls handlers in the caller goroutine, in
//   subscription order.
// - Error aggregation: handler errors are joined and returned from Publish.
// - Filters are evaluated before delivery; a rejected event is dropped without error.
//
// All methods are safe for concurrent use.
type EventBus interface {
	Publish(event Event) error
	PublishWithFilters(event Event, filters ...EventFilter) error
	PublishBatch(events ...Event) error

	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. It is safe to call with nil.
	Unsubscribe(Subscription) error

	AddObserver(obs EventBusObserver)
	RemoveObserver(obs EventBusObserver)
	// GetMetrics returns counters collected while at least one observer is registered.
	GetMetrics() EventBusMetrics
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
	Metadata() map[string]any
}

type (
	EventHandler func(event Event) error
	EventFilter  func(event Event) bool
)

// Subscription is a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// EventBusObserver is notified about deliveries. Observers should return quickly.
type EventBusObserver interface {
	OnPublish(eventType string, event Event)
	OnDelivered(eventType string, handlers int, err error, durationMicros int64)
}

type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	DroppedByFilters  uint64
	SubscribersActive uint64
}

// ScoreAdjustment is the payload of TypeScoreAdjusted.
type ScoreAdjustment struct {
	Tick     uint64
	EntityID string
	Entity   string
	Delta    int
	Total    int
	Reason   string
}

// TickReport is the payload of TypeTickCompleted and TypeTickAborted. Tick is
// the index of the reported tick; after the first completed tick it is 0 and
// the engine's completed-tick count is 1.
type TickReport struct {
	Tick      uint64
	Processed int
	Entities  int
	Duration  time.Duration
}
