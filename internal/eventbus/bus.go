// Package eventbus provides a minimal in-process publish/subscribe channel
// for kernel lifecycle notifications. It has no persistence and no
// cross-process delivery: subscribers lost on restart simply miss history.
package eventbus

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind is a typed lifecycle event name.
type Kind string

const (
	TaskStarted    Kind = "TASK_STARTED"
	TaskCompleted  Kind = "TASK_COMPLETED"
	StepStarted    Kind = "STEP_STARTED"
	StepDone       Kind = "STEP_DONE"
	AgentActivity  Kind = "AGENT_ACTIVITY"
	BudgetExceeded Kind = "BUDGET_EXCEEDED"
)

// Event is one published notification.
type Event struct {
	Kind Kind
	At   time.Time
	Data map[string]any
}

// Handler receives events in publication order for the topic it subscribed to.
type Handler func(Event)

// subscription pairs a handler with its own ordered delivery queue. Each
// subscription has a single worker goroutine, so events reach that handler
// in publication order even though delivery itself is asynchronous.
type subscription struct {
	queue chan Event
}

// Bus is a fire-and-forget in-process pub/sub. Safe for concurrent use.
// A panicking or slow subscriber never blocks or crashes the publisher, and
// never delays delivery to other subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[Kind][]*subscription
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[Kind][]*subscription)}
}

// Subscribe registers h to receive every event of kind published afterward,
// in the order they are published.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	sub := &subscription{queue: make(chan Event, 64)}
	go sub.run(h)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[kind] = append(b.subs[kind], sub)
}

func (s *subscription) run(h Handler) {
	for ev := range s.queue {
		s.deliver(h, ev)
	}
}

func (s *subscription) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("kind", string(ev.Kind)).Msg("eventbus_subscriber_panic")
		}
	}()
	h(ev)
}

// Publish delivers ev to every subscriber of ev.Kind. Publish never blocks on
// a subscriber: each subscriber has its own bounded queue, and a full queue
// drops the event for that subscriber rather than stalling the publisher.
func (b *Bus) Publish(kind Kind, data map[string]any) {
	ev := Event{Kind: kind, At: time.Now().UTC(), Data: data}

	b.mu.RLock()
	subs := append([]*subscription(nil), b.subs[kind]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.queue <- ev:
		default:
			log.Warn().Str("kind", string(kind)).Msg("eventbus_subscriber_queue_full_dropping_event")
		}
	}
}
