// Package bus is the in-process fan-out channel between a running plan
// and its observers. Delivery is decoupled per subscriber: a slow or
// dead observer never blocks the publisher or its peers.
package bus

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType tags a lifecycle event.
type EventType string

const (
	EventPlanSet       EventType = "plan_set"
	EventRunStarted    EventType = "run_started"
	EventStepStarted   EventType = "step_started"
	EventStepCompleted EventType = "step_completed"
	EventRunCompleted  EventType = "run_completed"
	EventLog           EventType = "log"
)

// Event is one discrete, timestamped notification. RunID lets an
// observer tell interleaved runs apart on a shared bus.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	// DefaultQueueSize is the per-subscriber buffer. On overflow the
	// oldest unread event is dropped, never the newest.
	DefaultQueueSize = 64

	// DefaultHistorySize bounds the central log replay ring.
	DefaultHistorySize = 100
)

// Subscriber is one observer's end of the bus.
type Subscriber struct {
	ch      chan Event
	dropped atomic.Uint64
}

// Events is the subscriber's receive channel. It is closed by
// Unsubscribe.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Dropped reports how many events this subscriber lost to overflow.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// Bus fans events out to any number of subscribers and keeps a bounded
// ring of recent log events for late joiners.
type Bus struct {
	queueSize   int
	historySize int

	mu      sync.Mutex
	subs    map[*Subscriber]struct{}
	history []Event
}

func New() *Bus {
	return NewSized(DefaultQueueSize, DefaultHistorySize)
}

func NewSized(queueSize, historySize int) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Bus{
		queueSize:   queueSize,
		historySize: historySize,
		subs:        make(map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new observer. Observers may join at any point
// during a run.
func (b *Bus) Subscribe() *Subscriber {
	s := &Subscriber{ch: make(chan Event, b.queueSize)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes an observer and closes its channel. Safe to call
// more than once.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; !ok {
		return
	}
	delete(b.subs, s)
	close(s.ch)
}

// Publish delivers evt to every current subscriber in publish order.
// With no subscribers it only maintains the log history. Never blocks.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if evt.Type == EventLog {
		b.history = append(b.history, evt)
		if len(b.history) > b.historySize {
			b.history = b.history[len(b.history)-b.historySize:]
		}
	}

	for s := range b.subs {
		select {
		case s.ch <- evt:
			continue
		default:
		}
		// Queue full: evict the oldest unread event. The channel has a
		// single sender (us, under the lock), so the retry cannot block.
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
		select {
		case s.ch <- evt:
		default:
			s.dropped.Add(1)
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Replay returns a copy of the retained log history, oldest first.
func (b *Bus) Replay() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}
