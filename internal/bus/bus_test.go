package bus

import (
	"fmt"
	"testing"
	"time"
)

func drain(s *Subscriber) []Event {
	var out []Event
	for {
		select {
		case evt := <-s.Events():
			out = append(out, evt)
		default:
			return out
		}
	}
}

func TestFanOut_TwoSubscribersSameOrder(t *testing.T) {
	b := New()
	a := b.Subscribe()
	c := b.Subscribe()

	b.Publish(Event{Type: EventStepStarted, Data: 1})
	b.Publish(Event{Type: EventStepCompleted, Data: 1})

	for name, sub := range map[string]*Subscriber{"a": a, "c": c} {
		got := drain(sub)
		if len(got) != 2 {
			t.Fatalf("%s received %d events, want 2", name, len(got))
		}
		if got[0].Type != EventStepStarted || got[1].Type != EventStepCompleted {
			t.Errorf("%s received events out of order: %v %v", name, got[0].Type, got[1].Type)
		}
	}
}

func TestUnsubscribeMidStreamDoesNotAffectOthers(t *testing.T) {
	b := New()
	a := b.Subscribe()
	c := b.Subscribe()

	b.Publish(Event{Type: EventStepStarted})
	b.Unsubscribe(a)
	b.Publish(Event{Type: EventStepCompleted})

	if got := drain(c); len(got) != 2 {
		t.Errorf("remaining subscriber received %d events, want 2", len(got))
	}
	if b.SubscriberCount() != 1 {
		t.Errorf("subscriber count = %d, want 1", b.SubscriberCount())
	}

	// Double unsubscribe must be harmless.
	b.Unsubscribe(a)

	// The departed subscriber's channel is closed.
	if _, ok := <-a.Events(); ok {
		t.Error("expected closed channel after unsubscribe")
	}
}

func TestPublishWithZeroSubscribers(t *testing.T) {
	b := New()
	b.Publish(Event{Type: EventRunStarted})
	b.Publish(Event{Type: EventLog, Data: "hello"})

	if got := len(b.Replay()); got != 1 {
		t.Errorf("history has %d entries, want 1", got)
	}
}

func TestOverflowDropsOldest(t *testing.T) {
	b := NewSized(4, DefaultHistorySize)
	s := b.Subscribe()

	for i := 0; i < 10; i++ {
		b.Publish(Event{Type: EventStepStarted, Data: i})
	}

	got := drain(s)
	if len(got) != 4 {
		t.Fatalf("queue held %d events, want 4", len(got))
	}
	// Newest events survive; the oldest were evicted.
	if got[len(got)-1].Data != 9 {
		t.Errorf("newest event = %v, want 9", got[len(got)-1].Data)
	}
	if got[0].Data != 6 {
		t.Errorf("oldest surviving event = %v, want 6", got[0].Data)
	}
	if s.Dropped() != 6 {
		t.Errorf("dropped counter = %d, want 6", s.Dropped())
	}
}

func TestBoundedHistoryReplay(t *testing.T) {
	b := New()
	for i := 0; i < 150; i++ {
		b.Publish(Event{Type: EventLog, Data: fmt.Sprintf("line %d", i)})
	}

	history := b.Replay()
	if len(history) != 100 {
		t.Fatalf("history has %d entries, want 100", len(history))
	}
	if history[0].Data != "line 50" {
		t.Errorf("history starts at %v, want line 50", history[0].Data)
	}
	if history[99].Data != "line 149" {
		t.Errorf("history ends at %v, want line 149", history[99].Data)
	}
}

func TestPublishStampsTimestamp(t *testing.T) {
	b := New()
	s := b.Subscribe()

	b.Publish(Event{Type: EventStepStarted})
	evt := <-s.Events()
	if evt.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}

	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b.Publish(Event{Type: EventStepStarted, Timestamp: fixed})
	if evt := <-s.Events(); !evt.Timestamp.Equal(fixed) {
		t.Error("explicit timestamp overwritten")
	}
}

func TestSlowSubscriberNeverBlocksPublish(t *testing.T) {
	b := NewSized(2, DefaultHistorySize)
	_ = b.Subscribe() // never reads

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Publish(Event{Type: EventLog, Data: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
