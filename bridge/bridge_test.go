package bridge

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func receive(t *testing.T, s *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		if !ok {
			t.Fatalf("channel closed early")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func TestOrderPreservedPerSubscriber(t *testing.T) {
	b := New(0)
	fast := b.Subscribe("fast", 1024)
	slow := b.Subscribe("slow", 0)

	const n = 500
	for i := 0; i < n; i++ {
		b.Publish(SessionTimeUpdate{TickDifference: int64(i)})
	}

	for _, s := range []*Subscription{fast, slow} {
		for i := 0; i < n; i++ {
			ev := receive(t, s)
			p, ok := ev.Payload.(SessionTimeUpdate)
			if !ok || p.TickDifference != int64(i) || ev.Seq != uint64(i+1) {
				t.Fatalf("%s: event %d = %v", s.Name(), i, ev)
			}
		}
		if s.Dropped() != 0 {
			t.Fatalf("%s dropped %d events", s.Name(), s.Dropped())
		}
	}
}

func TestPublishDoesNotBlockOnIdleConsumer(t *testing.T) {
	b := New(0)
	b.Subscribe("idle", 0)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			b.Publish(SessionEnded{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Publish blocked on a consumer that never reads")
	}
}

func TestOverflowDropsOldest(t *testing.T) {
	b := New(3)
	// no pump: the backlog is observed directly
	s := newSubscription(b, "test", 0, 3)

	for i := 1; i <= 10; i++ {
		s.push(Event{Seq: uint64(i), Payload: SessionEnded{}})
	}

	if s.Dropped() != 7 {
		t.Fatalf("dropped = %d, want 7", s.Dropped())
	}
	if s.Pending() != 3 {
		t.Fatalf("pending = %d, want 3", s.Pending())
	}

	go s.pump()
	for want := uint64(8); want <= 10; want++ {
		if ev := receive(t, s); ev.Seq != want {
			t.Fatalf("seq = %d, want %d", ev.Seq, want)
		}
	}
}

func TestAttachIDStamping(t *testing.T) {
	b := New(0)
	s := b.Subscribe("ids", 16)

	b.Publish(GameStatusChanged{IsActive: false})
	id := b.NewAttach()
	b.Publish(GameStatusChanged{IsActive: true})
	b.Detach()
	b.Publish(GameStatusChanged{IsActive: false})

	want := []uuid.UUID{uuid.Nil, id, uuid.Nil}
	for i, w := range want {
		if ev := receive(t, s); ev.AttachID != w {
			t.Fatalf("event %d attach id = %s, want %s", i, ev.AttachID, w)
		}
	}
}

func TestCloseDrainsThenCloses(t *testing.T) {
	b := New(0)
	s := b.Subscribe("drain", 0)

	b.Publish(NewGameStarted{})
	b.Publish(SessionEnded{})
	b.Close()

	if ev := receive(t, s); ev.Kind() != KindNewGameStarted {
		t.Fatalf("first = %s", ev.Kind())
	}
	if ev := receive(t, s); ev.Kind() != KindSessionEnded {
		t.Fatalf("second = %s", ev.Kind())
	}

	select {
	case _, ok := <-s.Events():
		if ok {
			t.Fatalf("event after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("channel not closed")
	}

	// publishing after close reaches nobody and does not panic
	b.Publish(SessionEnded{})
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	b := New(0)
	s := b.Subscribe("gone", 0)
	b.Publish(SessionEnded{})
	s.Close()
	s.Close()

	for range s.Events() {
	}
	b.Publish(SessionEnded{})
}
