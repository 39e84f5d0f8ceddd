package gametest

import (
	"sync"
	"testing"
	"time"

	"splitwatch/bridge"
)

// Recorder keeps every event a subscription delivers
type Recorder struct {
	b   *bridge.Bridge
	sub *bridge.Subscription

	mu      sync.Mutex
	events  []bridge.Event
	lastSeq uint64
}

func NewRecorder(b *bridge.Bridge) *Recorder {
	r := &Recorder{b: b, sub: b.Subscribe("recorder", 1024)}
	go func() {
		for ev := range r.sub.Events() {
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.lastSeq = ev.Seq
			r.mu.Unlock()
		}
	}()
	return r
}

func (r *Recorder) Close() {
	r.sub.Close()
}

// Sync waits until everything published so far has been received
func (r *Recorder) Sync(t testing.TB) {
	t.Helper()

	want := r.b.Seq()
	deadline := time.Now().Add(2 * time.Second)
	for {
		r.mu.Lock()
		got := r.lastSeq
		r.mu.Unlock()
		if got >= want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("recorder saw seq %d, want %d", got, want)
		}
		time.Sleep(time.Millisecond)
	}
}

// Take returns and forgets the received events
func (r *Recorder) Take(t testing.TB) []bridge.Event {
	t.Helper()
	r.Sync(t)

	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

// Kinds is Take reduced to event kinds
func (r *Recorder) Kinds(t testing.TB) []bridge.Kind {
	t.Helper()
	var out []bridge.Kind
	for _, ev := range r.Take(t) {
		out = append(out, ev.Kind())
	}
	return out
}

// Splits is Take reduced to detector decisions
func (r *Recorder) Splits(t testing.TB) []bridge.Split {
	t.Helper()
	var out []bridge.Split
	for _, ev := range r.Take(t) {
		if s, ok := ev.Payload.(bridge.Split); ok {
			out = append(out, s)
		}
	}
	return out
}
