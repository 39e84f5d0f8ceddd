package gametest

import (
	"context"
	"testing"
	"time"

	"splitwatch/bridge"
	"splitwatch/game"
)

// Harness runs one detector against a Fake through a real engine
type Harness struct {
	Fake   *Fake
	Engine *game.Engine
	Rec    *Recorder

	t   testing.TB
	now time.Time
}

func NewHarness(t testing.TB, det game.Detector, f *Fake) *Harness {
	t.Helper()

	opener := NewOpener()
	for _, name := range det.Info().ProcessNames {
		opener.Put(name, f.Proc())
	}

	h := &Harness{Fake: f, t: t, now: time.Unix(1700000000, 0)}

	b := bridge.New(0)
	eng, err := game.NewEngine(game.Options{
		Detector: det,
		Layout:   f.Layout(),
		Opener:   opener,
		Bridge:   b,
		Clock:    func() time.Time { return h.now },
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	h.Engine = eng
	h.Rec = NewRecorder(b)
	t.Cleanup(h.Rec.Close)
	return h
}

// Step advances the clock by one 15ms tick and polls once
func (h *Harness) Step() {
	h.now = h.now.Add(15 * time.Millisecond)
	h.Engine.Step()
}

// Steps polls n times
func (h *Harness) Steps(n int) {
	for i := 0; i < n; i++ {
		h.Step()
	}
}

// Splits returns the decisions published since the last call
func (h *Harness) Splits() []bridge.Split {
	h.t.Helper()
	return h.Rec.Splits(h.t)
}

// SetCommand changes a driver command the way an API client would
func (h *Harness) SetCommand(name, value string) {
	h.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- h.Engine.SetCommand(ctx, name, value) }()

	for {
		select {
		case err := <-errc:
			if err != nil {
				h.t.Fatalf("SetCommand(%s, %s): %v", name, value, err)
			}
			return
		default:
		}
		h.Step()
		time.Sleep(time.Millisecond)
	}
}

// Reload ends the session and starts a new one on the same map
func (h *Harness) Reload() {
	h.Fake.SetSignOn(game.SignOnNone)
	h.Step()
	h.Fake.SetSignOn(game.SignOnFull)
	h.Step()
}
