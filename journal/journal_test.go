package journal

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"splitwatch/bridge"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	attach := uuid.New()
	base := time.UnixMilli(1700000000000)

	events := []bridge.Event{
		{Seq: 1, Time: base, AttachID: attach, Payload: bridge.SessionStarted{Map: "bm_c4a1a"}},
		{Seq: 2, Time: base.Add(time.Second), AttachID: attach, Payload: bridge.Split{Decision: "start", OffsetTicks: -2493, Detector: "bms"}},
		{Seq: 3, Time: base.Add(2 * time.Second), Payload: bridge.GameStatusChanged{}},
	}
	for _, ev := range events {
		if err := s.Record(ctx, ev); err != nil {
			t.Fatalf("record #%d: %v", ev.Seq, err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Seq != 3 || got[1].Seq != 2 {
		t.Fatalf("recent = %+v", got)
	}
	if got[0].AttachID != uuid.Nil || got[1].AttachID != attach {
		t.Fatalf("attach ids = %s, %s", got[0].AttachID, got[1].AttachID)
	}
	if got[1].Kind != bridge.KindSplit || !got[1].Time.Equal(base.Add(time.Second)) {
		t.Fatalf("entry = %+v", got[1])
	}

	var split bridge.Split
	if err := json.Unmarshal(got[1].Payload, &split); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if split.OffsetTicks != -2493 || split.Detector != "bms" {
		t.Fatalf("split = %+v", split)
	}

	byAttach, err := s.ByAttach(ctx, attach, 10)
	if err != nil {
		t.Fatalf("by attach: %v", err)
	}
	if len(byAttach) != 2 || byAttach[0].Kind != bridge.KindSessionStarted {
		t.Fatalf("by attach = %+v", byAttach)
	}
}

func TestRecentRejectsBadLimit(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Recent(context.Background(), 0); err == nil {
		t.Fatalf("limit 0 accepted")
	}
}

func TestNilStore(t *testing.T) {
	var s *Store
	if err := s.Record(context.Background(), bridge.Event{Payload: bridge.SessionEnded{}}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatalf("empty path accepted")
	}
}

func TestRunDrainsAfterCancel(t *testing.T) {
	s := openTestStore(t)
	b := bridge.New(0)
	sub := b.Subscribe("journal", 16)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, sub) }()

	// the engine still publishes its final events after shutdown is signalled
	time.Sleep(20 * time.Millisecond)
	b.NewAttach()
	b.Publish(bridge.SessionEnded{})
	b.Publish(bridge.GameStatusChanged{IsActive: false})
	b.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not finish after close")
	}

	got, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("recorded %d events after cancel, want 2", len(got))
	}
}

func TestRunRecordsSubscription(t *testing.T) {
	s := openTestStore(t)
	b := bridge.New(0)
	sub := b.Subscribe("journal", 16)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), sub) }()

	b.NewAttach()
	b.Publish(bridge.GameStatusChanged{IsActive: true})
	b.Publish(bridge.MapChanged{Map: "d1_trainstation_01"})
	b.Publish(bridge.MiscTime{TickDifference: 12, Type: bridge.PauseTime})
	b.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not finish after close")
	}

	got, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("recorded %d events, want 3", len(got))
	}

	var mt struct {
		TickDifference int64  `json:"tick_difference"`
		Type           string `json:"type"`
	}
	for _, e := range got {
		if e.Kind != bridge.KindMiscTime {
			continue
		}
		if err := json.Unmarshal(e.Payload, &mt); err != nil {
			t.Fatalf("misc time payload: %v", err)
		}
	}
	if mt.Type != "pause_time" || mt.TickDifference != 12 {
		t.Fatalf("misc time = %+v", mt)
	}
}
