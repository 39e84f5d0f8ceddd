package hl2

import (
	"testing"

	"splitwatch/bridge"
	"splitwatch/game"
	"splitwatch/game/gametest"
)

func TestStartAtTrainPosition(t *testing.T) {
	f := gametest.New(5, 0)
	f.SetPlayerPosition(game.Vector3f{X: -9000, Y: -2483, Z: 22})
	f.Load("d1_trainstation_01")

	h := gametest.NewHarness(t, New(), f)
	h.Steps(3)
	if s := h.Splits(); len(s) != 0 {
		t.Fatalf("early splits %v", s)
	}

	// height is ignored
	f.SetPlayerPosition(game.Vector3f{X: -9419.5, Y: -2483, Z: 90})
	h.Step()
	h.Step()
	s := h.Splits()
	if len(s) != 1 || s[0] != (bridge.Split{Decision: "start", Detector: ID}) {
		t.Fatalf("splits = %v", s)
	}

	// restarting the map rearms the start
	h.Reload()
	s = h.Splits()
	if len(s) != 1 || s[0].Decision != "start" {
		t.Fatalf("splits after reload = %v", s)
	}
}

func TestEndOnFinalExplosion(t *testing.T) {
	f := gametest.New(6, 0)
	f.AddEntity(1, "player")
	f.Load("d3_breen_01")

	h := gametest.NewHarness(t, New(), f)
	h.Steps(2)

	f.AddOutputEvent("sprite_end_final_explosion_2", endInput, "", 70)
	h.Step()
	if s := h.Splits(); len(s) != 0 {
		t.Fatalf("wrong sprite split: %v", s)
	}

	f.AddOutputEvent(endTarget, endInput, "", 71.5)
	h.Steps(3)
	s := h.Splits()
	if len(s) != 1 || s[0] != (bridge.Split{Decision: "end", Detector: ID}) {
		t.Fatalf("splits = %v", s)
	}
}

func TestEndAlreadyQueuedAtLoadIsIgnored(t *testing.T) {
	f := gametest.New(7, 0)
	f.AddOutputEvent(endTarget, endInput, "", 71.5)
	f.Load("d3_breen_01")

	h := gametest.NewHarness(t, New(), f)
	h.Steps(3)
	if s := h.Splits(); len(s) != 0 {
		t.Fatalf("splits = %v", s)
	}
}
