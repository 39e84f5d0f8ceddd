package game

import "testing"

func TestLatchFiresOncePerReset(t *testing.T) {
	var l Latch
	if !l.Fire() {
		t.Fatalf("first Fire = false")
	}
	if l.Fire() || !l.Fired() {
		t.Fatalf("second Fire should be refused")
	}
	l.Reset()
	if l.Fired() || !l.Fire() {
		t.Fatalf("Fire after Reset should succeed")
	}
}

func TestBaseMapFlags(t *testing.T) {
	b := NewBase(Info{
		ID:        "hl2",
		FirstMaps: []string{"d1_trainstation_01"},
		LastMaps:  []string{"d3_breen_01"},
	})

	tests := []struct {
		m           string
		first, last bool
	}{
		{"d1_trainstation_01", true, false},
		{"D1_TRAINSTATION_01", true, false},
		{"d3_breen_01", false, true},
		{"d1_canals_01", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		b.OnSessionStart(&GameState{CurrentMap: tt.m})
		if b.IsFirstMap() != tt.first || b.IsLastMap() != tt.last {
			t.Fatalf("%q: first=%v last=%v, want %v %v", tt.m, b.IsFirstMap(), b.IsLastMap(), tt.first, tt.last)
		}
	}

	if r := b.OnUpdate(&GameState{}); !r.IsNothing() {
		t.Fatalf("Base.OnUpdate = %v", r)
	}
}

func TestInfoLookups(t *testing.T) {
	info := Info{
		StartOnFirstLoadMaps: []string{"bm_c1a0a"},
		RequiredProperties:   PropertyViewEntity,
	}
	if !info.StartsOnLoad("BM_C1A0A") || info.StartsOnLoad("bm_c1a0b") {
		t.Fatalf("StartsOnLoad mismatch")
	}
	if !info.Requires(PropertyViewEntity) || info.Requires(PropertyPosition) {
		t.Fatalf("Requires mismatch")
	}
}

func TestDecisionNames(t *testing.T) {
	tests := map[Decision]string{
		DoNothing:           "nothing",
		PlayerGainedControl: "start",
		PlayerLostControl:   "end",
		ManualSplit:         "split",
	}
	for d, want := range tests {
		if d.String() != want {
			t.Fatalf("%d.String() = %q, want %q", int(d), d.String(), want)
		}
	}
	if r := Start(-2493); r.Decision != PlayerGainedControl || r.OffsetTicks != -2493 {
		t.Fatalf("Start(-2493) = %+v", r)
	}
}

func TestVectorDistances(t *testing.T) {
	a := Vector3f{X: -9419, Y: -2483, Z: 22}
	b := Vector3f{X: -9419, Y: -2482.5, Z: 500}
	if d := a.DistanceXY(b); d != 0.5 {
		t.Fatalf("DistanceXY = %v, want 0.5", d)
	}
	if d := a.Distance(b); d < 478 {
		t.Fatalf("Distance = %v, want > 478", d)
	}
}
