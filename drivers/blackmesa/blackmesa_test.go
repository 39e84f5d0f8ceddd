package blackmesa

import (
	"math"
	"slices"
	"testing"

	"splitwatch/bridge"
	"splitwatch/game/gametest"
	"splitwatch/process"
	"splitwatch/process_blob"
)

const (
	modernSize = 0x9E0000
	healthOff  = 0xD0
)

var getGlobalNameCode = []byte{0x55, 0x8B, 0xEC, 0x51, 0xFF, 0x75, 0x08, 0x8D, 0x45, 0xFC}

// newFake builds a server with m_iHealth and the global state lookup; the
// lookup reports LC2XEN as absent unless lambdaCorePlayed
func newFake(t *testing.T, serverSize int, lambdaCorePlayed bool) *gametest.Fake {
	t.Helper()

	f := gametest.New(77, serverSize)
	f.AddDatamapField("m_iHealth", healthOff)
	fn := f.PlaceServerBytes(getGlobalNameCode)
	f.RegisterFunction(fn, func(p *process_blob.ProcessDump, arg process.ProcessMemoryAddress) uint32 {
		name, _ := process.ReadNTS(p, arg, 32)
		if name == "LC2XEN" && lambdaCorePlayed {
			return 4
		}
		return math.MaxUint32
	})
	f.AddEntity(1, "player")
	f.SetViewEntity(1)
	return f
}

func wantSplits(t *testing.T, got []bridge.Split, want ...bridge.Split) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("splits = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("split %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBuildDetection(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		ebEnd    string
		ebEndMap string
	}{
		{"retail", modernSize, "0", "bm_c3a2i"},
		{"mod", 0x900000, "1", "bm_c3a2i"},
		{"old mod", 0x81B000, "1", "bm_c3a2h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetail()
			h := gametest.NewHarness(t, r, newFake(t, tt.size, false))
			h.Step()

			if r.EbEndMap() != tt.ebEndMap {
				t.Fatalf("end map = %s, want %s", r.EbEndMap(), tt.ebEndMap)
			}
			if r.ebEnd.Value() != tt.ebEnd {
				t.Fatalf("ebend = %s, want %s", r.ebEnd.Value(), tt.ebEnd)
			}
			if r.getGlobalName == 0 || r.healthOff != healthOff {
				t.Fatalf("lookup fn = %s, health offset = 0x%X", r.getGlobalName.ToString(), r.healthOff)
			}
		})
	}
}

func TestXenStart(t *testing.T) {
	f := newFake(t, modernSize, false)
	f.AddEntity(12, xenCamName)
	f.SetViewEntity(12)
	f.Load(xenMap)

	h := gametest.NewHarness(t, New(), f)
	h.Steps(2)

	f.SetViewEntity(1)
	h.Step()
	wantSplits(t, h.Splits(), bridge.Split{Decision: "start", OffsetTicks: -XenStartOffset, Detector: ID})
	if f.Proc().ThreadCount() != 1 {
		t.Fatalf("remote calls = %d, want 1", f.Proc().ThreadCount())
	}

	// latched until the next session
	f.SetViewEntity(12)
	h.Step()
	f.SetViewEntity(1)
	h.Step()
	wantSplits(t, h.Splits())
}

func TestXenLookupFailureLatches(t *testing.T) {
	f := gametest.New(77, modernSize)
	f.AddDatamapField("m_iHealth", healthOff)
	f.PlaceServerBytes(getGlobalNameCode)
	f.AddEntity(1, "player")
	f.AddEntity(12, xenCamName)
	f.SetViewEntity(12)
	f.Load(xenMap)

	h := gametest.NewHarness(t, New(), f)
	h.Steps(2)

	for i := 0; i < 2; i++ {
		f.SetViewEntity(1)
		h.Step()
		f.SetViewEntity(12)
		h.Step()
	}
	wantSplits(t, h.Splits())
	if f.Proc().ThreadCount() != 1 {
		t.Fatalf("remote calls = %d, want a single failed attempt", f.Proc().ThreadCount())
	}
}

func TestXenStartModes(t *testing.T) {
	tests := []struct {
		name     string
		played   bool
		xenstart string
		xensplit string
		want     []bridge.Split
	}{
		{"no offset", false, "2", "0", []bridge.Split{{Decision: "start", Detector: ID}}},
		{"lambda core played", true, "1", "0", nil},
		{"split wins", false, "1", "1", []bridge.Split{{Decision: "split", Detector: ID}}},
		{"split only", false, "0", "1", []bridge.Split{{Decision: "split", Detector: ID}}},
		{"disabled", false, "0", "0", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFake(t, modernSize, tt.played)
			f.AddEntity(12, xenCamName)

			h := gametest.NewHarness(t, New(), f)
			h.Step()
			h.SetCommand("xenstart", tt.xenstart)
			h.SetCommand("xensplit", tt.xensplit)

			f.SetViewEntity(12)
			f.Load(xenMap)
			h.Steps(2)
			h.Splits()

			f.SetViewEntity(1)
			h.Step()
			wantSplits(t, h.Splits(), tt.want...)
		})
	}
}

func TestLambdaCoreTeleportEnd(t *testing.T) {
	f := newFake(t, 0x900000, false)
	f.AddEntity(20, ebCamName)
	f.Load("bm_c3a2i")

	h := gametest.NewHarness(t, New(), f)
	h.Steps(2)

	f.SetViewEntity(20)
	h.Step()
	wantSplits(t, h.Splits(), bridge.Split{Decision: "end", Detector: ID})

	// a new attempt on the same map fires again
	f.SetViewEntity(1)
	h.Reload()
	f.SetViewEntity(20)
	h.Step()
	wantSplits(t, h.Splits(), bridge.Split{Decision: "end", Detector: ID})
}

func TestLambdaCoreTeleportIgnoredOnRetail(t *testing.T) {
	f := newFake(t, modernSize, false)
	f.AddEntity(20, ebCamName)
	f.Load("bm_c3a2i")

	h := gametest.NewHarness(t, New(), f)
	h.Steps(2)
	f.SetViewEntity(20)
	h.Step()
	wantSplits(t, h.Splits())
}

func TestNihilanth(t *testing.T) {
	f := newFake(t, modernSize, false)
	nihi := f.AddEntity(30, nihilanth)
	f.WriteInt32(nihi+healthOff, 100)
	f.WriteInt32(nihi+process.ProcessMemoryAddress(NihilanthPhaseOffset), 1)
	f.Load(lastMap)

	h := gametest.NewHarness(t, New(), f)
	h.Step()
	h.SetCommand("nihisplit", "1")
	h.Splits()

	f.WriteInt32(nihi+process.ProcessMemoryAddress(NihilanthPhaseOffset), 2)
	h.Step()
	f.WriteInt32(nihi+process.ProcessMemoryAddress(NihilanthPhaseOffset), 4)
	h.Step()
	f.WriteInt32(nihi+process.ProcessMemoryAddress(NihilanthPhaseOffset), 5)
	h.Step()
	wantSplits(t, h.Splits(),
		bridge.Split{Decision: "split", Detector: ID},
		bridge.Split{Decision: "split", Detector: ID})

	f.WriteInt32(nihi+healthOff, 0)
	h.Step()
	f.WriteInt32(nihi+healthOff, 100)
	h.Step()
	f.WriteInt32(nihi+healthOff, -5)
	h.Step()
	wantSplits(t, h.Splits(), bridge.Split{Decision: "end", Detector: ID})
}

func TestHazardCourse(t *testing.T) {
	f := newFake(t, modernSize, false)
	f.AddEntity(40, hcIntroCam)
	f.SetViewEntity(40)
	f.Load("hc_t0a0")

	h := gametest.NewHarness(t, New(), f)
	h.Steps(2)
	f.SetViewEntity(1)
	h.Step()
	wantSplits(t, h.Splits(), bridge.Split{Decision: "start", Detector: HazardCourseID})

	f.Load("hc_t0a3")
	h.Steps(2)
	f.AddOutputEvent(hcEndFade, "Fade", "", 12.5)
	h.Step()
	h.Step()
	wantSplits(t, h.Splits(), bridge.Split{Decision: "end", Detector: HazardCourseID})
}

func TestSideStoryLoadsStartNewGame(t *testing.T) {
	for _, m := range []string{"hc_t0a0", "fd01", "bm_c1a0a"} {
		f := newFake(t, modernSize, false)
		f.Load(m)

		h := gametest.NewHarness(t, New(), f)
		h.Steps(2)
		if kinds := h.Rec.Kinds(t); !slices.Contains(kinds, bridge.KindNewGameStarted) {
			t.Fatalf("%s: kinds = %v, want %s", m, kinds, bridge.KindNewGameStarted)
		}
	}
}

func TestFurtherDataBoss(t *testing.T) {
	f := newFake(t, modernSize, false)
	boss := f.AddEntity(50, fdBoss)
	f.WriteInt32(boss+healthOff, 3000)
	f.Load("fd04")

	h := gametest.NewHarness(t, New(), f)
	h.Steps(2)
	f.WriteInt32(boss+healthOff, 0)
	h.Step()
	wantSplits(t, h.Splits(), bridge.Split{Decision: "end", Detector: FurtherDataID})
}

func TestFurtherDataBossDeadOnLoad(t *testing.T) {
	f := newFake(t, modernSize, false)
	boss := f.AddEntity(50, fdBoss)
	f.WriteInt32(boss+healthOff, 0)
	f.Load("fd04")

	h := gametest.NewHarness(t, New(), f)
	h.Steps(3)
	if got := h.Splits(); len(got) != 0 {
		t.Fatalf("boss already dead at load split: %+v", got)
	}

	f.WriteInt32(boss+healthOff, 3000)
	h.Step()
	f.WriteInt32(boss+healthOff, -1)
	h.Step()
	wantSplits(t, h.Splits(), bridge.Split{Decision: "end", Detector: FurtherDataID})
}
