// Package blackmesa detects runs of Black Mesa and its bundled side
// campaigns.
package blackmesa

import (
	"fmt"
	"math"
	"strings"

	"splitwatch/cvar"
	"splitwatch/game"
	"splitwatch/process"
	"splitwatch/sigscan"
	"splitwatch/watcher"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

const (
	ID = "bms"

	xenMap      = "bm_c4a1a"
	lastMap     = "bm_c4a4a"
	ebEndMap    = "bm_c3a2i"
	ebEndMapOld = "bm_c3a2h"

	ebCamName   = "locked_in"
	xenCamName  = "stand_viewcontrol"
	nihilanth   = "nihilanth"
	lc2xenState = "LC2XEN"

	// ticks between the Xen arrival and gaining control
	XenStartOffset = 2493

	// Nihilanth's phase counter
	NihilanthPhaseOffset process.ProcessMemorySize = 0x1a6e4

	// server.dll builds below this size are the pre-release mod; at or
	// below oldServerSize the Lambda Core ends one map earlier
	modernServerSize = 0x9D6000
	oldServerSize    = 0x81B000
)

// CGlobalState::GetIndex-like lookup of a named global state; returns -1 when absent
var getGlobalNameTarget = sigscan.NewTarget(0, "55 8B EC 51 FF 75 ?? 8D 45 ??")

// Retail drives the main campaign
type Retail struct {
	game.Base

	ebEnd     *cvar.CustomCommand
	xenStart  *cvar.CustomCommand
	xenSplit  *cvar.CustomCommand
	nihiSplit *cvar.CustomCommand

	ebEndMap      string
	getGlobalName process.ProcessMemoryAddress
	healthOff     process.ProcessMemorySize

	ebCam     int
	xenCam    int
	nihiHP    *watcher.MemoryWatcher[int32]
	nihiPhase *watcher.MemoryWatcher[int32]
	latch     game.Latch

	log *logger.Logger
}

// New returns the campaign driver with the side campaigns attached
func New() game.Detector {
	return game.NewComposite(NewRetail(), NewHazardCourse(), NewFurtherData())
}

func NewRetail() *Retail {
	r := &Retail{
		ebEnd:     cvar.New("ebend", "0", "Split on Lambda Core teleport"),
		xenStart:  cvar.New("xenstart", "1", "Start upon gaining control in Xen\n- 0 disables this function\n- 1 starts the timer at 2493 ticks\n- 2 starts the timer with no offset."),
		xenSplit:  cvar.New("xensplit", "0", "Split upon gaining control in Xen"),
		nihiSplit: cvar.New("nihisplit", "0", "Split per phases of Nihilanth's fight"),
		ebEndMap:  ebEndMap,
		ebCam:     -1,
		xenCam:    -1,
		log:       logger.NewLogger(coloransi.Color(coloransi.ColorTeal, coloransi.ColorOrange, ID)),
	}

	r.Base = game.NewBase(game.Info{
		ID:                   ID,
		ProcessNames:         []string{"bms.exe"},
		FirstMaps:            []string{"bm_c1a0a"},
		LastMaps:             []string{lastMap},
		StartOnFirstLoadMaps: []string{"bm_c1a0a"},
		RequiredProperties:   game.PropertyViewEntity,
		TimingMethod:         game.EngineTicksWithPauses,
		Commands:             cvar.NewHandler(r.ebEnd, r.xenStart, r.xenSplit, r.nihiSplit),
	})
	return r
}

// EbEndMap is the map the Lambda Core teleport ending is watched on
func (r *Retail) EbEndMap() string {
	return r.ebEndMap
}

func (r *Retail) OnAttach(state *game.GameState) {
	cmds := r.Info().Commands
	cmds.Init(state.Console())

	r.ebEndMap = ebEndMap
	r.getGlobalName = 0
	r.healthOff = 0

	if sc, ok := state.Scanner(state.Layout.ServerModule); ok {
		r.getGlobalName = sc.Scan(getGlobalNameTarget)
		if r.getGlobalName == sigscan.NotFound {
			r.log.Warn("global state lookup not found, xenstart only works with an offset of 0")
		}

		size := sc.Module().Size
		if size < modernServerSize {
			r.log.Infoln("mod build detected, server size", fmt.Sprintf("0x%X", uint(size)))
			if _, err := cmds.Set(r.ebEnd.Name, "1"); err != nil {
				r.log.Warn("enable ebend: ", err)
			}
			if size <= oldServerSize {
				r.ebEndMap = ebEndMapOld
			}
		}
	} else {
		r.log.Warn("server module not loaded")
	}

	off, err := state.BaseEntityMemberOffset("m_iHealth")
	if err != nil {
		r.log.Warn("health offset: ", err)
		return
	}
	r.healthOff = off
}

func (r *Retail) OnSessionStart(state *game.GameState) {
	r.Base.OnSessionStart(state)
	r.latch.Reset()
	r.ebCam, r.xenCam = -1, -1
	r.nihiHP, r.nihiPhase = nil, nil

	switch m := state.CurrentMap; {
	case strings.EqualFold(m, r.ebEndMap):
		r.ebCam = state.GetEntIndexByName(ebCamName)
	case strings.EqualFold(m, xenMap):
		r.xenCam = state.GetEntIndexByName(xenCamName)
	case r.IsLastMap() && state.PlayerEntInfo.EntityPtr != 0:
		nihi := state.GetEntityByName(nihilanth)
		if nihi == 0 {
			return
		}
		if r.healthOff != 0 {
			r.nihiHP = prime(r.log, state, nihi+process.ProcessMemoryAddress(r.healthOff))
		}
		r.nihiPhase = prime(r.log, state, nihi+process.ProcessMemoryAddress(NihilanthPhaseOffset))
	}
}

// prime builds a watcher and reads it once so the first tick has an Old value
func prime(log *logger.Logger, state *game.GameState, addr process.ProcessMemoryAddress) *watcher.MemoryWatcher[int32] {
	w := watcher.NewWidth[int32](state.Width(), addr)
	if err := w.Update(state.Process); err != nil {
		log.Debugln("prime", addr.ToString(), "failed:", err)
	}
	return w
}

func (r *Retail) OnGenericUpdate(state *game.GameState) {
	r.Info().Commands.Update()
}

func (r *Retail) OnUpdate(state *game.GameState) game.Result {
	if r.latch.Fired() {
		return game.Result{}
	}

	m := state.CurrentMap
	view := state.PlayerViewEntityIndex

	if r.IsLastMap() {
		if r.nihiHP != nil && r.nihiHP.Update(state.Process) == nil && r.nihiHP.Current <= 0 && r.nihiHP.Old > 0 {
			r.latch.Fire()
			r.log.Infoln("nihilanth is dead")
			return game.End(0)
		}

		if r.nihiSplit.Bool() && r.nihiPhase != nil && r.nihiPhase.Update(state.Process) == nil &&
			r.nihiPhase.Current-r.nihiPhase.Old == 1 && r.nihiPhase.Old != 0 {
			r.log.Infoln("nihilanth phase", r.nihiPhase.Current)
			return game.Split()
		}
	}

	if r.ebEnd.Bool() && r.ebCam > 0 && strings.EqualFold(m, r.ebEndMap) {
		if view.Current == int32(r.ebCam) && view.Old == 1 {
			r.latch.Fire()
			r.log.Infoln("lambda core teleport")
			return game.End(0)
		}
	}

	if (r.xenStart.Int() != 0 || r.xenSplit.Bool()) && r.xenCam > 0 && strings.EqualFold(m, xenMap) {
		if view.Current == 1 && view.Old == int32(r.xenCam) {
			r.latch.Fire()
			return r.xenControl(state)
		}
	}

	return game.Result{}
}

// xenControl decides what gaining control in Xen means. The run only
// starts here when the Lambda Core was never played in this save.
func (r *Retail) xenControl(state *game.GameState) game.Result {
	var res game.Result

	if r.xenStart.Int() != 0 && r.getGlobalName != 0 {
		idx, err := state.Remote().CallFunctionString(lc2xenState, r.getGlobalName)
		switch {
		case err != nil:
			r.log.Warn("global state lookup failed: ", err)
		case idx == math.MaxUint32:
			offset := 0
			if r.xenStart.Int() == 1 {
				offset = -XenStartOffset
			}
			r.log.Infoln("xen start, offset", offset)
			res = game.Start(offset)
		}
	}

	if r.xenSplit.Bool() {
		return game.Split()
	}
	return res
}
