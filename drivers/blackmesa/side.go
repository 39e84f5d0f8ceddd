package blackmesa

import (
	"splitwatch/game"
	"splitwatch/process"
	"splitwatch/watcher"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

const (
	HazardCourseID = "bms-hazardcourse"
	FurtherDataID  = "bms-furtherdata"

	hcIntroCam = "hc_intro_camera"
	hcEndFade  = "hc_end_fade"

	fdIntroCam = "fd_intro_camera"
	fdBoss     = "fd_gargantua"

	maxQueuedEvents = 70
)

// HazardCourse starts when the intro camera hands control to the player and
// ends when the final fade is queued.
type HazardCourse struct {
	game.Base

	introCam int
	fade     watcher.ValueWatcher[float32]
	latch    game.Latch
	log      *logger.Logger
}

func NewHazardCourse() *HazardCourse {
	return &HazardCourse{
		Base: game.NewBase(game.Info{
			ID:                   HazardCourseID,
			ProcessNames:         []string{"bms.exe"},
			FirstMaps:            []string{"hc_t0a0"},
			LastMaps:             []string{"hc_t0a3"},
			StartOnFirstLoadMaps: []string{"hc_t0a0"},
			RequiredProperties:   game.PropertyViewEntity,
			TimingMethod:         game.EngineTicksWithPauses,
		}),
		introCam: -1,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorTeal, coloransi.ColorOrange, HazardCourseID)),
	}
}

func (h *HazardCourse) OnSessionStart(state *game.GameState) {
	h.Base.OnSessionStart(state)
	h.latch.Reset()
	h.introCam = -1
	h.fade.Reset()

	if h.IsFirstMap() {
		h.introCam = state.GetEntIndexByName(hcIntroCam)
	}
	if h.IsLastMap() {
		h.fade.Set(state.OutputFireTime(hcEndFade, "Fade", "", maxQueuedEvents))
	}
}

func (h *HazardCourse) OnUpdate(state *game.GameState) game.Result {
	if h.latch.Fired() {
		return game.Result{}
	}

	if h.IsLastMap() {
		h.fade.Set(state.OutputFireTime(hcEndFade, "Fade", "", maxQueuedEvents))
		if h.fade.Current > 0 && h.fade.Old == 0 {
			h.latch.Fire()
			h.log.Infoln("hazard course complete")
			return game.End(0)
		}
	}

	view := state.PlayerViewEntityIndex
	if h.IsFirstMap() && h.introCam > 0 && view.Current == 1 && view.Old == int32(h.introCam) {
		h.latch.Fire()
		return game.Start(0)
	}

	return game.Result{}
}

// FurtherData starts like the hazard course and ends when the final boss dies
type FurtherData struct {
	game.Base

	healthOff process.ProcessMemorySize
	introCam  int
	bossHP    *watcher.MemoryWatcher[int32]
	latch     game.Latch
	log       *logger.Logger
}

func NewFurtherData() *FurtherData {
	return &FurtherData{
		Base: game.NewBase(game.Info{
			ID:                   FurtherDataID,
			ProcessNames:         []string{"bms.exe"},
			FirstMaps:            []string{"fd01"},
			LastMaps:             []string{"fd04"},
			StartOnFirstLoadMaps: []string{"fd01"},
			RequiredProperties:   game.PropertyViewEntity,
			TimingMethod:         game.EngineTicksWithPauses,
		}),
		introCam: -1,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorTeal, coloransi.ColorOrange, FurtherDataID)),
	}
}

func (f *FurtherData) OnAttach(state *game.GameState) {
	off, err := state.BaseEntityMemberOffset("m_iHealth")
	if err != nil {
		f.healthOff = 0
		return
	}
	f.healthOff = off
}

func (f *FurtherData) OnSessionStart(state *game.GameState) {
	f.Base.OnSessionStart(state)
	f.latch.Reset()
	f.introCam = -1
	f.bossHP = nil

	switch {
	case f.IsFirstMap():
		f.introCam = state.GetEntIndexByName(fdIntroCam)
	case f.IsLastMap() && f.healthOff != 0:
		if boss := state.GetEntityByName(fdBoss); boss != 0 {
			f.bossHP = prime(f.log, state, boss+process.ProcessMemoryAddress(f.healthOff))
		}
	}
}

func (f *FurtherData) OnUpdate(state *game.GameState) game.Result {
	if f.latch.Fired() {
		return game.Result{}
	}

	if f.bossHP != nil && f.bossHP.Update(state.Process) == nil && f.bossHP.Current <= 0 && f.bossHP.Old > 0 {
		f.latch.Fire()
		f.log.Infoln(fdBoss, "is dead")
		return game.End(0)
	}

	view := state.PlayerViewEntityIndex
	if f.IsFirstMap() && f.introCam > 0 && view.Current == 1 && view.Old == int32(f.introCam) {
		f.latch.Fire()
		return game.Start(0)
	}

	return game.Result{}
}
