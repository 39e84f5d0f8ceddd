// Package game holds the detector contract and the engine that drives
// detectors from live process memory.
package game

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"splitwatch/cvar"
	"splitwatch/process"
	"splitwatch/remote_ops"
	"splitwatch/sigscan"
	"splitwatch/watcher"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

var (
	ErrEngineNotFound = errors.New("engine globals not found")
	ErrMemberNotFound = errors.New("datamap member not found")
)

const defaultIntervalPerTick = 0.015

type Vector3f struct {
	X, Y, Z float32
}

func (v Vector3f) Distance(o Vector3f) float64 {
	dx, dy, dz := float64(v.X-o.X), float64(v.Y-o.Y), float64(v.Z-o.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// DistanceXY ignores height
func (v Vector3f) DistanceXY(o Vector3f) float64 {
	return math.Hypot(float64(v.X-o.X), float64(v.Y-o.Y))
}

// EntInfo is one slot of the global entity list
type EntInfo struct {
	Index     int
	EntityPtr process.ProcessMemoryAddress
}

type addresses struct {
	curMap        process.ProcessMemoryAddress
	signOnState   process.ProcessMemoryAddress
	tickCount     process.ProcessMemoryAddress
	paused        process.ProcessMemoryAddress
	interval      process.ProcessMemoryAddress
	viewEntity    process.ProcessMemoryAddress
	entityList    process.ProcessMemoryAddress
	eventQueue    process.ProcessMemoryAddress
	conVarList    process.ProcessMemoryAddress
	demoTick      process.ProcessMemoryAddress
	demoRecording process.ProcessMemoryAddress
	demoName      process.ProcessMemoryAddress
}

// GameState is the per-attach view of the target. Only the engine changes
// it; detectors read the exported fields and call the accessors.
type GameState struct {
	Process process.Process
	Modules process.ModuleTable
	Layout  *Layout

	CurrentMap string
	PrevMap    string

	TickCount             *watcher.MemoryWatcher[int32]
	SignOnState           *watcher.MemoryWatcher[int32]
	Paused                *watcher.MemoryWatcher[uint8]
	PlayerViewEntityIndex *watcher.MemoryWatcher[int32]
	PlayerPosition        *watcher.MemoryWatcher[Vector3f]
	PlayerEntInfo         EntInfo
	IntervalPerTick       float32

	DemoTick      *watcher.MemoryWatcher[int32]
	DemoRecording *watcher.MemoryWatcher[uint8]

	addrs         addresses
	entityNameOff process.ProcessMemorySize
	entityPosOff  process.ProcessMemorySize
	scanners      map[string]*sigscan.Scanner
	console       cvar.Console
	remote        *remote_ops.Handler
	remoteTimeout time.Duration
	requirements  Property
	log           *logger.Logger
}

// NewGameState resolves the layout against a freshly attached process
func NewGameState(proc process.Process, modules process.ModuleTable, layout *Layout, requirements Property, remoteTimeout time.Duration) (*GameState, error) {
	s := &GameState{
		Process:       proc,
		Modules:       modules,
		Layout:        layout,
		scanners:      make(map[string]*sigscan.Scanner),
		remoteTimeout: remoteTimeout,
		requirements:  requirements,
		entityNameOff: layout.Entity.Name,
		entityPosOff:  layout.Entity.Position,
		log:           logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("state-%d", proc.GetPID()))),
	}

	if err := s.resolve(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *GameState) locate(name string, loc Locator) process.ProcessMemoryAddress {
	if loc.IsZero() {
		return 0
	}

	sc, ok := s.Scanner(loc.Module)
	if !ok {
		s.log.Warn(fmt.Sprintf("%s: module %s not loaded", name, loc.Module))
		return 0
	}

	addr := sc.Scan(loc.Target)
	if addr == sigscan.NotFound {
		s.log.Warn(fmt.Sprintf("%s: signature not found in %s", name, loc.Module))
		return 0
	}

	s.log.Debugln(name, "=", addr.ToString())
	return addr
}

func (s *GameState) resolve() error {
	l := s.Layout
	a := &s.addrs

	a.curMap = s.locate("CurMap", l.CurMap)
	a.signOnState = s.locate("SignOnState", l.SignOnState)
	a.tickCount = s.locate("TickCount", l.TickCount)

	var missing []string
	if a.curMap == 0 {
		missing = append(missing, "CurMap")
	}
	if a.signOnState == 0 {
		missing = append(missing, "SignOnState")
	}
	if a.tickCount == 0 {
		missing = append(missing, "TickCount")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrEngineNotFound, strings.Join(missing, ", "))
	}

	a.paused = s.locate("Paused", l.Paused)
	a.interval = s.locate("IntervalPerTick", l.IntervalPerTick)
	a.viewEntity = s.locate("ViewEntity", l.ViewEntity)
	a.entityList = s.locate("EntityList", l.EntityList)
	a.eventQueue = s.locate("EventQueue", l.EventQueue)
	a.conVarList = s.locate("ConVarList", l.ConVarList)
	a.demoTick = s.locate("DemoTick", l.DemoTick)
	a.demoRecording = s.locate("DemoRecording", l.DemoRecording)
	a.demoName = s.locate("DemoName", l.DemoName)

	if s.requirements&PropertyViewEntity != 0 && a.viewEntity == 0 {
		s.log.Warn("view entity required but not found, view entity triggers are disabled")
	}
	if s.requirements&PropertyPosition != 0 && a.entityList == 0 {
		s.log.Warn("player position required but entity list not found")
	}

	w := l.Width
	s.SignOnState = watcher.NewWidth[int32](w, a.signOnState)
	s.TickCount = watcher.NewWidth[int32](w, a.tickCount)
	s.Paused = watcher.NewWidth[uint8](w, a.paused)
	s.PlayerViewEntityIndex = watcher.NewWidth[int32](w, a.viewEntity)
	s.PlayerPosition = watcher.NewWidth[Vector3f](w, 0)
	s.DemoTick = watcher.NewWidth[int32](w, a.demoTick)
	s.DemoRecording = watcher.NewWidth[uint8](w, a.demoRecording)

	s.IntervalPerTick = defaultIntervalPerTick
	if a.interval != 0 {
		if v, err := process.Read[float32](s.Process, a.interval); err == nil && v > 0 && v < 1 {
			s.IntervalPerTick = v
		}
	}

	if off, err := s.BaseEntityMemberOffset("m_iName"); err == nil {
		s.entityNameOff = off
	}
	if off, err := s.BaseEntityMemberOffset("m_vecAbsOrigin"); err == nil {
		s.entityPosOff = off
	}

	if a.conVarList != 0 {
		s.console = cvar.NewMemoryConsole(s.Process, w, a.conVarList, l.ConVar)
	}

	return nil
}

// Scanner returns the per-attach scanner for a module
func (s *GameState) Scanner(module string) (*sigscan.Scanner, bool) {
	key := strings.ToLower(module)
	if sc, ok := s.scanners[key]; ok {
		return sc, true
	}
	mod, ok := s.Modules.Get(module)
	if !ok {
		return nil, false
	}
	sc := sigscan.NewScanner(s.Process, mod)
	s.scanners[key] = sc
	return sc, true
}

// releaseScanners drops every module snapshot taken during attach
func (s *GameState) releaseScanners() {
	for _, sc := range s.scanners {
		sc.Invalidate()
	}
}

func (s *GameState) GetModule(name string) (process.Module, bool) {
	return s.Modules.Get(name)
}

func (s *GameState) Width() process.PointerWidth {
	return s.Layout.Width
}

// Console is nil when the variable list could not be found
func (s *GameState) Console() cvar.Console {
	return s.console
}

// Remote returns the handler for calling into the target
func (s *GameState) Remote() *remote_ops.Handler {
	if s.remote == nil {
		s.remote = remote_ops.NewHandler(s.Process, s.remoteTimeout)
	}
	return s.remote
}

func (s *GameState) InSession() bool {
	return s.SignOnState.Current == SignOnFull
}

func (s *GameState) IsPaused() bool {
	return s.Paused.Current != 0
}

// refresh polls the attach-wide watchers. Only failures of the core
// values are returned; optional values keep their last reading.
func (s *GameState) refresh() (mapChanged bool, err error) {
	if err := s.SignOnState.Update(s.Process); err != nil {
		return false, err
	}
	if err := s.TickCount.Update(s.Process); err != nil {
		return false, err
	}

	name, err := process.ReadNTS(s.Process, s.addrs.curMap, s.Layout.MapNameLength)
	if err != nil {
		return false, fmt.Errorf("%w: map name: %w", watcher.ErrReadFailed, err)
	}
	if name != "" && name != s.CurrentMap {
		s.PrevMap = s.CurrentMap
		s.CurrentMap = name
		mapChanged = true
	}

	s.updateOptional("Paused", s.Paused.Bound(), func() error { return s.Paused.Update(s.Process) })
	s.updateOptional("ViewEntity", s.PlayerViewEntityIndex.Bound(), func() error { return s.PlayerViewEntityIndex.Update(s.Process) })
	s.updateOptional("PlayerPosition", s.PlayerPosition.Bound(), func() error { return s.PlayerPosition.Update(s.Process) })
	s.updateOptional("DemoTick", s.DemoTick.Bound(), func() error { return s.DemoTick.Update(s.Process) })
	s.updateOptional("DemoRecording", s.DemoRecording.Bound(), func() error { return s.DemoRecording.Update(s.Process) })

	return mapChanged, nil
}

func (s *GameState) updateOptional(name string, bound bool, update func() error) {
	if !bound {
		return
	}
	if err := update(); err != nil {
		s.log.Debugln(name, "read failed:", err)
	}
}

// bindSession rebinds the watchers that point into per-map memory
func (s *GameState) bindSession() {
	s.PlayerEntInfo = s.EntInfo(1)

	if s.PlayerEntInfo.EntityPtr == 0 {
		s.PlayerPosition = watcher.NewWidth[Vector3f](s.Layout.Width, 0)
		return
	}

	s.PlayerPosition = watcher.NewWidth[Vector3f](s.Layout.Width, s.PlayerEntInfo.EntityPtr+process.ProcessMemoryAddress(s.entityPosOff))
	if err := s.PlayerPosition.Update(s.Process); err != nil {
		s.log.Debugln("player position read failed:", err)
	}
}

// DemoName is empty when no demo is being recorded or it cannot be found
func (s *GameState) DemoName() string {
	if s.addrs.demoName == 0 {
		return ""
	}
	name, err := process.ReadNTS(s.Process, s.addrs.demoName, 260)
	if err != nil {
		return ""
	}
	return name
}
