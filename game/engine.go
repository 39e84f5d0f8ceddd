package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"splitwatch/bridge"
	"splitwatch/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

var (
	ErrNoDetector = errors.New("engine needs a detector")

	// ErrNotWhitelisted is returned when a process name override names a
	// process the detector does not declare
	ErrNotWhitelisted = errors.New("process is not whitelisted by the detector")
)

type Phase int

const (
	Unattached Phase = iota
	Attached
	SessionActive
	SessionEnded
)

func (p Phase) String() string {
	switch p {
	case Unattached:
		return "unattached"
	case Attached:
		return "attached"
	case SessionActive:
		return "session_active"
	case SessionEnded:
		return "session_ended"
	default:
		return fmt.Sprintf("phase-%d", int(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

type Options struct {
	Detector Detector
	Layout   *Layout
	Opener   process.ProcessOpener
	Bridge   *bridge.Bridge

	// ProcessNames overrides the detector's whitelist when set
	ProcessNames []string

	PollInterval   time.Duration
	AttachInterval time.Duration
	RemoteTimeout  time.Duration

	Clock func() time.Time
}

type commandRequest struct {
	name  string
	value string
	reply chan error
}

// Engine is the polling loop. Step and everything it calls run on one
// goroutine; SetCommand and Status are safe from any goroutine.
type Engine struct {
	detector       Detector
	layout         *Layout
	opener         process.ProcessOpener
	bridge         *bridge.Bridge
	names          []string
	pollInterval   time.Duration
	attachInterval time.Duration
	remoteTimeout  time.Duration
	now            func() time.Time

	state          *GameState
	phase          Phase
	lastAttachTry  time.Time
	sessionEndedAt time.Time
	pauseStarted   time.Time
	lastCommands   map[string]string
	lastDecision   string
	sessionMap     string

	commands chan commandRequest

	statusMu sync.Mutex
	status   Status

	log *logger.Logger
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Detector == nil {
		return nil, ErrNoDetector
	}
	if opts.Opener == nil {
		return nil, errors.New("engine needs a process opener")
	}
	if opts.Layout == nil {
		opts.Layout = Source2013()
	}
	if opts.Bridge == nil {
		opts.Bridge = bridge.New(0)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 15 * time.Millisecond
	}
	if opts.AttachInterval <= 0 {
		opts.AttachInterval = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	names := opts.Detector.Info().ProcessNames
	if len(opts.ProcessNames) > 0 {
		for _, n := range opts.ProcessNames {
			if !slices.ContainsFunc(names, func(w string) bool { return strings.EqualFold(w, n) }) {
				return nil, fmt.Errorf("%w: %s (detector %s watches %s)", ErrNotWhitelisted, n, opts.Detector.Info().ID, strings.Join(names, ", "))
			}
		}
		names = opts.ProcessNames
	}

	e := &Engine{
		detector:       opts.Detector,
		layout:         opts.Layout,
		opener:         opts.Opener,
		bridge:         opts.Bridge,
		names:          names,
		pollInterval:   opts.PollInterval,
		attachInterval: opts.AttachInterval,
		remoteTimeout:  opts.RemoteTimeout,
		now:            opts.Clock,
		lastCommands:   make(map[string]string),
		commands:       make(chan commandRequest, 16),
		log:            logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "engine-"+opts.Detector.Info().ID)),
	}

	for _, c := range e.info().Commands.Commands() {
		e.lastCommands[c.Name] = c.Value()
	}
	e.publishStatus()

	return e, nil
}

func (e *Engine) info() *Info {
	return e.detector.Info()
}

// Run polls until ctx is done, then detaches
func (e *Engine) Run(ctx context.Context) error {
	e.log.Infoln("polling every", e.pollInterval, "for", strings.Join(e.names, ", "))

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if e.state != nil {
				e.detach("shutting down")
			}
			return nil
		case <-ticker.C:
			e.Step()
		}
	}
}

// Step runs one tick
func (e *Engine) Step() {
	e.drainCommands()

	if e.state == nil && !e.tryAttach() {
		e.publishStatus()
		return
	}

	e.poll()
	e.publishStatus()
}

// SetCommand queues a command change and waits for the polling loop to apply it
func (e *Engine) SetCommand(ctx context.Context, name, value string) error {
	req := commandRequest{name: name, value: value, reply: make(chan error, 1)}

	select {
	case e.commands <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) drainCommands() {
	for {
		select {
		case req := <-e.commands:
			_, err := e.info().Commands.Set(req.name, req.value)
			if err == nil {
				e.log.Infoln("command", req.name, "set to", req.value)
				e.publishCommandChanges()
			}
			req.reply <- err
		default:
			return
		}
	}
}

func (e *Engine) publishCommandChanges() {
	for _, c := range e.info().Commands.Commands() {
		if v, ok := e.lastCommands[c.Name]; ok && v == c.Value() {
			continue
		}
		e.lastCommands[c.Name] = c.Value()
		e.bridge.Publish(bridge.CommandChanged{Name: c.Name, Value: c.Value()})
	}
}

// safe runs a detector hook; a panic is logged and the tick goes on
func (e *Engine) safe(hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn(fmt.Sprintf("%s panicked: %v", hook, r))
		}
	}()
	fn()
}

func (e *Engine) tryAttach() bool {
	now := e.now()
	if !e.lastAttachTry.IsZero() && now.Sub(e.lastAttachTry) < e.attachInterval {
		return false
	}
	e.lastAttachTry = now

	proc, err := e.opener.OpenFirstProcess(e.names)
	if err != nil {
		e.log.Debugln("no target process:", err)
		return false
	}

	mods, err := proc.Modules()
	if err != nil {
		e.log.Warn("failed to list modules: ", err)
		proc.Close()
		return false
	}

	state, err := NewGameState(proc, process.NewModuleTable(mods), e.layout, e.info().RequiredProperties, e.remoteTimeout)
	if err != nil {
		// modules may still be loading; try again next interval
		e.log.Warn(fmt.Sprintf("process %d not ready: %v", proc.GetPID(), err))
		proc.Close()
		return false
	}

	e.state = state
	e.phase = Attached
	e.sessionEndedAt = time.Time{}
	e.pauseStarted = time.Time{}
	e.sessionMap = ""
	id := e.bridge.NewAttach()
	e.log.Infoln("attached to process", proc.GetPID(), "attach", id.String())

	e.safe("OnAttach", func() { e.detector.OnAttach(state) })
	state.releaseScanners()

	e.bridge.Publish(bridge.GameStatusChanged{IsActive: true})
	e.bridge.Publish(bridge.TickRateChanged{IntervalPerTick: state.IntervalPerTick})
	e.bridge.Publish(bridge.TimingSpecificsChanged{Specifics: bridge.TimingSpecifics{
		Method:          e.info().TimingMethod.String(),
		IntervalPerTick: state.IntervalPerTick,
		IncludesPauses:  e.info().TimingMethod == EngineTicksWithPauses,
	}})
	e.publishCommandChanges()

	return true
}

func (e *Engine) detach(reason string) {
	s := e.state
	if e.phase == SessionActive {
		e.endSession()
	}

	e.log.Infoln("detaching from process", s.Process.GetPID(), ":", reason)
	if err := s.Process.Close(); err != nil {
		e.log.Warn("close process: ", err)
	}

	e.state = nil
	e.phase = Unattached
	e.lastAttachTry = e.now()
	e.bridge.Publish(bridge.GameStatusChanged{IsActive: false})
	e.bridge.Detach()
}

func (e *Engine) handleReadFailure(err error) {
	if errors.Is(err, process.ErrProcessExited) || !e.state.Process.IsRunning() {
		e.detach("process exited")
		return
	}

	e.log.Debugln("read failed:", err)
	if e.phase == SessionActive {
		e.endSession()
	}
}

func (e *Engine) poll() {
	s := e.state

	mapChanged, err := s.refresh()
	if err != nil {
		e.handleReadFailure(err)
		return
	}

	if mapChanged {
		e.bridge.Publish(bridge.MapChanged{Map: s.CurrentMap, PrevMap: s.PrevMap})
		// a session belongs to one map load
		if e.phase == SessionActive {
			e.endSession()
		}
	}

	justStarted := false
	switch inSession := s.InSession(); {
	case inSession && e.phase != SessionActive:
		e.startSession()
		justStarted = true
	case !inSession && e.phase == SessionActive:
		e.endSession()
	case !inSession && e.phase == SessionEnded:
		e.phase = Attached
	}

	e.safe("OnGenericUpdate", func() { e.detector.OnGenericUpdate(s) })
	e.publishCommandChanges()

	if e.phase != SessionActive {
		return
	}

	e.trackPause()

	if !justStarted {
		if d := s.TickCount.Current - s.TickCount.Old; d > 0 {
			e.bridge.Publish(bridge.SessionTimeUpdate{TickDifference: int64(d)})
		}
	}

	var r Result
	e.safe("OnUpdate", func() { r = e.detector.OnUpdate(s) })
	if !r.IsNothing() {
		source := r.Source
		if source == "" {
			source = e.info().ID
		}
		e.lastDecision = r.Decision.String()
		e.log.Infoln(source, "decided", r.Decision, "offset", r.OffsetTicks, "on", s.CurrentMap)
		e.bridge.Publish(bridge.Split{Decision: r.Decision.String(), OffsetTicks: r.OffsetTicks, Detector: source})
	}

	e.publishDemo()
}

func (e *Engine) ticksSince(t time.Time) int64 {
	interval := float64(e.state.IntervalPerTick)
	if interval <= 0 || t.IsZero() {
		return 0
	}
	return int64(e.now().Sub(t).Seconds() / interval)
}

func (e *Engine) startSession() {
	s := e.state
	s.bindSession()
	e.phase = SessionActive

	if ticks := e.ticksSince(e.sessionEndedAt); ticks > 0 {
		e.bridge.Publish(bridge.MiscTime{TickDifference: ticks, Type: bridge.ClientDisconnectTime})
	}
	e.sessionEndedAt = time.Time{}

	e.log.Infoln("session started on", s.CurrentMap)
	e.bridge.Publish(bridge.SessionStarted{Map: s.CurrentMap})

	// reloading the map the last session ran on is not a new game
	if e.info().StartsOnLoad(s.CurrentMap) && !strings.EqualFold(e.sessionMap, s.CurrentMap) {
		e.bridge.Publish(bridge.NewGameStarted{})
	}
	e.sessionMap = s.CurrentMap

	e.safe("OnSessionStart", func() { e.detector.OnSessionStart(s) })
}

func (e *Engine) endSession() {
	s := e.state
	e.safe("OnSessionEnd", func() { e.detector.OnSessionEnd(s) })

	e.closePause()
	e.phase = SessionEnded
	e.sessionEndedAt = e.now()

	e.log.Infoln("session ended on", s.CurrentMap)
	e.bridge.Publish(bridge.SessionEnded{})
}

func (e *Engine) trackPause() {
	p := e.state.Paused
	if !p.Bound() || !p.Changed() {
		return
	}

	if p.Current != 0 {
		e.pauseStarted = e.now()
		e.bridge.Publish(bridge.MiscTime{Type: bridge.StartPause})
		return
	}

	e.closePause()
}

// closePause reports the length of an open pause and ends it
func (e *Engine) closePause() {
	if e.pauseStarted.IsZero() {
		return
	}
	e.bridge.Publish(bridge.MiscTime{TickDifference: e.ticksSince(e.pauseStarted), Type: bridge.PauseTime})
	e.bridge.Publish(bridge.MiscTime{Type: bridge.EndPause})
	e.pauseStarted = time.Time{}
}

func (e *Engine) publishDemo() {
	s := e.state
	if !s.DemoRecording.Bound() || !s.DemoRecording.Changed() {
		return
	}
	e.bridge.Publish(bridge.DemoInfo{
		TickCount:   int64(s.DemoTick.Current),
		Name:        s.DemoName(),
		IsRecording: s.DemoRecording.Current != 0,
	})
}
