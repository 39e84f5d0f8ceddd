package game

import (
	"fmt"
	"slices"

	"splitwatch/cvar"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Composite runs a primary detector and its secondaries as one.
//
// Every hook reaches every member, primary first. OnUpdate evaluates all
// members and returns the first non-DoNothing result; the others are queued
// and returned, oldest first, on later ticks where nobody fires. Whatever is
// still queued when the session ends is dropped with a log line.
type Composite struct {
	primary     Detector
	secondaries []Detector
	deferred    []Result
	info        *Info
	// set when info.Commands was built here rather than borrowed from a member
	ownCommands bool
	log         *logger.Logger
}

var _ Detector = (*Composite)(nil)

func NewComposite(primary Detector, secondaries ...Detector) *Composite {
	c := &Composite{
		primary:     primary,
		secondaries: secondaries,
		log:         logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "composite-"+primary.Info().ID)),
	}
	c.info, c.ownCommands = mergeInfo(c.Members())
	return c
}

// mergeInfo takes identity and timing from the first member and the union of
// everything else. A lone command handler is shared as is; several are joined
// into a new handler over the same commands.
func mergeInfo(members []Detector) (*Info, bool) {
	first := members[0].Info()
	merged := &Info{
		ID:           first.ID,
		TimingMethod: first.TimingMethod,
	}

	var handlers []*cvar.Handler
	for _, d := range members {
		in := d.Info()
		merged.ProcessNames = unionFold(merged.ProcessNames, in.ProcessNames)
		merged.FirstMaps = unionFold(merged.FirstMaps, in.FirstMaps)
		merged.LastMaps = unionFold(merged.LastMaps, in.LastMaps)
		merged.StartOnFirstLoadMaps = unionFold(merged.StartOnFirstLoadMaps, in.StartOnFirstLoadMaps)
		merged.RequiredProperties |= in.RequiredProperties
		if in.Commands != nil {
			handlers = append(handlers, in.Commands)
		}
	}

	switch len(handlers) {
	case 0:
		return merged, false
	case 1:
		merged.Commands = handlers[0]
		return merged, false
	}

	var cmds []*cvar.CustomCommand
	for _, h := range handlers {
		for _, cmd := range h.Commands() {
			if !slices.Contains(cmds, cmd) {
				cmds = append(cmds, cmd)
			}
		}
	}
	merged.Commands = cvar.NewHandler(cmds...)
	return merged, true
}

func unionFold(dst, src []string) []string {
	for _, s := range src {
		if !containsFold(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}

// Info is the merged declaration of every member
func (c *Composite) Info() *Info {
	return c.info
}

// Members returns the primary followed by the secondaries
func (c *Composite) Members() []Detector {
	return append([]Detector{c.primary}, c.secondaries...)
}

// Deferred is the number of queued results
func (c *Composite) Deferred() int {
	return len(c.deferred)
}

// call runs fn and turns a panic into a log line
func (c *Composite) call(d Detector, hook string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn(fmt.Sprintf("%s.%s panicked: %v", d.Info().ID, hook, r))
			ok = false
		}
	}()
	fn()
	return true
}

func (c *Composite) each(hook string, fn func(d Detector)) {
	for _, d := range c.Members() {
		c.call(d, hook, func() { fn(d) })
	}
}

func (c *Composite) OnAttach(state *GameState) {
	// bound first: Init resets values, and members may override them in OnAttach
	if c.ownCommands {
		c.info.Commands.Init(state.Console())
	}
	c.each("OnAttach", func(d Detector) { d.OnAttach(state) })
}

func (c *Composite) OnSessionStart(state *GameState) {
	c.each("OnSessionStart", func(d Detector) { d.OnSessionStart(state) })
}

func (c *Composite) OnGenericUpdate(state *GameState) {
	c.each("OnGenericUpdate", func(d Detector) { d.OnGenericUpdate(state) })
}

func (c *Composite) OnSessionEnd(state *GameState) {
	c.each("OnSessionEnd", func(d Detector) { d.OnSessionEnd(state) })

	if len(c.deferred) > 0 {
		for _, r := range c.deferred {
			c.log.Warn(fmt.Sprintf("session ended, discarding deferred %s from %s", r.Decision, r.Source))
		}
		c.deferred = nil
	}
}

func (c *Composite) OnUpdate(state *GameState) Result {
	var winner Result

	for _, d := range c.Members() {
		var r Result
		if !c.call(d, "OnUpdate", func() { r = d.OnUpdate(state) }) || r.IsNothing() {
			continue
		}
		if r.Source == "" {
			r.Source = d.Info().ID
		}

		if winner.IsNothing() {
			winner = r
			continue
		}
		c.log.Infoln("deferring", r.Decision, "from", r.Source, "behind", winner.Source)
		c.deferred = append(c.deferred, r)
	}

	if winner.IsNothing() && len(c.deferred) > 0 {
		winner = c.deferred[0]
		c.deferred = c.deferred[1:]
	}

	return winner
}
