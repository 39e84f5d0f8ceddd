package cvar

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

var ErrUnknownCommand = errors.New("unknown command")

// Variable is a live console variable inside the target
type Variable interface {
	Value() (string, error)
	SetValue(v string) error
}

// Console finds and registers variables in the target
type Console interface {
	Find(name string) (Variable, bool)
	Register(cmd *CustomCommand) (Variable, error)
}

// Change is a command whose value moved during Update or Set
type Change struct {
	Name  string
	Value string
}

// Handler owns a driver's command set
type Handler struct {
	cmds []*CustomCommand
	vars map[string]Variable
	log  *logger.Logger
}

func NewHandler(cmds ...*CustomCommand) *Handler {
	return &Handler{
		cmds: cmds,
		vars: make(map[string]Variable),
		log:  logger.NewLogger(coloransi.Color(coloransi.ColorTeal, coloransi.ColorOrange, "cvar")),
	}
}

// Commands returns the declared commands in declaration order
func (h *Handler) Commands() []*CustomCommand {
	if h == nil {
		return nil
	}
	return h.cmds
}

// Get finds a command case-insensitively
func (h *Handler) Get(name string) (*CustomCommand, bool) {
	if h == nil {
		return nil, false
	}
	for _, c := range h.cmds {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return nil, false
}

// Init binds every command to the target console for a new attach, registering
// the missing ones. A command that cannot be bound keeps its default and is
// only adjustable through Set.
func (h *Handler) Init(console Console) {
	if h == nil {
		return
	}

	h.vars = make(map[string]Variable)
	for _, c := range h.cmds {
		c.Set(c.Default)
	}

	if console == nil {
		h.log.Warn("no console available, commands keep their defaults")
		return
	}

	for _, c := range h.cmds {
		v, ok := console.Find(c.Name)
		if !ok {
			var err error
			v, err = console.Register(c)
			if err != nil {
				h.log.Warn(fmt.Sprintf("failed to register %s, using default %q: %v", c.Name, c.Default, err))
				continue
			}
			h.log.Infoln("registered", c.Name)
		}
		h.vars[strings.ToLower(c.Name)] = v
	}
}

// Update mirrors the live values and returns the ones that changed
func (h *Handler) Update() []Change {
	if h == nil {
		return nil
	}

	var changes []Change
	for _, c := range h.cmds {
		v, ok := h.vars[strings.ToLower(c.Name)]
		if !ok {
			continue
		}
		live, err := v.Value()
		if err != nil {
			h.log.Debugln("read", c.Name, "failed:", err)
			continue
		}
		if live != c.Value() {
			c.Set(live)
			changes = append(changes, Change{Name: c.Name, Value: c.Value()})
		}
	}
	return changes
}

// Set changes a command locally and in the target when it is bound there
func (h *Handler) Set(name, value string) (Change, error) {
	c, ok := h.Get(name)
	if !ok {
		return Change{}, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	if v, ok := h.vars[strings.ToLower(c.Name)]; ok {
		if err := v.SetValue(value); err != nil {
			return Change{}, fmt.Errorf("set %s: %w", c.Name, err)
		}
		// read back so the local copy has the target's formatting
		if live, err := v.Value(); err == nil {
			value = live
		}
	}

	c.Set(value)
	return Change{Name: c.Name, Value: c.Value()}, nil
}
