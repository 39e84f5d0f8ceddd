package game

import (
	"strings"

	"splitwatch/cvar"
)

// Property is a piece of player state a detector needs polled
type Property uint8

const (
	PropertyViewEntity Property = 1 << iota
	PropertyPosition
)

type TimingMethod int

const (
	EngineTicks TimingMethod = iota
	EngineTicksWithPauses
)

func (m TimingMethod) String() string {
	if m == EngineTicksWithPauses {
		return "engine_ticks_with_pauses"
	}
	return "engine_ticks"
}

// Info is what a driver declares about itself at registration
type Info struct {
	ID           string
	ProcessNames []string

	FirstMaps []string
	LastMaps  []string

	// loading one of these maps means a new run was begun
	StartOnFirstLoadMaps []string

	RequiredProperties Property
	TimingMethod       TimingMethod

	// Commands may be nil
	Commands *cvar.Handler
}

func (i *Info) Requires(p Property) bool {
	return i.RequiredProperties&p != 0
}

func (i *Info) IsFirstMap(m string) bool {
	return containsFold(i.FirstMaps, m)
}

func (i *Info) IsLastMap(m string) bool {
	return containsFold(i.LastMaps, m)
}

func (i *Info) StartsOnLoad(m string) bool {
	return containsFold(i.StartOnFirstLoadMaps, m)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
