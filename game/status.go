package game

import (
	"time"

	"splitwatch/process"
)

type CommandStatus struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Default     string `json:"default"`
	Description string `json:"description"`
}

// Status is a copy of the engine's view, safe to hand to other goroutines
type Status struct {
	Phase           Phase             `json:"phase"`
	Driver          string            `json:"driver"`
	PID             process.ProcessID `json:"pid,omitempty"`
	AttachID        string            `json:"attach_id,omitempty"`
	Map             string            `json:"map,omitempty"`
	PrevMap         string            `json:"prev_map,omitempty"`
	Tick            int32             `json:"tick"`
	Paused          bool              `json:"paused"`
	IntervalPerTick float32           `json:"interval_per_tick,omitempty"`
	LastDecision    string            `json:"last_decision,omitempty"`
	Commands        []CommandStatus   `json:"commands"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (e *Engine) publishStatus() {
	st := Status{
		Phase:        e.phase,
		Driver:       e.info().ID,
		LastDecision: e.lastDecision,
		UpdatedAt:    e.now(),
	}

	for _, c := range e.info().Commands.Commands() {
		st.Commands = append(st.Commands, CommandStatus{
			Name:        c.Name,
			Value:       c.Value(),
			Default:     c.Default,
			Description: c.Description,
		})
	}

	if s := e.state; s != nil {
		st.PID = s.Process.GetPID()
		st.AttachID = e.bridge.AttachID().String()
		st.Map = s.CurrentMap
		st.PrevMap = s.PrevMap
		st.Tick = s.TickCount.Current
		st.Paused = s.IsPaused()
		st.IntervalPerTick = s.IntervalPerTick
	}

	e.statusMu.Lock()
	e.status = st
	e.statusMu.Unlock()
}

func (e *Engine) Status() Status {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()

	st := e.status
	st.Commands = append([]CommandStatus(nil), e.status.Commands...)
	return st
}

func (e *Engine) Phase() Phase {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	return e.status.Phase
}
