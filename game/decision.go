package game

import "fmt"

// Decision is what a detector concluded for one tick
type Decision int

const (
	DoNothing Decision = iota
	PlayerGainedControl
	PlayerLostControl
	ManualSplit
)

func (d Decision) String() string {
	switch d {
	case DoNothing:
		return "nothing"
	case PlayerGainedControl:
		return "start"
	case PlayerLostControl:
		return "end"
	case ManualSplit:
		return "split"
	default:
		return fmt.Sprintf("decision-%d", int(d))
	}
}

// Result is one detector's output for a tick. OffsetTicks is a correction
// the timer applies when it acts on the decision.
type Result struct {
	Decision    Decision
	OffsetTicks int

	// Source is the ID of the detector that produced the result; Composite fills it in
	Source string
}

func (r Result) IsNothing() bool {
	return r.Decision == DoNothing
}

func Start(offsetTicks int) Result {
	return Result{Decision: PlayerGainedControl, OffsetTicks: offsetTicks}
}

func End(offsetTicks int) Result {
	return Result{Decision: PlayerLostControl, OffsetTicks: offsetTicks}
}

func Split() Result {
	return Result{Decision: ManualSplit}
}
