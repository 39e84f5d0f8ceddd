package game

// Detector is the contract every driver implements. The engine calls the
// hooks from its polling goroutine only:
//
//	OnAttach         once per process attach
//	OnSessionStart   when a session begins; reset latches here
//	OnGenericUpdate  every tick, session or not
//	OnUpdate         every tick while a session is active
//	OnSessionEnd     when the session is torn down
//
// The GameState passed in is valid only for the duration of the call.
// Within one OnUpdate, conditions are checked in the order end, split,
// start, and the first one that fires is returned.
type Detector interface {
	Info() *Info
	OnAttach(state *GameState)
	OnSessionStart(state *GameState)
	OnUpdate(state *GameState) Result
	OnGenericUpdate(state *GameState)
	OnSessionEnd(state *GameState)
}

// Base supplies no-op hooks and the first/last map flags. Drivers embed it
// and call Base.OnSessionStart from their own OnSessionStart.
type Base struct {
	info       Info
	isFirstMap bool
	isLastMap  bool
}

func NewBase(info Info) Base {
	return Base{info: info}
}

func (b *Base) Info() *Info {
	return &b.info
}

func (b *Base) IsFirstMap() bool {
	return b.isFirstMap
}

func (b *Base) IsLastMap() bool {
	return b.isLastMap
}

func (b *Base) OnAttach(state *GameState) {}

func (b *Base) OnSessionStart(state *GameState) {
	b.isFirstMap = b.info.IsFirstMap(state.CurrentMap)
	b.isLastMap = b.info.IsLastMap(state.CurrentMap)
}

func (b *Base) OnUpdate(state *GameState) Result {
	return Result{}
}

func (b *Base) OnGenericUpdate(state *GameState) {}

func (b *Base) OnSessionEnd(state *GameState) {}

// Latch guards a transition so it is reported once per session
type Latch struct {
	fired bool
}

// Fire closes the latch and reports whether this call was the one that closed it
func (l *Latch) Fire() bool {
	if l.fired {
		return false
	}
	l.fired = true
	return true
}

func (l *Latch) Fired() bool {
	return l.fired
}

func (l *Latch) Reset() {
	l.fired = false
}
