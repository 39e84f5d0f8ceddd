package bridge

import "fmt"

type Kind string

const (
	KindMapChanged             Kind = "map_changed"
	KindSessionTimeUpdate      Kind = "session_time_update"
	KindSessionStarted         Kind = "session_started"
	KindSessionEnded           Kind = "session_ended"
	KindNewGameStarted         Kind = "new_game_started"
	KindMiscTime               Kind = "misc_time"
	KindTickRateChanged        Kind = "tick_rate_changed"
	KindTimingSpecificsChanged Kind = "timing_specifics_changed"
	KindGameStatusChanged      Kind = "game_status_changed"
	KindDemoInfo               Kind = "demo_info"
	KindSplit                  Kind = "split"
	KindCommandChanged         Kind = "command_changed"
)

// Payload is the typed body of an event
type Payload interface {
	Kind() Kind
}

type MapChanged struct {
	Map       string `json:"map"`
	PrevMap   string `json:"prev_map"`
	IsGeneric bool   `json:"is_generic"`
}

// SessionTimeUpdate carries ticks to add to the running clock
type SessionTimeUpdate struct {
	TickDifference int64 `json:"tick_difference"`
}

type SessionStarted struct {
	Map string `json:"map"`
}

type SessionEnded struct{}

type NewGameStarted struct{}

type MiscTimeType int

const (
	StartPause MiscTimeType = iota
	EndPause
	PauseTime
	ClientDisconnectTime
)

func (t MiscTimeType) String() string {
	switch t {
	case StartPause:
		return "start_pause"
	case EndPause:
		return "end_pause"
	case PauseTime:
		return "pause_time"
	case ClientDisconnectTime:
		return "client_disconnect_time"
	default:
		return fmt.Sprintf("misc_time_%d", int(t))
	}
}

func (t MiscTimeType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

type MiscTime struct {
	TickDifference int64        `json:"tick_difference"`
	Type           MiscTimeType `json:"type"`
}

type TickRateChanged struct {
	IntervalPerTick float32 `json:"interval_per_tick"`
}

// TimingSpecifics tells the consumer how ticks become wall time
type TimingSpecifics struct {
	Method          string  `json:"method"`
	IntervalPerTick float32 `json:"interval_per_tick"`
	IncludesPauses  bool    `json:"includes_pauses"`
}

type TimingSpecificsChanged struct {
	Specifics TimingSpecifics `json:"specifics"`
}

type GameStatusChanged struct {
	IsActive bool `json:"is_active"`
}

type DemoInfo struct {
	TickCount   int64  `json:"tick_count"`
	Name        string `json:"name"`
	IsRecording bool   `json:"is_recording"`
}

// Split is a detector decision with the tick correction to apply
type Split struct {
	Decision    string `json:"decision"`
	OffsetTicks int    `json:"offset_ticks"`
	Detector    string `json:"detector"`
}

type CommandChanged struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (MapChanged) Kind() Kind             { return KindMapChanged }
func (SessionTimeUpdate) Kind() Kind      { return KindSessionTimeUpdate }
func (SessionStarted) Kind() Kind         { return KindSessionStarted }
func (SessionEnded) Kind() Kind           { return KindSessionEnded }
func (NewGameStarted) Kind() Kind         { return KindNewGameStarted }
func (MiscTime) Kind() Kind               { return KindMiscTime }
func (TickRateChanged) Kind() Kind        { return KindTickRateChanged }
func (TimingSpecificsChanged) Kind() Kind { return KindTimingSpecificsChanged }
func (GameStatusChanged) Kind() Kind      { return KindGameStatusChanged }
func (DemoInfo) Kind() Kind               { return KindDemoInfo }
func (Split) Kind() Kind                  { return KindSplit }
func (CommandChanged) Kind() Kind         { return KindCommandChanged }
