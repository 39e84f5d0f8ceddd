package game

import (
	"splitwatch/cvar"
	"splitwatch/process"
	"splitwatch/sigscan"
)

// Locator finds one address by signature inside a module
type Locator struct {
	Module string
	Target sigscan.Target
}

func (l Locator) IsZero() bool {
	return l.Module == "" || !l.Target.Pattern.IsValid()
}

// EntityLayout describes the global entity list and the entity fields the engine reads
type EntityLayout struct {
	InfoSize   process.ProcessMemorySize // stride of one list entry
	MaxEntries int

	// fallbacks; the datamap lookup overrides them when it succeeds
	Name     process.ProcessMemorySize // string_t m_iName
	Position process.ProcessMemorySize // Vector m_vecAbsOrigin
}

// EventLayout describes one queued entity I/O event
type EventLayout struct {
	Head     process.ProcessMemorySize // first event pointer inside the queue object
	Next     process.ProcessMemorySize
	FireTime process.ProcessMemorySize
	Target   process.ProcessMemorySize
	Input    process.ProcessMemorySize
	Param    process.ProcessMemorySize // string_t inside the variant
}

// DatamapLayout describes a typedescription entry
type DatamapLayout struct {
	FieldName   process.ProcessMemorySize
	FieldOffset process.ProcessMemorySize
}

// Layout is everything build specific the engine needs to build a GameState
type Layout struct {
	Width process.PointerWidth

	EngineModule string
	ServerModule string

	CurMap          Locator // char[] map name
	SignOnState     Locator // int
	TickCount       Locator // int
	Paused          Locator // bool
	IntervalPerTick Locator // float
	ViewEntity      Locator // int
	EntityList      Locator // first entity info entry
	EventQueue      Locator
	ConVarList      Locator // pointer to the first console variable
	DemoTick        Locator // int
	DemoRecording   Locator // bool
	DemoName        Locator // char[]

	Entity  EntityLayout
	Event   EventLayout
	Datamap DatamapLayout
	ConVar  cvar.ConVarLayout

	MapNameLength process.ProcessMemorySize
}

const (
	SignOnNone = 0
	SignOnFull = 6
)

// Source2013 returns the layout for 32-bit Source 2013 singleplayer builds.
// Every locator that fails to resolve only disables what depends on it.
func Source2013() *Layout {
	return &Layout{
		Width:        process.Pointer32,
		EngineModule: "engine.dll",
		ServerModule: "server.dll",

		CurMap: Locator{"engine.dll", sigscan.Target{
			Pattern: sigscan.MustParse("68 ?? ?? ?? ?? 68 ?? ?? ?? ?? 8D 44 24 ?? 68 ?? ?? ?? ?? 50 E8"),
			Offset:  1,
			OnFound: sigscan.Absolute32,
		}},
		SignOnState: Locator{"engine.dll", sigscan.Target{
			Pattern: sigscan.MustParse("83 3D ?? ?? ?? ?? 06 75 ?? 8B 0D"),
			Offset:  2,
			OnFound: sigscan.Absolute32,
		}},
		TickCount: Locator{"engine.dll", sigscan.Target{
			Pattern: sigscan.MustParse("A1 ?? ?? ?? ?? 2B 05 ?? ?? ?? ?? 99"),
			Offset:  1,
			OnFound: sigscan.Absolute32,
		}},
		Paused: Locator{"engine.dll", sigscan.Target{
			Pattern: sigscan.MustParse("80 3D ?? ?? ?? ?? 00 74 ?? 80 3D ?? ?? ?? ?? 00 75"),
			Offset:  2,
			OnFound: sigscan.Absolute32,
		}},
		IntervalPerTick: Locator{"engine.dll", sigscan.Target{
			Pattern: sigscan.MustParse("D9 05 ?? ?? ?? ?? D8 0D ?? ?? ?? ?? 83 C4 ?? D9 5C 24"),
			Offset:  2,
			OnFound: sigscan.Absolute32,
		}},
		ViewEntity: Locator{"engine.dll", sigscan.Target{
			Pattern: sigscan.MustParse("8B 0D ?? ?? ?? ?? 85 C9 7E ?? 3B 0D"),
			Offset:  2,
			OnFound: sigscan.Absolute32,
		}},
		EntityList: Locator{"server.dll", sigscan.Target{
			Pattern: sigscan.MustParse("6A 00 68 ?? ?? ?? ?? B9 ?? ?? ?? ?? E8 ?? ?? ?? ?? 8B"),
			Offset:  8,
			OnFound: sigscan.Absolute32,
		}},
		EventQueue: Locator{"server.dll", sigscan.Target{
			Pattern: sigscan.MustParse("B9 ?? ?? ?? ?? E8 ?? ?? ?? ?? 8B 86 ?? ?? ?? ?? 85 C0 74"),
			Offset:  1,
			OnFound: sigscan.Absolute32,
		}},
		ConVarList: Locator{"engine.dll", sigscan.Target{
			Pattern: sigscan.MustParse("8B 35 ?? ?? ?? ?? 85 F6 74 ?? 8B 06 8B CE FF 50"),
			Offset:  2,
			OnFound: sigscan.Absolute32,
		}},
		DemoTick: Locator{"engine.dll", sigscan.Target{
			Pattern: sigscan.MustParse("A1 ?? ?? ?? ?? 40 A3 ?? ?? ?? ?? 8B 0D"),
			Offset:  1,
			OnFound: sigscan.Absolute32,
		}},
		DemoRecording: Locator{"engine.dll", sigscan.Target{
			Pattern: sigscan.MustParse("C6 05 ?? ?? ?? ?? 01 C6 05 ?? ?? ?? ?? 00 E8"),
			Offset:  2,
			OnFound: sigscan.Absolute32,
		}},
		DemoName: Locator{"engine.dll", sigscan.Target{
			Pattern: sigscan.MustParse("68 ?? ?? ?? ?? 68 ?? ?? ?? ?? FF 15 ?? ?? ?? ?? 83 C4 08 85 C0 74"),
			Offset:  1,
			OnFound: sigscan.Absolute32,
		}},

		Entity: EntityLayout{
			InfoSize:   0x10,
			MaxEntries: 2048,
			Name:       0x124,
			Position:   0x2A8,
		},
		Event: EventLayout{
			Head:     0x30,
			Next:     0x30,
			FireTime: 0x00,
			Target:   0x04,
			Input:    0x08,
			Param:    0x1C,
		},
		Datamap: DatamapLayout{
			FieldName:   0x04,
			FieldOffset: 0x08,
		},
		ConVar: cvar.Source2013,

		MapNameLength: 64,
	}
}
