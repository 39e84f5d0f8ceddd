// Package gametest builds in-memory targets that look enough like a
// Source engine game for the engine and the drivers to attach to.
package gametest

import (
	"encoding/binary"
	"math"
	"sync"

	"splitwatch/game"
	"splitwatch/process"
	"splitwatch/process_blob"
	"splitwatch/sigscan"
)

const (
	EngineBase process.ProcessMemoryAddress = 0x10000000
	ServerBase process.ProcessMemoryAddress = 0x20000000
	DataBase   process.ProcessMemoryAddress = 0x30000000
	HeapBase   process.ProcessMemoryAddress = 0x40000000

	DefaultServerSize = 0x100000

	engineSize = 0x1000
	dataSize   = 0x4000
	heapSize   = 0x100000
	entitySize = 0x400
	eventSize  = 0x40
	maxEntries = 64
)

// global slots inside the data region
const (
	offCurMap        = 0x000
	offSignOnState   = 0x100
	offTickCount     = 0x104
	offPaused        = 0x108
	offInterval      = 0x10C
	offViewEntity    = 0x110
	offDemoTick      = 0x114
	offDemoRecording = 0x118
	offConVarList    = 0x120
	offDemoName      = 0x200
	offEventQueue    = 0x400
	offEntityList    = 0x1000
)

// marker ids for the engine image
const (
	markCurMap byte = iota + 1
	markSignOnState
	markTickCount
	markPaused
	markInterval
	markViewEntity
	markEntityList
	markEventQueue
	markConVarList
	markDemoTick
	markDemoRecording
	markDemoName
)

var markerPrefix = []byte{0x0F, 0x0B, 0x5A}

func marker(id byte) sigscan.Target {
	return sigscan.Target{
		Pattern: sigscan.Literal(append(append([]byte{}, markerPrefix...), id)),
		Offset:  len(markerPrefix) + 1,
		OnFound: sigscan.Absolute32,
	}
}

// Fake is a 32-bit target with an engine module, a server module of
// configurable size, a data region holding the engine globals and a heap
// for entities, strings, events and console variables.
type Fake struct {
	proc   *process_blob.ProcessDump
	layout *game.Layout

	mu         sync.Mutex
	heapNext   process.ProcessMemoryAddress
	serverNext process.ProcessMemoryAddress
	serverSize int
	entities   map[int]process.ProcessMemoryAddress
}

// New builds a fake; serverSize 0 means DefaultServerSize
func New(pid process.ProcessID, serverSize int) *Fake {
	if serverSize <= 0 {
		serverSize = DefaultServerSize
	}

	f := &Fake{
		proc:       process_blob.NewProcessDump(pid),
		heapNext:   HeapBase + 0x10,
		serverNext: ServerBase + 0x1000,
		serverSize: serverSize,
		entities:   make(map[int]process.ProcessMemoryAddress),
	}

	f.proc.AddModule("engine.dll", EngineBase, f.engineImage())
	f.proc.AddModule("server.dll", ServerBase, make([]byte, serverSize))
	f.proc.AddRegion(DataBase, make([]byte, dataSize))
	f.proc.AddRegion(HeapBase, make([]byte, heapSize))

	f.layout = game.Source2013()
	l := f.layout
	l.CurMap = game.Locator{Module: "engine.dll", Target: marker(markCurMap)}
	l.SignOnState = game.Locator{Module: "engine.dll", Target: marker(markSignOnState)}
	l.TickCount = game.Locator{Module: "engine.dll", Target: marker(markTickCount)}
	l.Paused = game.Locator{Module: "engine.dll", Target: marker(markPaused)}
	l.IntervalPerTick = game.Locator{Module: "engine.dll", Target: marker(markInterval)}
	l.ViewEntity = game.Locator{Module: "engine.dll", Target: marker(markViewEntity)}
	l.EntityList = game.Locator{Module: "engine.dll", Target: marker(markEntityList)}
	l.EventQueue = game.Locator{Module: "engine.dll", Target: marker(markEventQueue)}
	l.ConVarList = game.Locator{Module: "engine.dll", Target: marker(markConVarList)}
	l.DemoTick = game.Locator{Module: "engine.dll", Target: marker(markDemoTick)}
	l.DemoRecording = game.Locator{Module: "engine.dll", Target: marker(markDemoRecording)}
	l.DemoName = game.Locator{Module: "engine.dll", Target: marker(markDemoName)}
	l.Entity.MaxEntries = maxEntries

	f.SetIntervalPerTick(0.015)
	f.initConVars()
	return f
}

func (f *Fake) engineImage() []byte {
	img := make([]byte, engineSize)
	slots := []struct {
		id  byte
		off process.ProcessMemoryAddress
	}{
		{markCurMap, offCurMap},
		{markSignOnState, offSignOnState},
		{markTickCount, offTickCount},
		{markPaused, offPaused},
		{markInterval, offInterval},
		{markViewEntity, offViewEntity},
		{markEntityList, offEntityList},
		{markEventQueue, offEventQueue},
		{markConVarList, offConVarList},
		{markDemoTick, offDemoTick},
		{markDemoRecording, offDemoRecording},
		{markDemoName, offDemoName},
	}

	pos := 0x100
	for _, s := range slots {
		copy(img[pos:], markerPrefix)
		img[pos+len(markerPrefix)] = s.id
		binary.LittleEndian.PutUint32(img[pos+len(markerPrefix)+1:], uint32(DataBase+s.off))
		pos += 0x10
	}
	return img
}

func (f *Fake) Proc() *process_blob.ProcessDump {
	return f.proc
}

func (f *Fake) Layout() *game.Layout {
	return f.layout
}

func (f *Fake) ServerSize() int {
	return f.serverSize
}

func (f *Fake) write(addr process.ProcessMemoryAddress, data []byte) {
	if err := f.proc.WriteMemory(addr, data); err != nil {
		panic(err)
	}
}

func (f *Fake) u32(addr process.ProcessMemoryAddress, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	f.write(addr, b[:])
}

func (f *Fake) f32(addr process.ProcessMemoryAddress, v float32) {
	f.u32(addr, math.Float32bits(v))
}

// alloc hands out zeroed, 16-byte aligned heap memory
func (f *Fake) alloc(size int) process.ProcessMemoryAddress {
	f.mu.Lock()
	defer f.mu.Unlock()

	addr := f.heapNext
	f.heapNext += process.ProcessMemoryAddress((size + 0xF) &^ 0xF)
	if f.heapNext > HeapBase+heapSize-0x200 {
		panic("gametest: heap exhausted")
	}
	return addr
}

// String stores s on the heap and returns its address
func (f *Fake) String(s string) process.ProcessMemoryAddress {
	addr := f.alloc(len(s) + 1)
	f.write(addr, append([]byte(s), 0))
	return addr
}

func (f *Fake) SetMap(name string) {
	buf := make([]byte, 64)
	copy(buf, name)
	f.write(DataBase+offCurMap, buf)
}

func (f *Fake) SetSignOn(state int32) {
	f.u32(DataBase+offSignOnState, uint32(state))
}

// Load moves to a new map and puts the client fully in game
func (f *Fake) Load(name string) {
	f.SetSignOn(game.SignOnNone)
	f.SetMap(name)
	f.SetSignOn(game.SignOnFull)
}

func (f *Fake) SetTick(tick int32) {
	f.u32(DataBase+offTickCount, uint32(tick))
}

func (f *Fake) Tick() int32 {
	v, _ := process.Read[int32](f.proc, DataBase+offTickCount)
	return v
}

func (f *Fake) AdvanceTicks(n int32) {
	f.SetTick(f.Tick() + n)
}

func (f *Fake) SetPaused(paused bool) {
	var b byte
	if paused {
		b = 1
	}
	f.write(DataBase+offPaused, []byte{b})
}

func (f *Fake) SetIntervalPerTick(v float32) {
	f.f32(DataBase+offInterval, v)
}

func (f *Fake) SetViewEntity(index int32) {
	f.u32(DataBase+offViewEntity, uint32(index))
}

func (f *Fake) SetDemo(recording bool, tick int32, name string) {
	var b byte
	if recording {
		b = 1
	}
	f.write(DataBase+offDemoRecording, []byte{b})
	f.u32(DataBase+offDemoTick, uint32(tick))
	buf := make([]byte, 260)
	copy(buf, name)
	f.write(DataBase+offDemoName, buf)
}

// AddEntity places an entity named name in slot index and returns its address
func (f *Fake) AddEntity(index int, name string) process.ProcessMemoryAddress {
	if index < 0 || index >= maxEntries {
		panic("gametest: entity index out of range")
	}

	ent := f.alloc(entitySize)
	f.u32(ent+process.ProcessMemoryAddress(f.layout.Entity.Name), uint32(f.String(name)))
	f.u32(DataBase+offEntityList+process.ProcessMemoryAddress(index)*process.ProcessMemoryAddress(f.layout.Entity.InfoSize), uint32(ent))

	f.mu.Lock()
	f.entities[index] = ent
	f.mu.Unlock()
	return ent
}

func (f *Fake) RemoveEntity(index int) {
	f.u32(DataBase+offEntityList+process.ProcessMemoryAddress(index)*process.ProcessMemoryAddress(f.layout.Entity.InfoSize), 0)

	f.mu.Lock()
	delete(f.entities, index)
	f.mu.Unlock()
}

func (f *Fake) Entity(index int) process.ProcessMemoryAddress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entities[index]
}

// SetPlayerPosition writes the origin of entity 1, creating the player if needed
func (f *Fake) SetPlayerPosition(v game.Vector3f) {
	ent := f.Entity(1)
	if ent == 0 {
		ent = f.AddEntity(1, "player")
	}
	pos := ent + process.ProcessMemoryAddress(f.layout.Entity.Position)
	f.f32(pos, v.X)
	f.f32(pos+4, v.Y)
	f.f32(pos+8, v.Z)
}

// WriteInt32 stores v at addr, typically an entity field
func (f *Fake) WriteInt32(addr process.ProcessMemoryAddress, v int32) {
	f.u32(addr, uint32(v))
}

// AddOutputEvent queues an entity I/O event at the head of the event queue
func (f *Fake) AddOutputEvent(target, input, param string, fireTime float32) process.ProcessMemoryAddress {
	ev := f.layout.Event
	head := DataBase + offEventQueue + process.ProcessMemoryAddress(ev.Head)
	old, _ := process.Read[uint32](f.proc, head)

	node := f.alloc(eventSize)
	f.f32(node+process.ProcessMemoryAddress(ev.FireTime), fireTime)
	f.u32(node+process.ProcessMemoryAddress(ev.Target), uint32(f.String(target)))
	f.u32(node+process.ProcessMemoryAddress(ev.Input), uint32(f.String(input)))
	if param != "" {
		f.u32(node+process.ProcessMemoryAddress(ev.Param), uint32(f.String(param)))
	}
	f.u32(node+process.ProcessMemoryAddress(ev.Next), old)
	f.u32(head, uint32(node))
	return node
}

func (f *Fake) ClearEvents() {
	f.u32(DataBase+offEventQueue+process.ProcessMemoryAddress(f.layout.Event.Head), 0)
}

// AddConVar links a registered variable holding value at the head of the list
func (f *Fake) AddConVar(name string, value float32) process.ProcessMemoryAddress {
	l := f.layout.ConVar
	old, _ := process.Read[uint32](f.proc, DataBase+offConVarList)

	node := f.alloc(int(l.Size))
	f.u32(node+process.ProcessMemoryAddress(l.Next), old)
	f.write(node+process.ProcessMemoryAddress(l.Registered), []byte{1})
	f.u32(node+process.ProcessMemoryAddress(l.Name), uint32(f.String(name)))
	f.u32(node+process.ProcessMemoryAddress(l.Help), uint32(f.String("")))
	f.u32(node+process.ProcessMemoryAddress(l.Parent), uint32(node))
	f.f32(node+process.ProcessMemoryAddress(l.Float), value)
	f.u32(node+process.ProcessMemoryAddress(l.Int), uint32(int32(value)))

	f.u32(DataBase+offConVarList, uint32(node))
	return node
}

func (f *Fake) initConVars() {
	f.AddConVar("sv_cheats", 0)
}

// PlaceServerBytes writes data into the server image and returns its address.
// The image is captured at attach, so call it before the engine attaches.
func (f *Fake) PlaceServerBytes(data []byte) process.ProcessMemoryAddress {
	f.mu.Lock()
	addr := f.serverNext
	f.serverNext += process.ProcessMemoryAddress((len(data) + 0x10) &^ 0xF)
	f.mu.Unlock()

	f.write(addr, data)
	return addr
}

// AddDatamapField stores a field description for member inside the server
// image so member offsets can be looked up by name.
func (f *Fake) AddDatamapField(member string, offset int32) {
	// leading NUL so the name is found as a whole string
	name := f.PlaceServerBytes(append(append([]byte{0}, member...), 0)) + 1

	dm := f.layout.Datamap
	desc := make([]byte, 0x20)
	binary.LittleEndian.PutUint32(desc[dm.FieldName:], uint32(name))
	binary.LittleEndian.PutUint32(desc[dm.FieldOffset:], uint32(offset))
	f.PlaceServerBytes(desc)
}

// RegisterFunction installs fn as code at addr inside the target
func (f *Fake) RegisterFunction(addr process.ProcessMemoryAddress, fn process_blob.RemoteFunc) {
	f.proc.RegisterFunction(addr, fn)
}
