package game

import (
	"encoding/binary"
	"fmt"
	"strings"

	"splitwatch/process"
)

const maxEntityNameLength = 128

// entityPointers reads the whole entity list in one go
func (s *GameState) entityPointers() ([]process.ProcessMemoryAddress, error) {
	if s.addrs.entityList == 0 {
		return nil, fmt.Errorf("entity list: %w", process.ErrAddressNotMapped)
	}

	e := s.Layout.Entity
	data, err := s.Process.ReadMemory(s.addrs.entityList, e.InfoSize*process.ProcessMemorySize(e.MaxEntries))
	if err != nil {
		return nil, err
	}

	ptrs := make([]process.ProcessMemoryAddress, e.MaxEntries)
	for i := range ptrs {
		off := i * int(e.InfoSize)
		if s.Layout.Width == process.Pointer32 {
			ptrs[i] = process.ProcessMemoryAddress(binary.LittleEndian.Uint32(data[off:]))
		} else {
			ptrs[i] = process.ProcessMemoryAddress(binary.LittleEndian.Uint64(data[off:]))
		}
	}
	return ptrs, nil
}

// EntInfo reads one slot of the entity list; EntityPtr is 0 when the slot is empty
func (s *GameState) EntInfo(index int) EntInfo {
	info := EntInfo{Index: index}
	if s.addrs.entityList == 0 || index < 0 || index >= s.Layout.Entity.MaxEntries {
		return info
	}

	addr := s.addrs.entityList + process.ProcessMemoryAddress(index)*process.ProcessMemoryAddress(s.Layout.Entity.InfoSize)
	ptr, err := process.ReadPointer(s.Process, s.Layout.Width, addr)
	if err != nil {
		return info
	}
	info.EntityPtr = ptr
	return info
}

// EntityName reads the targetname of an entity
func (s *GameState) EntityName(ent process.ProcessMemoryAddress) (string, error) {
	ptr, err := process.ReadPointer(s.Process, s.Layout.Width, ent+process.ProcessMemoryAddress(s.entityNameOff))
	if err != nil {
		return "", err
	}
	if ptr == 0 {
		return "", nil
	}
	return process.ReadNTS(s.Process, ptr, maxEntityNameLength)
}

func (s *GameState) findEntity(name string) (int, process.ProcessMemoryAddress) {
	ptrs, err := s.entityPointers()
	if err != nil {
		s.log.Debugln("entity list read failed:", err)
		return -1, 0
	}

	for i, ent := range ptrs {
		if ent == 0 {
			continue
		}
		n, err := s.EntityName(ent)
		if err != nil {
			continue
		}
		if strings.EqualFold(n, name) {
			return i, ent
		}
	}

	s.log.Warn(fmt.Sprintf("entity %q not found", name))
	return -1, 0
}

// GetEntityByName returns the entity pointer, or 0 if there is no such entity
func (s *GameState) GetEntityByName(name string) process.ProcessMemoryAddress {
	_, ent := s.findEntity(name)
	return ent
}

// GetEntIndexByName returns the entity index, or -1 if there is no such entity
func (s *GameState) GetEntIndexByName(name string) int {
	i, _ := s.findEntity(name)
	return i
}

func (s *GameState) readStringT(addr process.ProcessMemoryAddress) string {
	ptr, err := process.ReadPointer(s.Process, s.Layout.Width, addr)
	if err != nil || ptr == 0 {
		return ""
	}
	str, err := process.ReadNTS(s.Process, ptr, maxEntityNameLength)
	if err != nil {
		return ""
	}
	return str
}

// OutputFireTime walks at most maxEvents queued entity I/O events and
// returns the fire time of the first one sent to target's input. An empty
// param matches any parameter. It returns 0 when nothing is queued.
func (s *GameState) OutputFireTime(target, input, param string, maxEvents int) float32 {
	if s.addrs.eventQueue == 0 {
		return 0
	}

	ev := s.Layout.Event
	node, err := process.ReadPointer(s.Process, s.Layout.Width, s.addrs.eventQueue+process.ProcessMemoryAddress(ev.Head))
	if err != nil {
		return 0
	}

	for i := 0; node != 0 && i < maxEvents; i++ {
		if strings.EqualFold(s.readStringT(node+process.ProcessMemoryAddress(ev.Target)), target) &&
			strings.EqualFold(s.readStringT(node+process.ProcessMemoryAddress(ev.Input)), input) &&
			(param == "" || strings.EqualFold(s.readStringT(node+process.ProcessMemoryAddress(ev.Param)), param)) {
			t, err := process.Read[float32](s.Process, node+process.ProcessMemoryAddress(ev.FireTime))
			if err != nil {
				return 0
			}
			return t
		}

		node, err = process.ReadPointer(s.Process, s.Layout.Width, node+process.ProcessMemoryAddress(ev.Next))
		if err != nil {
			return 0
		}
	}
	return 0
}

// BaseEntityMemberOffset finds a field offset through the server's datamap:
// the field name string, then a description entry pointing at it, then the
// offset stored in that entry.
func (s *GameState) BaseEntityMemberOffset(member string) (process.ProcessMemorySize, error) {
	sc, ok := s.Scanner(s.Layout.ServerModule)
	if !ok {
		return 0, fmt.Errorf("%w: %s: server module not loaded", ErrMemberNotFound, member)
	}

	str := sc.FindString(member)
	if str == 0 {
		return 0, fmt.Errorf("%w: %s: name not present", ErrMemberNotFound, member)
	}

	dm := s.Layout.Datamap
	for _, ref := range sc.FindPointerTo(str, s.Layout.Width) {
		desc := ref - process.ProcessMemoryAddress(dm.FieldName)
		off, err := process.Read[int32](s.Process, desc+process.ProcessMemoryAddress(dm.FieldOffset))
		if err != nil {
			continue
		}
		if off > 0 && off < 0x10000 {
			s.log.Debugln(member, "offset", fmt.Sprintf("0x%X", off))
			return process.ProcessMemorySize(off), nil
		}
	}

	return 0, fmt.Errorf("%w: %s: no description entry", ErrMemberNotFound, member)
}
