// Package sigscan locates code and data inside a loaded module by byte
// signature, so nothing depends on addresses that move between builds.
package sigscan

import (
	"encoding/binary"
	"fmt"

	"splitwatch/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// NotFound is returned by every lookup that has no match
const NotFound process.ProcessMemoryAddress = 0

const pageSize = 0x1000

// Target is a pattern plus what to do with the match
type Target struct {
	Pattern Pattern

	// Offset is added to the match address before OnFound runs
	Offset int

	// OnFound may turn the match into the address actually wanted, e.g. by
	// following an operand. Returning NotFound fails the scan.
	OnFound func(s *Scanner, addr process.ProcessMemoryAddress) process.ProcessMemoryAddress
}

// NewTarget builds a target from pattern text; it panics on a malformed pattern
func NewTarget(offset int, pattern string) Target {
	return Target{Pattern: MustParse(pattern), Offset: offset}
}

// Scanner searches one module. It reads the module image on first use and
// keeps that snapshot until Invalidate, so later writes to the module are not
// seen. A Scanner should live no longer than one attach.
type Scanner struct {
	proc   process.Process
	module process.Module
	data   []byte
	loaded bool
	log    *logger.Logger
}

func NewScanner(proc process.Process, module process.Module) *Scanner {
	return &Scanner{
		proc:   proc,
		module: module,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorTeal, coloransi.ColorOrange, "sigscan-"+module.Name)),
	}
}

func (s *Scanner) Module() process.Module {
	return s.module
}

func (s *Scanner) Process() process.Process {
	return s.proc
}

// Invalidate drops the snapshot; the next lookup reads the module again
func (s *Scanner) Invalidate() {
	s.data = nil
	s.loaded = false
}

// Bytes returns the module image, reading it on first call. If the image
// cannot be read in one piece it is read page by page and unreadable pages
// are left zeroed.
func (s *Scanner) Bytes() ([]byte, error) {
	if s.loaded {
		return s.data, nil
	}

	if s.module.Size == 0 {
		return nil, fmt.Errorf("module %s has no size", s.module.Name)
	}

	data, err := s.proc.ReadMemory(s.module.Base, s.module.Size)
	if err != nil {
		s.log.Debugln("whole image read failed, falling back to pages:", err)

		data = make([]byte, s.module.Size)
		readable := 0
		for off := process.ProcessMemorySize(0); off < s.module.Size; off += pageSize {
			n := process.ProcessMemorySize(pageSize)
			if off+n > s.module.Size {
				n = s.module.Size - off
			}
			page, err := s.proc.ReadMemory(s.module.Base+process.ProcessMemoryAddress(off), n)
			if err != nil {
				continue
			}
			copy(data[off:], page)
			readable++
		}
		if readable == 0 {
			return nil, fmt.Errorf("module %s unreadable: %w", s.module.Name, err)
		}
	}

	s.data = data
	s.loaded = true
	return s.data, nil
}

// Scan returns the first match of t, or NotFound
func (s *Scanner) Scan(t Target) process.ProcessMemoryAddress {
	all := s.scan(t, 1)
	if len(all) == 0 {
		return NotFound
	}
	return all[0]
}

// ScanAll returns every match of t in module order
func (s *Scanner) ScanAll(t Target) []process.ProcessMemoryAddress {
	return s.scan(t, 0)
}

func (s *Scanner) scan(t Target, limit int) []process.ProcessMemoryAddress {
	data, err := s.Bytes()
	if err != nil {
		s.log.Warn("scan skipped: ", err)
		return nil
	}

	var out []process.ProcessMemoryAddress
	for _, off := range findPatternMatches(data, t.Pattern, 0) {
		addr := s.module.Base.Offset(off + t.Offset)
		if t.OnFound != nil {
			addr = t.OnFound(s, addr)
			if addr == NotFound {
				continue
			}
		}
		out = append(out, addr)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// FindString returns the address of str stored as a whole NUL-terminated
// string, i.e. not as the tail of a longer one.
func (s *Scanner) FindString(str string) process.ProcessMemoryAddress {
	data, err := s.Bytes()
	if err != nil {
		return NotFound
	}

	needle := Literal(append([]byte(str), 0))
	for _, off := range findPatternMatches(data, needle, 0) {
		if off == 0 || data[off-1] == 0 {
			return s.module.Base + process.ProcessMemoryAddress(off)
		}
	}
	return NotFound
}

// FindPointerTo returns every location in the module holding addr as a pointer of the given width
func (s *Scanner) FindPointerTo(addr process.ProcessMemoryAddress, width process.PointerWidth) []process.ProcessMemoryAddress {
	data, err := s.Bytes()
	if err != nil || addr == NotFound {
		return nil
	}

	buf := make([]byte, width)
	process.PutPointer(buf, width, addr)

	var out []process.ProcessMemoryAddress
	for _, off := range findPatternMatches(data, Literal(buf), 0) {
		out = append(out, s.module.Base+process.ProcessMemoryAddress(off))
	}
	return out
}

// ReadUint32 reads from the snapshot when addr is inside the module, else from the process
func (s *Scanner) ReadUint32(addr process.ProcessMemoryAddress) (uint32, error) {
	if data, err := s.Bytes(); err == nil && s.module.Contains(addr) && s.module.Contains(addr+3) {
		off := addr - s.module.Base
		return binary.LittleEndian.Uint32(data[off : off+4]), nil
	}
	return process.Read[uint32](s.proc, addr)
}

// Absolute32 follows a 32-bit absolute address operand at addr
func Absolute32(s *Scanner, addr process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	v, err := s.ReadUint32(addr)
	if err != nil {
		return NotFound
	}
	return process.ProcessMemoryAddress(v)
}

// RIPRelative32 resolves a 32-bit displacement relative to the end of the operand at addr
func RIPRelative32(s *Scanner, addr process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	v, err := s.ReadUint32(addr)
	if err != nil {
		return NotFound
	}
	return process.ProcessMemoryAddress(int64(addr) + 4 + int64(int32(v)))
}
