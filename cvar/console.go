package cvar

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"splitwatch/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

var ErrNoAllocator = errors.New("process cannot allocate remote memory")

const (
	maxNodes   = 16384
	maxNameLen = 128
)

// ConVarLayout holds field offsets inside one console variable node
type ConVarLayout struct {
	Next         process.ProcessMemorySize
	Registered   process.ProcessMemorySize
	Name         process.ProcessMemorySize
	Help         process.ProcessMemorySize
	Flags        process.ProcessMemorySize
	Parent       process.ProcessMemorySize
	DefaultValue process.ProcessMemorySize
	String       process.ProcessMemorySize
	StringLength process.ProcessMemorySize
	Float        process.ProcessMemorySize
	Int          process.ProcessMemorySize
	Size         process.ProcessMemorySize
}

// Source2013 is the 32-bit ConVar layout shared by the Source 2013 branch
var Source2013 = ConVarLayout{
	Next:         0x04,
	Registered:   0x08,
	Name:         0x0C,
	Help:         0x10,
	Flags:        0x14,
	Parent:       0x1C,
	DefaultValue: 0x20,
	String:       0x24,
	StringLength: 0x28,
	Float:        0x2C,
	Int:          0x30,
	Size:         0x48,
}

// MemoryConsole walks the singly linked variable list whose head pointer lives at head
type MemoryConsole struct {
	proc   process.Process
	width  process.PointerWidth
	head   process.ProcessMemoryAddress
	layout ConVarLayout
	log    *logger.Logger
}

func NewMemoryConsole(proc process.Process, width process.PointerWidth, head process.ProcessMemoryAddress, layout ConVarLayout) *MemoryConsole {
	return &MemoryConsole{
		proc:   proc,
		width:  width,
		head:   head,
		layout: layout,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorTeal, coloransi.ColorOrange, "console")),
	}
}

// Find walks the list for name, case-insensitively
func (c *MemoryConsole) Find(name string) (Variable, bool) {
	node, err := process.ReadPointer(c.proc, c.width, c.head)
	if err != nil {
		c.log.Debugln("read list head failed:", err)
		return nil, false
	}

	seen := make(map[process.ProcessMemoryAddress]bool)
	for i := 0; node != 0 && i < maxNodes && !seen[node]; i++ {
		seen[node] = true

		namePtr, err := process.ReadPointer(c.proc, c.width, node+process.ProcessMemoryAddress(c.layout.Name))
		if err == nil && namePtr != 0 {
			if n, err := process.ReadNTS(c.proc, namePtr, maxNameLen); err == nil && strings.EqualFold(n, name) {
				return &memoryVar{console: c, node: node}, true
			}
		}

		node, err = process.ReadPointer(c.proc, c.width, node+process.ProcessMemoryAddress(c.layout.Next))
		if err != nil {
			return nil, false
		}
	}
	return nil, false
}

// Register clones the current head node into remote memory, fills it in for
// cmd and links it at the front of the list.
func (c *MemoryConsole) Register(cmd *CustomCommand) (Variable, error) {
	alloc, ok := c.proc.(process.RemoteAllocator)
	if !ok {
		return nil, ErrNoAllocator
	}

	def, err := strconv.ParseFloat(cmd.Default, 64)
	if err != nil {
		return nil, fmt.Errorf("default %q of %s is not numeric: %w", cmd.Default, cmd.Name, err)
	}

	head, err := process.ReadPointer(c.proc, c.width, c.head)
	if err != nil {
		return nil, fmt.Errorf("read list head: %w", err)
	}
	if head == 0 {
		return nil, errors.New("variable list is empty, nothing to clone")
	}

	template, err := c.proc.ReadMemory(head, c.layout.Size)
	if err != nil {
		return nil, fmt.Errorf("read template node: %w", err)
	}

	// node | name | help | default | string
	strs := []string{cmd.Name, cmd.Description, cmd.Default, cmd.Default}
	total := int(c.layout.Size)
	for _, s := range strs {
		total += len(s) + 1
	}

	node, err := alloc.AllocRemote(process.ProcessMemorySize(total))
	if err != nil {
		return nil, fmt.Errorf("alloc node: %w", err)
	}

	block := make([]byte, total)
	copy(block, template)

	ptrs := make([]process.ProcessMemoryAddress, len(strs))
	off := int(c.layout.Size)
	for i, s := range strs {
		ptrs[i] = node + process.ProcessMemoryAddress(off)
		copy(block[off:], s)
		off += len(s) + 1
	}

	l := c.layout
	process.PutPointer(block[l.Next:], c.width, head)
	block[l.Registered] = 1
	process.PutPointer(block[l.Name:], c.width, ptrs[0])
	process.PutPointer(block[l.Help:], c.width, ptrs[1])
	putUint32(block[l.Flags:], 0)
	process.PutPointer(block[l.Parent:], c.width, node)
	process.PutPointer(block[l.DefaultValue:], c.width, ptrs[2])
	process.PutPointer(block[l.String:], c.width, ptrs[3])
	putUint32(block[l.StringLength:], uint32(len(cmd.Default)+1))
	putUint32(block[l.Float:], math.Float32bits(float32(def)))
	putUint32(block[l.Int:], uint32(int32(def)))

	if err := c.proc.WriteMemory(node, block); err != nil {
		_ = alloc.FreeRemote(node)
		return nil, fmt.Errorf("write node: %w", err)
	}

	link := make([]byte, c.width)
	process.PutPointer(link, c.width, node)
	if err := c.proc.WriteMemory(c.head, link); err != nil {
		_ = alloc.FreeRemote(node)
		return nil, fmt.Errorf("link node: %w", err)
	}

	return &memoryVar{console: c, node: node}, nil
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

type memoryVar struct {
	console *MemoryConsole
	node    process.ProcessMemoryAddress
}

// parent is where the values live; a registered variable is its own parent
func (v *memoryVar) parent() (process.ProcessMemoryAddress, error) {
	c := v.console
	p, err := process.ReadPointer(c.proc, c.width, v.node+process.ProcessMemoryAddress(c.layout.Parent))
	if err != nil {
		return 0, err
	}
	if p == 0 {
		return v.node, nil
	}
	return p, nil
}

func (v *memoryVar) Value() (string, error) {
	c := v.console
	p, err := v.parent()
	if err != nil {
		return "", err
	}

	f, err := process.Read[float32](c.proc, p+process.ProcessMemoryAddress(c.layout.Float))
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(float64(f), 'f', -1, 32), nil
}

func (v *memoryVar) SetValue(s string) error {
	c := v.console
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
	if err != nil {
		return fmt.Errorf("value %q is not numeric: %w", s, err)
	}

	p, err := v.parent()
	if err != nil {
		return err
	}

	if err := process.Write(c.proc, p+process.ProcessMemoryAddress(c.layout.Float), float32(f)); err != nil {
		return err
	}
	return process.Write(c.proc, p+process.ProcessMemoryAddress(c.layout.Int), int32(f))
}
