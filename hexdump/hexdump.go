package hexdump

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"splitwatch/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// Span marks bytes to highlight, relative to the start of the dumped data
type Span struct {
	Start int
	Len   int
}

func (s Span) contains(i int) bool {
	return i >= s.Start && i < s.Start+s.Len
}

// Options controls the dump layout
type Options struct {
	// Base is the address of data[0]
	Base uint64

	// BytesPerLine defaults to 16
	BytesPerLine int

	// Highlight spans are drawn in yellow
	Highlight []Span

	// Modules, when set, annotates each little-endian dword that points
	// into a module as name+offset
	Modules *process.ModuleTable

	// Plain disables ANSI colors
	Plain bool

	// MaxLines stops the dump early (0 for no limit)
	MaxLines int
}

// Dump renders data with the given options
func Dump(data []byte, opts Options) string {
	var sb strings.Builder
	Write(&sb, data, opts)
	return sb.String()
}

// Write renders data to w
//
// 1000f3a0  55 8b ec 51 ff 75 08 8d | 45 fc 50 e8 00 00 00 00  U..Q.u.. E.P.....  engine.dll+0x2a10
func Write(w io.Writer, data []byte, opts Options) {
	per := opts.BytesPerLine
	if per <= 0 {
		per = 16
	}

	lines := 0
	for off := 0; off < len(data); off += per {
		if opts.MaxLines > 0 && lines >= opts.MaxLines {
			fmt.Fprintf(w, "... %d more bytes\n", len(data)-off)
			return
		}
		end := min(off+per, len(data))
		writeLine(w, data, off, end, per, opts)
		lines++
	}
}

func writeLine(w io.Writer, data []byte, off, end, per int, opts Options) {
	paint := func(fg coloransi.ColorCode, s string) string {
		if opts.Plain {
			return s
		}
		return coloransi.Foreground(fg, s)
	}

	fmt.Fprint(w, paint(coloransi.Cyan, fmt.Sprintf("%08x", opts.Base+uint64(off))), "  ")

	for i := off; i < off+per; i++ {
		if i > off && (i-off)%8 == 0 && per >= 16 {
			fmt.Fprint(w, "| ")
		}
		if i >= end {
			fmt.Fprint(w, "   ")
			continue
		}
		fmt.Fprint(w, byteColor(data[i], highlighted(opts.Highlight, i), paint, fmt.Sprintf("%02x", data[i])), " ")
	}

	fmt.Fprint(w, " ")
	for i := off; i < end; i++ {
		b := data[i]
		ch := "."
		if b >= 0x20 && b < 0x7f {
			ch = string(rune(b))
		}
		fmt.Fprint(w, byteColor(b, highlighted(opts.Highlight, i), paint, ch))
	}

	if opts.Modules != nil {
		var notes []string
		for i := off; i+4 <= end; i += 4 {
			v := process.ProcessMemoryAddress(binary.LittleEndian.Uint32(data[i:]))
			if name, ok := moduleOffset(opts.Modules, v); ok {
				notes = append(notes, name)
			}
		}
		if len(notes) > 0 {
			fmt.Fprint(w, "  ", paint(coloransi.Magenta, strings.Join(notes, " ")))
		}
	}
	fmt.Fprintln(w)
}

func byteColor(b byte, hi bool, paint func(coloransi.ColorCode, string) string, s string) string {
	switch {
	case hi:
		return paint(coloransi.Yellow, s)
	case b == 0:
		return paint(coloransi.BrightBlack, s)
	case b < 0x20 || b >= 0x7f:
		return paint(coloransi.Red, s)
	}
	return paint(coloransi.Green, s)
}

func highlighted(spans []Span, i int) bool {
	for _, s := range spans {
		if s.contains(i) {
			return true
		}
	}
	return false
}

func moduleOffset(mods *process.ModuleTable, addr process.ProcessMemoryAddress) (string, bool) {
	if addr == 0 {
		return "", false
	}
	for _, m := range mods.All() {
		if m.Contains(addr) {
			return fmt.Sprintf("%s+0x%x", m.Name, uint64(addr-m.Base)), true
		}
	}
	return "", false
}

// Around reads up to before bytes ahead of addr and after bytes from addr on,
// clamped to module when it contains addr. It returns the bytes and the
// address of the first one.
func Around(proc process.Process, module process.Module, addr process.ProcessMemoryAddress, before, after int) ([]byte, process.ProcessMemoryAddress, error) {
	start := addr - min(addr, process.ProcessMemoryAddress(before))
	end := addr + process.ProcessMemoryAddress(after)
	if module.Contains(addr) {
		start = max(start, module.Base)
		end = min(end, module.End())
	}
	data, err := proc.ReadMemory(start, process.ProcessMemorySize(end-start))
	if err != nil {
		return nil, 0, fmt.Errorf("read 0x%x: %w", uint64(start), err)
	}
	return data, start, nil
}
