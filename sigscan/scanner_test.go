package sigscan

import (
	"encoding/binary"
	"errors"
	"testing"

	"splitwatch/process"
	"splitwatch/process_blob"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "55 8B EC", want: "55 8B EC"},
		{in: "55,8b,??,ec", want: "55 8B ?? EC"},
		{in: "55 ? FF", want: "55 ?? FF"},
		{in: "", wantErr: true},
		{in: "55 GG", wantErr: true},
		{in: "100", wantErr: true},
	}

	for _, tt := range tests {
		p, err := Parse(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrBadPattern) {
				t.Fatalf("Parse(%q) err = %v, want ErrBadPattern", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.in, err)
		}
		if p.String() != tt.want {
			t.Fatalf("Parse(%q) = %q, want %q", tt.in, p.String(), tt.want)
		}
	}
}

func TestFindPattern(t *testing.T) {
	data := []byte{0x90, 0x55, 0x8B, 0xEC, 0x51, 0xFF, 0x75, 0x08, 0x8D, 0x45, 0xFC, 0xC3}

	tests := []struct {
		name    string
		pattern string
		want    int
	}{
		{"single match with wildcards", "55 8B EC 51 FF 75 ?? 8D 45 ??", 1},
		{"no match", "55 8B EC 52", -1},
		{"wildcard at start", "?? 45 FC", 8},
		{"pattern longer than data", "90 55 8B EC 51 FF 75 08 8D 45 FC C3 00", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindPattern(data, MustParse(tt.pattern)); got != tt.want {
				t.Fatalf("FindPattern = %d, want %d", got, tt.want)
			}
		})
	}
}

func newModuleProcess(image []byte) (*process_blob.ProcessDump, process.Module) {
	p := process_blob.NewProcessDump(1)
	p.AddModule("server.dll", 0x10000000, image)
	mods, _ := p.Modules()
	return p, mods[0]
}

func TestScannerScan(t *testing.T) {
	image := make([]byte, 0x3000)
	copy(image[0x1200:], []byte{0x55, 0x8B, 0xEC, 0x51, 0xFF, 0x75, 0x0C, 0x8D, 0x45, 0xF8})

	proc, mod := newModuleProcess(image)
	s := NewScanner(proc, mod)

	addr := s.Scan(NewTarget(0, "55 8B EC 51 FF 75 ?? 8D 45 ??"))
	if addr != 0x10001200 {
		t.Fatalf("Scan = %s, want 0x10001200", addr.ToString())
	}

	if got := s.Scan(NewTarget(3, "55 8B EC 51")); got != 0x10001203 {
		t.Fatalf("Scan with offset = %s", got.ToString())
	}

	if got := s.Scan(NewTarget(0, "DE AD BE EF")); got != NotFound {
		t.Fatalf("Scan for absent pattern = %s, want NotFound", got.ToString())
	}
}

func TestScannerReadsLiveBytesOnce(t *testing.T) {
	image := make([]byte, 0x100)
	proc, mod := newModuleProcess(image)
	s := NewScanner(proc, mod)

	if err := proc.WriteMemory(0x10000010, []byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := s.Scan(NewTarget(0, "AA BB")); got != 0x10000010 {
		t.Fatalf("Scan = %s, want bytes written before the first scan", got.ToString())
	}

	reads := proc.ReadCount()
	s.Scan(NewTarget(0, "AA BB"))
	if proc.ReadCount() != reads {
		t.Fatalf("second scan re-read the module")
	}
}

func TestScannerInvalidateRereads(t *testing.T) {
	image := make([]byte, 0x100)
	proc, mod := newModuleProcess(image)
	s := NewScanner(proc, mod)

	if got := s.Scan(NewTarget(0, "AA BB")); got != NotFound {
		t.Fatalf("Scan = %s before the write", got.ToString())
	}
	if err := proc.WriteMemory(0x10000020, []byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := s.Scan(NewTarget(0, "AA BB")); got != NotFound {
		t.Fatalf("snapshot saw a later write at %s", got.ToString())
	}

	reads := proc.ReadCount()
	s.Invalidate()
	if got := s.Scan(NewTarget(0, "AA BB")); got != 0x10000020 {
		t.Fatalf("Scan after Invalidate = %s", got.ToString())
	}
	if proc.ReadCount() == reads {
		t.Fatalf("Invalidate did not force a re-read")
	}
}

func TestScannerOperandHelpers(t *testing.T) {
	image := make([]byte, 0x100)
	// mov eax, [0x10000080]
	copy(image[0x20:], []byte{0xA1, 0x80, 0x00, 0x00, 0x10})
	// lea rax, [rip+0x10]
	copy(image[0x40:], []byte{0x48, 0x8D, 0x05})
	binary.LittleEndian.PutUint32(image[0x43:], 0x10)

	proc, mod := newModuleProcess(image)
	s := NewScanner(proc, mod)

	abs := Target{Pattern: MustParse("A1 ?? ?? ?? ??"), Offset: 1, OnFound: Absolute32}
	if got := s.Scan(abs); got != 0x10000080 {
		t.Fatalf("Absolute32 = %s", got.ToString())
	}

	rip := Target{Pattern: MustParse("48 8D 05"), Offset: 3, OnFound: RIPRelative32}
	if got := s.Scan(rip); got != 0x10000043+4+0x10 {
		t.Fatalf("RIPRelative32 = %s", got.ToString())
	}
}

func TestScanAll(t *testing.T) {
	image := []byte{0xCC, 0x01, 0xCC, 0x02, 0xCC, 0x03}
	proc, mod := newModuleProcess(image)
	s := NewScanner(proc, mod)

	got := s.ScanAll(NewTarget(0, "CC ??"))
	if len(got) != 3 || got[2] != 0x10000004 {
		t.Fatalf("ScanAll = %v", got)
	}
}

func TestFindStringAndPointer(t *testing.T) {
	image := make([]byte, 0x200)
	copy(image[0x10:], "xm_iHealth\x00")
	copy(image[0x30:], "m_iHealth\x00")
	binary.LittleEndian.PutUint32(image[0x100:], 0x10000030)

	proc, mod := newModuleProcess(image)
	s := NewScanner(proc, mod)

	str := s.FindString("m_iHealth")
	if str != 0x10000030 {
		t.Fatalf("FindString = %s, want the standalone copy", str.ToString())
	}

	refs := s.FindPointerTo(str, process.Pointer32)
	if len(refs) != 1 || refs[0] != 0x10000100 {
		t.Fatalf("FindPointerTo = %v", refs)
	}

	if s.FindString("m_iArmor") != NotFound {
		t.Fatalf("FindString found a missing string")
	}
}

func TestScannerUnreadableModule(t *testing.T) {
	proc := process_blob.NewProcessDump(1)
	s := NewScanner(proc, process.Module{Name: "ghost.dll", Base: 0x5000000, Size: 0x2000})

	if got := s.Scan(NewTarget(0, "55")); got != NotFound {
		t.Fatalf("Scan of unmapped module = %s, want NotFound", got.ToString())
	}
}
