package hexdump

import (
	"strings"
	"testing"

	"splitwatch/process"
	"splitwatch/process_blob"
)

func TestDumpPlain(t *testing.T) {
	data := []byte("\x55\x8b\xec\x51GAME\x00\x00\x00\x00\x10\x00\x00\x10tail")
	out := Dump(data, Options{Base: 0x1000, Plain: true})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2:\n%s", len(lines), out)
	}
	if want := "00001000  55 8b ec 51 47 41 4d 45 | 00 00 00 00 10 00 00 10  U..QGAME........"; lines[0] != want {
		t.Fatalf("line 0 = %q\nwant     %q", lines[0], want)
	}
	if !strings.HasPrefix(lines[1], "00001010  74 61 69 6c ") || !strings.HasSuffix(lines[1], " tail") {
		t.Fatalf("line 1 = %q", lines[1])
	}
	if len(lines[1]) != len(lines[0])-12 {
		t.Fatalf("short line not padded: %d vs %d", len(lines[1]), len(lines[0]))
	}
}

func TestDumpMaxLines(t *testing.T) {
	out := Dump(make([]byte, 64), Options{Plain: true, MaxLines: 2})
	if !strings.HasSuffix(out, "... 32 more bytes\n") {
		t.Fatalf("out = %q", out)
	}
}

func TestDumpAnnotatesModulePointers(t *testing.T) {
	mods := process.NewModuleTable([]process.Module{{Name: "engine.dll", Base: 0x10000000, Size: 0x1000}})
	data := []byte{0x34, 0x02, 0x00, 0x10, 0xff, 0xff, 0xff, 0xff}
	out := Dump(data, Options{Plain: true, Modules: &mods})
	if !strings.Contains(out, "engine.dll+0x234") {
		t.Fatalf("missing annotation: %q", out)
	}
}

func TestDumpHighlightColors(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	plain := Dump(data, Options{Highlight: []Span{{Start: 1, Len: 1}}})
	if !strings.Contains(plain, "\033[") {
		t.Fatalf("expected ANSI escapes: %q", plain)
	}
}

func TestAroundClampsToModule(t *testing.T) {
	dump := process_blob.NewProcessDump(7)
	image := make([]byte, 0x100)
	for i := range image {
		image[i] = byte(i)
	}
	dump.AddModule("server.dll", 0x2000, image)
	mod := process.Module{Name: "server.dll", Base: 0x2000, Size: 0x100}

	data, start, err := Around(dump, mod, 0x2008, 32, 32)
	if err != nil {
		t.Fatalf("around: %v", err)
	}
	if start != 0x2000 || len(data) != 40 || data[8] != 8 {
		t.Fatalf("start=0x%x len=%d", uint64(start), len(data))
	}

	data, start, err = Around(dump, mod, 0x20f0, 8, 64)
	if err != nil {
		t.Fatalf("around tail: %v", err)
	}
	if start != 0x20e8 || len(data) != 24 {
		t.Fatalf("tail start=0x%x len=%d", uint64(start), len(data))
	}
}
