package process_blob

import (
	"errors"
	"testing"
	"time"

	"splitwatch/process"
)

func TestReadWriteAcrossRegions(t *testing.T) {
	p := NewProcessDump(42)
	p.AddRegion(0x2000, make([]byte, 0x10))
	p.AddRegion(0x1000, make([]byte, 0x10))

	if err := process.Write[uint32](p, 0x1004, 0xdeadbeef); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := process.Read[uint32](p, 0x1004)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != 0xdeadbeef {
		t.Fatalf("read = %#x, want 0xdeadbeef", got)
	}

	if _, err := p.ReadMemory(0x100e, 4); !errors.Is(err, process.ErrAddressNotMapped) {
		t.Fatalf("read past region end: err = %v, want ErrAddressNotMapped", err)
	}
	if _, err := p.ReadMemory(0x3000, 1); !errors.Is(err, process.ErrAddressNotMapped) {
		t.Fatalf("read unmapped: err = %v", err)
	}
}

func TestExitedProcessRefusesAccess(t *testing.T) {
	p := NewProcessDump(42)
	p.AddRegion(0x1000, make([]byte, 8))
	p.SetRunning(false)

	if _, err := p.ReadMemory(0x1000, 4); !errors.Is(err, process.ErrProcessExited) {
		t.Fatalf("err = %v, want ErrProcessExited", err)
	}
	if p.IsRunning() {
		t.Fatalf("IsRunning = true after SetRunning(false)")
	}
}

func TestRemoteThreadRunsRegisteredFunction(t *testing.T) {
	p := NewProcessDump(42)
	p.RegisterFunction(0x401000, func(p *ProcessDump, arg process.ProcessMemoryAddress) uint32 {
		s, _ := process.ReadNTS(p, arg, 32)
		return uint32(len(s))
	})

	buf, err := p.AllocRemote(16)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if err := p.WriteMemory(buf, []byte("hello\x00")); err != nil {
		t.Fatalf("write: %v", err)
	}

	code, err := p.RunRemoteThread(0x401000, buf, time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if code != 5 {
		t.Fatalf("exit code = %d, want 5", code)
	}

	if err := p.FreeRemote(buf); err != nil {
		t.Fatalf("free: %v", err)
	}
	if _, err := p.ReadMemory(buf, 1); err == nil {
		t.Fatalf("read after free succeeded")
	}

	if _, err := p.RunRemoteThread(0x402000, 0, time.Second); err == nil {
		t.Fatalf("thread at unknown address succeeded")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	p := NewProcessDump(7)
	p.Name = "hl2.exe"
	p.AddModule("server.dll", 0x10000000, []byte{1, 2, 3, 4})

	if err := p.Save(dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := NewProcessDump(0)
	if err := loaded.Load(dir); err != nil {
		t.Fatalf("load: %v", err)
	}

	mods, err := loaded.Modules()
	if err != nil || len(mods) != 1 || mods[0].Name != "server.dll" || mods[0].Size != 4 {
		t.Fatalf("modules = %+v, %v", mods, err)
	}

	b, err := loaded.ReadMemory(0x10000002, 2)
	if err != nil || b[0] != 3 || b[1] != 4 {
		t.Fatalf("read = %v, %v", b, err)
	}
}
