package remote_ops

import (
	"errors"
	"math"
	"testing"
	"time"

	"splitwatch/process"
	"splitwatch/process_blob"
	"splitwatch/sigscan"
)

// readsOnly hides the executor methods of the fake
type readsOnly struct {
	process.Process
}

func TestNotFoundShortCircuits(t *testing.T) {
	proc := process_blob.NewProcessDump(1)
	h := NewHandler(proc, time.Second)

	if _, err := h.CallFunctionString("LC2XEN", sigscan.NotFound); !errors.Is(err, ErrFunctionNotFound) {
		t.Fatalf("err = %v, want ErrFunctionNotFound", err)
	}
	if _, err := h.CallFunction(sigscan.NotFound, 0); !errors.Is(err, ErrFunctionNotFound) {
		t.Fatalf("err = %v, want ErrFunctionNotFound", err)
	}

	if proc.ThreadCount() != 0 || proc.ReadCount() != 0 {
		t.Fatalf("process touched: threads=%d reads=%d", proc.ThreadCount(), proc.ReadCount())
	}
}

func TestCallFunctionString(t *testing.T) {
	proc := process_blob.NewProcessDump(1)
	var seen string
	proc.RegisterFunction(0x401000, func(p *process_blob.ProcessDump, arg process.ProcessMemoryAddress) uint32 {
		seen, _ = process.ReadNTS(p, arg, 64)
		if seen == "LC2XEN" {
			return math.MaxUint32
		}
		return 0
	})

	h := NewHandler(proc, time.Second)
	ret, err := h.CallFunctionString("LC2XEN", 0x401000)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if ret != math.MaxUint32 || seen != "LC2XEN" {
		t.Fatalf("ret = %#x seen = %q", ret, seen)
	}

	// a second call gets its own buffer
	if _, err := h.CallFunctionString("other", 0x401000); err != nil {
		t.Fatalf("call: %v", err)
	}
	if seen != "other" {
		t.Fatalf("seen = %q", seen)
	}
}

func TestFailuresAreErrors(t *testing.T) {
	proc := process_blob.NewProcessDump(1)

	h := NewHandler(readsOnly{proc}, time.Second)
	if _, err := h.CallFunction(0x401000, 0); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}

	h = NewHandler(proc, time.Second)
	if _, err := h.CallFunction(0x402000, 0); !errors.Is(err, ErrCallFailed) {
		t.Fatalf("err = %v, want ErrCallFailed", err)
	}

	proc.SetRunning(false)
	if _, err := h.CallFunctionString("x", 0x401000); !errors.Is(err, ErrCallFailed) {
		t.Fatalf("err = %v, want ErrCallFailed", err)
	}
}

func TestTimedOutCallKeepsArgument(t *testing.T) {
	proc := process_blob.NewProcessDump(1)
	seen := make(chan string, 1)
	proc.RegisterFunction(0x401000, func(p *process_blob.ProcessDump, arg process.ProcessMemoryAddress) uint32 {
		time.Sleep(100 * time.Millisecond)
		s, err := process.ReadNTS(p, arg, 64)
		if err != nil {
			s = "read failed: " + err.Error()
		}
		seen <- s
		return 1
	})

	h := NewHandler(proc, 10*time.Millisecond)
	_, err := h.CallFunctionString("LC2XEN", 0x401000)
	if !errors.Is(err, process.ErrRemoteStillRunning) || !errors.Is(err, ErrCallFailed) {
		t.Fatalf("err = %v, want ErrCallFailed wrapping ErrRemoteStillRunning", err)
	}

	select {
	case s := <-seen:
		if s != "LC2XEN" {
			t.Fatalf("slow call saw %q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("slow call never finished")
	}
}
