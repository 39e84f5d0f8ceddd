// Package remote_ops calls functions that already exist inside the target.
package remote_ops

import (
	"errors"
	"fmt"
	"time"

	"splitwatch/process"
	"splitwatch/sigscan"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

var (
	ErrFunctionNotFound = errors.New("remote function not found")
	ErrUnsupported      = errors.New("remote calls not supported for this process")
	ErrCallFailed       = errors.New("remote call failed")
)

const (
	DefaultTimeout = 2 * time.Second

	// calls slower than this are logged
	slowCall = 5 * time.Millisecond
)

// Handler runs one call at a time on the polling goroutine.
// A call that has been issued always runs to completion.
type Handler struct {
	proc    process.Process
	timeout time.Duration
	log     *logger.Logger
}

func NewHandler(proc process.Process, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Handler{
		proc:    proc,
		timeout: timeout,
		log:     logger.NewLogger(coloransi.Color(coloransi.ColorLimeGreen, coloransi.ColorOrange, fmt.Sprintf("remote-%d", proc.GetPID()))),
	}
}

func (h *Handler) executor(fn process.ProcessMemoryAddress) (process.RemoteExecutor, error) {
	if fn == sigscan.NotFound {
		return nil, ErrFunctionNotFound
	}
	exec, ok := h.proc.(process.RemoteExecutor)
	if !ok {
		return nil, ErrUnsupported
	}
	return exec, nil
}

// CallFunction runs fn(arg) and returns the value the function returned
func (h *Handler) CallFunction(fn, arg process.ProcessMemoryAddress) (uint32, error) {
	exec, err := h.executor(fn)
	if err != nil {
		return 0, err
	}
	return h.run(exec, fn, arg)
}

// CallFunctionString copies s into a scratch buffer owned by this call and runs fn(buffer).
// If the thread outlives the timeout the buffer is left allocated, since the
// thread may still read it.
func (h *Handler) CallFunctionString(s string, fn process.ProcessMemoryAddress) (uint32, error) {
	exec, err := h.executor(fn)
	if err != nil {
		return 0, err
	}

	buf := append([]byte(s), 0)
	arg, err := exec.AllocRemote(process.ProcessMemorySize(len(buf)))
	if err != nil {
		return 0, fmt.Errorf("%w: alloc: %w", ErrCallFailed, err)
	}

	if err := h.proc.WriteMemory(arg, buf); err != nil {
		h.free(exec, arg)
		return 0, fmt.Errorf("%w: write argument: %w", ErrCallFailed, err)
	}

	ret, err := h.run(exec, fn, arg)
	if errors.Is(err, process.ErrRemoteStillRunning) {
		h.log.Warn(fmt.Sprintf("leaking %d byte argument at %s: call to %s is still running", len(buf), arg.ToString(), fn.ToString()))
		return 0, err
	}
	h.free(exec, arg)
	return ret, err
}

func (h *Handler) free(exec process.RemoteExecutor, arg process.ProcessMemoryAddress) {
	if err := exec.FreeRemote(arg); err != nil {
		h.log.Warn("failed to free remote buffer: ", err)
	}
}

func (h *Handler) run(exec process.RemoteExecutor, fn, arg process.ProcessMemoryAddress) (uint32, error) {
	start := time.Now()
	ret, err := exec.RunRemoteThread(fn, arg, h.timeout)
	elapsed := time.Since(start)

	if elapsed > slowCall {
		h.log.Warn(fmt.Sprintf("remote call to %s took %s", fn.ToString(), elapsed))
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrCallFailed, fn.ToString(), err)
	}

	h.log.Debugln("remote call", fn.ToString(), "returned", ret)
	return ret, nil
}
