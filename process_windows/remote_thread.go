//go:build windows

package process_windows

import (
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"splitwatch/process"

	"golang.org/x/sys/windows"
)

var (
	modkernel32            = syscall.NewLazyDLL("kernel32.dll")
	procVirtualAllocEx     = modkernel32.NewProc("VirtualAllocEx")
	procVirtualFreeEx      = modkernel32.NewProc("VirtualFreeEx")
	procCreateRemoteThread = modkernel32.NewProc("CreateRemoteThread")
	procGetExitCodeThread  = modkernel32.NewProc("GetExitCodeThread")
)

const (
	memCommitReserve = 0x3000
	memRelease       = 0x8000
	pageReadWrite    = 0x04
)

// AllocRemote commits a read/write scratch block in the target
func (p *WindowsProcess) AllocRemote(size process.ProcessMemorySize) (process.ProcessMemoryAddress, error) {
	handle, err := p.getHandle()
	if err != nil {
		return 0, err
	}

	addr, _, callErr := procVirtualAllocEx.Call(uintptr(handle), 0, uintptr(size), memCommitReserve, pageReadWrite)
	if addr == 0 {
		return 0, fmt.Errorf("VirtualAllocEx failed: %v", callErr)
	}

	return process.ProcessMemoryAddress(addr), nil
}

func (p *WindowsProcess) FreeRemote(addr process.ProcessMemoryAddress) error {
	handle, err := p.getHandle()
	if err != nil {
		return err
	}

	ret, _, callErr := procVirtualFreeEx.Call(uintptr(handle), uintptr(addr), 0, memRelease)
	if ret == 0 {
		return fmt.Errorf("VirtualFreeEx failed: %v", callErr)
	}

	return nil
}

// RunRemoteThread calls start(arg) on a new thread in the target and returns its exit code
func (p *WindowsProcess) RunRemoteThread(start, arg process.ProcessMemoryAddress, timeout time.Duration) (uint32, error) {
	handle, err := p.getHandle()
	if err != nil {
		return 0, err
	}

	thread, _, callErr := procCreateRemoteThread.Call(
		uintptr(handle), 0, 0,
		uintptr(start),
		uintptr(arg),
		0, 0,
	)
	if thread == 0 {
		return 0, fmt.Errorf("CreateRemoteThread failed: %v", callErr)
	}
	defer windows.CloseHandle(windows.Handle(thread))

	event, err := windows.WaitForSingleObject(windows.Handle(thread), uint32(timeout.Milliseconds()))
	if err != nil {
		return 0, fmt.Errorf("wait for remote thread: %w", err)
	}
	if event == uint32(windows.WAIT_TIMEOUT) {
		return 0, fmt.Errorf("%w: not finished within %s", process.ErrRemoteStillRunning, timeout)
	}
	if event != windows.WAIT_OBJECT_0 {
		return 0, fmt.Errorf("remote thread wait returned %d", event)
	}

	var exitCode uint32
	ret, _, callErr := procGetExitCodeThread.Call(thread, uintptr(unsafe.Pointer(&exitCode)))
	if ret == 0 {
		return 0, fmt.Errorf("GetExitCodeThread failed: %v", callErr)
	}

	return exitCode, nil
}
