//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"unsafe"

	"splitwatch/process"

	"golang.org/x/sys/unix"
)

// vmTransfer moves len(local) bytes between this process and remote in pid
// with process_vm_readv or process_vm_writev, one iovec on each side
func vmTransfer(trap uintptr, pid process.ProcessID, local []byte, remote process.ProcessMemoryAddress) (int, error) {
	localIov := unix.Iovec{Base: &local[0]}
	localIov.SetLen(len(local))
	remoteIov := unix.RemoteIovec{Base: uintptr(remote), Len: len(local)}

	n, _, errno := unix.Syscall6(trap,
		uintptr(pid),
		uintptr(unsafe.Pointer(&localIov)), 1,
		uintptr(unsafe.Pointer(&remoteIov)), 1,
		0)
	if errno != 0 {
		return 0, mapErrno(errno)
	}
	return int(n), nil
}

// mapErrno turns syscall failures into the package sentinels
func mapErrno(err error) error {
	switch {
	case errors.Is(err, unix.ESRCH):
		return fmt.Errorf("%w: %v", process.ErrProcessExited, err)
	case errors.Is(err, unix.EFAULT):
		return fmt.Errorf("%w: %v", process.ErrAddressNotMapped, err)
	default:
		return err
	}
}

// ReadMemory reads size bytes at addr. The memory map is not consulted: the
// heap moves between polls and the kernel reports unmapped ranges itself.
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	pid := p.GetPID()
	if pid == 0 {
		return nil, process.ErrProcessNotOpen
	}
	if size == 0 {
		return []byte{}, nil
	}
	if addr == 0 {
		return nil, process.ErrAddressNotMapped
	}

	buf := make([]byte, size)
	n, err := vmTransfer(unix.SYS_PROCESS_VM_READV, pid, buf, addr)
	if err != nil {
		return nil, fmt.Errorf("read %d bytes at %s: %w", size, addr.ToString(), err)
	}
	if n != len(buf) {
		return nil, fmt.Errorf("read at %s: %w: got %d of %d bytes", addr.ToString(), process.ErrAddressNotMapped, n, size)
	}
	return buf, nil
}

// WriteMemory writes data at addr. Only writable mappings accept it; code
// pages are never patched.
func (p *LinuxProcess) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	pid := p.GetPID()
	if pid == 0 {
		return process.ErrProcessNotOpen
	}
	if len(data) == 0 {
		return nil
	}

	buf := append([]byte(nil), data...)
	n, err := vmTransfer(unix.SYS_PROCESS_VM_WRITEV, pid, buf, addr)
	if err != nil {
		return fmt.Errorf("write %d bytes at %s: %w", len(data), addr.ToString(), err)
	}
	if n != len(buf) {
		return fmt.Errorf("write at %s: only %d of %d bytes", addr.ToString(), n, len(data))
	}
	return nil
}
