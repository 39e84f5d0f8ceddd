// Package process provides interfaces and types for reading, writing and
// executing code inside a foreign process.
package process

import "errors"

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrProcessExited is returned when the target went away between two operations.
	ErrProcessExited = errors.New("process exited")

	ErrInvalidPointer = errors.New("invalid pointer read")

	// ErrNoProcess is returned when no running process matches a name.
	ErrNoProcess = errors.New("no matching process")

	// ErrModuleNotFound is returned by ModuleTable.Get style lookups that must fail loudly.
	ErrModuleNotFound = errors.New("module not found")

	// ErrRemoteStillRunning is returned when a remote thread outlives its
	// timeout. The thread keeps running and still owns its argument.
	ErrRemoteStillRunning = errors.New("remote thread still running")

	// ErrRemoteUnsupported is returned when the platform backend cannot run code in the target.
	ErrRemoteUnsupported = errors.New("remote execution not supported")
)
