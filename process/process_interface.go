package process

import "time"

// Process is the interface that defines operations for interacting with a system process
type Process interface {
	// Open opens a process with the given PID for memory operations
	Open(pid ProcessID) error

	// Close closes the process and releases resources
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	// IsRunning reports whether the process still exists
	IsRunning() bool

	// Modules lists the images currently mapped into the process
	Modules() ([]Module, error)

	// ReadMemory reads memory from the process at the specified address
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)

	// WriteMemory writes data to the process memory at the specified address
	WriteMemory(addr ProcessMemoryAddress, data []byte) error
}

// RemoteAllocator reserves scratch memory inside the target
type RemoteAllocator interface {
	// AllocRemote commits size bytes of read/write memory in the target
	AllocRemote(size ProcessMemorySize) (ProcessMemoryAddress, error)

	// FreeRemote releases memory obtained from AllocRemote
	FreeRemote(addr ProcessMemoryAddress) error
}

// RemoteExecutor runs code that already exists inside the target
type RemoteExecutor interface {
	RemoteAllocator

	// RunRemoteThread starts a thread at start with a single argument and
	// waits up to timeout for it to return, yielding its exit code
	RunRemoteThread(start, arg ProcessMemoryAddress, timeout time.Duration) (uint32, error)
}
