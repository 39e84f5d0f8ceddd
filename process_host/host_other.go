//go:build !linux && !windows

package process_host

import (
	"errors"
	"runtime"

	"splitwatch/process"
)

// ErrUnsupported is returned by every helper call on platforms without a backend
var ErrUnsupported = errors.New("process access is not supported on " + runtime.GOOS)

type unsupported struct{}

// NewHelper returns a helper whose every open fails with ErrUnsupported
func NewHelper() process.ProcessHelper {
	return unsupported{}
}

func (unsupported) New() process.Process { return nil }

func (unsupported) NewWithPID(process.ProcessID) (process.Process, error) {
	return nil, ErrUnsupported
}

func (unsupported) OpenProcessByName(string) (process.Process, error) {
	return nil, ErrUnsupported
}

func (unsupported) OpenFirstProcess([]string) (process.Process, error) {
	return nil, ErrUnsupported
}
