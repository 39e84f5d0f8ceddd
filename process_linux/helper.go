//go:build linux

package process_linux

import "splitwatch/process"

// LinuxProcessHelper opens processes found by its Finder
type LinuxProcessHelper struct {
	Finder process.ProcessFinder
}

func NewHelper() process.ProcessHelper {
	return &LinuxProcessHelper{Finder: NewProcessFinder()}
}

func (h *LinuxProcessHelper) New() process.Process {
	return New()
}

func (h *LinuxProcessHelper) NewWithPID(pid process.ProcessID) (process.Process, error) {
	return NewWithPID(pid)
}

func (h *LinuxProcessHelper) OpenProcessByName(name string) (process.Process, error) {
	return process.OpenByFinder(h.Finder, NewWithPID, name)
}

func (h *LinuxProcessHelper) OpenFirstProcess(names []string) (process.Process, error) {
	return process.OpenFirst(h.OpenProcessByName, names)
}
