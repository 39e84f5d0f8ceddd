//go:build windows

package process_windows

import "splitwatch/process"

// WindowsProcessHelper opens processes found by its Finder
type WindowsProcessHelper struct {
	Finder process.ProcessFinder
}

func NewHelper() process.ProcessHelper {
	return &WindowsProcessHelper{Finder: NewProcessFinder()}
}

func (h *WindowsProcessHelper) New() process.Process {
	return New()
}

func (h *WindowsProcessHelper) NewWithPID(pid process.ProcessID) (process.Process, error) {
	return NewWithPID(pid)
}

func (h *WindowsProcessHelper) OpenProcessByName(name string) (process.Process, error) {
	return process.OpenByFinder(h.Finder, NewWithPID, name)
}

func (h *WindowsProcessHelper) OpenFirstProcess(names []string) (process.Process, error) {
	return process.OpenFirst(h.OpenProcessByName, names)
}
