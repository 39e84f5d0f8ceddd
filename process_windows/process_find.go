//go:build windows

package process_windows

import (
	"fmt"
	"os"
	"strings"
	"unsafe"

	"splitwatch/process"

	"golang.org/x/sys/windows"
)

// WindowsProcessFinder implements the process.ProcessFinder interface for Windows systems
type WindowsProcessFinder struct{}

// NewProcessFinder creates a new WindowsProcessFinder
func NewProcessFinder() process.ProcessFinder {
	return &WindowsProcessFinder{}
}

// FindProcessByPID finds a process by its PID
func (f *WindowsProcessFinder) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	all, err := f.FindAllProcesses()
	if err != nil {
		return nil, err
	}
	for _, info := range all {
		if info.PID == pid {
			info := info
			return &info, nil
		}
	}
	return nil, fmt.Errorf("process with PID %d does not exist", pid)
}

// FindProcessByName matches the image name, with or without the .exe suffix
func (f *WindowsProcessFinder) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	all, err := f.FindAllProcesses()
	if err != nil {
		return nil, err
	}

	want := strings.TrimSuffix(strings.ToLower(name), ".exe")
	var result []process.ProcessInfo
	for _, info := range all {
		if strings.TrimSuffix(strings.ToLower(info.Name), ".exe") == want {
			result = append(result, info)
		}
	}

	return result, nil
}

// FindAllProcesses walks a toolhelp snapshot
func (f *WindowsProcessFinder) FindAllProcesses() ([]process.ProcessInfo, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot failed: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	self := uint32(os.Getpid())

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	if err := windows.Process32First(snapshot, &entry); err != nil {
		return nil, fmt.Errorf("Process32First failed: %w", err)
	}

	var result []process.ProcessInfo
	for {
		if entry.ProcessID != self && entry.ProcessID != 0 {
			exe := windows.UTF16ToString(entry.ExeFile[:])
			result = append(result, process.ProcessInfo{
				PID:  process.ProcessID(entry.ProcessID),
				PPID: process.ProcessID(entry.ParentProcessID),
				Name: exe,
				Exe:  exe,
			})
		}
		if err := windows.Process32Next(snapshot, &entry); err != nil {
			break
		}
	}

	return result, nil
}
