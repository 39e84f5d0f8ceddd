//go:build linux

package process_linux

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"splitwatch/process"
)

// LinuxProcessFinder implements the process.ProcessFinder interface
type LinuxProcessFinder struct{}

// NewProcessFinder creates a new LinuxProcessFinder
func NewProcessFinder() process.ProcessFinder {
	return &LinuxProcessFinder{}
}

// FindProcessByPID finds a process by its PID
func (f *LinuxProcessFinder) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	procPath := fmt.Sprintf("/proc/%d", pid)

	if _, err := os.Stat(procPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("process with PID %d does not exist", pid)
	}

	return getProcessInfo(pid)
}

// FindProcessByName finds processes whose comm, exe basename or argv[0] basename
// equals name. Games running under Wine only match through argv[0].
func (f *LinuxProcessFinder) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	all, err := f.FindAllProcesses()
	if err != nil {
		return nil, err
	}

	var results []process.ProcessInfo
	for _, info := range all {
		if matchesName(info, name) {
			results = append(results, info)
		}
	}
	return results, nil
}

// FindAllProcesses returns information about all running processes
func (f *LinuxProcessFinder) FindAllProcesses() ([]process.ProcessInfo, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("failed to read /proc: %w", err)
	}

	selfPID := os.Getpid()
	var results []process.ProcessInfo

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 || pid == selfPID {
			continue
		}

		info, err := getProcessInfo(process.ProcessID(pid))
		if err != nil {
			// Process may have terminated while we were reading
			continue
		}
		results = append(results, *info)
	}

	return results, nil
}

func matchesName(info process.ProcessInfo, name string) bool {
	if strings.EqualFold(info.Name, name) {
		return true
	}
	if info.Exe != "" && strings.EqualFold(filepath.Base(info.Exe), name) {
		return true
	}
	if len(info.Cmdline) > 0 {
		// argv[0] may be a Windows path under Wine
		arg0 := strings.ReplaceAll(info.Cmdline[0], `\`, "/")
		if strings.EqualFold(filepath.Base(arg0), name) {
			return true
		}
	}
	return false
}

// Helper function to get process information
func getProcessInfo(pid process.ProcessID) (*process.ProcessInfo, error) {
	procPath := fmt.Sprintf("/proc/%d", pid)

	nameBytes, err := os.ReadFile(filepath.Join(procPath, "comm"))
	if err != nil {
		return nil, fmt.Errorf("failed to read process name: %w", err)
	}
	name := strings.TrimSpace(string(nameBytes))

	// Some processes don't have an exe (e.g., kernel threads)
	exe, _ := os.Readlink(filepath.Join(procPath, "exe"))

	cmdlineBytes, err := os.ReadFile(filepath.Join(procPath, "cmdline"))
	if err != nil {
		return nil, fmt.Errorf("failed to read process cmdline: %w", err)
	}

	var cmdline []string
	if len(cmdlineBytes) > 0 {
		cmdlineBytes = bytes.TrimSuffix(cmdlineBytes, []byte{0})
		for _, arg := range bytes.Split(cmdlineBytes, []byte{0}) {
			cmdline = append(cmdline, string(arg))
		}
	}

	var ppid process.ProcessID
	if statusBytes, err := os.ReadFile(filepath.Join(procPath, "status")); err == nil {
		for _, line := range strings.Split(string(statusBytes), "\n") {
			key, value, ok := strings.Cut(line, ":")
			if !ok || strings.TrimSpace(key) != "PPid" {
				continue
			}
			if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				ppid = process.ProcessID(v)
			}
			break
		}
	}

	return &process.ProcessInfo{
		PID:     pid,
		PPID:    ppid,
		Name:    name,
		Exe:     exe,
		Cmdline: cmdline,
	}, nil
}
