//go:build linux

package memory_map

import (
	"fmt"
	"os"

	"splitwatch/process"
)

// Read parses /proc/<pid>/maps. A missing file means the process is gone.
func Read(pid process.ProcessID) ([]MemoryMapItem, error) {
	file, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: pid %d", process.ErrProcessExited, pid)
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}
