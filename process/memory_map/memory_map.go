package memory_map

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"splitwatch/process"
)

// MemoryMapItem represents a memory region in a process's address space
type MemoryMapItem struct {
	Address uint64 // The starting address of the memory region
	Size    uint   // The size of the memory region in bytes
	Perms   string // Permissions (e.g., "r-xp" for read, execute, private)
	Offset  uint64 // Offset into the mapped file
	Path    string // Backing file, empty for anonymous mappings
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s, Path: %s", mmItem.Address, mmItem.Size, mmItem.Perms, mmItem.Path)
}

func (mmItem MemoryMapItem) IsReadable() bool {
	return len(mmItem.Perms) > 0 && mmItem.Perms[0] == 'r'
}

func (mmItem MemoryMapItem) IsWritable() bool {
	return len(mmItem.Perms) > 1 && mmItem.Perms[1] == 'w'
}

func (mmItem MemoryMapItem) IsExecutable() bool {
	return len(mmItem.Perms) > 2 && mmItem.Perms[2] == 'x'
}

// Parse reads lines in the /proc/[pid]/maps format, e.g.
// "00400000-0040b000 r-xp 00000000 08:01 1234 /usr/bin/game"
func Parse(r io.Reader) ([]MemoryMapItem, error) {
	var memoryMap []MemoryMapItem
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		addrRange := strings.Split(fields[0], "-")
		if len(addrRange) != 2 {
			continue
		}

		startAddr, err := strconv.ParseUint(addrRange[0], 16, 64)
		if err != nil {
			continue
		}

		endAddr, err := strconv.ParseUint(addrRange[1], 16, 64)
		if err != nil || endAddr < startAddr {
			continue
		}

		item := MemoryMapItem{
			Address: startAddr,
			Size:    uint(endAddr - startAddr),
			Perms:   fields[1],
		}
		if len(fields) > 2 {
			item.Offset, _ = strconv.ParseUint(fields[2], 16, 64)
		}
		if len(fields) > 5 {
			// paths may contain spaces
			item.Path = strings.Join(fields[5:], " ")
		}

		memoryMap = append(memoryMap, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// Modules expects regions in address order
	sort.Slice(memoryMap, func(i, j int) bool {
		return memoryMap[i].Address < memoryMap[j].Address
	})

	return memoryMap, nil
}

// Modules folds file-backed mappings into one module per backing file.
// The module spans from its lowest to its highest mapped address.
func Modules(memoryMap []MemoryMapItem) []process.Module {
	index := make(map[string]int)
	var modules []process.Module

	for _, item := range memoryMap {
		if !strings.HasPrefix(item.Path, "/") {
			// anonymous, [heap], [stack], [vdso]...
			continue
		}
		end := process.ProcessMemoryAddress(item.Address + uint64(item.Size))

		i, ok := index[item.Path]
		if !ok {
			index[item.Path] = len(modules)
			modules = append(modules, process.Module{
				Name: filepath.Base(item.Path),
				Path: item.Path,
				Base: process.ProcessMemoryAddress(item.Address),
				Size: process.ProcessMemorySize(item.Size),
			})
			continue
		}

		m := &modules[i]
		if base := process.ProcessMemoryAddress(item.Address); base < m.Base {
			m.Size += process.ProcessMemorySize(m.Base - base)
			m.Base = base
		}
		if end > m.End() {
			m.Size = process.ProcessMemorySize(end - m.Base)
		}
	}

	return modules
}
