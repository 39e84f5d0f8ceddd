package process

import (
	"fmt"
	"strings"
)

// Module is an image mapped into a process: the executable or one of its libraries.
type Module struct {
	Name string               // File name, e.g. "server.dll"
	Path string               // Full path when the platform reports it
	Base ProcessMemoryAddress // Load address
	Size ProcessMemorySize    // Size of the mapped image
}

// End returns the first address past the module.
func (m Module) End() ProcessMemoryAddress {
	return m.Base + ProcessMemoryAddress(m.Size)
}

// Contains reports whether addr lies inside the module image.
func (m Module) Contains(addr ProcessMemoryAddress) bool {
	return addr >= m.Base && addr < m.End()
}

func (m Module) String() string {
	return fmt.Sprintf("%s@%s+0x%X", m.Name, m.Base.ToString(), uint(m.Size))
}

// ModuleTable indexes modules by lower-cased file name.
// The table is built once per attach and never mutated afterwards.
type ModuleTable struct {
	byName map[string]Module
	list   []Module
}

// NewModuleTable builds a table, keeping the first module seen for a duplicated name.
func NewModuleTable(modules []Module) ModuleTable {
	t := ModuleTable{byName: make(map[string]Module, len(modules))}
	for _, m := range modules {
		key := strings.ToLower(m.Name)
		if _, ok := t.byName[key]; ok {
			continue
		}
		t.byName[key] = m
		t.list = append(t.list, m)
	}
	return t
}

// Get returns the module with the given name, case-insensitively.
func (t ModuleTable) Get(name string) (Module, bool) {
	m, ok := t.byName[strings.ToLower(name)]
	return m, ok
}

// All returns the modules in discovery order.
func (t ModuleTable) All() []Module {
	out := make([]Module, len(t.list))
	copy(out, t.list)
	return out
}

func (t ModuleTable) Len() int {
	return len(t.list)
}
