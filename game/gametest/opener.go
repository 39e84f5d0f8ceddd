package gametest

import (
	"fmt"
	"strings"
	"sync"

	"splitwatch/process"
)

// Opener hands out registered processes by name
type Opener struct {
	mu    sync.Mutex
	procs map[string]process.Process
	opens int
}

var _ process.ProcessOpener = (*Opener)(nil)

func NewOpener() *Opener {
	return &Opener{procs: make(map[string]process.Process)}
}

func (o *Opener) Put(name string, proc process.Process) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.procs[strings.ToLower(name)] = proc
}

func (o *Opener) Remove(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.procs, strings.ToLower(name))
}

// Opens counts successful opens
func (o *Opener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

func (o *Opener) OpenProcessByName(name string) (process.Process, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	proc, ok := o.procs[strings.ToLower(name)]
	if !ok || !proc.IsRunning() {
		return nil, fmt.Errorf("%w: %s", process.ErrNoProcess, name)
	}
	o.opens++
	return proc, nil
}

func (o *Opener) OpenFirstProcess(names []string) (process.Process, error) {
	return process.OpenFirst(o.OpenProcessByName, names)
}
