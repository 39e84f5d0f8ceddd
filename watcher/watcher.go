// Package watcher keeps the previous and current value of something in the
// target so callers can detect edges between two polls.
package watcher

import (
	"errors"
	"fmt"

	"splitwatch/process"
)

var ErrReadFailed = errors.New("watcher read failed")

// MemoryWatcher polls a T at a fixed address or at the end of a pointer path.
//
// After the first successful Update, Old == Current. After every later one,
// Old holds what the previous successful Update read.
type MemoryWatcher[T comparable] struct {
	Current T
	Old     T

	base    process.ProcessMemoryAddress
	offsets []process.ProcessMemorySize
	width   process.PointerWidth
	primed  bool
}

// New binds a watcher with 32-bit pointers; offsets form a pointer path from addr
func New[T comparable](addr process.ProcessMemoryAddress, offsets ...process.ProcessMemorySize) *MemoryWatcher[T] {
	return NewWidth[T](process.Pointer32, addr, offsets...)
}

// NewWidth binds a watcher whose pointer path uses pointers of the given width
func NewWidth[T comparable](width process.PointerWidth, addr process.ProcessMemoryAddress, offsets ...process.ProcessMemorySize) *MemoryWatcher[T] {
	return &MemoryWatcher[T]{
		base:    addr,
		offsets: offsets,
		width:   width,
	}
}

// Address is the base the watcher was bound to
func (w *MemoryWatcher[T]) Address() process.ProcessMemoryAddress {
	if w == nil {
		return 0
	}
	return w.base
}

// Bound reports whether the watcher points anywhere
func (w *MemoryWatcher[T]) Bound() bool {
	return w != nil && w.base != 0
}

// Update reads a fresh value. On failure both values are kept and the error wraps ErrReadFailed.
func (w *MemoryWatcher[T]) Update(proc process.Process) error {
	if !w.Bound() {
		return fmt.Errorf("%w: watcher not bound", ErrReadFailed)
	}

	v, err := process.ReadPathWidth[T](proc, w.width, w.base, w.offsets...)
	if err != nil {
		return fmt.Errorf("%w at %s: %w", ErrReadFailed, w.base.ToString(), err)
	}

	w.store(v)
	return nil
}

func (w *MemoryWatcher[T]) store(v T) {
	if !w.primed {
		w.Old = v
		w.primed = true
	} else {
		w.Old = w.Current
	}
	w.Current = v
}

// Changed reports whether the last two polls differ
func (w *MemoryWatcher[T]) Changed() bool {
	return w.Current != w.Old
}

// Reset returns the watcher to its freshly bound state
func (w *MemoryWatcher[T]) Reset() {
	var zero T
	w.Current = zero
	w.Old = zero
	w.primed = false
}

// ValueWatcher is the same double buffer fed by values computed locally
type ValueWatcher[T comparable] struct {
	Current T
	Old     T

	primed bool
}

// Set shifts Current into Old and stores v; the first Set primes both
func (w *ValueWatcher[T]) Set(v T) {
	if !w.primed {
		w.Old = v
		w.primed = true
	} else {
		w.Old = w.Current
	}
	w.Current = v
}

func (w *ValueWatcher[T]) Changed() bool {
	return w.Current != w.Old
}

func (w *ValueWatcher[T]) Reset() {
	var zero T
	w.Current = zero
	w.Old = zero
	w.primed = false
}
