// Package drivers keeps the table of game drivers by ID.
package drivers

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"splitwatch/drivers/blackmesa"
	"splitwatch/drivers/hl2"
	"splitwatch/drivers/prospekt"
	"splitwatch/game"
)

var (
	ErrUnknownDriver   = errors.New("unknown driver")
	ErrDuplicateDriver = errors.New("driver already registered")
)

// Factory builds a fresh detector; every attach run gets its own instance
type Factory func() game.Detector

type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default holds every driver shipped with splitwatch
func Default() *Registry {
	r := NewRegistry()
	r.MustRegister(blackmesa.ID, func() game.Detector { return blackmesa.New() })
	r.MustRegister(hl2.ID, func() game.Detector { return hl2.New() })
	r.MustRegister(prospekt.ID, func() game.Detector { return prospekt.New() })
	return r
}

func (r *Registry) Register(id string, f Factory) error {
	key := strings.ToLower(id)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateDriver, id)
	}
	r.factories[key] = f
	return nil
}

func (r *Registry) MustRegister(id string, f Factory) {
	if err := r.Register(id, f); err != nil {
		panic(err)
	}
}

// New builds the driver registered under id, case-insensitively
func (r *Registry) New(id string) (game.Detector, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(id)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownDriver, id, strings.Join(r.IDs(), ", "))
	}
	return f(), nil
}

// IDs lists the registered drivers in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
