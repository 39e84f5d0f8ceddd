package drivers

import (
	"errors"
	"reflect"
	"testing"

	"splitwatch/game"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	if got, want := r.IDs(), []string{"bms", "hl2", "prospekt"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("IDs = %v, want %v", got, want)
	}

	for _, id := range r.IDs() {
		d, err := r.New(id)
		if err != nil {
			t.Fatalf("New(%q): %v", id, err)
		}
		if d.Info().ID != id {
			t.Fatalf("New(%q) built %q", id, d.Info().ID)
		}
		if len(d.Info().ProcessNames) == 0 {
			t.Fatalf("%s has no process names", id)
		}
	}

	a, _ := r.New("HL2")
	b, _ := r.New("hl2")
	if a == b {
		t.Fatalf("New returned a shared instance")
	}
}

func TestRegistryErrors(t *testing.T) {
	r := NewRegistry()
	f := func() game.Detector { return nil }

	if err := r.Register("x", f); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("X", f); !errors.Is(err, ErrDuplicateDriver) {
		t.Fatalf("duplicate err = %v", err)
	}
	if _, err := r.New("y"); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("unknown err = %v", err)
	}
}
