package process

import (
	"errors"
	"strings"
	"testing"
)

type stubFinder map[string][]ProcessInfo

func (f stubFinder) FindProcessByPID(pid ProcessID) (*ProcessInfo, error) { return nil, ErrNoProcess }
func (f stubFinder) FindAllProcesses() ([]ProcessInfo, error)           { return nil, nil }
func (f stubFinder) FindProcessByName(name string) ([]ProcessInfo, error) {
	return f[name], nil
}

// Process is only used as a token here; nothing calls it
type token struct{ Process }

func TestOpenFirstOrder(t *testing.T) {
	finder := stubFinder{
		"bms.exe": {{PID: 20, Name: "bms.exe"}},
		"hl2.exe": {{PID: 10, Name: "hl2.exe"}, {PID: 11, Name: "hl2.exe"}},
	}
	var opened []ProcessID
	open := func(pid ProcessID) (Process, error) {
		opened = append(opened, pid)
		return token{}, nil
	}
	byName := func(name string) (Process, error) {
		return OpenByFinder(finder, open, name)
	}

	if _, err := OpenFirst(byName, []string{"portal2.exe", "hl2.exe", "bms.exe"}); err != nil {
		t.Fatalf("OpenFirst: %v", err)
	}
	if len(opened) != 1 || opened[0] != 10 {
		t.Fatalf("opened = %v, want [10]", opened)
	}
}

func TestOpenFirstNothingRunning(t *testing.T) {
	denied := errors.New("access denied")
	byName := func(name string) (Process, error) {
		if name == "hl2.exe" {
			return nil, denied
		}
		return OpenByFinder(stubFinder{}, nil, name)
	}

	_, err := OpenFirst(byName, []string{"bms.exe", "hl2.exe"})
	if !errors.Is(err, ErrNoProcess) {
		t.Fatalf("err = %v, want ErrNoProcess", err)
	}
	if !errors.Is(err, denied) {
		t.Fatalf("err = %v, should keep the open failure", err)
	}
	if !strings.Contains(err.Error(), "bms.exe, hl2.exe") {
		t.Fatalf("err = %v", err)
	}
}
