package process

import (
	"errors"
	"fmt"
	"strings"
)

// ProcessHelper opens processes on the host OS
type ProcessHelper interface {
	// New creates a new, unopened Process instance
	New() Process

	// NewWithPID creates a new Process instance and opens it with the given PID
	NewWithPID(pid ProcessID) (Process, error)

	ProcessOpener
}

// ProcessOpener is what the engine needs to find a game: a name lookup
type ProcessOpener interface {
	// OpenProcessByName opens the first process with that name
	OpenProcessByName(name string) (Process, error)

	// OpenFirstProcess tries each name in order and opens the first running match
	OpenFirstProcess(names []string) (Process, error)
}

// OpenFirst implements OpenFirstProcess over a by-name opener. Failures
// other than ErrNoProcess are kept in the returned error.
func OpenFirst(open func(name string) (Process, error), names []string) (Process, error) {
	var errs []error
	for _, name := range names {
		proc, err := open(name)
		if err == nil {
			return proc, nil
		}
		if !errors.Is(err, ErrNoProcess) {
			errs = append(errs, err)
		}
	}
	err := fmt.Errorf("%w: none of %s is running", ErrNoProcess, strings.Join(names, ", "))
	if len(errs) > 0 {
		err = fmt.Errorf("%w (%w)", err, errors.Join(errs...))
	}
	return nil, err
}

// OpenByFinder opens the first process the finder reports for name
func OpenByFinder(f ProcessFinder, open func(ProcessID) (Process, error), name string) (Process, error) {
	found, err := f.FindProcessByName(name)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoProcess, name)
	}
	return open(found[0].PID)
}
