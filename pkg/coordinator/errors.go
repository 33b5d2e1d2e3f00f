package coordinator

import "errors"

// Coordinator errors.
var (
	// ErrInvalidUpdate reports a caller contract violation: the update
	// function returned neither a DataUpdate nor an error. It is
	// distinguishable from a transient parse failure so integration tests
	// can assert the programming error was detected.
	ErrInvalidUpdate = errors.New("update func returned no data and no error")

	// ErrNoAddress reports a missing device address at construction.
	ErrNoAddress = errors.New("empty address")

	// ErrNilUpdateFunc reports a missing update function at construction.
	ErrNilUpdateFunc = errors.New("nil update func")

	// ErrNilRegistrar reports a missing advertisement registrar at
	// construction.
	ErrNilRegistrar = errors.New("nil advertisement registrar")

	// ErrNilTracker reports a missing unavailability tracker at
	// construction.
	ErrNilTracker = errors.New("nil unavailability tracker")
)
