package state

import "errors"

var (
	// ErrRefreshInFlight is returned when a refresh is requested while
	// another one is still running. The caller should wait for the
	// in-flight refresh rather than queue a duplicate.
	ErrRefreshInFlight = errors.New("state: refresh already in flight")

	// ErrNoSnapshot is returned when state is read before the first
	// successful refresh has completed.
	ErrNoSnapshot = errors.New("state: no snapshot available")

	// ErrDeviceNotFound is returned when a named device does not exist in
	// the current snapshot.
	ErrDeviceNotFound = errors.New("state: device not found")
)
