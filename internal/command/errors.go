package command

import "errors"

var (
	// ErrUnknownDevice is returned when the named device is not in the
	// current snapshot.
	ErrUnknownDevice = errors.New("command: unknown device")

	// ErrUnsupported is returned when the device's product type cannot
	// perform the requested operation.
	ErrUnsupported = errors.New("command: operation not supported by device")

	// ErrInvalidArgument is returned when a command argument fails
	// validation. No hub call is made.
	ErrInvalidArgument = errors.New("command: invalid argument")

	// ErrUnknownAction is returned by Dispatch for unrecognised action
	// names.
	ErrUnknownAction = errors.New("command: unknown action")
)
