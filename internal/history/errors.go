package history

import "errors"

var (
	// ErrDisabled indicates history recording is disabled in config.
	ErrDisabled = errors.New("history: disabled in configuration")

	// ErrInvalidRange indicates a query range with until before since.
	ErrInvalidRange = errors.New("history: invalid time range")
)
