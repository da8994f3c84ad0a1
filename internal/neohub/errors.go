package neohub

import "errors"

// Domain errors for hub communication.
//
// These can be checked with errors.Is() in calling code:
//
//	if errors.Is(err, neohub.ErrHubUnreachable) {
//	    // keep serving the previous snapshot
//	}
var (
	// ErrHubUnreachable is returned when the hub cannot be dialled or the
	// connection drops mid-request.
	ErrHubUnreachable = errors.New("neohub: hub unreachable")

	// ErrRequestTimeout is returned when a request exceeds its deadline.
	ErrRequestTimeout = errors.New("neohub: request timed out")

	// ErrMalformedResponse is returned when a response is missing a
	// critical payload or cannot be decoded.
	ErrMalformedResponse = errors.New("neohub: malformed response")

	// ErrCommandRejected is returned when the hub answers a command with
	// an explicit failure result.
	ErrCommandRejected = errors.New("neohub: command rejected")

	// ErrClosed is returned when the client has been closed.
	ErrClosed = errors.New("neohub: client closed")
)
