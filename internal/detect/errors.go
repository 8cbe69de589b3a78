package detect

import "errors"

// Strategy construction errors.
// These surface at catalog load time, never during a probing run.
var (
	// ErrUnknownKind is returned when a catalog names a detection kind
	// that has no registered constructor.
	ErrUnknownKind = errors.New("unknown detection kind")

	// ErrNoErrorMessages is returned when the message kind is configured
	// without any error phrase to search for. An empty phrase list would
	// classify every username as claimed, so it is rejected outright.
	ErrNoErrorMessages = errors.New("message detection requires at least one error message")
)
