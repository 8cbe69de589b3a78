package engine

import "errors"

// Engine configuration errors.
// These abort a run before the notification sink sees any callback;
// per-site transport failures never surface here.
var (
	// ErrNoTransport is returned when the engine was built without a
	// transport client.
	ErrNoTransport = errors.New("engine has no transport client")

	// ErrNoStrategy is returned when a descriptor reaches the engine
	// without a resolved detection strategy. The catalog loader resolves
	// strategies at load time, so this indicates the descriptor bypassed
	// validation.
	ErrNoStrategy = errors.New("descriptor has no detection strategy")
)
