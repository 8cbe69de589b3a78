package model

// NotifySink receives progress callbacks during a probing run.
//
// The engine guarantees the call pattern: Start is invoked exactly once
// before any Update; Update is invoked exactly once per catalog site, at the
// moment that site's result becomes final; Finish is invoked exactly once
// after all updates. Update calls arrive from a single goroutine, but
// implementations intended for reuse across runs should still guard shared
// state.
type NotifySink interface {
	// Start signals that probing for the given username has begun.
	Start(username string)

	// Update delivers one final per-site result.
	Update(result QueryResult)

	// Finish signals that every site has a recorded result.
	Finish()
}

// NopSink is a NotifySink that ignores all callbacks. It is the zero-cost
// default for library callers that only want the returned mapping.
type NopSink struct{}

// Start implements NotifySink.
func (NopSink) Start(string) {}

// Update implements NotifySink.
func (NopSink) Update(QueryResult) {}

// Finish implements NotifySink.
func (NopSink) Finish() {}
