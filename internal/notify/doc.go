// Package notify renders per-site probe results to a terminal as they
// arrive.
//
// Console implements the engine's NotifySink contract with one line per
// result: green for claimed handles, and with print-all enabled yellow for
// available, red for unknown, and magenta for illegal usernames. Writes are
// mutex-guarded so a Console can be shared across runs, and colors can be
// disabled for pipes and logs.
package notify
