package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrNoUsername is returned when no username is specified.
	// This error occurs when the command line provides no positional
	// username arguments.
	ErrNoUsername = errors.New("no username specified: provide at least one handle to probe")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A timeout of zero or negative would cause immediate probe failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	// A worker count of zero would mean no probes run at all.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidRate is returned when the rate limit is negative.
	// A negative rate is invalid; use 0 to disable pacing.
	ErrInvalidRate = errors.New("invalid rate limit: must be non-negative")

	// ErrUnknownFormat is returned when the report format is not one of
	// text, csv, json, or markdown.
	ErrUnknownFormat = errors.New("unknown report format")

	// ErrProxyWithTor is returned when both --proxy and --tor are
	// specified. Only one transport can route the probes.
	ErrProxyWithTor = errors.New("conflicting transports: --proxy and --tor cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")
