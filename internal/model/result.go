package model

import (
	"fmt"
	"time"
)

// QueryResult is the outcome of probing one username on one site.
// Exactly one QueryResult exists per site per run, and instances are never
// mutated after creation.
type QueryResult struct {
	// Username is the handle that was probed.
	Username string `json:"username"`

	// SiteName is the catalog name of the probed site.
	SiteName string `json:"site_name"`

	// UserURL is the resolved profile URL for the username on this site.
	UserURL string `json:"user_url"`

	// Status is the classification outcome.
	Status QueryStatus `json:"status"`

	// Elapsed is the time from sending the request until response headers
	// arrived. It is zero when no request was measured, which is always the
	// case for StatusIllegal results.
	Elapsed time.Duration `json:"elapsed,omitempty"`

	// Context carries human-readable detail: the transport failure category
	// for StatusUnknown, or the matched error message for diagnostics.
	// Empty when there is nothing to add.
	Context string `json:"context,omitempty"`
}

// String returns the status, with the context appended in parentheses when
// one is present. Examples: "Claimed", "Unknown (Timeout Error)".
func (r QueryResult) String() string {
	if r.Context != "" {
		return fmt.Sprintf("%s (%s)", r.Status, r.Context)
	}
	return r.Status.String()
}
