package model

import (
	"encoding/json"
	"fmt"
)

// QueryStatus represents the outcome of probing one username on one site.
//
// Design decision: We use iota-based constants rather than string constants
// for efficiency in comparisons and aggregation. The String() method provides
// human-readable output, and JSON marshaling uses the string form so archived
// runs stay readable and stable across reorderings of the constants.
type QueryStatus int

const (
	// StatusUnknown indicates the probe could not determine whether the
	// username exists. This is the result of any transport failure (timeout,
	// connection error, proxy error) and deliberately never aborts a run.
	StatusUnknown QueryStatus = iota

	// StatusClaimed indicates the username is registered on the site.
	StatusClaimed

	// StatusAvailable indicates the username is not registered on the site.
	StatusAvailable

	// StatusIllegal indicates the username does not satisfy the site's
	// username format rules. No network request is issued for these.
	StatusIllegal
)

// String returns a human-readable representation of the query status.
func (s QueryStatus) String() string {
	switch s {
	case StatusUnknown:
		return "Unknown"
	case StatusClaimed:
		return "Claimed"
	case StatusAvailable:
		return "Available"
	case StatusIllegal:
		return "Illegal"
	default:
		return fmt.Sprintf("QueryStatus(%d)", int(s))
	}
}

// MarshalJSON encodes the status as its string form.
func (s QueryStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status from its string form.
// Unrecognized values decode to StatusUnknown rather than failing, so that
// archives written by newer versions remain loadable.
func (s *QueryStatus) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}

	switch text {
	case "Claimed":
		*s = StatusClaimed
	case "Available":
		*s = StatusAvailable
	case "Illegal":
		*s = StatusIllegal
	default:
		*s = StatusUnknown
	}
	return nil
}
