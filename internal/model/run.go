package model

import (
	"time"
)

// Run is the complete record of one probing pass for one username.
// It holds the results in catalog order so reports and archives render
// deterministically regardless of completion order.
type Run struct {
	// Username is the handle this run probed.
	Username string `json:"username"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall-clock time of the whole run.
	Duration time.Duration `json:"duration"`

	// Results holds one entry per catalog site, in catalog order.
	Results []QueryResult `json:"results"`
}

// NewRun assembles a Run from the engine's result mapping, ordering results
// by the given site names. Sites missing from the mapping are skipped, so the
// caller can pass the full catalog order even for filtered runs.
func NewRun(username string, started time.Time, duration time.Duration, order []string, results map[string]QueryResult) *Run {
	run := &Run{
		Username:  username,
		StartedAt: started,
		Duration:  duration,
		Results:   make([]QueryResult, 0, len(results)),
	}

	for _, name := range order {
		if r, ok := results[name]; ok {
			run.Results = append(run.Results, r)
		}
	}
	return run
}

// Result returns the result for the named site.
func (r *Run) Result(site string) (QueryResult, bool) {
	for _, res := range r.Results {
		if res.SiteName == site {
			return res, true
		}
	}
	return QueryResult{}, false
}

// Claimed returns the results with StatusClaimed, in catalog order.
func (r *Run) Claimed() []QueryResult {
	var claimed []QueryResult
	for _, res := range r.Results {
		if res.Status == StatusClaimed {
			claimed = append(claimed, res)
		}
	}
	return claimed
}

// CountByStatus returns how many results carry each status.
func (r *Run) CountByStatus() map[QueryStatus]int {
	counts := make(map[QueryStatus]int)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Sites returns the site names of all results, in catalog order.
func (r *Run) Sites() []string {
	names := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		names = append(names, res.SiteName)
	}
	return names
}
