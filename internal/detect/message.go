package detect

import (
	"fmt"
	"strings"

	"github.com/handlescan/handlescan/internal/model"
)

func init() {
	Register(KindMessage, newMessage)
}

// message classifies by searching the response body for known error phrases.
// Sites of this kind return HTTP 200 for missing profiles but render a
// recognizable "no such user" message in the page.
type message struct {
	phrases []string
}

// newMessage validates that at least one error phrase is configured.
func newMessage(opts Options) (Strategy, error) {
	if len(opts.ErrorMessages) == 0 {
		return nil, ErrNoErrorMessages
	}
	return &message{phrases: opts.ErrorMessages}, nil
}

// Kind implements Strategy.
func (*message) Kind() string { return KindMessage }

// FollowRedirects implements Strategy. Redirects are fine: the phrase has to
// be searched in whatever page the site finally serves.
func (*message) FollowRedirects() bool { return true }

// AllowsHeadProbe implements Strategy. A body is required, so HEAD is never
// sufficient.
func (*message) AllowsHeadProbe() bool { return false }

// Classify reports Available if ANY configured phrase occurs in the body.
// Matching is case-sensitive plain containment; the phrases come straight
// from the site's own page source, so no normalization is applied.
func (m *message) Classify(_ int, body string) Verdict {
	for _, phrase := range m.phrases {
		if strings.Contains(body, phrase) {
			return Verdict{
				Status:  model.StatusAvailable,
				Context: fmt.Sprintf("matched %q", phrase),
			}
		}
	}
	return Verdict{Status: model.StatusClaimed}
}
