package detect

import (
	"github.com/handlescan/handlescan/internal/model"
)

func init() {
	Register(KindResponseURL, newResponseURL)
}

// responseURL classifies sites that redirect away from missing profiles.
// The transport must not follow redirects for this kind: a redirect answer
// (or any other non-2xx) means the profile does not exist, while a direct
// 2xx means it does.
type responseURL struct{}

func newResponseURL(Options) (Strategy, error) {
	return &responseURL{}, nil
}

// Kind implements Strategy.
func (*responseURL) Kind() string { return KindResponseURL }

// FollowRedirects implements Strategy. Following the redirect would land on
// a 200 error page and destroy the signal, so the raw response is required.
func (*responseURL) FollowRedirects() bool { return false }

// AllowsHeadProbe implements Strategy.
func (*responseURL) AllowsHeadProbe() bool { return false }

// Classify reports Claimed only for a direct 2xx answer.
func (*responseURL) Classify(status int, _ string) Verdict {
	if status >= 200 && status < 300 {
		return Verdict{Status: model.StatusClaimed}
	}
	return Verdict{Status: model.StatusAvailable}
}
