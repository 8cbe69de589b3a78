package detect

import (
	"github.com/handlescan/handlescan/internal/model"
)

func init() {
	Register(KindStatusCode, newStatusCode)
}

// statusCode classifies by the numeric HTTP status alone. Sites of this kind
// answer profile URLs with 2xx when the user exists and 3xx/4xx otherwise.
type statusCode struct{}

func newStatusCode(Options) (Strategy, error) {
	return &statusCode{}, nil
}

// Kind implements Strategy.
func (*statusCode) Kind() string { return KindStatusCode }

// FollowRedirects implements Strategy.
func (*statusCode) FollowRedirects() bool { return true }

// AllowsHeadProbe implements Strategy. The status arrives with the response
// headers, so a bodiless HEAD probe is enough when the descriptor asks for it.
func (*statusCode) AllowsHeadProbe() bool { return true }

// Classify reports Claimed for any status below 300 and Available from 300 up.
// Sub-200 codes counting as Claimed is long-standing classifier behavior that
// existing catalogs were tuned against; do not tighten the boundary without a
// catalog-wide revalidation.
func (*statusCode) Classify(status int, _ string) Verdict {
	if status < 200 || status < 300 {
		return Verdict{Status: model.StatusClaimed}
	}
	return Verdict{Status: model.StatusAvailable}
}
