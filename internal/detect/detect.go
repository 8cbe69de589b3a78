package detect

import (
	"fmt"
	"sort"
	"sync"

	"github.com/handlescan/handlescan/internal/model"
)

// Detection kind names as they appear in site catalogs.
const (
	// KindMessage classifies by searching the response body for known
	// error phrases.
	KindMessage = "message"

	// KindStatusCode classifies by the numeric HTTP status alone.
	KindStatusCode = "status_code"

	// KindResponseURL classifies by the status of the un-redirected
	// response, so the transport must not follow redirects.
	KindResponseURL = "response_url"
)

// Verdict is the outcome of classifying one response.
type Verdict struct {
	// Status is the classification result, StatusClaimed or StatusAvailable.
	Status model.QueryStatus

	// Context carries optional diagnostic detail, such as which error
	// phrase matched. Empty for most verdicts.
	Context string
}

// Strategy classifies a probe response for one site.
//
// A Strategy consumes only the final status code, the response body text
// (message kind only), and the options it was constructed with. It also
// declares the transport policy its classification depends on: whether
// redirects may be followed and whether a bodiless HEAD probe is sufficient.
//
// Design decision: We use an interface rather than a kind switch in the
// engine because:
//  1. Each kind's rule and its transport policy stay in one file
//  2. The engine treats all kinds uniformly and needs no per-kind knowledge
//  3. Tests can exercise each rule in isolation
type Strategy interface {
	// Kind returns the catalog name of this strategy.
	Kind() string

	// FollowRedirects reports whether the transport may follow redirects
	// for this strategy. Only the response_url kind requires the raw,
	// un-redirected response.
	FollowRedirects() bool

	// AllowsHeadProbe reports whether a HEAD request carries enough
	// information for this strategy. Only the status_code kind can
	// classify without a body.
	AllowsHeadProbe() bool

	// Classify turns a final status code and body text into a Verdict.
	Classify(statusCode int, body string) Verdict
}

// Options carries the per-kind settings a catalog descriptor declares.
// Kinds ignore fields they do not use.
type Options struct {
	// ErrorMessages holds the known "no such user" phrases for the
	// message kind. Matching is case-sensitive substring containment.
	ErrorMessages []string

	// HeadOnly requests a bodiless HEAD probe where the kind allows it.
	HeadOnly bool
}

// Constructor builds a Strategy from descriptor options, validating them.
type Constructor func(opts Options) (Strategy, error)

// registry maps kind names to constructors. Registration happens in init()
// functions of the kind files; the mutex only matters for hypothetical
// runtime registrations from other packages.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register makes a detection kind available under the given name.
// Registering a duplicate name panics, as that is always a programming error.
func Register(kind string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[kind]; exists {
		panic(fmt.Sprintf("detect: kind %q registered twice", kind))
	}
	registry[kind] = c
}

// New resolves a kind name to a validated Strategy.
// An unregistered kind returns ErrUnknownKind wrapped with the offending name.
func New(kind string, opts Options) (Strategy, error) {
	registryMu.RLock()
	c, ok := registry[kind]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return c(opts)
}

// Kinds returns the registered kind names in sorted order.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]string, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
