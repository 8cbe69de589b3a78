package catalog

import (
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/handlescan/handlescan/internal/detect"
)

// usernameToken is the substitution marker in URL and payload templates.
// A template like "https://example.com/users/{}" resolves the token to the
// probed username.
const usernameToken = "{}"

// Descriptor is the static per-site configuration driving one probe.
// Descriptors are built by the loader, validated once, and never mutated
// afterwards; the engine and all workers read them concurrently.
type Descriptor struct {
	// Name identifies the site within the catalog.
	Name string

	// MainURL is the site's landing page, independent of any username.
	MainURL string

	// UserURL is the profile URL template containing one username token.
	UserURL string

	// ProbeURL is an optional separate template to probe instead of the
	// profile URL. Some sites expose existence on an endpoint other than
	// the public profile page.
	ProbeURL string

	// Method is the resolved HTTP method: GET, HEAD, or POST.
	Method string

	// Payload is the POST body template, empty for bodiless methods.
	Payload string

	// Headers are extra request headers. They override the engine's
	// defaults on conflict.
	Headers map[string]string

	// Detect is the detection strategy resolved at load time.
	Detect detect.Strategy

	// Legality is the compiled username pre-check pattern, nil when the
	// site accepts any username. Sites ship these as PCRE-style patterns
	// with lookaheads, which is why this is a regexp2 pattern rather than
	// a stdlib one.
	Legality *regexp2.Regexp

	// UsernameClaimed is a handle known to exist on this site, recorded
	// for descriptor self-verification.
	UsernameClaimed string

	// UsernameUnclaimed is a handle known not to exist on this site.
	UsernameUnclaimed string

	// NSFW marks sites excluded from scans unless explicitly requested.
	NSFW bool
}

// AllowsUsername reports whether the username passes the site's legality
// pre-check. A site without a pattern allows every username. Matching is an
// unanchored search, so patterns constrain usernames only as far as they
// anchor themselves.
func (d *Descriptor) AllowsUsername(username string) bool {
	if d.Legality == nil {
		return true
	}
	ok, err := d.Legality.MatchString(username)
	return err == nil && ok
}

// UserPageURL resolves the profile URL for the given username.
func (d *Descriptor) UserPageURL(username string) string {
	return strings.ReplaceAll(d.UserURL, usernameToken, username)
}

// ProbeTargetURL resolves the URL to probe for the given username,
// preferring the probe template and falling back to the profile URL.
func (d *Descriptor) ProbeTargetURL(username string) string {
	if d.ProbeURL != "" {
		return strings.ReplaceAll(d.ProbeURL, usernameToken, username)
	}
	return d.UserPageURL(username)
}

// PayloadBody resolves the POST body for the given username.
// Empty when the descriptor declares no payload.
func (d *Descriptor) PayloadBody(username string) string {
	if d.Payload == "" {
		return ""
	}
	return strings.ReplaceAll(d.Payload, usernameToken, username)
}
