package catalog

import "errors"

// Catalog loading and validation errors.
// All of these surface before the engine runs; a catalog that loads without
// error needs no further validation downstream.
//
// Design decision: We use package-level sentinel errors rather than creating
// new error instances at each failure site. Loaders wrap them with the
// offending site name, so callers can both print a precise message and
// branch on the failure class with errors.Is().
var (
	// ErrMalformedCatalog is returned when the document is not a JSON
	// object of site entries.
	ErrMalformedCatalog = errors.New("malformed catalog document")

	// ErrEmptySiteName is returned when a site entry has an empty name.
	ErrEmptySiteName = errors.New("empty site name")

	// ErrDuplicateSite is returned when two entries share a name. The
	// result mapping is keyed by site name, so duplicates cannot be
	// represented.
	ErrDuplicateSite = errors.New("duplicate site name")

	// ErrMissingUserURL is returned when a descriptor lacks the profile
	// URL template.
	ErrMissingUserURL = errors.New("missing user URL template")

	// ErrMissingMainURL is returned when a descriptor lacks the site's
	// main URL.
	ErrMissingMainURL = errors.New("missing main site URL")

	// ErrInvalidMethod is returned when a descriptor declares an HTTP
	// method outside GET, HEAD, and POST.
	ErrInvalidMethod = errors.New("invalid request method")

	// ErrPayloadWithoutPost is returned when a descriptor declares a
	// request payload for a bodiless method.
	ErrPayloadWithoutPost = errors.New("request payload requires the POST method")

	// ErrBadLegalityRegex is returned when a descriptor's username
	// legality pattern does not compile.
	ErrBadLegalityRegex = errors.New("legality regex does not compile")

	// ErrUnknownSite is returned when a filter names a site the catalog
	// does not contain.
	ErrUnknownSite = errors.New("unknown site")

	// ErrFetchFailed is returned when the remote catalog cannot be
	// downloaded.
	ErrFetchFailed = errors.New("catalog download failed")
)
