// Package detect implements the per-site classification strategies that turn
// an HTTP response into a username verdict.
//
// A site catalog names one detection kind per site: "message" (the response
// body contains a known error phrase when the username is free),
// "status_code" (the HTTP status alone reveals existence), or "response_url"
// (the site redirects away from missing profiles, so the un-redirected status
// is decisive). Each kind is implemented as a Strategy and registered in a
// package-level registry under its catalog name.
//
// Design decision: Strategies are resolved from the registry exactly once,
// when a descriptor is loaded, and never re-resolved per request. The
// registry keeps the kinds extensible without any runtime reflection: adding
// a kind means adding a file with an init() registration, and an unknown kind
// fails loudly at load time instead of mid-run.
package detect
