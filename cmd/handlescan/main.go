// Package main provides the entry point for the handlescan CLI.
//
// handlescan hunts for a username across social networks and other
// account-bearing sites. Each site receives exactly one HTTP probe, and the
// response is classified as claimed, available, or unknown by the site's
// detection rule.
//
// Usage:
//
//	handlescan scan <username>
//	handlescan scan alice bob
//
// See --help for all available options.
package main

// main is the entry point for handlescan.
func main() {
	Execute()
}
