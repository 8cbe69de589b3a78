// Package catalog loads and validates the site catalog that drives probing.
//
// The catalog is a JSON document mapping site names to descriptors, in the
// format published by the Sherlock project's data file. This package parses
// it while preserving the document's declaration order, validates every
// descriptor, and resolves each site's detection strategy exactly once at
// load time. The engine consumes descriptors as immutable, pre-validated
// input and performs no validation of its own.
//
// Catalogs can come from a local file, or from a published URL with a cached
// copy under the XDG data directory.
package catalog
