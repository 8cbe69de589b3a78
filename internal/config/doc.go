// Package config provides configuration structures and utilities for
// handlescan. It defines the probing run options populated from CLI flags,
// the optional .handlescan YAML file carrying flag defaults and per-site
// overrides, and the XDG directory helpers shared by the catalog cache and
// the run history database.
package config
