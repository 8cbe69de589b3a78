// Package model defines the core data structures used throughout handlescan.
//
// This package contains the following main types:
//   - QueryStatus: The per-site classification outcome (Claimed, Available, Unknown, Illegal)
//   - QueryResult: One site's final outcome for one username
//   - Run: A full probing pass, with results in catalog order
//   - NotifySink: The progress-callback contract between the engine and renderers
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (engine, notify, report, history) need to use
// these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
