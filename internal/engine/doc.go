// Package engine implements the concurrent probing run: one HTTP probe per
// catalog site, classified into a per-site result.
//
// A run fans probes out across a bounded worker pool, short-circuits sites
// whose legality pattern rejects the username, converts transport failures
// into Unknown results instead of aborting, and funnels every completion
// through a single collector that owns the result mapping. The mapping's key
// set always equals the catalog's key set, regardless of completion order or
// individual failures.
//
// Design decision: Detection strategies are resolved by the catalog loader,
// once per descriptor, before the engine ever runs. The engine treats an
// unresolved strategy as a fatal configuration error rather than skipping
// the site, because it means the descriptor bypassed validation.
//
// Design decision: The anonymized identity is an explicit rotator handle
// passed in as an option, never package state. Rotation fires immediately
// after a probe is dispatched, before that probe's response is awaited.
// Requests still in flight on the previous identity are left to finish;
// this ordering spreads probes across circuits and is long-standing
// behavior, kept as is.
package engine
