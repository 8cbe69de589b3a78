// Package history provides SQLite-based storage for past probing runs.
//
// Each saved run keeps its full JSON alongside summary columns (username,
// start time, duration, site and claimed counts), so history listings never
// deserialize whole runs and the compare command can load any two runs by ID
// or recency.
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
package history
