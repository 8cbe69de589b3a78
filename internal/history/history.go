package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/handlescan/handlescan/internal/model"
)

// DB provides SQLite-based storage for probing runs.
// It manages connection pooling and provides methods for saving and
// retrieving past runs.
//
// Design decision: We use a single database file for all usernames rather
// than one file per username. This keeps cross-username queries cheap and
// simplifies backup/restore operations.
type DB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures DB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a run archive at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*DB, error) {
	dbPath := filepath.Join(dbDir, "handlescan.db")

	// Check if we should create the database or require it to exist
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		// Ensure directory exists
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Build connection string
	// We use modernc.org/sqlite which uses a different connection string format.
	// When CreateIfNotExists is false, we use mode=rw to prevent creating new files.
	// When CreateIfNotExists is true, we use mode=rwc to allow creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	// SQLite doesn't benefit from multiple connections for writes,
	// but multiple readers can improve performance
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &DB{
		db:     db,
		dbPath: dbPath,
	}

	// Enable WAL mode if requested
	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	// Create tables
	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *DB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *DB) createTables() error {
	schema := `
	-- Runs store complete probing passes as JSON plus summary columns
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		site_count INTEGER NOT NULL,
		claimed_count INTEGER NOT NULL,
		run_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_username ON runs(username);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// sqliteTimeFormat is the format used to store started_at values.
const sqliteTimeFormat = "2006-01-02 15:04:05"

// SaveRun stores a complete run and returns its database ID.
func (hdb *DB) SaveRun(ctx context.Context, run *model.Run) (int64, error) {
	runJSON, err := json.Marshal(run)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize run: %w", err)
	}

	counts := run.CountByStatus()

	query := `
	INSERT INTO runs (username, started_at, duration_ms, site_count, claimed_count, run_json)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := hdb.db.ExecContext(ctx, query,
		run.Username,
		run.StartedAt.UTC().Format(sqliteTimeFormat),
		run.Duration.Milliseconds(),
		len(run.Results),
		counts[model.StatusClaimed],
		string(runJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	return result.LastInsertId()
}

// LastRuns retrieves the most recent runs for a username, newest first.
// The limit caps how many runs are returned; zero or negative means all.
func (hdb *DB) LastRuns(ctx context.Context, username string, limit int) ([]*model.Run, error) {
	query := `
	SELECT run_json FROM runs
	WHERE username = ?
	ORDER BY started_at DESC, id DESC
	`
	args := []interface{}{username}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		var runJSON string
		if err := rows.Scan(&runJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		var run model.Run
		if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
			continue // Skip malformed runs
		}
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

// RunByID retrieves a run by its database ID.
// Returns nil without error when no run has that ID.
func (hdb *DB) RunByID(ctx context.Context, id int64) (*model.Run, error) {
	query := `
	SELECT run_json FROM runs
	WHERE id = ?
	`

	var runJSON string
	err := hdb.db.QueryRowContext(ctx, query, id).Scan(&runJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run model.Run
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}

	return &run, nil
}

// RunSummary contains summary information about a stored run.
// This is used for displaying run history without loading the full run.
type RunSummary struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// Username is the handle the run probed.
	Username string

	// StartedAt is when the run began.
	StartedAt time.Time

	// Duration is the wall-clock time of the run.
	Duration time.Duration

	// SiteCount is how many sites were probed.
	SiteCount int

	// ClaimedCount is how many sites reported the username as claimed.
	ClaimedCount int
}

// History retrieves run summaries for a username, newest first.
// This is more efficient than LastRuns when only metadata is needed.
func (hdb *DB) History(ctx context.Context, username string) ([]RunSummary, error) {
	query := `
	SELECT id, username, started_at, duration_ms, site_count, claimed_count
	FROM runs
	WHERE username = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := hdb.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var results []RunSummary
	for rows.Next() {
		var summary RunSummary
		var startedAt string
		var durationMS int64

		if err := rows.Scan(
			&summary.ID,
			&summary.Username,
			&startedAt,
			&durationMS,
			&summary.SiteCount,
			&summary.ClaimedCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}

		summary.StartedAt = parseTimestamp(startedAt)
		summary.Duration = time.Duration(durationMS) * time.Millisecond

		results = append(results, summary)
	}

	return results, rows.Err()
}

// Usernames returns all usernames with stored runs, sorted.
func (hdb *DB) Usernames(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT username FROM runs
	ORDER BY username
	`

	rows, err := hdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list usernames: %w", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("failed to scan username: %w", err)
		}
		usernames = append(usernames, username)
	}

	return usernames, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	// Return zero time if no format matches
	// This is a fallback to avoid breaking functionality for edge cases
	return time.Time{}
}
