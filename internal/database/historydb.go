package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/epscrapper/epscrapper/internal/model"
)

// HistoryDB provides SQLite-based storage for scrape sessions.
// It manages connection pooling and provides methods for saving sessions
// and reading them back for comparison.
//
// Design decision: We use a single database file for all origins rather
// than one file per origin. This simplifies listing and backup, and SQLite
// handles the volume involved here without any tuning.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
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

// Open opens or creates a HistoryDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, "epscrapper.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a scrape first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Build connection string.
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

	// SQLite only supports one writer; a single connection avoids
	// SQLITE_BUSY under concurrent saves.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- Sessions store one row per completed scrape
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		origin TEXT NOT NULL,
		dashboard_url TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		pages_visited INTEGER DEFAULT 0,
		endpoint_count INTEGER DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_origin ON sessions(origin);
	CREATE INDEX IF NOT EXISTS idx_sessions_timestamp ON sessions(timestamp);

	-- Endpoints store the flattened result rows, one per unique URL per session
	CREATE TABLE IF NOT EXISTS endpoints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		source TEXT NOT NULL,
		type TEXT,
		method TEXT,
		page TEXT,
		UNIQUE(session_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_endpoints_session ON endpoints(session_id);
	CREATE INDEX IF NOT EXISTS idx_endpoints_url ON endpoints(url);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveSession stores a completed scrape and its endpoints.
// Returns the new session ID.
func (hdb *HistoryDB) SaveSession(ctx context.Context, report *model.ScrapeReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	result, err := tx.ExecContext(ctx, `
	INSERT INTO sessions (origin, dashboard_url, pages_visited, endpoint_count, report_json)
	VALUES (?, ?, ?, ?, ?)
	`,
		report.Origin,
		report.DashboardURL,
		report.PagesVisited,
		len(report.Endpoints),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save session: %w", err)
	}

	sessionID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read session id: %w", err)
	}

	// The report deduplicates by URL already, but INSERT OR IGNORE keeps the
	// UNIQUE(session_id, url) constraint from failing the whole save if a
	// caller hands us raw endpoints.
	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR IGNORE INTO endpoints (session_id, url, source, type, method, page)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare endpoint insert: %w", err)
	}
	defer stmt.Close()

	for _, ep := range report.Endpoints {
		if _, err := stmt.ExecContext(ctx, sessionID, ep.URL, string(ep.Source), ep.Type, ep.Method, ep.Page); err != nil {
			return 0, fmt.Errorf("failed to save endpoint %s: %w", ep.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit session: %w", err)
	}

	return sessionID, nil
}

// SessionMetadata contains summary information about a stored session.
// This is used for displaying session history without loading the full report.
type SessionMetadata struct {
	// ID is the unique identifier of the session in the database.
	ID int64

	// Origin is the scraped application origin.
	Origin string

	// DashboardURL is the post-login URL that was waited for.
	DashboardURL string

	// Timestamp is when the scrape was performed.
	Timestamp time.Time

	// PagesVisited is how many pages the session loaded.
	PagesVisited int

	// EndpointCount is the number of unique endpoints collected.
	EndpointCount int
}

// ListSessions retrieves session metadata, most recent first.
// When origin is non-empty, only that origin's sessions are returned.
// limit <= 0 means no limit.
func (hdb *HistoryDB) ListSessions(ctx context.Context, origin string, limit int) ([]SessionMetadata, error) {
	query := `
	SELECT id, origin, dashboard_url, timestamp, pages_visited, endpoint_count
	FROM sessions
	`
	args := make([]any, 0, 2)

	if origin != "" {
		query += " WHERE origin = ?"
		args = append(args, origin)
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var results []SessionMetadata
	for rows.Next() {
		var meta SessionMetadata
		var timestamp string

		if err := rows.Scan(&meta.ID, &meta.Origin, &meta.DashboardURL, &timestamp,
			&meta.PagesVisited, &meta.EndpointCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetSessionByID retrieves a full scrape report by session ID.
// Returns nil without error when the session does not exist.
func (hdb *HistoryDB) GetSessionByID(ctx context.Context, id int64) (*model.ScrapeReport, error) {
	var reportJSON string
	err := hdb.db.QueryRowContext(ctx,
		`SELECT report_json FROM sessions WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var report model.ScrapeReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// GetSessionEndpoints retrieves the endpoint rows of a session in insert order.
func (hdb *HistoryDB) GetSessionEndpoints(ctx context.Context, sessionID int64) ([]model.Endpoint, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT url, source, type, method, page
	FROM endpoints
	WHERE session_id = ?
	ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []model.Endpoint
	for rows.Next() {
		var ep model.Endpoint
		var source string
		if err := rows.Scan(&ep.URL, &source, &ep.Type, &ep.Method, &ep.Page); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint: %w", err)
		}
		ep.Source = model.Source(source)
		endpoints = append(endpoints, ep)
	}

	return endpoints, rows.Err()
}

// ListOrigins returns every origin that has at least one stored session.
func (hdb *HistoryDB) ListOrigins(ctx context.Context) ([]string, error) {
	rows, err := hdb.db.QueryContext(ctx,
		`SELECT DISTINCT origin FROM sessions ORDER BY origin`)
	if err != nil {
		return nil, fmt.Errorf("failed to list origins: %w", err)
	}
	defer rows.Close()

	var origins []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, fmt.Errorf("failed to scan origin: %w", err)
		}
		origins = append(origins, o)
	}

	return origins, rows.Err()
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
	return time.Time{}
}
