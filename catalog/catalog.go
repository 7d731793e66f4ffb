// Package catalog keeps a small SQLite index of persisted motion segments.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Status string

const (
	StatusWritten  Status = "written"
	StatusUploaded Status = "uploaded"
	StatusFailed   Status = "failed"
)

// Entry describes one persisted segment.
type Entry struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Frames      int       `json:"frames"`
	FrameRate   float64   `json:"frame_rate"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Reason      string    `json:"reason"`
	ClipPath    string    `json:"clip_path"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
}

type Catalog interface {
	Add(ctx context.Context, entry Entry) error
	MarkUploaded(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	// List returns at most limit entries, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Entry, error)
}

// SQLiteCatalog implements Catalog using SQLite
type SQLiteCatalog struct {
	db *sql.DB
}

// Open opens (or creates) the catalog database at path.
func Open(path string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	c, err := NewSQLiteCatalog(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func NewSQLiteCatalog(db *sql.DB) (*SQLiteCatalog, error) {
	c := &SQLiteCatalog{db: db}
	if err := c.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return c, nil
}

// NewInMemoryDB creates an in-memory SQLite database for testing. It is
// limited to one connection since every connection gets its own memory database.
func NewInMemoryDB() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func (c *SQLiteCatalog) createTables() error {
	createSegmentsTable := `
	CREATE TABLE IF NOT EXISTS segments (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		frames INTEGER NOT NULL,
		frame_rate REAL NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		reason TEXT NOT NULL,
		clip_path TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_segments_started_at ON segments(started_at);`

	_, err := c.db.Exec(createSegmentsTable)
	return err
}

func (c *SQLiteCatalog) Add(ctx context.Context, entry Entry) error {
	if entry.Status == "" {
		entry.Status = StatusWritten
	}

	query := `
	INSERT INTO segments (id, started_at, completed_at, frames, frame_rate, width, height, reason, clip_path, status, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := c.db.ExecContext(ctx, query,
		entry.ID, timeToString(entry.StartedAt), timeToString(entry.CompletedAt),
		entry.Frames, entry.FrameRate, entry.Width, entry.Height,
		entry.Reason, entry.ClipPath, string(entry.Status), entry.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to add segment: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) MarkUploaded(ctx context.Context, id string) error {
	return c.setStatus(ctx, id, StatusUploaded, "")
}

func (c *SQLiteCatalog) MarkFailed(ctx context.Context, id string, reason string) error {
	return c.setStatus(ctx, id, StatusFailed, reason)
}

func (c *SQLiteCatalog) setStatus(ctx context.Context, id string, status Status, reason string) error {
	result, err := c.db.ExecContext(ctx, `UPDATE segments SET status = ?, error = ? WHERE id = ?`, string(status), reason, id)
	if err != nil {
		return fmt.Errorf("failed to update segment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("segment with ID %s not found", id)
	}
	return nil
}

func (c *SQLiteCatalog) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `
	SELECT id, started_at, completed_at, frames, frame_rate, width, height, reason, clip_path, status, error
	FROM segments ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		var startedAtStr, completedAtStr, status string
		err := rows.Scan(
			&entry.ID, &startedAtStr, &completedAtStr, &entry.Frames, &entry.FrameRate,
			&entry.Width, &entry.Height, &entry.Reason, &entry.ClipPath, &status, &entry.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		entry.Status = Status(status)

		if entry.StartedAt, err = stringToTime(startedAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse started_at timestamp: %w", err)
		}
		if entry.CompletedAt, err = stringToTime(completedAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse completed_at timestamp: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

// Fixed width UTC timestamps keep text ordering chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func timeToString(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func stringToTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// NopCatalog records nothing.
type NopCatalog struct{}

func (NopCatalog) Add(context.Context, Entry) error                 { return nil }
func (NopCatalog) MarkUploaded(context.Context, string) error       { return nil }
func (NopCatalog) MarkFailed(context.Context, string, string) error { return nil }
func (NopCatalog) List(context.Context, int) ([]Entry, error)       { return []Entry{}, nil }
