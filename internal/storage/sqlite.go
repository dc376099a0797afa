package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lan-dot-party/relkit/internal/config"
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(cfg config.SQLiteConfig) (*SQLiteStorage, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	return &SQLiteStorage{
		path: cfg.Path,
	}, nil
}

// Init initializes the SQLite database connection and schema.
func (s *SQLiteStorage) Init(ctx context.Context) error {
	// Ensure directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	// Enable WAL mode so the API server can read while a CLI run writes
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.createSchema(ctx); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// createSchema creates the database tables if they don't exist.
func (s *SQLiteStorage) createSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS release_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		directive TEXT NOT NULL DEFAULT '',
		previous TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		tag TEXT NOT NULL DEFAULT '',
		revision TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_kind ON release_events(kind);
	CREATE INDEX IF NOT EXISTS idx_events_created ON release_events(created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveEvent saves an event and sets its ID.
func (s *SQLiteStorage) SaveEvent(ctx context.Context, event *Event) error {
	query := `
	INSERT INTO release_events (
		run_id, kind, directive, previous, version, tag, revision, status, detail, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		event.RunID,
		string(event.Kind),
		event.Directive,
		event.Previous,
		event.Version,
		event.Tag,
		event.Revision,
		event.Status,
		event.Detail,
		event.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	event.ID = id

	return nil
}

// GetEvent retrieves a single event by ID.
func (s *SQLiteStorage) GetEvent(ctx context.Context, id int64) (*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM release_events WHERE id = ?`

	e, err := scanEvent(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}

// ListEvents retrieves events matching filter, newest first.
func (s *SQLiteStorage) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM release_events WHERE 1=1`
	args := []any{}

	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(filter.Kind))
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, filter.Until.UTC())
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	return s.query(ctx, query, args...)
}

// LatestEvents retrieves the most recent event of each kind.
func (s *SQLiteStorage) LatestEvents(ctx context.Context) ([]Event, error) {
	query := `
	SELECT ` + eventColumns + `
	FROM release_events
	WHERE id IN (SELECT MAX(id) FROM release_events GROUP BY kind)
	ORDER BY kind
	`
	return s.query(ctx, query)
}

func (s *SQLiteStorage) query(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// DeleteOlderThan removes events older than the specified time.
func (s *SQLiteStorage) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM release_events WHERE created_at < ?", olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return count, nil
}
