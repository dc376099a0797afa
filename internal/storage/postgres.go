package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lan-dot-party/relkit/internal/config"
)

// PostgresStorage implements the Storage interface using PostgreSQL, for
// teams sharing one ledger between CI and workstations.
type PostgresStorage struct {
	db  *sql.DB
	cfg config.PostgresConfig
}

// NewPostgresStorage creates a new PostgreSQL storage instance.
func NewPostgresStorage(cfg config.PostgresConfig) (*PostgresStorage, error) {
	return &PostgresStorage{
		cfg: cfg,
	}, nil
}

// buildDSN creates the PostgreSQL connection string.
func (s *PostgresStorage) buildDSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=%s",
		s.cfg.Host,
		s.cfg.Port,
		s.cfg.Database,
		s.cfg.User,
		s.cfg.SSLMode,
	)

	if s.cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", s.cfg.Password)
	}

	return dsn
}

// Init initializes the PostgreSQL database connection and schema.
func (s *PostgresStorage) Init(ctx context.Context) error {
	db, err := sql.Open("pgx", s.buildDSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	// Short-lived CLI runs need few connections
	s.db.SetMaxOpenConns(5)
	s.db.SetMaxIdleConns(2)
	s.db.SetConnMaxLifetime(5 * time.Minute)

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := s.createSchema(ctx); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// createSchema creates the database tables if they don't exist.
func (s *PostgresStorage) createSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS release_events (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		directive TEXT NOT NULL DEFAULT '',
		previous TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		tag TEXT NOT NULL DEFAULT '',
		revision TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_events_kind ON release_events(kind);
	CREATE INDEX IF NOT EXISTS idx_events_created ON release_events(created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *PostgresStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveEvent saves an event and sets its ID.
func (s *PostgresStorage) SaveEvent(ctx context.Context, event *Event) error {
	query := `
	INSERT INTO release_events (
		run_id, kind, directive, previous, version, tag, revision, status, detail, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		event.RunID,
		string(event.Kind),
		event.Directive,
		event.Previous,
		event.Version,
		event.Tag,
		event.Revision,
		event.Status,
		event.Detail,
		event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// GetEvent retrieves a single event by ID.
func (s *PostgresStorage) GetEvent(ctx context.Context, id int64) (*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM release_events WHERE id = $1`

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
func (s *PostgresStorage) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM release_events WHERE 1=1`
	args := []any{}
	argNum := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argNum)
		args = append(args, string(filter.Kind))
		argNum++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argNum)
		args = append(args, filter.Since)
		argNum++
	}
	if !filter.Until.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argNum)
		args = append(args, filter.Until)
		argNum++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
		argNum++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	return s.query(ctx, query, args...)
}

// LatestEvents retrieves the most recent event of each kind.
func (s *PostgresStorage) LatestEvents(ctx context.Context) ([]Event, error) {
	query := `
	SELECT DISTINCT ON (kind) ` + eventColumns + `
	FROM release_events
	ORDER BY kind, id DESC
	`
	return s.query(ctx, query)
}

func (s *PostgresStorage) query(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

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
func (s *PostgresStorage) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM release_events WHERE created_at < $1", olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return count, nil
}
