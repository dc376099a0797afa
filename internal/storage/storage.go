// Package storage provides the release ledger: one event per bump, nightly
// trigger or prune run.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/lan-dot-party/relkit/internal/config"
)

// ErrNotFound is returned by GetEvent for an unknown ID.
var ErrNotFound = errors.New("event not found")

// Storage defines the interface for storing and retrieving release events.
type Storage interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error

	// Events
	SaveEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, id int64) (*Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	LatestEvents(ctx context.Context) ([]Event, error)

	// Cleanup
	DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
}

// EventFilter defines criteria for filtering events.
type EventFilter struct {
	Kind   Kind
	Since  time.Time
	Until  time.Time
	Limit  int
	Offset int
}

// NewStorage creates a new Storage instance based on the configuration.
// A relative SQLite path is resolved against root.
func NewStorage(cfg config.HistoryConfig, root string) (Storage, error) {
	switch cfg.Type {
	case "sqlite":
		sqliteCfg := cfg.SQLite
		if !filepath.IsAbs(sqliteCfg.Path) {
			sqliteCfg.Path = filepath.Join(root, filepath.FromSlash(sqliteCfg.Path))
		}
		return NewSQLiteStorage(sqliteCfg)
	case "postgres":
		return NewPostgresStorage(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// Record saves event when a store is configured. The ledger is auxiliary:
// failures are logged and never change the outcome of the recorded run.
func Record(ctx context.Context, store Storage, event *Event, logger *zap.Logger) {
	if store == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := store.SaveEvent(ctx, event); err != nil {
		logger.Warn("Failed to record history event",
			zap.String("kind", string(event.Kind)),
			zap.Error(err),
		)
		return
	}
	logger.Debug("History event recorded", zap.Int64("id", event.ID), zap.String("run_id", event.RunID))
}
