package storage

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies which tool produced an event.
type Kind string

// Event kinds.
const (
	KindBump    Kind = "bump"
	KindNightly Kind = "nightly"
	KindPrune   Kind = "prune"
)

// Event statuses shared by every kind. Nightly events use the trigger
// outcome instead (triggered, cancelled, dependency_missing, failed).
const (
	StatusComplete   = "complete"
	StatusIncomplete = "incomplete"
	StatusFailed     = "failed"
	StatusNotFound   = "not_found"
)

// Event is one recorded run of a release tool.
type Event struct {
	ID int64 `json:"id"`
	// RunID correlates log lines and the ledger entry of one invocation
	RunID     string    `json:"run_id"`
	Kind      Kind      `json:"kind"`
	Directive string    `json:"directive,omitempty"`
	Previous  string    `json:"previous,omitempty"`
	Version   string    `json:"version,omitempty"`
	Tag       string    `json:"tag,omitempty"`
	Revision  string    `json:"revision,omitempty"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent starts an event with a fresh run ID and the current time.
func NewEvent(kind Kind) *Event {
	return &Event{
		RunID:     uuid.NewString(),
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
}

// IsFailure reports whether the recorded run did not complete.
func (e *Event) IsFailure() bool {
	switch e.Status {
	case StatusIncomplete, StatusFailed, "dependency_missing":
		return true
	}
	return false
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const eventColumns = `id, run_id, kind, directive, previous, version, tag, revision, status, detail, created_at`

func scanEvent(row scanner) (Event, error) {
	var e Event
	var kind string
	err := row.Scan(
		&e.ID,
		&e.RunID,
		&kind,
		&e.Directive,
		&e.Previous,
		&e.Version,
		&e.Tag,
		&e.Revision,
		&e.Status,
		&e.Detail,
		&e.CreatedAt,
	)
	e.Kind = Kind(kind)
	return e, err
}
