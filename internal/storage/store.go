package storage

import (
	"context"
	"errors"

	"diaryx/internal/models"
)

// ErrNotFound is returned when no entry matches the requested id and scope.
var ErrNotFound = errors.New("storage: time entry not found")

// ErrNoRow is returned when a write succeeded but storage handed back no row.
var ErrNoRow = errors.New("storage: no row returned")

// Store is the table of time entries. A non-empty userID restricts every
// call to rows carrying that user_id.
type Store interface {
	CreateEntry(ctx context.Context, in models.TimeEntryCreate, userID string) (*models.TimeEntry, error)
	GetEntry(ctx context.Context, id int64, userID string) (*models.TimeEntry, error)
	ListEntries(ctx context.Context, filter models.ListFilter) ([]models.TimeEntry, error)
	UpdateEntry(ctx context.Context, id int64, in models.TimeEntryCreate, userID string) (*models.TimeEntry, error)
	DeleteEntry(ctx context.Context, id int64, userID string) error
	Close() error
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*SupabaseStore)(nil)
)
