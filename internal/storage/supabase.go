package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"diaryx/internal/models"

	"github.com/supabase-community/postgrest-go"
)

// DefaultTable is the table holding time entries on the hosted service.
const DefaultTable = "time_entries"

// NewSupabaseClient returns a PostgREST client for the Supabase project at
// projectURL, authenticating every request with key.
func NewSupabaseClient(projectURL, key string) (*postgrest.Client, error) {
	if projectURL == "" {
		return nil, errors.New("supabase: project URL is required")
	}
	if key == "" {
		return nil, errors.New("supabase: API key is required")
	}
	u, err := url.Parse(strings.TrimRight(projectURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("supabase: parse project URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("supabase: project URL must be http or https, got %q", projectURL)
	}

	client := postgrest.NewClient(u.JoinPath("rest", "v1").String(), "", map[string]string{
		"apikey":        key,
		"Authorization": "Bearer " + key,
	})
	if client.ClientError != nil {
		return nil, fmt.Errorf("supabase: %w", client.ClientError)
	}
	return client, nil
}

// SupabaseStore keeps time entries in a hosted Supabase table.
//
// postgrest-go does not take a context, so ctx is honoured between calls:
// a cancelled request never starts a new round trip.
type SupabaseStore struct {
	client *postgrest.Client
	table  string
}

// NewSupabaseStore wraps an existing client. An empty table means DefaultTable.
func NewSupabaseStore(client *postgrest.Client, table string) *SupabaseStore {
	if table == "" {
		table = DefaultTable
	}
	return &SupabaseStore{client: client, table: table}
}

// entryRow is the writable column set. Nil pointers are sent as JSON null so
// that an update fully replaces the mutable fields.
type entryRow struct {
	Date            string   `json:"date"`
	DurationMinutes int      `json:"duration_minutes"`
	Notes           *string  `json:"notes"`
	Energy          *int     `json:"energy"`
	Focus           *int     `json:"focus"`
	Project         *string  `json:"project"`
	Tags            []string `json:"tags"`
	UserID          *string  `json:"user_id,omitempty"`
}

func toRow(in models.TimeEntryCreate, userID string) (entryRow, error) {
	if in.Date == nil {
		return entryRow{}, errors.New("storage: date is required")
	}
	row := entryRow{
		Date:            in.Date.String(),
		DurationMinutes: in.DurationMinutes,
		Notes:           in.Notes,
		Energy:          in.Energy,
		Focus:           in.Focus,
		Project:         in.Project,
		Tags:            in.Tags,
	}
	if userID != "" {
		row.UserID = &userID
	}
	return row, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatBound(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// CreateEntry inserts one row and returns the stored representation.
func (s *SupabaseStore) CreateEntry(ctx context.Context, in models.TimeEntryCreate, userID string) (*models.TimeEntry, error) {
	row, err := toRow(in, userID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []models.TimeEntry
	if _, err := s.client.From(s.table).Insert(row, false, "", "representation", "").ExecuteTo(&rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRow
	}
	return &rows[0], nil
}

// GetEntry fetches one row by id.
func (s *SupabaseStore) GetEntry(ctx context.Context, id int64, userID string) (*models.TimeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := s.client.From(s.table).Select("*", "", false).Eq("id", formatID(id))
	if userID != "" {
		q = q.Eq("user_id", userID)
	}
	var rows []models.TimeEntry
	if _, err := q.ExecuteTo(&rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// ListEntries reads rows in the filter's range, newest first.
func (s *SupabaseStore) ListEntries(ctx context.Context, filter models.ListFilter) ([]models.TimeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := s.client.From(s.table).Select("*", "", false)
	if !filter.Start.IsZero() {
		q = q.Gte("date", formatBound(filter.Start))
	}
	if !filter.End.IsZero() {
		// The builder keeps one filter per column, so the upper bound on
		// date travels as a single-member or group.
		q = q.Or("date.lte."+formatBound(filter.End), "")
	}
	if filter.UserID != "" {
		q = q.Eq("user_id", filter.UserID)
	}
	q = q.Order("date", &postgrest.OrderOpts{Ascending: false}).
		Order("id", &postgrest.OrderOpts{Ascending: false})

	rows := make([]models.TimeEntry, 0)
	if _, err := q.ExecuteTo(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateEntry patches every mutable column of the row with id.
func (s *SupabaseStore) UpdateEntry(ctx context.Context, id int64, in models.TimeEntryCreate, userID string) (*models.TimeEntry, error) {
	row, err := toRow(in, "")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := s.client.From(s.table).Update(row, "representation", "").Eq("id", formatID(id))
	if userID != "" {
		q = q.Eq("user_id", userID)
	}
	var rows []models.TimeEntry
	if _, err := q.ExecuteTo(&rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// DeleteEntry removes the row with id. The service answers with no body, and
// deleting an id that matches nothing is not an error.
func (s *SupabaseStore) DeleteEntry(ctx context.Context, id int64, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q := s.client.From(s.table).Delete("minimal", "").Eq("id", formatID(id))
	if userID != "" {
		q = q.Eq("user_id", userID)
	}
	_, _, err := q.Execute()
	return err
}

// Close is a no-op; the HTTP client owns no resources that need releasing.
func (s *SupabaseStore) Close() error {
	return nil
}
