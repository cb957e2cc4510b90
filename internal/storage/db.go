package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"diaryx/internal/models"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// Timestamps are stored as fixed-width UTC text so that ORDER BY and range
// comparisons on the column agree with time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

const entryColumns = "id, date, duration_minutes, notes, energy, focus, project, tags, user_id, created_at, updated_at"

// DB is the SQLite-backed time entry table.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn, now: time.Now}, nil
}

// SetClock replaces the time source used for created_at and updated_at.
func (db *DB) SetClock(now func() time.Time) {
	db.now = now
}

// CreateEntry inserts a new time entry and returns the stored row.
func (db *DB) CreateEntry(ctx context.Context, in models.TimeEntryCreate, userID string) (*models.TimeEntry, error) {
	if in.Date == nil {
		return nil, errors.New("storage: date is required")
	}
	tags, err := encodeTags(in.Tags)
	if err != nil {
		return nil, err
	}
	now := formatTime(db.now())

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO time_entries (date, duration_minutes, notes, energy, focus, project, tags, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(in.Date.Time), in.DurationMinutes, in.Notes, in.Energy, in.Focus, in.Project, tags,
		nullString(userID), now, now,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	e, err := db.GetEntry(ctx, id, "")
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoRow
	}
	return e, err
}

// GetEntry retrieves a single time entry by ID.
func (db *DB) GetEntry(ctx context.Context, id int64, userID string) (*models.TimeEntry, error) {
	query := "SELECT " + entryColumns + " FROM time_entries WHERE id = ?"
	args := []any{id}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	e, err := scanEntry(db.conn.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListEntries retrieves entries matching filter, ordered by date descending.
func (db *DB) ListEntries(ctx context.Context, filter models.ListFilter) ([]models.TimeEntry, error) {
	var clauses []string
	var args []any
	if !filter.Start.IsZero() {
		clauses = append(clauses, "date >= ?")
		args = append(args, formatTime(filter.Start))
	}
	if !filter.End.IsZero() {
		clauses = append(clauses, "date <= ?")
		args = append(args, formatTime(filter.End))
	}
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}

	query := "SELECT " + entryColumns + " FROM time_entries"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY date DESC, id DESC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.TimeEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// UpdateEntry replaces every mutable field of an existing entry.
func (db *DB) UpdateEntry(ctx context.Context, id int64, in models.TimeEntryCreate, userID string) (*models.TimeEntry, error) {
	if in.Date == nil {
		return nil, errors.New("storage: date is required")
	}
	tags, err := encodeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	query := `UPDATE time_entries
		SET date = ?, duration_minutes = ?, notes = ?, energy = ?, focus = ?, project = ?, tags = ?, updated_at = ?
		WHERE id = ?`
	args := []any{
		formatTime(in.Date.Time), in.DurationMinutes, in.Notes, in.Energy, in.Focus, in.Project, tags,
		formatTime(db.now()), id,
	}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	result, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return db.GetEntry(ctx, id, userID)
}

// DeleteEntry removes an entry. Deleting an id that matches nothing is not an
// error.
func (db *DB) DeleteEntry(ctx context.Context, id int64, userID string) error {
	query := "DELETE FROM time_entries WHERE id = ?"
	args := []any{id}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	_, err := db.conn.ExecContext(ctx, query, args...)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (models.TimeEntry, error) {
	var (
		e                    models.TimeEntry
		date                 string
		notes, project, tags sql.NullString
		userID               sql.NullString
		energy, focus        sql.NullInt64
		created, updated     string
	)
	if err := s.Scan(&e.ID, &date, &e.DurationMinutes, &notes, &energy, &focus, &project, &tags, &userID, &created, &updated); err != nil {
		return models.TimeEntry{}, err
	}

	var err error
	if e.Date, err = parseTime(date); err != nil {
		return models.TimeEntry{}, err
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return models.TimeEntry{}, err
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return models.TimeEntry{}, err
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &e.Tags); err != nil {
			return models.TimeEntry{}, fmt.Errorf("decode tags for entry %d: %w", e.ID, err)
		}
	}
	e.Notes = stringPtr(notes)
	e.Project = stringPtr(project)
	e.UserID = stringPtr(userID)
	e.Energy = intPtr(energy)
	e.Focus = intPtr(focus)
	return e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(v string) (models.Timestamp, error) {
	t, err := time.Parse(sqliteTimeLayout, v)
	if err != nil {
		return models.Timestamp{}, err
	}
	return models.NewTimestamp(t), nil
}

func encodeTags(tags []string) (any, error) {
	if tags == nil {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
