package models

import "time"

// TimeEntry represents a recorded block of time.
type TimeEntry struct {
	ID              int64     `json:"id"`
	Date            Timestamp `json:"date"`
	DurationMinutes int       `json:"duration_minutes"`
	Notes           *string   `json:"notes"`
	Energy          *int      `json:"energy"`
	Focus           *int      `json:"focus"`
	Project         *string   `json:"project"`
	Tags            []string  `json:"tags"`
	UserID          *string   `json:"user_id,omitempty"`
	CreatedAt       Timestamp `json:"created_at"`
	UpdatedAt       Timestamp `json:"updated_at"`
}

// TimeEntryCreate is the payload for creating or fully replacing an entry.
type TimeEntryCreate struct {
	Date            *Timestamp `json:"date" validate:"required"`
	DurationMinutes int        `json:"duration_minutes" validate:"gt=0"`
	Notes           *string    `json:"notes"`
	Energy          *int       `json:"energy" validate:"omitempty,min=1,max=10"`
	Focus           *int       `json:"focus" validate:"omitempty,min=1,max=10"`
	Project         *string    `json:"project"`
	Tags            []string   `json:"tags"`
}

// QuickAddDuration is the duration given to entries created through quick-add.
const QuickAddDuration = 1

// TimeEntryQuickAdd is the payload for seeding a placeholder entry.
type TimeEntryQuickAdd struct {
	Date  *Timestamp `json:"date" validate:"required"`
	Notes *string    `json:"notes"`
}

// ToCreate expands a quick-add payload into a full create payload.
func (q TimeEntryQuickAdd) ToCreate() TimeEntryCreate {
	return TimeEntryCreate{
		Date:            q.Date,
		DurationMinutes: QuickAddDuration,
		Notes:           q.Notes,
	}
}

// ListFilter narrows a listing. Zero values mean no bound.
type ListFilter struct {
	Start  time.Time
	End    time.Time
	UserID string
}
