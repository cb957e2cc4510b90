package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func validCreate() TimeEntryCreate {
	ts := NewTimestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return TimeEntryCreate{Date: &ts, DurationMinutes: 30}
}

func TestValidateCreate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TimeEntryCreate)
		wantErr string
	}{
		{name: "minimal payload", mutate: func(*TimeEntryCreate) {}},
		{name: "ratings at bounds", mutate: func(c *TimeEntryCreate) {
			c.Energy = intPtr(1)
			c.Focus = intPtr(10)
		}},
		{name: "missing date", mutate: func(c *TimeEntryCreate) { c.Date = nil }, wantErr: "date is required"},
		{name: "zero duration", mutate: func(c *TimeEntryCreate) { c.DurationMinutes = 0 }, wantErr: "duration_minutes must be greater than 0"},
		{name: "negative duration", mutate: func(c *TimeEntryCreate) { c.DurationMinutes = -5 }, wantErr: "duration_minutes must be greater than 0"},
		{name: "energy too low", mutate: func(c *TimeEntryCreate) { c.Energy = intPtr(0) }, wantErr: "energy must be at least 1"},
		{name: "focus too high", mutate: func(c *TimeEntryCreate) { c.Focus = intPtr(11) }, wantErr: "focus must be at most 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCreate()
			tt.mutate(&in)
			err := Validate(in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	err := Validate(TimeEntryCreate{Energy: intPtr(42)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 3)
}

func TestQuickAddToCreate(t *testing.T) {
	ts := NewTimestamp(time.Now())
	notes := "placeholder"
	in := TimeEntryQuickAdd{Date: &ts, Notes: &notes}
	require.NoError(t, Validate(in))

	c := in.ToCreate()
	assert.Equal(t, QuickAddDuration, c.DurationMinutes)
	assert.Equal(t, &notes, c.Notes)
	assert.NoError(t, Validate(c))

	assert.Error(t, Validate(TimeEntryQuickAdd{}))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-01-01T00:00:00", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-01-01T09:30:15.250", time.Date(2024, 1, 1, 9, 30, 15, 250_000_000, time.UTC)},
		{"2024-01-01T10:00:00+02:00", time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)},
		{"2024-01-01T10:00:00Z", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-01-01T10:00:00+0200", time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)},
		{"2024-01-01T10:00:00.5-0530", time.Date(2024, 1, 1, 15, 30, 0, 500_000_000, time.UTC)},
		{"2024-01-01 10:00:00+0100", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
		{"2024-01-01 10:00:00+00:00", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-01-01T10:00", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-03-05", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got.Time), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	for _, bad := range []string{"", "yesterday", "2024-13-01", "01/02/2024"} {
		_, err := ParseTimestamp(bad)
		assert.ErrorIs(t, err, ErrInvalidTimestamp, "input %q", bad)
	}
}

func TestTimestampJSON(t *testing.T) {
	var in TimeEntryCreate
	err := json.Unmarshal([]byte(`{"date":"2024-01-01T00:00:00","duration_minutes":30,"notes":"work"}`), &in)
	require.NoError(t, err)
	require.NotNil(t, in.Date)
	assert.Equal(t, "2024-01-01T00:00:00Z", in.Date.String())

	out, err := json.Marshal(TimeEntry{ID: 1, Date: *in.Date, DurationMinutes: 30})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"date":"2024-01-01T00:00:00Z"`)
	assert.NotContains(t, string(out), "user_id")

	err = json.Unmarshal([]byte(`{"date":"not a date"}`), &in)
	assert.ErrorIs(t, err, ErrInvalidTimestamp)

	err = json.Unmarshal([]byte(`{"date":20240101}`), &in)
	assert.ErrorIs(t, err, ErrInvalidTimestamp)

	var nullDate TimeEntryCreate
	require.NoError(t, json.Unmarshal([]byte(`{"date":null}`), &nullDate))
	assert.Nil(t, nullDate.Date)
}

func TestIsDateOnly(t *testing.T) {
	assert.True(t, IsDateOnly("2024-01-31"))
	assert.False(t, IsDateOnly("2024-01-31T10:00:00"))
}
