package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Timestamp is a point in time that reads any common ISO-8601 form and
// always writes RFC 3339 in UTC.
type Timestamp struct {
	time.Time
}

// ErrInvalidTimestamp wraps every timestamp parse failure.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Layouts accepted by ParseTimestamp, tried in order. Layouts without an
// offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateOnly,
}

// NewTimestamp wraps t, normalized to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// ParseTimestamp parses an ISO-8601 date or date-time.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, fmt.Errorf("%w: value is empty", ErrInvalidTimestamp)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimestamp(t), nil
		}
	}
	return Timestamp{}, fmt.Errorf("%w %q (use ISO-8601, e.g. 2024-01-15T09:30:00 or 2024-01-15)", ErrInvalidTimestamp, s)
}

// IsDateOnly reports whether s is a bare YYYY-MM-DD date.
func IsDateOnly(s string) bool {
	_, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	return err == nil
}

// String formats the timestamp as RFC 3339 in UTC.
func (t Timestamp) String() string {
	return t.UTC().Format(time.RFC3339Nano)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: must be a string", ErrInvalidTimestamp)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
