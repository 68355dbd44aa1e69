package values

import (
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed-width millisecond UTC, so serialized timestamps order
// lexicographically. Every timestamp persisted to the document store uses
// this form; range queries on timestamp fields depend on it.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Time is a UTC timestamp with millisecond precision. It exists so that
// document-store range queries over timestamp fields compare correctly as
// strings; construction truncates to the stored precision.
type Time struct {
	time.Time
}

// NewTime converts a time.Time to stored precision
func NewTime(t time.Time) Time {
	return Time{t.UTC().Truncate(time.Millisecond)}
}

// Now returns the current time at stored precision
func Now() Time {
	return NewTime(time.Now())
}

// ParseTime parses a stored timestamp string
func ParseTime(s string) (Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return NewTime(t), nil
}

// Key returns the canonical string form used for store ordering
func (t Time) Key() string {
	return t.UTC().Format(timeLayout)
}

// MarshalJSON writes the fixed-width layout
func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Key() + `"`), nil
}

// UnmarshalJSON accepts any RFC 3339 form and truncates to stored precision
func (t *Time) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*t = Time{}
		return nil
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Add returns the timestamp shifted by d, at stored precision
func (t Time) Add(d time.Duration) Time {
	return NewTime(t.Time.Add(d))
}

// Before reports whether t is before other
func (t Time) Before(other Time) bool {
	return t.Time.Before(other.Time)
}

// After reports whether t is after other
func (t Time) After(other Time) bool {
	return t.Time.After(other.Time)
}

// Equal reports whether the timestamps are the same instant
func (t Time) Equal(other Time) bool {
	return t.Time.Equal(other.Time)
}
