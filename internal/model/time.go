package model

import (
	"fmt"
	"math"
	"time"
)

// TimeLayout is the stored timestamp format: UTC, millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// DateLayout is the calendar date format used by statistics filters.
const DateLayout = "2006-01-02"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a stored timestamp. Any RFC 3339 string is accepted so
// rows written by older tools with other precisions still load.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Truncate drops precision below what the store keeps.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// RoundMinutes converts a duration to whole minutes, rounding half away
// from zero and clamping negatives to zero.
func RoundMinutes(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Round(d.Minutes()))
}
