package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/cyclelog/internal/model"
)

// nullInt converts an optional id to a driver value (NULL when nil).
func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// nullString converts an optional string to a driver value.
func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

// nullTime converts an optional time to a stored timestamp.
func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return model.FormatTime(*v)
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func parseTime(field, v string) (time.Time, error) {
	t, err := model.ParseTime(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", field, err)
	}
	return t, nil
}

func parseNullTime(field string, v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := parseTime(field, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
