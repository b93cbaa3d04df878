package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// InsertOutcome is the tri-state result of an insert-if-absent. Distinguishing
// AlreadyExists from a genuine failure lets merge-mode import treat duplicates
// as no-ops without swallowing real errors.
type InsertOutcome int

const (
	// Inserted means a new row was written.
	Inserted InsertOutcome = iota
	// AlreadyExists means a row with the same key was already present and
	// was left untouched.
	AlreadyExists
)

const timeLayout = time.RFC3339Nano

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encodeTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: encodeTime(*t), Valid: true}
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func decodeTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// isUniqueViolation reports whether err is a primary-key or unique-constraint
// failure from the SQLite driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
