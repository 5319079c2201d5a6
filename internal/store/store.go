// Package store persists pricing models, customers, pricing runs, import
// history and the audit trail in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// InvalidError reports a record rejected before it reached the database.
type InvalidError struct {
	Message string
}

func (e *InvalidError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &InvalidError{Message: msg}
}

const (
	timestampLayout = "2006-01-02 15:04:05"
	dateLayout      = "2006-01-02"
)

// Store wraps a database handle with typed queries.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New returns a Store backed by db.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB exposes the underlying handle for callers that need their own queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timestampLayout)
}

func parseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t, nil
}

func nullInt(v int64) sql.NullInt64 {
	if v <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
