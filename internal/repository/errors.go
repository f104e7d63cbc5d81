package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// notFound maps sql.ErrNoRows to ErrNotFound with context.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

// isUniqueViolation recognises unique-constraint errors from both the
// Postgres and SQLite drivers without importing driver-specific types.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "SQLSTATE=23505") || // pgdriver
		strings.Contains(msg, "duplicate key value")
}
