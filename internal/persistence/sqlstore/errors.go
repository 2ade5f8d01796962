package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/gumwoo/fivlo/internal/persistence"
)

// ErrorMapper maps driver errors to persistence sentinels.
type ErrorMapper struct{}

// NewErrorMapper creates a new error mapper.
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError wraps err with the matching persistence sentinel. Errors that
// already carry one, and unknown errors, are returned unchanged.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}
	if isPersistenceError(err) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", persistence.ErrNotFound, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %v", persistence.ErrConflict, err)
		case "23503", "23514", "23502":
			return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
		}
		return err
	}

	msg := err.Error()
	switch {
	case containsAny(msg, "UNIQUE constraint failed", "PRIMARY KEY constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case containsAny(msg, "database is locked", "database table is locked", "SQLITE_BUSY", "SQLITE_LOCKED"):
		return fmt.Errorf("%w: %v", persistence.ErrConflict, err)
	case containsAny(msg, "FOREIGN KEY constraint failed", "CHECK constraint failed", "NOT NULL constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	return err
}

func isPersistenceError(err error) bool {
	for _, target := range []error{
		persistence.ErrNotFound,
		persistence.ErrDuplicate,
		persistence.ErrConflict,
		persistence.ErrConstraintViolation,
		persistence.ErrInsufficientFunds,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
