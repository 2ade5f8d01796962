package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConflict is returned for transient write conflicts (lock contention,
	// serialization failures) that are safe to retry.
	ErrConflict = errors.New("persistence: write conflict")
	// ErrConstraintViolation is returned when a write breaks a foreign key or
	// check constraint, or when required identifiers are missing.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrInsufficientFunds is returned when a debit would leave a negative balance.
	ErrInsufficientFunds = errors.New("persistence: insufficient funds")
)
