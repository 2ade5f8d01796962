package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gumwoo/fivlo/internal/persistence"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrUserNotFound is returned when the acting user does not exist.
	ErrUserNotFound = errors.New("application: user not found")
	// ErrAlreadyExists is returned when a unique resource (such as an email) is taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrInvalidToken is returned for missing, malformed or expired bearer tokens.
	ErrInvalidToken = errors.New("application: invalid token")
	// ErrLedgerWriteConflict is returned when a ledger write kept conflicting
	// after a retry. Callers may try again.
	ErrLedgerWriteConflict = errors.New("application: ledger write conflict")
	// ErrInsufficientCoins is returned when a purchase exceeds the balance.
	ErrInsufficientCoins = errors.New("application: insufficient coins")
	// ErrAlreadyOwned is returned when an item was bought before.
	ErrAlreadyOwned = errors.New("application: item already owned")
	// ErrSessionActive is returned when a user already has a running session.
	ErrSessionActive = errors.New("application: session already running")
	// ErrSessionFinished is returned when completing or abandoning a finished session.
	ErrSessionFinished = errors.New("application: session already finished")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = fmt.Sprintf("%s: %s", field, v.FieldErrors[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

func newValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

// mapRepoError translates persistence sentinels into application errors.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	}
	return err
}
