package store

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalid is returned when input fails validation.
	ErrInvalid = errors.New("invalid input")
)

// ValidationError describes which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalid.
func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// notFound maps sql.ErrNoRows onto ErrNotFound.
func notFound(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("load %s %d: %w", what, id, err)
}
