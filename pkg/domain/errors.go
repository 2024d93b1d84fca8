package domain

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors used to classify domain failures.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

// DomainError carries a sentinel classification and a human-readable message.
type DomainError struct {
	Err     error
	Message string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel so errors.Is works on wrapped domain errors.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{Err: ErrNotFound, Message: fmt.Sprintf("%s not found: %s", entity, id)}
}

// NewNotFoundMessage reports a missing entity with a caller-chosen message.
func NewNotFoundMessage(msg string) *DomainError {
	return &DomainError{Err: ErrNotFound, Message: msg}
}

// NewValidationError reports malformed or missing input.
func NewValidationError(msg string) *DomainError {
	return &DomainError{Err: ErrValidation, Message: msg}
}

// NewForbiddenError reports an identity or authorization-policy rejection.
func NewForbiddenError(msg string) *DomainError {
	return &DomainError{Err: ErrForbidden, Message: msg}
}

// NewConflictError reports a concurrent modification or uniqueness clash.
func NewConflictError(msg string) *DomainError {
	return &DomainError{Err: ErrConflict, Message: msg}
}

// NewUnauthorizedError reports a missing or unusable credential.
func NewUnauthorizedError(msg string) *DomainError {
	return &DomainError{Err: ErrUnauthorized, Message: msg}
}

// IsNotFound reports whether err is classified as not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is classified as a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// MessageOf returns the domain message of err, or "" if err is not a DomainError.
func MessageOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
