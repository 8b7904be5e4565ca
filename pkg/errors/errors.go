package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an application error so callers can map it to a response.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUniqueness
	KindReferentialIntegrity
	KindInvalidTransition
	KindNotFound
	KindMigrationConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUniqueness:
		return "uniqueness_violation"
	case KindReferentialIntegrity:
		return "referential_integrity"
	case KindInvalidTransition:
		return "invalid_state_transition"
	case KindNotFound:
		return "not_found"
	case KindMigrationConflict:
		return "migration_conflict"
	default:
		return "internal"
	}
}

// AppError represents an application error
type AppError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError of the same kind, so the sentinels below work
// with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is checks.
var (
	ErrValidation           = &AppError{Kind: KindValidation}
	ErrUniqueness           = &AppError{Kind: KindUniqueness}
	ErrReferentialIntegrity = &AppError{Kind: KindReferentialIntegrity}
	ErrInvalidTransition    = &AppError{Kind: KindInvalidTransition}
	ErrNotFound             = &AppError{Kind: KindNotFound}
	ErrMigrationConflict    = &AppError{Kind: KindMigrationConflict}
)

// Error constructors
func NewValidation(field, message string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Message: message,
		Field:   field,
	}
}

func NewUniqueness(constraint string, err error) *AppError {
	return &AppError{
		Kind:    KindUniqueness,
		Message: fmt.Sprintf("duplicate value violates %s", constraint),
		Err:     err,
	}
}

// NewReferenced reports a delete rejected because other rows still point at
// the entity, or a write pointing at a missing parent.
func NewReferenced(resource string, err error) *AppError {
	return &AppError{
		Kind:    KindReferentialIntegrity,
		Message: fmt.Sprintf("%s is referenced by other records", resource),
		Err:     err,
	}
}

func NewDanglingReference(resource string, err error) *AppError {
	return &AppError{
		Kind:    KindReferentialIntegrity,
		Message: fmt.Sprintf("%s references a missing record", resource),
		Err:     err,
	}
}

func NewInvalidTransition(resource, from, to string) *AppError {
	return &AppError{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("%s cannot move from %s to %s", resource, from, to),
	}
}

func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewMigrationConflict(message string, err error) *AppError {
	return &AppError{
		Kind:    KindMigrationConflict,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Message: "internal error",
		Err:     err,
	}
}

// KindOf returns the kind of the first AppError in err's chain.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
