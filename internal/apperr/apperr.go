// Package apperr defines the error taxonomy shared by every resource
// service: validation failures, uniqueness conflicts, missing references,
// missing targets, forbidden state transitions, and storage failures.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a service error for transport-layer mapping.
type Kind int

const (
	// KindUnknown covers errors produced outside the taxonomy.
	KindUnknown Kind = iota
	// KindValidation marks malformed or missing required input.
	KindValidation
	// KindDuplicate marks a uniqueness violation on create or update.
	KindDuplicate
	// KindRefNotFound marks a referenced foreign entity that does not exist.
	KindRefNotFound
	// KindNotFound marks a missing primary target.
	KindNotFound
	// KindInvalidTransition marks a state-machine operation invoked from a
	// state that forbids it.
	KindInvalidTransition
	// KindStorage marks an unclassified failure of the underlying store.
	KindStorage
)

// Error carries a classified failure with optional field and entity context.
type Error struct {
	kind   Kind
	field  string
	entity string
	msg    string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil && e.msg != "" {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	if e.cause != nil {
		return e.cause.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Kind reports the classification of the error.
func (e *Error) Kind() Kind {
	return e.kind
}

// Field names the offending field for validation and duplicate errors.
func (e *Error) Field() string {
	return e.field
}

// Entity names the missing entity for not-found style errors.
func (e *Error) Entity() string {
	return e.entity
}

// Validation builds a field-level input error.
func Validation(field, msg string) error {
	return &Error{kind: KindValidation, field: field, msg: msg}
}

// Duplicate builds a uniqueness-violation error naming the conflicting field.
func Duplicate(field string) error {
	return &Error{kind: KindDuplicate, field: field, msg: fmt.Sprintf("%s already exists", field)}
}

// RefNotFound builds an error for a dangling foreign reference.
func RefNotFound(entity string) error {
	return &Error{kind: KindRefNotFound, entity: entity, msg: fmt.Sprintf("referenced %s does not exist", entity)}
}

// NotFound builds an error for a missing primary target.
func NotFound(entity string) error {
	return &Error{kind: KindNotFound, entity: entity, msg: fmt.Sprintf("%s not found", entity)}
}

// InvalidTransition builds an error for a forbidden state change.
func InvalidTransition(from, to string) error {
	return &Error{kind: KindInvalidTransition, msg: fmt.Sprintf("cannot transition from %s to %s", from, to)}
}

// Storage wraps an unclassified store failure.
func Storage(cause error) error {
	return &Error{kind: KindStorage, msg: "storage failure", cause: cause}
}

// KindOf extracts the Kind from any error in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.kind
	}
	return KindUnknown
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// FieldOf extracts the field name from a classified error, if any.
func FieldOf(err error) string {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.field
	}
	return ""
}
