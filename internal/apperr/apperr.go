// Package apperr defines the closed set of error kinds returned by the invoicing core.
// Handlers render them with httpx.Error; everything else is treated as an internal failure.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports a field value that violates a constraint.
// When several fields fail at once, Violations holds all of them and Field/Constraint
// name the first one in field order.
type ValidationError struct {
	Field      string
	Constraint string
	Violations map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) > 1 {
		keys := make([]string, 0, len(e.Violations))
		for k := range e.Violations {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Violations[k])
		}
		return "validation failed: " + strings.Join(parts, ", ")
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Constraint)
}

// NotFoundError reports a missing invoice or client.
type NotFoundError struct {
	Resource string
	Key      any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.Key)
}

// ConflictError reports a uniqueness or reference constraint violation.
type ConflictError struct {
	Resource string
	Field    string
	Value    any
	Reason   string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s conflict on %s=%v: %s", e.Resource, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("%s with %s=%v already exists", e.Resource, e.Field, e.Value)
}

// SequenceExhaustedError is returned when no free invoice number could be reserved
// within the configured number of attempts. Callers may retry.
type SequenceExhaustedError struct {
	Prefix   string
	Attempts int
	Last     error
}

func (e *SequenceExhaustedError) Error() string {
	return fmt.Sprintf("no free invoice number under prefix %q after %d attempts", e.Prefix, e.Attempts)
}

func (e *SequenceExhaustedError) Unwrap() error { return e.Last }

// TransportError wraps a failure of PDF generation or email dispatch.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return e.Op + " failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Validation builds a single-field ValidationError.
func Validation(field, constraint string) *ValidationError {
	return &ValidationError{
		Field:      field,
		Constraint: constraint,
		Violations: map[string]string{field: constraint},
	}
}

// NotFound builds a NotFoundError.
func NotFound(resource string, key any) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

// Conflict builds a ConflictError for a duplicate value.
func Conflict(resource, field string, value any) *ConflictError {
	return &ConflictError{Resource: resource, Field: field, Value: value}
}

// Transport wraps err as a TransportError for op.
func Transport(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsSequenceExhausted(err error) bool {
	var target *SequenceExhaustedError
	return errors.As(err, &target)
}

func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}
