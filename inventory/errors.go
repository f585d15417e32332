/*
errors.go - Error taxonomy for inventory operations

PURPOSE:
  Every orchestrator failure falls into one of five categories. Callers
  branch on the category with errors.Is and read details with errors.As.

ERROR CATEGORIES:
  1. Validation  - bad input or a rule violated against current state.
                   Nothing was written.
  2. Not found   - a referenced container, product, entry or batch is absent.
  3. Conflict    - the container changed since it was read. Retry.
  4. Persistence - the store rejected the write set. Nothing was written.
  5. Eligibility - undo refused (type, missing container, expired).

SEE ALSO:
  - api/handlers.go: maps categories to HTTP status codes
*/
package inventory

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when input is invalid for the current state.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a container version check fails at commit.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrPersistence is returned when the store rejects a write set.
	ErrPersistence = errors.New("persistence failed")

	// ErrIneligible is returned when an entry cannot be undone.
	ErrIneligible = errors.New("entry not eligible for undo")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError carries the human-readable reason shown to the operator.
type ValidationError struct {
	Op     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Op == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(op, field, format string, args ...any) error {
	return &ValidationError{Op: op, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ConflictError reports a failed version check.
type ConflictError struct {
	ContainerID ContainerID
	Expected    int64
	Actual      int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("container %s was modified concurrently (expected version %d, found %d)",
		e.ContainerID, e.Expected, e.Actual)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// PersistenceError wraps a store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: could not save changes: %v", e.Op, e.Err)
}

// Unwrap exposes both the category and the underlying store error.
func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// EligibilityError explains why an entry cannot be undone.
type EligibilityError struct {
	EntryID EntryID
	Reason  string
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("cannot undo entry %s: %s", e.EntryID, e.Reason)
}

func (e *EligibilityError) Unwrap() error {
	return ErrIneligible
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrIneligible)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
