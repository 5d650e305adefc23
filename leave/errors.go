/*
errors.go - Centralized error types for the leave engine

ERROR CATEGORIES:
  1. Configuration errors - absence type not set up for the operation
  2. Validation errors - malformed input, rejected before persistence
  3. Lookup errors - missing rows, missing option values

USAGE:
  if errors.Is(err, leave.ErrInvalidConfiguration) {
      // do not retry without reconfiguring the absence type
  }
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidConfiguration is returned when holiday leave generation is
	// attempted for an absence type not flagged for it.
	ErrInvalidConfiguration = errors.New("invalid absence type configuration")

	// ErrNoHolidays is returned when there are no future public holidays.
	// Callers treat it as "nothing to do".
	ErrNoHolidays = errors.New("no future public holidays")

	// ErrNoPublicHolidayAbsenceType is returned when no active absence type
	// has MustTakePublicHolidayAsLeave set.
	ErrNoPublicHolidayAbsenceType = errors.New("no absence type takes public holidays as leave")

	ErrNotFound         = errors.New("not found")
	ErrOptionNotFound   = errors.New("option value not found")
	ErrValidation       = errors.New("validation error")
	ErrInvalidPeriod    = errors.New("invalid period: end before start")
	ErrCancelNotAllowed = errors.New("leave request cannot be cancelled")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidConfigurationError names the absence type that was rejected.
type InvalidConfigurationError struct {
	AbsenceTypeID AbsenceTypeID
	Reason        string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("absence type %s: %s", e.AbsenceTypeID, e.Reason)
}

func (e *InvalidConfigurationError) Unwrap() error { return ErrInvalidConfiguration }

// OptionNotFoundError names the option group and label that did not resolve.
type OptionNotFoundError struct {
	Group OptionGroup
	Label string
}

func (e *OptionNotFoundError) Error() string {
	return fmt.Sprintf("option %q not found in group %s", e.Label, e.Group)
}

func (e *OptionNotFoundError) Unwrap() error { return ErrOptionNotFound }

// ValidationError is returned by save operations for rejected input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing row.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrNoPublicHolidayAbsenceType)
}

// IsNotFound returns true if the error indicates a missing row or option.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrOptionNotFound)
}
