/*
errors.go - Centralized error types for the deposit engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Every scheduling failure is a local, deterministic validation failure:
  none of them is transient, so none of them is retryable.

ERROR CATEGORIES:
  1. Calendar resolution - Inheritance ambiguity, missing parent calendars
  2. Configuration gaps  - No rate tier for the requested term
  3. Contract violations - Invalid term, principal or schedule
  4. Store errors        - Missing records, duplicate calendar attachment

USAGE:
  Callers map kinds with errors.Is and pull context with errors.As:

    if errors.Is(err, generic.ErrClientInMultipleGroups) {
        var multi *generic.MultipleGroupsError
        errors.As(err, &multi)
        ...
    }

SEE ALSO:
  - calendar/resolver.go: Returns the calendar resolution kinds
  - maturity/rate.go: Returns ErrInvalidInterestRateForTerm
  - api/handlers.go: Maps kinds to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrClientNotInAnyGroup is returned when calendar inheritance is requested
	// for a client that does not belong to a group.
	ErrClientNotInAnyGroup = errors.New("client is not a member of any group")

	// ErrClientInMultipleGroups is returned when calendar inheritance is
	// requested but the client belongs to several groups.
	ErrClientInMultipleGroups = errors.New("client is a member of more than one group")

	// ErrNoParentCalendar is returned when the group or center to inherit from
	// has no collection calendar.
	ErrNoParentCalendar = errors.New("no collection calendar attached to parent")

	// ErrNoValidRecurringDetails is returned when neither inheritance nor an
	// explicit recurring frequency was supplied.
	ErrNoValidRecurringDetails = errors.New("no valid recurring details")

	// ErrInvalidInterestRateForTerm is returned when no rate tier covers the
	// requested term.
	ErrInvalidInterestRateForTerm = errors.New("no interest rate configured for term")

	// ErrInvalidTerm is returned for contract violations: non-positive term
	// or principal, malformed schedules and similar.
	ErrInvalidTerm = errors.New("invalid deposit term")

	// ErrCalendarAlreadyAttached is returned when an account already owns a
	// calendar instance.
	ErrCalendarAlreadyAttached = errors.New("calendar already attached to owner")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotInGroupError names the client that could not inherit a calendar.
type NotInGroupError struct {
	Owner string
}

func (e *NotInGroupError) Error() string {
	return fmt.Sprintf("%s: %s", ErrClientNotInAnyGroup, e.Owner)
}

func (e *NotInGroupError) Unwrap() error { return ErrClientNotInAnyGroup }

// MultipleGroupsError lists the groups that made inheritance ambiguous.
type MultipleGroupsError struct {
	Owner  string
	Groups []GroupID
}

func (e *MultipleGroupsError) Error() string {
	ids := make([]string, len(e.Groups))
	for i, g := range e.Groups {
		ids[i] = string(g)
	}
	return fmt.Sprintf("%s: %s belongs to [%s]", ErrClientInMultipleGroups, e.Owner, strings.Join(ids, ", "))
}

func (e *MultipleGroupsError) Unwrap() error { return ErrClientInMultipleGroups }

// NoParentCalendarError names the entity that was expected to carry a calendar.
type NoParentCalendarError struct {
	Parent Owner
}

func (e *NoParentCalendarError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNoParentCalendar, e.Parent)
}

func (e *NoParentCalendarError) Unwrap() error { return ErrNoParentCalendar }

// InvalidRateForTermError carries the term that fell outside every tier.
type InvalidRateForTermError struct {
	Tenor Tenor
	Chart string
}

func (e *InvalidRateForTermError) Error() string {
	msg := fmt.Sprintf("%s: %d %s", ErrInvalidInterestRateForTerm, e.Tenor.Length, e.Tenor.Unit)
	if e.Chart != "" {
		msg += " (chart " + e.Chart + ")"
	}
	return msg
}

func (e *InvalidRateForTermError) Unwrap() error { return ErrInvalidInterestRateForTerm }

// InvalidTermError names the offending field.
type InvalidTermError struct {
	Field  string
	Reason string
}

func (e *InvalidTermError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidTerm, e.Field, e.Reason)
}

func (e *InvalidTermError) Unwrap() error { return ErrInvalidTerm }

// NotFoundError describes the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry. Scheduling
// and maturity failures never do.
func IsRetryable(err error) bool {
	return false
}

// IsClientError returns true if the caller can correct the input and try again.
func IsClientError(err error) bool {
	return errors.Is(err, ErrClientNotInAnyGroup) ||
		errors.Is(err, ErrClientInMultipleGroups) ||
		errors.Is(err, ErrNoParentCalendar) ||
		errors.Is(err, ErrNoValidRecurringDetails) ||
		errors.Is(err, ErrInvalidTerm)
}

// IsConfigurationError returns true if the product configuration is incomplete.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidInterestRateForTerm)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Code returns a stable machine-readable code for err, or "internal".
func Code(err error) string {
	switch {
	case errors.Is(err, ErrClientNotInAnyGroup):
		return "client_not_in_any_group"
	case errors.Is(err, ErrClientInMultipleGroups):
		return "client_in_multiple_groups"
	case errors.Is(err, ErrNoParentCalendar):
		return "no_parent_calendar"
	case errors.Is(err, ErrNoValidRecurringDetails):
		return "no_valid_recurring_details"
	case errors.Is(err, ErrInvalidInterestRateForTerm):
		return "invalid_interest_rate_for_term"
	case errors.Is(err, ErrInvalidTerm):
		return "invalid_term"
	case errors.Is(err, ErrCalendarAlreadyAttached):
		return "calendar_already_attached"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
