/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The surrounding application maps these to HTTP statuses.

ERROR CATEGORIES:
  1. Validation failures - business-rule violations, returned as a
     complete Violations list so the caller can surface every problem
     at once (never just the first).
  2. Invalid-transition failures - a state change the lifecycle graph
     does not permit. These indicate a caller bug and fail hard.
  3. Not-found errors - referenced records that do not exist.

USAGE:
  The application can classify errors:

    if errors.Is(err, billing.ErrBudgetExceeded) {
        // 409 Conflict
    }

SEE ALSO:
  - invoice.go: Uses ErrInvalidTransition
  - milestone.go: Uses ErrBudgetExceeded, ErrApprovalRequired, ...
  - reminder.go: Uses ErrInvalidThresholds
*/
package billing

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTransition is returned when a status change is not an edge
	// of the invoice or milestone lifecycle graph. This is a caller bug,
	// not user input: fail fast, never silently no-op.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrBudgetExceeded is returned when adding a milestone would push the
	// project's percentage sum past 100.
	ErrBudgetExceeded = errors.New("milestone percentage budget exceeded")

	// ErrContractLocked is returned when milestones are mutated after the
	// project's contract became active.
	ErrContractLocked = errors.New("contract is active; milestones are locked")

	// ErrApprovalRequired is returned when completing a milestone that
	// still needs client approval.
	ErrApprovalRequired = errors.New("client approval required")

	// ErrEvidenceRequired is returned when completing a milestone with no
	// evidence attached.
	ErrEvidenceRequired = errors.New("completion evidence required")

	// ErrInvalidThresholds is returned when reminder settings violate the
	// warning/final-notice ordering invariant.
	ErrInvalidThresholds = errors.New("invalid reminder thresholds")

	// ErrInvoiceNotFound is returned when a referenced invoice doesn't exist.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrProjectNotFound is returned when a referenced project doesn't exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrMilestoneNotFound is returned when a referenced milestone doesn't exist.
	ErrMilestoneNotFound = errors.New("milestone not found")

	// ErrDuplicateReminder is returned when a reminder with the same
	// idempotency key was already recorded. Expected on scheduler re-runs.
	ErrDuplicateReminder = errors.New("reminder already sent")
)

// =============================================================================
// VALIDATION - Complete violation lists, never a single hidden failure
// =============================================================================

// Violation is one business-rule failure on a specific field.
type Violation struct {
	Field   string // e.g. "lineItems[2].quantity"
	Code    string // e.g. "negative", "required"
	Message string
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Violations is the full set of problems found by a validation pass.
// An empty list means the input is valid.
type Violations []Violation

func (vs Violations) Error() string {
	msgs := make([]string, len(vs))
	for i, v := range vs {
		msgs[i] = v.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// OK reports whether no violations were found.
func (vs Violations) OK() bool { return len(vs) == 0 }

// AsError returns the list as an error, or nil when empty.
func (vs Violations) AsError() error {
	if len(vs) == 0 {
		return nil
	}
	return vs
}

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TransitionError reports a rejected lifecycle edge.
type TransitionError struct {
	InvoiceID InvoiceID
	From      InvoiceStatus
	To        InvoiceStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invoice %s: cannot transition %s -> %s", e.InvoiceID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// BudgetError reports a rejected milestone addition with the numbers involved.
type BudgetError struct {
	ProjectID ProjectID
	Allocated int // sum of pre-existing milestone percentages
	Requested int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("project %s: %d%% allocated, adding %d%% would exceed 100%%",
		e.ProjectID, e.Allocated, e.Requested)
}

func (e *BudgetError) Unwrap() error { return ErrBudgetExceeded }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// (surfaced to the user as 4xx rather than treated as a defect).
func IsClientError(err error) bool {
	var vs Violations
	return errors.As(err, &vs) ||
		errors.Is(err, ErrBudgetExceeded) ||
		errors.Is(err, ErrContractLocked) ||
		errors.Is(err, ErrApprovalRequired) ||
		errors.Is(err, ErrEvidenceRequired) ||
		errors.Is(err, ErrInvalidThresholds)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrMilestoneNotFound)
}
