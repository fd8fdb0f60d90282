/*
milestone.go - Milestone budget, completion, and approval rules

PURPOSE:
  Implements the project -> milestone -> invoice lifecycle. Milestones
  are owned by exactly one project and live embedded in its milestone
  list; they never exist on their own.

MILESTONE STATE MACHINE:

   pending ──(Complete)──▶ completed ──(invoice created)──▶ invoiced
                                                               │
                                              (external payment event)
                                                               ▼
                                                             paid

  Client approval is an orthogonal boolean flag, not a state. When
  RequiresClientApproval is set, the pending -> completed edge is gated
  on ClientApproved. There is no way back out of invoiced or paid.

BUDGET INVARIANT:
  The sum of milestone percentages must not exceed 100 at the moment a
  milestone is ADDED. The check runs against the pre-existing sum only;
  editing earlier milestones down does not trigger re-validation of the
  set. This mirrors the behavior the product shipped with.

CONTRACT LOCK:
  Once the project's contract is active (both parties signed), the
  milestone list is immutable: no add, edit, or delete.

INVOICING SIGNAL:
  OnMilestoneApproved tells the application whether to invoice now
  (pay-per-milestone) or whether the whole project just became ready
  for its single final invoice (pay-at-end). Constructing and
  persisting the invoice is the application's job; this package only
  supplies the line item.

SEE ALSO:
  - invoice.go: The invoice the approval signal feeds into
  - errors.go: ErrBudgetExceeded, ErrContractLocked, ...
*/
package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var oneQuantity = decimal.NewFromInt(1)

// =============================================================================
// PROJECT - Owns its milestone list
// =============================================================================

// Project is the snapshot the milestone rules operate on. Only the fields
// the lifecycle needs are modeled; the application owns everything else.
type Project struct {
	ID             ProjectID
	FreelancerID   UserID
	ClientID       string
	ClientEmail    string
	Title          string
	PaymentPolicy  PaymentPolicy
	ContractStatus ContractStatus
	Milestones     []Milestone
}

// MilestoneByID returns a pointer into the project's milestone list, or nil.
func (p *Project) MilestoneByID(id MilestoneID) *Milestone {
	for i := range p.Milestones {
		if p.Milestones[i].ID == id {
			return &p.Milestones[i]
		}
	}
	return nil
}

// PercentageAllocated sums the percentages of all current milestones.
func (p *Project) PercentageAllocated() int {
	sum := 0
	for _, m := range p.Milestones {
		sum += m.Percentage
	}
	return sum
}

// =============================================================================
// MILESTONE
// =============================================================================

type Milestone struct {
	ID          MilestoneID
	Title       string
	Description string
	Percentage  int // 0-100, share of the project budget
	Amount      Money
	Status      MilestoneStatus
	DueDate     Date

	// Completion
	Evidence    string
	CompletedAt *Date
	CompletedBy UserID

	// Client approval (orthogonal flag, not a state)
	RequiresClientApproval bool
	ClientApproved         bool
	ClientApprovedAt       *Date

	// Set once an invoice has been generated for this milestone
	InvoiceID InvoiceID
}

// MilestoneInput is what the freelancer supplies when adding a milestone.
// Explicit named fields with documented defaults; no partial option bags.
type MilestoneInput struct {
	Title                  string
	Description            string
	Percentage             int
	Amount                 Money
	DueDate                Date
	RequiresClientApproval bool
}

// =============================================================================
// BUDGET - Percentage sum may never exceed 100 at add time
// =============================================================================

// CanAddMilestone reports whether a milestone of newPercentage fits the
// remaining budget given the pre-existing milestones.
func CanAddMilestone(existing []Milestone, newPercentage int) bool {
	sum := 0
	for _, m := range existing {
		sum += m.Percentage
	}
	return sum+newPercentage <= 100
}

// AddMilestone validates and appends a new milestone to the project.
// Fails with ErrContractLocked once the contract is active, and with a
// BudgetError when the percentage budget would be exceeded. The milestone
// ID is derived from `now` (time-based, matching how the product generates
// client-side IDs).
func AddMilestone(project *Project, input MilestoneInput, now time.Time) (*Milestone, error) {
	if project.ContractStatus == ContractActive {
		return nil, ErrContractLocked
	}
	if !CanAddMilestone(project.Milestones, input.Percentage) {
		return nil, &BudgetError{
			ProjectID: project.ID,
			Allocated: project.PercentageAllocated(),
			Requested: input.Percentage,
		}
	}

	m := Milestone{
		ID:                     MilestoneID(fmt.Sprintf("ms-%d", now.UnixNano())),
		Title:                  input.Title,
		Description:            input.Description,
		Percentage:             input.Percentage,
		Amount:                 input.Amount,
		Status:                 MilestonePending,
		DueDate:                input.DueDate,
		RequiresClientApproval: input.RequiresClientApproval,
		ClientApproved:         false,
	}
	project.Milestones = append(project.Milestones, m)
	return &project.Milestones[len(project.Milestones)-1], nil
}

// =============================================================================
// COMPLETION - Evidence plus (optionally) client approval
// =============================================================================

// CompleteMilestone moves a pending milestone to completed. The approval
// gate is checked first: a milestone that requires client approval fails
// with ErrApprovalRequired regardless of the evidence supplied. Evidence
// is mandatory in all cases.
func CompleteMilestone(m *Milestone, evidence string, actingUser UserID, now Date) error {
	if m.Status != MilestonePending {
		return fmt.Errorf("milestone %s is %s: %w", m.ID, m.Status, ErrInvalidTransition)
	}
	if m.RequiresClientApproval && !m.ClientApproved {
		return ErrApprovalRequired
	}
	if strings.TrimSpace(evidence) == "" {
		return ErrEvidenceRequired
	}

	completed := now
	m.Status = MilestoneCompleted
	m.Evidence = evidence
	m.CompletedAt = &completed
	m.CompletedBy = actingUser
	return nil
}

// ClientApprove records the client's approval. Idempotent: approving an
// already-approved milestone changes nothing and reports no error, so
// duplicate clicks never produce duplicate side effects.
func ClientApprove(m *Milestone, now Date) {
	if m.ClientApproved {
		return
	}
	approved := now
	m.ClientApproved = true
	m.ClientApprovedAt = &approved
}

// MarkInvoiced links the milestone to its generated invoice. Called by the
// application after it has persisted the invoice.
func MarkInvoiced(m *Milestone, invoiceID InvoiceID) error {
	if m.Status != MilestoneCompleted {
		return fmt.Errorf("milestone %s is %s: %w", m.ID, m.Status, ErrInvalidTransition)
	}
	m.Status = MilestoneInvoiced
	m.InvoiceID = invoiceID
	return nil
}

// MarkPaid records the external payment event for an invoiced milestone.
func MarkPaid(m *Milestone) error {
	if m.Status != MilestoneInvoiced {
		return fmt.Errorf("milestone %s is %s: %w", m.ID, m.Status, ErrInvalidTransition)
	}
	m.Status = MilestonePaid
	return nil
}

// =============================================================================
// APPROVAL OUTCOME - What the application should do next
// =============================================================================

// ApprovalOutcome is the signal OnMilestoneApproved hands back to the
// invoice-creation boundary.
type ApprovalOutcome struct {
	// ShouldInvoiceNow: create an invoice for this milestone immediately
	// (pay-per-milestone projects).
	ShouldInvoiceNow bool

	// ShouldCompleteProject: every milestone is completed/paid and
	// client-approved; the project is ready for its single final invoice
	// (pay-at-end projects).
	ShouldCompleteProject bool
}

// OnMilestoneApproved decides the invoicing side effect after a client
// approval. Under PayPerMilestone the milestone is invoiced immediately.
// Under PayAtEnd nothing is invoiced per-milestone; instead the project
// completes once all milestones are completed or paid with client approval.
func OnMilestoneApproved(project *Project, m *Milestone) ApprovalOutcome {
	if project.PaymentPolicy == PayPerMilestone {
		return ApprovalOutcome{ShouldInvoiceNow: true}
	}

	for _, other := range project.Milestones {
		done := other.Status == MilestoneCompleted || other.Status == MilestonePaid
		if !done || !other.ClientApproved {
			return ApprovalOutcome{}
		}
	}
	return ApprovalOutcome{ShouldCompleteProject: true}
}

// LineItemForMilestone builds the single line item for a per-milestone
// invoice: quantity 1 at the milestone's amount, described by its title
// and description.
func LineItemForMilestone(m *Milestone) LineItem {
	desc := m.Title
	if strings.TrimSpace(m.Description) != "" {
		desc = m.Title + " - " + m.Description
	}
	item := LineItem{
		Description: desc,
		Quantity:    oneQuantity,
		Rate:        m.Amount,
	}
	item.Amount = item.Rate.Mul(item.Quantity)
	return item
}
