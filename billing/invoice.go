/*
invoice.go - Invoice totals, validation, and status transitions

PURPOSE:
  Implements the invoice lifecycle: draft -> sent -> paid, with
  cancellation from draft or sent. Totals are a pure function of the
  line items and tax rate; they are recomputed on every mutation so a
  stale total can never persist.

LIFECYCLE:

   draft ──(Send)──▶ sent ──(MarkPaid)──▶ paid
     │                 │
     └──(Cancel)──▶ cancelled ◀──(Cancel)──┘

  paid and cancelled are terminal. Any other edge fails with
  ErrInvalidTransition.

OVERDUE IS DERIVED:
  An invoice whose stored status is "sent" and whose due date has
  passed is *displayed* as overdue, but its stored status stays "sent"
  until it is explicitly marked paid or cancelled. IsOverdue is a
  predicate over (invoice, today), not a stored state.

NUMERIC SEMANTICS:
  All currency arithmetic is exact decimal in a single unit. Rounding
  to two decimal places happens only at display time.

SEE ALSO:
  - types.go: Money, InvoiceStatus
  - reminder.go: Uses IsOverdue indirectly via due-date arithmetic
*/
package billing

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INVOICE - The billable document
// =============================================================================

// LineItem is one billable row. Amount is always Quantity x Rate; it is
// recomputed by ComputeTotals, never set independently.
type LineItem struct {
	Description string
	Quantity    decimal.Decimal
	Rate        Money
	Amount      Money
}

// Invoice is a full invoice snapshot. The party fields are informational
// and only checked for presence where marked required.
type Invoice struct {
	ID     InvoiceID
	Number string // e.g. INV-202603-4821, assigned by the application

	// Parties
	ClientID        string
	ClientName      string
	ClientEmail     string
	FreelancerID    UserID
	FreelancerName  string
	FreelancerEmail string

	// Optional link back to the project/milestone that produced this invoice
	ProjectID   ProjectID
	MilestoneID MilestoneID

	// Financials
	LineItems   []LineItem
	TaxRate     decimal.Decimal // fraction, e.g. 0.06
	Subtotal    Money
	TaxAmount   Money
	TotalAmount Money

	// Stored status; never "overdue" (derived, see DisplayStatus)
	Status InvoiceStatus

	// Dates
	IssueDate Date
	DueDate   Date
	SentAt    *Date // set only on draft -> sent
	PaidDate  *Date // set only on sent -> paid

	Notes string
}

// DefaultTaxRate is applied when an invoice is created without an
// explicit rate.
var DefaultTaxRate = decimal.NewFromFloat(0.06)

// =============================================================================
// TOTALS - Single source of truth for the arithmetic
// =============================================================================

// Totals is the derived financial summary of a line-item set.
type Totals struct {
	Subtotal    Money
	TaxAmount   Money
	TotalAmount Money
}

// ComputeTotals derives subtotal, tax, and total from line items and a tax
// rate. Pure function; the returned items slice has every Amount set to
// Quantity x Rate.
//
//	subtotal    = sum(quantity_i * rate_i)
//	taxAmount   = subtotal * taxRate
//	totalAmount = subtotal + taxAmount
func ComputeTotals(items []LineItem, taxRate decimal.Decimal) Totals {
	subtotal := Money{Value: decimal.Zero}
	for _, item := range items {
		subtotal = subtotal.Add(item.Rate.Mul(item.Quantity))
	}
	tax := subtotal.Mul(taxRate)
	return Totals{
		Subtotal:    subtotal,
		TaxAmount:   tax,
		TotalAmount: subtotal.Add(tax),
	}
}

// Recalculate overwrites the invoice's stored totals from its current line
// items and tax rate, stamping each line item's Amount as well. Call this
// after EVERY line-item or tax-rate mutation; a stale total must never
// outlive the mutation that invalidated it.
func (inv *Invoice) Recalculate() {
	for i := range inv.LineItems {
		inv.LineItems[i].Amount = inv.LineItems[i].Rate.Mul(inv.LineItems[i].Quantity)
	}
	t := ComputeTotals(inv.LineItems, inv.TaxRate)
	inv.Subtotal = t.Subtotal
	inv.TaxAmount = t.TaxAmount
	inv.TotalAmount = t.TotalAmount
}

// =============================================================================
// VALIDATION - Full list of violations, not just the first
// =============================================================================

// Validate returns every business-rule violation on the invoice. An empty
// result means the invoice may be persisted/sent.
func (inv *Invoice) Validate() Violations {
	var vs Violations

	if strings.TrimSpace(inv.ClientEmail) == "" && strings.TrimSpace(inv.ClientID) == "" {
		vs = append(vs, Violation{
			Field:   "clientEmail",
			Code:    "required",
			Message: "client email or client id is required",
		})
	}
	if inv.DueDate.IsZero() {
		vs = append(vs, Violation{
			Field:   "dueDate",
			Code:    "required",
			Message: "due date is required",
		})
	}
	if len(inv.LineItems) == 0 {
		vs = append(vs, Violation{
			Field:   "lineItems",
			Code:    "required",
			Message: "at least one line item is required",
		})
	}

	for i, item := range inv.LineItems {
		field := func(name string) string {
			return "lineItems[" + strconv.Itoa(i) + "]." + name
		}
		if strings.TrimSpace(item.Description) == "" {
			vs = append(vs, Violation{
				Field:   field("description"),
				Code:    "required",
				Message: "description is required",
			})
		}
		if item.Quantity.IsNegative() {
			vs = append(vs, Violation{
				Field:   field("quantity"),
				Code:    "negative",
				Message: "quantity must be >= 0",
			})
		}
		if item.Rate.IsNegative() {
			vs = append(vs, Violation{
				Field:   field("rate"),
				Code:    "negative",
				Message: "rate must be >= 0",
			})
		}
	}

	if inv.TotalAmount.IsNegative() {
		vs = append(vs, Violation{
			Field:   "totalAmount",
			Code:    "negative",
			Message: "total amount must be >= 0",
		})
	}

	return vs
}

// =============================================================================
// TRANSITIONS - The lifecycle graph
// =============================================================================

// Transition moves the invoice to target and stamps the matching date
// field. Allowed edges:
//
//	draft -> sent       (SentAt = now)
//	draft -> cancelled
//	sent  -> paid       (PaidDate = now)
//	sent  -> cancelled
//
// Everything else (including any edge out of paid/cancelled, and "overdue"
// as a target) fails with a TransitionError wrapping ErrInvalidTransition.
func (inv *Invoice) Transition(target InvoiceStatus, now Date) error {
	if !transitionAllowed(inv.Status, target) {
		return &TransitionError{InvoiceID: inv.ID, From: inv.Status, To: target}
	}

	switch target {
	case InvoiceSent:
		sent := now
		inv.SentAt = &sent
	case InvoicePaid:
		paid := now
		inv.PaidDate = &paid
	}
	inv.Status = target
	return nil
}

func transitionAllowed(from, to InvoiceStatus) bool {
	switch from {
	case InvoiceDraft:
		return to == InvoiceSent || to == InvoiceCancelled
	case InvoiceSent:
		return to == InvoicePaid || to == InvoiceCancelled
	default:
		// paid and cancelled are terminal
		return false
	}
}

// =============================================================================
// OVERDUE - Derived predicate, independent of stored status
// =============================================================================

// IsOverdue reports whether the invoice is past due as of `now`. Always
// false for paid/cancelled invoices and invoices without a due date.
func (inv *Invoice) IsOverdue(now Date) bool {
	if inv.Status.IsTerminal() {
		return false
	}
	if inv.DueDate.IsZero() {
		return false
	}
	return now.After(inv.DueDate)
}

// DisplayStatus returns the status shown to users: "Overdue" replaces
// "Sent" once the due date has passed; the stored status is otherwise
// returned capitalized.
func (inv *Invoice) DisplayStatus(now Date) string {
	if inv.Status == InvoiceSent && inv.IsOverdue(now) {
		return "Overdue"
	}
	return capitalize(string(inv.Status))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
