/*
Package billing provides the core rules engine for freelance invoicing.

PURPOSE:
  This package contains the pure decision procedures that govern the
  invoice, milestone, and reminder lifecycles. Every function takes
  fully-formed inputs (including the current date, supplied by the
  caller) and returns a result or structured validation errors. There
  is no I/O, no clock access, and no persistence in here.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A currency quantity backed by decimal.Decimal
  - LineItem: A billable row (description, quantity, rate, amount)
  - Invoice/Project/Milestone IDs: Type-safe identifiers
  - Status enumerations for invoices and milestones

DESIGN PRINCIPLES:
  1. Determinism: The caller supplies `now`; nothing reads a system clock
  2. Precision: decimal.Decimal for all currency math, no float drift
  3. Type Safety: Strong typing for IDs prevents mixing invoice/project IDs
  4. Derivation: Totals and overdue status are always derived, never stored
     independently of their inputs

USAGE:
  amount := billing.NewMoney(500)
  item := billing.LineItem{Description: "Design work", Quantity: decimal.NewFromInt(10), Rate: billing.NewMoney(50)}

SEE ALSO:
  - invoice.go: Invoice totals, validation, and status transitions
  - milestone.go: Milestone budget and approval rules
  - reminder.go: Reminder scheduling decisions
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency quantity
// =============================================================================

// Money is a currency amount in a single consistent unit. Rounding to two
// decimal places happens only at display time.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int) Money {
	return Money{Value: decimal.NewFromInt(int64(value))}
}

func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Value: decimal.Zero}
	}
	return Money{Value: d}
}

func (m Money) Add(b Money) Money           { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money           { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Mul(s decimal.Decimal) Money { return Money{Value: m.Value.Mul(s)} }
func (m Money) Neg() Money                  { return Money{Value: m.Value.Neg()} }
func (m Money) IsNegative() bool            { return m.Value.IsNegative() }
func (m Money) IsZero() bool                { return m.Value.IsZero() }
func (m Money) IsPositive() bool            { return m.Value.IsPositive() }
func (m Money) Equal(b Money) bool          { return m.Value.Equal(b.Value) }
func (m Money) GreaterThan(b Money) bool    { return m.Value.GreaterThan(b.Value) }
func (m Money) LessThan(b Money) bool       { return m.Value.LessThan(b.Value) }

// Display rounds to two decimal places. Internal arithmetic is exact.
func (m Money) Display() string { return m.Value.StringFixed(2) }

// Float64 is for the JSON boundary only. Never feed the result back into
// currency arithmetic.
func (m Money) Float64() float64 {
	f, _ := m.Value.Float64()
	return f
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type InvoiceID string
type ProjectID string
type MilestoneID string
type UserID string

// =============================================================================
// INVOICE STATUS - Stored lifecycle states
// =============================================================================

// InvoiceStatus is the persisted invoice state. "Overdue" is deliberately
// absent: it is a derived display value, not a stored state. See
// Invoice.IsOverdue and Invoice.DisplayStatus.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoicePaid || s == InvoiceCancelled
}

// =============================================================================
// MILESTONE STATUS
// =============================================================================

type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "pending"
	MilestoneCompleted MilestoneStatus = "completed"
	MilestoneInvoiced  MilestoneStatus = "invoiced"
	MilestonePaid      MilestoneStatus = "paid"
)

// =============================================================================
// PROJECT ENUMERATIONS
// =============================================================================

// PaymentPolicy decides when milestone work turns into invoices.
type PaymentPolicy string

const (
	// PayPerMilestone: each approved milestone is invoiced immediately.
	PayPerMilestone PaymentPolicy = "milestone"

	// PayAtEnd: a single final invoice once every milestone is completed
	// and client-approved.
	PayAtEnd PaymentPolicy = "end"
)

// ContractStatus gates milestone mutation. Once a contract is active
// (both parties signed), the milestone list is locked.
type ContractStatus string

const (
	ContractDraft  ContractStatus = "draft"
	ContractActive ContractStatus = "active"
	ContractEnded  ContractStatus = "ended"
)

// =============================================================================
// REMINDER CLASSIFICATION
// =============================================================================

// ReminderClass buckets a reminder by how far past due the invoice is.
type ReminderClass string

const (
	ReminderUpcoming    ReminderClass = "upcoming"
	ReminderOverdue     ReminderClass = "overdue"
	ReminderWarning     ReminderClass = "warning"
	ReminderFinalNotice ReminderClass = "final_notice"
)
