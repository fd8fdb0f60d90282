/*
spec_test.go - Specification Tests for the Billing Engine

PURPOSE:
  These tests serve as EXECUTABLE SPECIFICATIONS of the system design.
  Each test documents a specific behavior from DESIGN.md and validates
  that the implementation conforms to it.

ORGANIZATION:
  Tests are grouped by specification area:
  1. Totals Consistency - total == subtotal + tax, no drift
  2. Transition Closure - terminal states reject every edge
  3. Overdue Independence - derived display, stored status untouched
  4. Milestone Budget - accepted percentage sum never exceeds 100
  5. Approval Gating - approval always checked before evidence
  6. Reminder Day-Exactness - offsets fire on their day and no other

READING THESE TESTS:
  Each test has:
  - A descriptive name that states the behavior
  - GIVEN/WHEN/THEN comments explaining the scenario
  - Clear assertions with explanatory messages

These tests are intentionally verbose for documentation purposes.
*/
package billing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// 1. TOTALS CONSISTENCY
// =============================================================================

func TestSpec_Totals_TenAtFiftyWithSixPercentTax(t *testing.T) {
	// GIVEN: lineItems [{qty:10, rate:50}], taxRate 0.06
	// THEN: subtotal=500, taxAmount=30, totalAmount=530

	totals := billing.ComputeTotals(
		[]billing.LineItem{item("work", 10, 50)},
		decimal.NewFromFloat(0.06),
	)

	if totals.Subtotal.Display() != "500.00" ||
		totals.TaxAmount.Display() != "30.00" ||
		totals.TotalAmount.Display() != "530.00" {
		t.Errorf("expected 500.00/30.00/530.00, got %s/%s/%s",
			totals.Subtotal.Display(), totals.TaxAmount.Display(), totals.TotalAmount.Display())
	}
}

func TestSpec_Totals_AlwaysConsistentWithCurrentLineItems(t *testing.T) {
	// GIVEN: An invoice whose line items change repeatedly
	// WHEN: Recalculate runs after each mutation
	// THEN: Stored totals always equal a fresh computation over the
	//       current items; removed items leave no residue

	inv := draftInvoice()
	inv.LineItems = append(inv.LineItems, item("extra", 4, 25))
	inv.Recalculate()
	inv.LineItems = inv.LineItems[:1]
	inv.Recalculate()

	want := billing.ComputeTotals(inv.LineItems, inv.TaxRate)
	if !inv.TotalAmount.Equal(want.TotalAmount) || !inv.Subtotal.Equal(want.Subtotal) {
		t.Errorf("stored totals drifted: %s/%s vs %s/%s",
			inv.Subtotal.Display(), inv.TotalAmount.Display(),
			want.Subtotal.Display(), want.TotalAmount.Display())
	}
	if !inv.TotalAmount.Equal(inv.Subtotal.Add(inv.TaxAmount)) {
		t.Error("total != subtotal + tax")
	}
}

// =============================================================================
// 2. TRANSITION CLOSURE
// =============================================================================

func TestSpec_Transitions_DraftReachesOnlySentAndCancelled(t *testing.T) {
	// GIVEN: A draft invoice
	// THEN: sent and cancelled are reachable in one step; paid is not

	now := date(2026, time.August, 5)

	for _, to := range []billing.InvoiceStatus{billing.InvoiceSent, billing.InvoiceCancelled} {
		inv := draftInvoice()
		if err := inv.Transition(to, now); err != nil {
			t.Errorf("draft -> %s should succeed, got %v", to, err)
		}
	}

	inv := draftInvoice()
	if err := inv.Transition(billing.InvoicePaid, now); !errors.Is(err, billing.ErrInvalidTransition) {
		t.Errorf("draft -> paid should fail, got %v", err)
	}
}

func TestSpec_Transitions_TerminalStatesAreClosed(t *testing.T) {
	// GIVEN: Invoices in paid and cancelled
	// THEN: IsTerminal holds and every outgoing edge fails

	for _, s := range []billing.InvoiceStatus{billing.InvoicePaid, billing.InvoiceCancelled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

// =============================================================================
// 3. OVERDUE INDEPENDENCE
// =============================================================================

func TestSpec_Overdue_NeverAStoredStatus(t *testing.T) {
	// GIVEN: A sent invoice past its due date
	// THEN: isOverdue=true and displayStatus="Overdue" while the stored
	//       status remains "sent" until explicitly transitioned

	inv := draftInvoice()
	if err := inv.Transition(billing.InvoiceSent, inv.IssueDate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	later := inv.DueDate.AddDays(10)

	if !inv.IsOverdue(later) {
		t.Error("expected overdue")
	}
	if inv.DisplayStatus(later) != "Overdue" {
		t.Errorf("expected display Overdue, got %q", inv.DisplayStatus(later))
	}
	if inv.Status != billing.InvoiceSent {
		t.Errorf("stored status must stay sent, got %s", inv.Status)
	}

	// Paying it clears the derived flag regardless of the calendar.
	if err := inv.Transition(billing.InvoicePaid, later); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.IsOverdue(later.AddDays(100)) {
		t.Error("paid invoices are never overdue")
	}
}

// =============================================================================
// 4. MILESTONE BUDGET
// =============================================================================

func TestSpec_Budget_RunningSumNeverExceedsHundred(t *testing.T) {
	// GIVEN: A sequence of addMilestone calls at 40%, 40%, 20%, 10%
	// THEN: The first three are accepted (sum 100), the fourth is
	//       rejected, and the milestone set is unchanged by the rejection

	p := billing.Project{ID: "proj-1", PaymentPolicy: billing.PayPerMilestone}
	at := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)

	for i, pct := range []int{40, 40, 20} {
		_, err := billing.AddMilestone(&p, billing.MilestoneInput{
			Title: "M", Percentage: pct, Amount: billing.NewMoneyFromInt(pct),
		}, at.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("add %d%%: unexpected error %v", pct, err)
		}
	}

	_, err := billing.AddMilestone(&p, billing.MilestoneInput{
		Title: "M4", Percentage: 10, Amount: billing.NewMoneyFromInt(10),
	}, at.Add(time.Minute))
	if !errors.Is(err, billing.ErrBudgetExceeded) {
		t.Errorf("expected ErrBudgetExceeded, got %v", err)
	}
	if len(p.Milestones) != 3 {
		t.Errorf("milestones array length must remain 3, got %d", len(p.Milestones))
	}
	if p.PercentageAllocated() != 100 {
		t.Errorf("allocated must remain 100, got %d", p.PercentageAllocated())
	}
}

// =============================================================================
// 5. APPROVAL GATING
// =============================================================================

func TestSpec_ApprovalGate_BlocksRegardlessOfEvidence(t *testing.T) {
	// GIVEN: requiresClientApproval=true, clientApproved=false
	// THEN: completeMilestone always fails with ApprovalRequired, with or
	//       without evidence; once approved, it succeeds given evidence

	p := projectWith(billing.PayPerMilestone, 100)
	m := &p.Milestones[0]
	m.RequiresClientApproval = true
	now := date(2026, time.August, 10)

	for _, evidence := range []string{"", "thorough evidence attached"} {
		if err := billing.CompleteMilestone(m, evidence, "user-1", now); !errors.Is(err, billing.ErrApprovalRequired) {
			t.Errorf("evidence=%q: expected ErrApprovalRequired, got %v", evidence, err)
		}
	}

	billing.ClientApprove(m, now)
	if err := billing.CompleteMilestone(m, "thorough evidence attached", "user-1", now); err != nil {
		t.Errorf("approved completion should succeed, got %v", err)
	}
}

// =============================================================================
// 6. REMINDER DAY-EXACTNESS AND ESCALATION
// =============================================================================

func TestSpec_Reminders_FireOnlyOnConfiguredOffsets(t *testing.T) {
	// GIVEN: beforeDueReminders=[7,3,1]
	// THEN: shouldSendToday is true only for daysFromDue in {-7,-3,-1}

	s := billing.DefaultSettings("user-1")

	for d := -15; d < 0; d++ {
		want := d == -7 || d == -3 || d == -1
		if got := billing.ShouldSendToday(d, s); got != want {
			t.Errorf("daysFromDue=%d: expected %v, got %v", d, want, got)
		}
	}
}

func TestSpec_Reminders_EscalationClasses(t *testing.T) {
	// GIVEN: sendWarningAt=14, sendFinalNoticeAt=30
	// THEN: daysFromDue 20 -> warning, 35 -> final_notice, -1 -> upcoming

	s := billing.DefaultSettings("user-1")

	if got := billing.ClassifyReminder(20, s); got != billing.ReminderWarning {
		t.Errorf("daysFromDue=20: expected warning, got %s", got)
	}
	if got := billing.ClassifyReminder(35, s); got != billing.ReminderFinalNotice {
		t.Errorf("daysFromDue=35: expected final_notice, got %s", got)
	}
	if got := billing.ClassifyReminder(-1, s); got != billing.ReminderUpcoming {
		t.Errorf("daysFromDue=-1: expected upcoming, got %s", got)
	}
}

// =============================================================================
// 7. PAYMENT POLICY OUTCOMES
// =============================================================================

func TestSpec_ApprovalOutcome_PerPolicyBehavior(t *testing.T) {
	// GIVEN: The same approved milestone under each payment policy
	// THEN: pay-per-milestone invoices now; pay-at-end with pending
	//       siblings does nothing

	perMilestone := projectWith(billing.PayPerMilestone, 50, 50)
	m := &perMilestone.Milestones[0]
	billing.ClientApprove(m, date(2026, time.August, 5))

	outcome := billing.OnMilestoneApproved(&perMilestone, m)
	if !outcome.ShouldInvoiceNow || outcome.ShouldCompleteProject {
		t.Errorf("pay-per-milestone: expected {invoiceNow, !complete}, got %+v", outcome)
	}

	atEnd := projectWith(billing.PayAtEnd, 50, 50)
	m2 := &atEnd.Milestones[0]
	billing.ClientApprove(m2, date(2026, time.August, 5))

	outcome = billing.OnMilestoneApproved(&atEnd, m2)
	if outcome.ShouldInvoiceNow || outcome.ShouldCompleteProject {
		t.Errorf("pay-at-end with pending siblings: expected no action, got %+v", outcome)
	}
}
