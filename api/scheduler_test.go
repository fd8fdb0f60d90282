/*
scheduler_test.go - Unit tests for the reminder pass

Tests for:
- Day-exact firing against the store's sent invoices
- Idempotency across repeated passes and manual triggers
- Weekend pause, CC, and custom message composition
*/
package api

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/billing/store"
	"github.com/warp/billing-engine/mail"
)

// sentInvoice seeds a sent invoice due on the given date.
func sentInvoice(t *testing.T, st Store, id billing.InvoiceID, due billing.Date) billing.Invoice {
	t.Helper()
	inv := billing.Invoice{
		ID:              id,
		Number:          "INV-" + string(id),
		ClientEmail:     "client@example.com",
		FreelancerID:    "user-1",
		FreelancerEmail: "freelancer@example.com",
		LineItems: []billing.LineItem{
			{Description: "Work", Quantity: decimal.NewFromInt(1), Rate: billing.NewMoneyFromInt(1000)},
		},
		TaxRate: billing.DefaultTaxRate,
		Status:  billing.InvoiceDraft,
		DueDate: due,
	}
	inv.Recalculate()
	if err := inv.Transition(billing.InvoiceSent, due.AddDays(-30)); err != nil {
		t.Fatalf("seeding invoice %s: %v", id, err)
	}
	if err := st.SaveInvoice(context.Background(), inv); err != nil {
		t.Fatalf("seeding invoice %s: %v", id, err)
	}
	return inv
}

func TestReminderPass_FiresOnlyOnConfiguredDays(t *testing.T) {
	// GIVEN: Sent invoices 3, 4, and 7 days overdue (defaults fire at 1,3,7,...)
	// WHEN: Running one pass
	// THEN: Exactly the 3- and 7-day invoices get mail

	ctx := context.Background()
	st := store.NewMemory()
	recorder := &mail.Recorder{}
	today := billing.NewDate(2026, time.August, 31) // Monday

	sentInvoice(t, st, "due-3", today.AddDays(-3))
	sentInvoice(t, st, "due-4", today.AddDays(-4))
	sentInvoice(t, st, "due-7", today.AddDays(-7))

	result, err := RunReminderPass(ctx, st, recorder, today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent != 2 {
		t.Errorf("expected 2 reminders, got %d", result.Sent)
	}

	msgs := recorder.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	for _, msg := range msgs {
		if msg.To != "client@example.com" {
			t.Errorf("unexpected recipient %s", msg.To)
		}
		if !strings.Contains(msg.Subject, "INV-due-") {
			t.Errorf("subject missing invoice number: %q", msg.Subject)
		}
	}
}

func TestReminderPass_BeforeDueOffsets(t *testing.T) {
	// GIVEN: Invoices due in 1 and 2 days (defaults fire at 7,3,1 before)
	// THEN: Only the 1-day-out invoice fires

	ctx := context.Background()
	st := store.NewMemory()
	recorder := &mail.Recorder{}
	today := billing.NewDate(2026, time.August, 31)

	sentInvoice(t, st, "in-1", today.AddDays(1))
	sentInvoice(t, st, "in-2", today.AddDays(2))

	result, err := RunReminderPass(ctx, st, recorder, today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent != 1 {
		t.Fatalf("expected 1 reminder, got %d", result.Sent)
	}
	if got := recorder.Messages()[0].Subject; !strings.Contains(got, "INV-in-1") {
		t.Errorf("wrong invoice reminded: %q", got)
	}
}

func TestReminderPass_RerunIsIdempotent(t *testing.T) {
	// GIVEN: A pass that already sent today's reminders
	// WHEN: Running the same pass again (restart, manual trigger)
	// THEN: Nothing is mailed twice

	ctx := context.Background()
	st := store.NewMemory()
	recorder := &mail.Recorder{}
	today := billing.NewDate(2026, time.August, 31)

	sentInvoice(t, st, "due-3", today.AddDays(-3))

	first, err := RunReminderPass(ctx, st, recorder, today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := RunReminderPass(ctx, st, recorder, today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Sent != 1 || second.Sent != 0 || second.Skipped != 1 {
		t.Errorf("expected 1 then 0 sent (1 skipped), got %d then %d (%d skipped)",
			first.Sent, second.Sent, second.Skipped)
	}
	if len(recorder.Messages()) != 1 {
		t.Errorf("expected exactly one message, got %d", len(recorder.Messages()))
	}
}

func TestReminderPass_WeekendPause(t *testing.T) {
	// GIVEN: Settings with the weekend pause and a reminder due Saturday
	// WHEN: Running Saturday's pass
	// THEN: The reminder is suppressed, and it does NOT fire Monday either
	//       (day-exact offsets, not catch-up)

	ctx := context.Background()
	st := store.NewMemory()
	recorder := &mail.Recorder{}
	saturday := billing.NewDate(2026, time.August, 29)

	settings := billing.DefaultSettings("user-1")
	settings.PauseRemindersOnWeekends = true
	if err := st.SaveSettings(ctx, settings); err != nil {
		t.Fatalf("saving settings: %v", err)
	}

	sentInvoice(t, st, "due-sat", saturday.AddDays(-3))

	result, err := RunReminderPass(ctx, st, recorder, saturday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent != 0 || result.Skipped != 1 {
		t.Errorf("expected 0 sent / 1 skipped on Saturday, got %d/%d", result.Sent, result.Skipped)
	}

	monday := saturday.AddDays(2) // now 5 days overdue, not a configured offset
	result, err = RunReminderPass(ctx, st, recorder, monday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent != 0 {
		t.Errorf("expected no catch-up on Monday, got %d sent", result.Sent)
	}
	if len(recorder.Messages()) != 0 {
		t.Errorf("expected no mail at all, got %d", len(recorder.Messages()))
	}
}

func TestReminderPass_DisabledSettingsSilenceEverything(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	recorder := &mail.Recorder{}
	today := billing.NewDate(2026, time.August, 31)

	settings := billing.DefaultSettings("user-1")
	settings.Enabled = false
	if err := st.SaveSettings(ctx, settings); err != nil {
		t.Fatalf("saving settings: %v", err)
	}

	sentInvoice(t, st, "due-3", today.AddDays(-3))

	result, err := RunReminderPass(ctx, st, recorder, today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent != 0 || len(recorder.Messages()) != 0 {
		t.Errorf("disabled settings must send nothing, got %d", result.Sent)
	}
}

func TestReminderPass_EscalationSubjectAndCc(t *testing.T) {
	// GIVEN: An invoice 30 days overdue, CC enabled, custom final message
	// WHEN: The pass runs
	// THEN: The final-notice subject is used, the freelancer is CC'd, and
	//       the custom message lands in the body

	ctx := context.Background()
	st := store.NewMemory()
	recorder := &mail.Recorder{}
	today := billing.NewDate(2026, time.August, 31)

	settings := billing.DefaultSettings("user-1")
	settings.CcFreelancer = true
	settings.FinalNoticeMessage = "This account will be referred to collections."
	if err := st.SaveSettings(ctx, settings); err != nil {
		t.Fatalf("saving settings: %v", err)
	}

	sentInvoice(t, st, "due-30", today.AddDays(-30))

	result, err := RunReminderPass(ctx, st, recorder, today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent != 1 {
		t.Fatalf("expected 1 reminder, got %d", result.Sent)
	}

	msg := recorder.Messages()[0]
	if !strings.HasPrefix(msg.Subject, "Final notice:") {
		t.Errorf("expected final-notice subject, got %q", msg.Subject)
	}
	if len(msg.Cc) != 1 || msg.Cc[0] != "freelancer@example.com" {
		t.Errorf("expected freelancer CC, got %v", msg.Cc)
	}
	if !strings.Contains(msg.Body, "referred to collections") {
		t.Errorf("custom message missing from body: %q", msg.Body)
	}
}

func TestReminderPass_ProjectSettingsOverrideUserSettings(t *testing.T) {
	// GIVEN: User settings disabled, project override enabled
	// WHEN: The pass runs over an invoice linked to that project
	// THEN: The project override wins and the reminder goes out

	ctx := context.Background()
	st := store.NewMemory()
	recorder := &mail.Recorder{}
	today := billing.NewDate(2026, time.August, 31)

	global := billing.DefaultSettings("user-1")
	global.Enabled = false
	if err := st.SaveSettings(ctx, global); err != nil {
		t.Fatalf("saving settings: %v", err)
	}
	override := billing.DefaultSettings("user-1")
	override.ProjectID = "proj-1"
	if err := st.SaveSettings(ctx, override); err != nil {
		t.Fatalf("saving settings: %v", err)
	}

	inv := sentInvoice(t, st, "due-3", today.AddDays(-3))
	inv.ProjectID = "proj-1"
	if err := st.SaveInvoice(ctx, inv); err != nil {
		t.Fatalf("saving invoice: %v", err)
	}

	result, err := RunReminderPass(ctx, st, recorder, today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent != 1 {
		t.Errorf("project override should win, got %d sent", result.Sent)
	}
}

func TestReminderPass_RecordsLogEntries(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	recorder := &mail.Recorder{}
	today := billing.NewDate(2026, time.August, 31)

	sentInvoice(t, st, "due-14", today.AddDays(-14))

	if _, err := RunReminderPass(ctx, st, recorder, today); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := st.ListReminders(ctx, "due-14")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Class != billing.ReminderWarning {
		t.Errorf("14 days overdue should log as warning, got %s", e.Class)
	}
	if e.DaysFromDue != 14 || !e.SentOn.Equal(today) {
		t.Errorf("unexpected log entry %+v", e)
	}
	if e.IdempotencyKey != billing.ReminderKey("due-14", today, billing.ReminderWarning) {
		t.Errorf("unexpected idempotency key %q", e.IdempotencyKey)
	}
}
