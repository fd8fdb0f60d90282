/*
scheduler.go - Automated payment-reminder scheduler

PURPOSE:
  Periodically evaluates every sent invoice against the owner's reminder
  settings and mails the reminders that fire today. The decision itself
  (day-exact offsets, escalation class) lives in the billing package;
  this file owns the clock, the weekend pause, idempotency, and the
  hand-off to the mail boundary.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - One pass per tick; each pass is a pure function of (store, today)
  - Every send is recorded under an invoice+day+class idempotency key,
    so restarts and manual triggers never mail the same reminder twice
  - Weekend pause is enforced here, per settings, not in the policy

CONFIGURATION:
  - CheckInterval: How often to run a pass (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReminderScheduler(store, mailer)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - billing/reminder.go: ShouldSendToday, ClassifyReminder
  - handlers.go: RunReminders endpoint (manual pass)
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/mail"
)

// ReminderScheduler runs the reminder pass on a timer.
type ReminderScheduler struct {
	Store         Store
	Mailer        mail.Mailer
	CheckInterval time.Duration
	Enabled       bool

	// Now supplies "today"; overridable for tests.
	Now func() billing.Date

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReminderScheduler creates a new scheduler.
func NewReminderScheduler(store Store, mailer mail.Mailer) *ReminderScheduler {
	return &ReminderScheduler{
		Store:         store,
		Mailer:        mailer,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           func() billing.Date { return billing.DateOf(time.Now()) },
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *ReminderScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler.
func (rs *ReminderScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *ReminderScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.runPass()

	for {
		select {
		case <-rs.ticker.C:
			rs.runPass()
		case <-rs.stop:
			return
		}
	}
}

func (rs *ReminderScheduler) runPass() {
	ctx := context.Background()
	today := rs.Now()

	result, err := RunReminderPass(ctx, rs.Store, rs.Mailer, today)
	if err != nil {
		log.Printf("[Scheduler] Reminder pass failed: %v", err)
		return
	}
	if result.Sent > 0 || result.Skipped > 0 {
		log.Printf("[Scheduler] Completed %s: %d sent, %d skipped", today, result.Sent, result.Skipped)
	}
}

// RunNow triggers an immediate pass (for testing/admin).
func (rs *ReminderScheduler) RunNow() {
	rs.runPass()
}

// =============================================================================
// REMINDER PASS - Shared by the scheduler and the manual-run endpoint
// =============================================================================

// PassResult summarizes one reminder pass. Skipped counts reminders that
// would have fired but were suppressed (weekend pause, already sent).
type PassResult struct {
	Sent    int
	Skipped int
}

// RunReminderPass evaluates every sent invoice for `today` and mails the
// reminders that fire. Safe to re-run for the same day: the idempotency
// key on the reminder log suppresses duplicates.
func RunReminderPass(ctx context.Context, st Store, mailer mail.Mailer, today billing.Date) (PassResult, error) {
	var result PassResult

	invoices, err := st.ListInvoicesByStatus(ctx, billing.InvoiceSent)
	if err != nil {
		return result, fmt.Errorf("listing sent invoices: %w", err)
	}

	for _, inv := range invoices {
		if inv.DueDate.IsZero() || inv.ClientEmail == "" {
			continue
		}

		settings, err := resolveInvoiceSettings(ctx, st, inv)
		if err != nil {
			log.Printf("[Scheduler] Settings lookup failed for invoice %s: %v", inv.ID, err)
			continue
		}

		daysFromDue := billing.DaysFromDue(inv.DueDate, today)
		if !billing.ShouldSendToday(daysFromDue, settings) {
			continue
		}
		if settings.PauseRemindersOnWeekends && today.IsWeekend() {
			result.Skipped++
			continue
		}

		class := billing.ClassifyReminder(daysFromDue, settings)
		key := billing.ReminderKey(inv.ID, today, class)

		sent, err := st.ReminderExists(ctx, key)
		if err != nil {
			log.Printf("[Scheduler] Idempotency check failed for %s: %v", key, err)
			continue
		}
		if sent {
			result.Skipped++
			continue
		}

		subject := billing.EmailSubject(inv.Number, class, settings)
		msg := mail.Message{
			To:      inv.ClientEmail,
			Subject: subject,
			Body:    reminderBody(inv, class, daysFromDue, settings),
		}
		if settings.CcFreelancer && inv.FreelancerEmail != "" {
			msg.Cc = []string{inv.FreelancerEmail}
		}

		if err := mailer.Send(ctx, msg); err != nil {
			log.Printf("[Scheduler] Send failed for invoice %s: %v", inv.ID, err)
			continue
		}

		entry := billing.ReminderEntry{
			ID:             fmt.Sprintf("rem-%d", time.Now().UnixNano()),
			InvoiceID:      inv.ID,
			InvoiceNum:     inv.Number,
			Recipient:      inv.ClientEmail,
			Class:          class,
			DaysFromDue:    daysFromDue,
			Subject:        subject,
			SentOn:         today,
			IdempotencyKey: key,
		}
		if err := st.AppendReminder(ctx, entry); err != nil {
			if errors.Is(err, billing.ErrDuplicateReminder) {
				// Lost the race with a concurrent pass; the mail went out
				// once either way.
				result.Skipped++
				continue
			}
			log.Printf("[Scheduler] Recording reminder for %s failed: %v", inv.ID, err)
			continue
		}
		result.Sent++
	}

	return result, nil
}

// resolveInvoiceSettings picks the one active settings record for an
// invoice: project-specific if present, else user-global, else defaults.
func resolveInvoiceSettings(ctx context.Context, st Store, inv billing.Invoice) (billing.ReminderSettings, error) {
	var projectSpecific *billing.ReminderSettings
	if inv.ProjectID != "" {
		s, err := st.GetProjectSettings(ctx, inv.FreelancerID, inv.ProjectID)
		if err != nil {
			return billing.ReminderSettings{}, err
		}
		projectSpecific = s
	}
	userGlobal, err := st.GetUserSettings(ctx, inv.FreelancerID)
	if err != nil {
		return billing.ReminderSettings{}, err
	}
	return billing.ResolveSettings(projectSpecific, userGlobal, inv.FreelancerID), nil
}

// reminderBody composes the mail body: a standard paragraph per class,
// followed by the freelancer's custom message when configured.
func reminderBody(inv billing.Invoice, class billing.ReminderClass, daysFromDue int, s billing.ReminderSettings) string {
	var intro string
	switch class {
	case billing.ReminderUpcoming:
		intro = fmt.Sprintf("Invoice %s for %s is due on %s (%d days from now).",
			inv.Number, inv.TotalAmount.Display(), inv.DueDate, -daysFromDue)
	case billing.ReminderWarning:
		intro = fmt.Sprintf("Invoice %s for %s is now %d days overdue. Please arrange payment promptly.",
			inv.Number, inv.TotalAmount.Display(), daysFromDue)
	case billing.ReminderFinalNotice:
		intro = fmt.Sprintf("FINAL NOTICE: invoice %s for %s is %d days overdue. This is the last reminder before the matter is escalated.",
			inv.Number, inv.TotalAmount.Display(), daysFromDue)
	default:
		intro = fmt.Sprintf("Invoice %s for %s was due on %s (%d days ago).",
			inv.Number, inv.TotalAmount.Display(), inv.DueDate, daysFromDue)
	}

	if custom := billing.CustomMessage(class, s); custom != "" {
		return intro + "\n\n" + custom
	}
	return intro
}
