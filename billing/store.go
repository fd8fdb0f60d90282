/*
store.go - Persistence interfaces consumed by the application layer

PURPOSE:
  Defines the boundary between the pure rules in this package and the
  database. The engine itself never touches these; handlers and the
  reminder scheduler do. Implementations exist for SQLite (production)
  and in-memory maps (tests/dev).

KEY INTERFACES:
  InvoiceStore:  Invoice snapshots (full-record save, no partial updates)
  ProjectStore:  Projects with their embedded milestone lists
  SettingsStore: Per-user and per-project reminder settings
  ReminderLog:   Append-only record of sent reminders

REMINDER LOG IDEMPOTENCY:
  Every send is recorded under a key of invoice+day+class. The scheduler
  checks the key before sending, so re-runs (restarts, manual triggers)
  never mail the same reminder twice.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - billing/store/memory.go: In-memory for testing

SEE ALSO:
  - api/scheduler.go: The reminder scheduler driving ReminderLog
*/
package billing

import "context"

// =============================================================================
// INVOICE STORE
// =============================================================================

// InvoiceStore persists invoice snapshots. Save overwrites the whole
// record; callers must Recalculate before saving so stored totals always
// match the stored line items.
type InvoiceStore interface {
	SaveInvoice(ctx context.Context, inv Invoice) error
	GetInvoice(ctx context.Context, id InvoiceID) (*Invoice, error)
	ListInvoices(ctx context.Context, freelancerID UserID) ([]Invoice, error)
	ListInvoicesByStatus(ctx context.Context, status InvoiceStatus) ([]Invoice, error)
	DeleteInvoice(ctx context.Context, id InvoiceID) error
}

// =============================================================================
// PROJECT STORE
// =============================================================================

// ProjectStore persists projects. Milestones are embedded in the project
// record (a milestone never exists outside its project), so milestone
// mutations go through SaveProject.
type ProjectStore interface {
	SaveProject(ctx context.Context, p Project) error
	GetProject(ctx context.Context, id ProjectID) (*Project, error)
	ListProjects(ctx context.Context, freelancerID UserID) ([]Project, error)
}

// =============================================================================
// SETTINGS STORE
// =============================================================================

// SettingsStore persists reminder settings. Get methods return nil (not an
// error) when no record exists; resolution falls through to defaults.
type SettingsStore interface {
	SaveSettings(ctx context.Context, s ReminderSettings) error
	GetUserSettings(ctx context.Context, userID UserID) (*ReminderSettings, error)
	GetProjectSettings(ctx context.Context, userID UserID, projectID ProjectID) (*ReminderSettings, error)
}

// =============================================================================
// REMINDER LOG - Append-only
// =============================================================================

// ReminderEntry records one reminder hand-off to the mail boundary.
type ReminderEntry struct {
	ID          string
	InvoiceID   InvoiceID
	InvoiceNum  string
	Recipient   string
	Class       ReminderClass
	DaysFromDue int
	Subject     string
	SentOn      Date

	// IdempotencyKey is invoice+day+class; duplicate keys are rejected.
	IdempotencyKey string
}

// ReminderLog stores reminder entries. Append-only: reminders are never
// edited or deleted, only recorded.
type ReminderLog interface {
	AppendReminder(ctx context.Context, e ReminderEntry) error
	ReminderExists(ctx context.Context, idempotencyKey string) (bool, error)
	ListReminders(ctx context.Context, invoiceID InvoiceID) ([]ReminderEntry, error)
}

// ReminderKey builds the idempotency key for one reminder decision.
func ReminderKey(invoiceID InvoiceID, day Date, class ReminderClass) string {
	return string(invoiceID) + "|" + day.String() + "|" + string(class)
}
