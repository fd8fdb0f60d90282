/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (InvoiceStore, ProjectStore,
  SettingsStore, ReminderLog) using SQLite. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  billing.InvoiceStore:  Invoice snapshots
  billing.ProjectStore:  Projects with embedded milestones
  billing.SettingsStore: Reminder settings
  billing.ReminderLog:   Append-only reminder history

KEY TABLES:
  invoices:          Invoice records; line items stored as a JSON column
  projects:          Project records; milestones stored as a JSON column
                     (a milestone never exists outside its project)
  reminder_settings: One row per user, plus optional per-project rows
  reminder_log:      Append-only record of reminders handed to the mailer

EMBEDDED DOCUMENTS:
  Line items and milestones are serialized to JSON columns. They are
  only ever read and written through their owning record, so a separate
  table would buy nothing but join overhead. Money values serialize as
  decimal strings to avoid float drift.

REMINDER LOG IDEMPOTENCY:
  reminder_log.idempotency_key is UNIQUE. Duplicate sends (scheduler
  restarts, manual re-triggers) fail the insert and are reported as
  billing.ErrDuplicateReminder.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - billing/store.go: Interface definitions
  - billing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/billing"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Invoices (line items embedded as JSON)
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL,
		client_id TEXT,
		client_name TEXT,
		client_email TEXT,
		freelancer_id TEXT NOT NULL,
		freelancer_name TEXT,
		freelancer_email TEXT,
		project_id TEXT,
		milestone_id TEXT,
		line_items_json TEXT NOT NULL,
		tax_rate TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		tax_amount TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		issue_date TEXT,
		due_date TEXT,
		sent_at TEXT,
		paid_date TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_freelancer
		ON invoices(freelancer_id);
	CREATE INDEX IF NOT EXISTS idx_invoices_status
		ON invoices(status);
	-- Hot path for the reminder scheduler: sent invoices by due date
	CREATE INDEX IF NOT EXISTS idx_invoices_status_due
		ON invoices(status, due_date);

	-- Projects (milestones embedded as JSON)
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		freelancer_id TEXT NOT NULL,
		client_id TEXT,
		client_email TEXT,
		title TEXT NOT NULL,
		payment_policy TEXT NOT NULL,
		contract_status TEXT NOT NULL,
		milestones_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_freelancer
		ON projects(freelancer_id);

	-- Reminder settings (user-global row has project_id = '')
	CREATE TABLE IF NOT EXISTS reminder_settings (
		user_id TEXT NOT NULL,
		project_id TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL,
		before_due_json TEXT NOT NULL,
		overdue_json TEXT NOT NULL,
		send_warning_at INTEGER NOT NULL,
		send_final_notice_at INTEGER NOT NULL,
		reminder_message TEXT DEFAULT '',
		warning_message TEXT DEFAULT '',
		final_notice_message TEXT DEFAULT '',
		reminder_subject TEXT DEFAULT '',
		warning_subject TEXT DEFAULT '',
		final_notice_subject TEXT DEFAULT '',
		cc_freelancer INTEGER NOT NULL DEFAULT 0,
		pause_on_weekends INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, project_id)
	);

	-- Reminder log (append-only)
	CREATE TABLE IF NOT EXISTS reminder_log (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL,
		invoice_number TEXT,
		recipient TEXT,
		class TEXT NOT NULL,
		days_from_due INTEGER NOT NULL,
		subject TEXT,
		sent_on TEXT NOT NULL,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reminder_log_invoice
		ON reminder_log(invoice_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SERIALIZATION RECORDS - JSON shapes for embedded documents
// =============================================================================

// lineItemRecord serializes a billing.LineItem. Money as decimal strings.
type lineItemRecord struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Rate        string `json:"rate"`
	Amount      string `json:"amount"`
}

type milestoneRecord struct {
	ID                     string `json:"id"`
	Title                  string `json:"title"`
	Description            string `json:"description,omitempty"`
	Percentage             int    `json:"percentage"`
	Amount                 string `json:"amount"`
	Status                 string `json:"status"`
	DueDate                string `json:"due_date,omitempty"`
	Evidence               string `json:"evidence,omitempty"`
	CompletedAt            string `json:"completed_at,omitempty"`
	CompletedBy            string `json:"completed_by,omitempty"`
	RequiresClientApproval bool   `json:"requires_client_approval"`
	ClientApproved         bool   `json:"client_approved"`
	ClientApprovedAt       string `json:"client_approved_at,omitempty"`
	InvoiceID              string `json:"invoice_id,omitempty"`
}

func marshalLineItems(items []billing.LineItem) (string, error) {
	records := make([]lineItemRecord, len(items))
	for i, item := range items {
		records[i] = lineItemRecord{
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			Rate:        item.Rate.Value.String(),
			Amount:      item.Amount.Value.String(),
		}
	}
	b, err := json.Marshal(records)
	return string(b), err
}

func unmarshalLineItems(data string) ([]billing.LineItem, error) {
	var records []lineItemRecord
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, err
	}
	items := make([]billing.LineItem, len(records))
	for i, r := range records {
		qty, err := decimal.NewFromString(r.Quantity)
		if err != nil {
			return nil, fmt.Errorf("line item %d: bad quantity %q: %w", i, r.Quantity, err)
		}
		items[i] = billing.LineItem{
			Description: r.Description,
			Quantity:    qty,
			Rate:        billing.MustParseMoney(r.Rate),
			Amount:      billing.MustParseMoney(r.Amount),
		}
	}
	return items, nil
}

func marshalMilestones(milestones []billing.Milestone) (string, error) {
	records := make([]milestoneRecord, len(milestones))
	for i, m := range milestones {
		records[i] = milestoneRecord{
			ID:                     string(m.ID),
			Title:                  m.Title,
			Description:            m.Description,
			Percentage:             m.Percentage,
			Amount:                 m.Amount.Value.String(),
			Status:                 string(m.Status),
			DueDate:                formatDate(m.DueDate),
			Evidence:               m.Evidence,
			CompletedAt:            formatDatePtr(m.CompletedAt),
			CompletedBy:            string(m.CompletedBy),
			RequiresClientApproval: m.RequiresClientApproval,
			ClientApproved:         m.ClientApproved,
			ClientApprovedAt:       formatDatePtr(m.ClientApprovedAt),
			InvoiceID:              string(m.InvoiceID),
		}
	}
	b, err := json.Marshal(records)
	return string(b), err
}

func unmarshalMilestones(data string) ([]billing.Milestone, error) {
	var records []milestoneRecord
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, err
	}
	milestones := make([]billing.Milestone, len(records))
	for i, r := range records {
		milestones[i] = billing.Milestone{
			ID:                     billing.MilestoneID(r.ID),
			Title:                  r.Title,
			Description:            r.Description,
			Percentage:             r.Percentage,
			Amount:                 billing.MustParseMoney(r.Amount),
			Status:                 billing.MilestoneStatus(r.Status),
			DueDate:                parseDate(r.DueDate),
			Evidence:               r.Evidence,
			CompletedAt:            parseDatePtr(r.CompletedAt),
			CompletedBy:            billing.UserID(r.CompletedBy),
			RequiresClientApproval: r.RequiresClientApproval,
			ClientApproved:         r.ClientApproved,
			ClientApprovedAt:       parseDatePtr(r.ClientApprovedAt),
			InvoiceID:              billing.InvoiceID(r.InvoiceID),
		}
	}
	return milestones, nil
}

func formatDate(d billing.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func formatDatePtr(d *billing.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func parseDate(s string) billing.Date {
	if s == "" {
		return billing.Date{}
	}
	d, err := billing.ParseDate(s)
	if err != nil {
		return billing.Date{}
	}
	return d
}

func parseDatePtr(s string) *billing.Date {
	if s == "" {
		return nil
	}
	d := parseDate(s)
	return &d
}

// =============================================================================
// INVOICE STORE
// =============================================================================

func (s *Store) SaveInvoice(ctx context.Context, inv billing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	itemsJSON, err := marshalLineItems(inv.LineItems)
	if err != nil {
		return fmt.Errorf("failed to marshal line items: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invoices (
			id, number, client_id, client_name, client_email,
			freelancer_id, freelancer_name, freelancer_email,
			project_id, milestone_id, line_items_json, tax_rate,
			subtotal, tax_amount, total_amount, status,
			issue_date, due_date, sent_at, paid_date, notes,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			number = excluded.number,
			client_id = excluded.client_id,
			client_name = excluded.client_name,
			client_email = excluded.client_email,
			freelancer_name = excluded.freelancer_name,
			freelancer_email = excluded.freelancer_email,
			project_id = excluded.project_id,
			milestone_id = excluded.milestone_id,
			line_items_json = excluded.line_items_json,
			tax_rate = excluded.tax_rate,
			subtotal = excluded.subtotal,
			tax_amount = excluded.tax_amount,
			total_amount = excluded.total_amount,
			status = excluded.status,
			issue_date = excluded.issue_date,
			due_date = excluded.due_date,
			sent_at = excluded.sent_at,
			paid_date = excluded.paid_date,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		string(inv.ID), inv.Number, inv.ClientID, inv.ClientName, inv.ClientEmail,
		string(inv.FreelancerID), inv.FreelancerName, inv.FreelancerEmail,
		string(inv.ProjectID), string(inv.MilestoneID), itemsJSON, inv.TaxRate.String(),
		inv.Subtotal.Value.String(), inv.TaxAmount.Value.String(), inv.TotalAmount.Value.String(),
		string(inv.Status),
		formatDate(inv.IssueDate), formatDate(inv.DueDate),
		formatDatePtr(inv.SentAt), formatDatePtr(inv.PaidDate), inv.Notes,
		now, now,
	)
	return err
}

func (s *Store) GetInvoice(ctx context.Context, id billing.InvoiceID) (*billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, invoiceSelect+` WHERE id = ?`, string(id))
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return inv, err
}

func (s *Store) ListInvoices(ctx context.Context, freelancerID billing.UserID) ([]billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := invoiceSelect + ` ORDER BY id`
	args := []any{}
	if freelancerID != "" {
		query = invoiceSelect + ` WHERE freelancer_id = ? ORDER BY id`
		args = append(args, string(freelancerID))
	}
	return s.queryInvoices(ctx, query, args...)
}

func (s *Store) ListInvoicesByStatus(ctx context.Context, status billing.InvoiceStatus) ([]billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryInvoices(ctx, invoiceSelect+` WHERE status = ? ORDER BY due_date`, string(status))
}

func (s *Store) DeleteInvoice(ctx context.Context, id billing.InvoiceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return billing.ErrInvoiceNotFound
	}
	return nil
}

const invoiceSelect = `
	SELECT id, number, client_id, client_name, client_email,
	       freelancer_id, freelancer_name, freelancer_email,
	       project_id, milestone_id, line_items_json, tax_rate,
	       subtotal, tax_amount, total_amount, status,
	       issue_date, due_date, sent_at, paid_date, notes
	FROM invoices`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*billing.Invoice, error) {
	var (
		inv                                      billing.Invoice
		id, freelancerID, projectID, milestoneID string
		itemsJSON, taxRate, sub, tax, total      string
		status, issueDate, dueDate, sentAt, paid string
	)
	err := row.Scan(
		&id, &inv.Number, &inv.ClientID, &inv.ClientName, &inv.ClientEmail,
		&freelancerID, &inv.FreelancerName, &inv.FreelancerEmail,
		&projectID, &milestoneID, &itemsJSON, &taxRate,
		&sub, &tax, &total, &status,
		&issueDate, &dueDate, &sentAt, &paid, &inv.Notes,
	)
	if err != nil {
		return nil, err
	}

	inv.ID = billing.InvoiceID(id)
	inv.FreelancerID = billing.UserID(freelancerID)
	inv.ProjectID = billing.ProjectID(projectID)
	inv.MilestoneID = billing.MilestoneID(milestoneID)
	inv.Status = billing.InvoiceStatus(status)
	inv.IssueDate = parseDate(issueDate)
	inv.DueDate = parseDate(dueDate)
	inv.SentAt = parseDatePtr(sentAt)
	inv.PaidDate = parseDatePtr(paid)

	rate, err := decimal.NewFromString(taxRate)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: bad tax rate %q: %w", id, taxRate, err)
	}
	inv.TaxRate = rate
	inv.Subtotal = billing.MustParseMoney(sub)
	inv.TaxAmount = billing.MustParseMoney(tax)
	inv.TotalAmount = billing.MustParseMoney(total)

	items, err := unmarshalLineItems(itemsJSON)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", id, err)
	}
	inv.LineItems = items
	return &inv, nil
}

func (s *Store) queryInvoices(ctx context.Context, query string, args ...any) ([]billing.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// =============================================================================
// PROJECT STORE
// =============================================================================

func (s *Store) SaveProject(ctx context.Context, p billing.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	milestonesJSON, err := marshalMilestones(p.Milestones)
	if err != nil {
		return fmt.Errorf("failed to marshal milestones: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (
			id, freelancer_id, client_id, client_email, title,
			payment_policy, contract_status, milestones_json,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			client_email = excluded.client_email,
			title = excluded.title,
			payment_policy = excluded.payment_policy,
			contract_status = excluded.contract_status,
			milestones_json = excluded.milestones_json,
			updated_at = excluded.updated_at`,
		string(p.ID), string(p.FreelancerID), p.ClientID, p.ClientEmail, p.Title,
		string(p.PaymentPolicy), string(p.ContractStatus), milestonesJSON,
		now, now,
	)
	return err
}

func (s *Store) GetProject(ctx context.Context, id billing.ProjectID) (*billing.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, projectSelect+` WHERE id = ?`, string(id))
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (s *Store) ListProjects(ctx context.Context, freelancerID billing.UserID) ([]billing.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := projectSelect + ` ORDER BY id`
	args := []any{}
	if freelancerID != "" {
		query = projectSelect + ` WHERE freelancer_id = ? ORDER BY id`
		args = append(args, string(freelancerID))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

const projectSelect = `
	SELECT id, freelancer_id, client_id, client_email, title,
	       payment_policy, contract_status, milestones_json
	FROM projects`

func scanProject(row rowScanner) (*billing.Project, error) {
	var (
		p                            billing.Project
		id, freelancerID             string
		policy, contract, milestones string
	)
	err := row.Scan(&id, &freelancerID, &p.ClientID, &p.ClientEmail, &p.Title,
		&policy, &contract, &milestones)
	if err != nil {
		return nil, err
	}

	p.ID = billing.ProjectID(id)
	p.FreelancerID = billing.UserID(freelancerID)
	p.PaymentPolicy = billing.PaymentPolicy(policy)
	p.ContractStatus = billing.ContractStatus(contract)

	ms, err := unmarshalMilestones(milestones)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", id, err)
	}
	p.Milestones = ms
	return &p, nil
}

// =============================================================================
// SETTINGS STORE
// =============================================================================

func (s *Store) SaveSettings(ctx context.Context, cfg billing.ReminderSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	beforeJSON, _ := json.Marshal(cfg.BeforeDueReminders)
	overdueJSON, _ := json.Marshal(cfg.OverdueReminders)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminder_settings (
			user_id, project_id, enabled, before_due_json, overdue_json,
			send_warning_at, send_final_notice_at,
			reminder_message, warning_message, final_notice_message,
			reminder_subject, warning_subject, final_notice_subject,
			cc_freelancer, pause_on_weekends, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, project_id) DO UPDATE SET
			enabled = excluded.enabled,
			before_due_json = excluded.before_due_json,
			overdue_json = excluded.overdue_json,
			send_warning_at = excluded.send_warning_at,
			send_final_notice_at = excluded.send_final_notice_at,
			reminder_message = excluded.reminder_message,
			warning_message = excluded.warning_message,
			final_notice_message = excluded.final_notice_message,
			reminder_subject = excluded.reminder_subject,
			warning_subject = excluded.warning_subject,
			final_notice_subject = excluded.final_notice_subject,
			cc_freelancer = excluded.cc_freelancer,
			pause_on_weekends = excluded.pause_on_weekends,
			updated_at = excluded.updated_at`,
		string(cfg.UserID), string(cfg.ProjectID), boolToInt(cfg.Enabled),
		string(beforeJSON), string(overdueJSON),
		cfg.SendWarningAt, cfg.SendFinalNoticeAt,
		cfg.ReminderMessage, cfg.WarningMessage, cfg.FinalNoticeMessage,
		cfg.ReminderSubject, cfg.WarningSubject, cfg.FinalNoticeSubject,
		boolToInt(cfg.CcFreelancer), boolToInt(cfg.PauseRemindersOnWeekends),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetUserSettings(ctx context.Context, userID billing.UserID) (*billing.ReminderSettings, error) {
	return s.getSettings(ctx, userID, "")
}

func (s *Store) GetProjectSettings(ctx context.Context, userID billing.UserID, projectID billing.ProjectID) (*billing.ReminderSettings, error) {
	return s.getSettings(ctx, userID, projectID)
}

func (s *Store) getSettings(ctx context.Context, userID billing.UserID, projectID billing.ProjectID) (*billing.ReminderSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, project_id, enabled, before_due_json, overdue_json,
		       send_warning_at, send_final_notice_at,
		       reminder_message, warning_message, final_notice_message,
		       reminder_subject, warning_subject, final_notice_subject,
		       cc_freelancer, pause_on_weekends
		FROM reminder_settings WHERE user_id = ? AND project_id = ?`,
		string(userID), string(projectID))

	var (
		cfg                     billing.ReminderSettings
		uid, pid                string
		enabled, cc, pause      int
		beforeJSON, overdueJSON string
	)
	err := row.Scan(&uid, &pid, &enabled, &beforeJSON, &overdueJSON,
		&cfg.SendWarningAt, &cfg.SendFinalNoticeAt,
		&cfg.ReminderMessage, &cfg.WarningMessage, &cfg.FinalNoticeMessage,
		&cfg.ReminderSubject, &cfg.WarningSubject, &cfg.FinalNoticeSubject,
		&cc, &pause)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cfg.UserID = billing.UserID(uid)
	cfg.ProjectID = billing.ProjectID(pid)
	cfg.Enabled = enabled != 0
	cfg.CcFreelancer = cc != 0
	cfg.PauseRemindersOnWeekends = pause != 0
	if err := json.Unmarshal([]byte(beforeJSON), &cfg.BeforeDueReminders); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(overdueJSON), &cfg.OverdueReminders); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// =============================================================================
// REMINDER LOG (append-only)
// =============================================================================

func (s *Store) AppendReminder(ctx context.Context, e billing.ReminderEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminder_log (
			id, invoice_id, invoice_number, recipient, class,
			days_from_due, subject, sent_on, idempotency_key, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.InvoiceID), e.InvoiceNum, e.Recipient, string(e.Class),
		e.DaysFromDue, e.Subject, e.SentOn.String(), nullIfEmpty(e.IdempotencyKey),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return billing.ErrDuplicateReminder
	}
	return err
}

func (s *Store) ReminderExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reminder_log WHERE idempotency_key = ?`,
		idempotencyKey).Scan(&count)
	return count > 0, err
}

func (s *Store) ListReminders(ctx context.Context, invoiceID billing.InvoiceID) ([]billing.ReminderEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, invoice_id, invoice_number, recipient, class,
		       days_from_due, subject, sent_on, COALESCE(idempotency_key, '')
		FROM reminder_log`
	args := []any{}
	if invoiceID != "" {
		query += ` WHERE invoice_id = ?`
		args = append(args, string(invoiceID))
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.ReminderEntry
	for rows.Next() {
		var (
			e            billing.ReminderEntry
			invID, class string
			sentOn       string
		)
		if err := rows.Scan(&e.ID, &invID, &e.InvoiceNum, &e.Recipient, &class,
			&e.DaysFromDue, &e.Subject, &sentOn, &e.IdempotencyKey); err != nil {
			return nil, err
		}
		e.InvoiceID = billing.InvoiceID(invID)
		e.Class = billing.ReminderClass(class)
		e.SentOn = parseDate(sentOn)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
