// Package store provides in-memory Store implementations (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation of all billing store interfaces
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	invoices  map[billing.InvoiceID]billing.Invoice
	projects  map[billing.ProjectID]billing.Project
	settings  map[settingsKey]billing.ReminderSettings
	reminders []billing.ReminderEntry
	sentKeys  map[string]bool
}

type settingsKey struct {
	UserID    billing.UserID
	ProjectID billing.ProjectID
}

func NewMemory() *Memory {
	return &Memory{
		invoices: make(map[billing.InvoiceID]billing.Invoice),
		projects: make(map[billing.ProjectID]billing.Project),
		settings: make(map[settingsKey]billing.ReminderSettings),
		sentKeys: make(map[string]bool),
	}
}

// -----------------------------------------------------------------------------
// InvoiceStore
// -----------------------------------------------------------------------------

func (m *Memory) SaveInvoice(_ context.Context, inv billing.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (m *Memory) GetInvoice(_ context.Context, id billing.InvoiceID) (*billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, nil
	}
	out := cloneInvoice(inv)
	return &out, nil
}

func (m *Memory) ListInvoices(_ context.Context, freelancerID billing.UserID) ([]billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []billing.Invoice
	for _, inv := range m.invoices {
		if freelancerID == "" || inv.FreelancerID == freelancerID {
			out = append(out, cloneInvoice(inv))
		}
	}
	sortInvoices(out)
	return out, nil
}

func (m *Memory) ListInvoicesByStatus(_ context.Context, status billing.InvoiceStatus) ([]billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []billing.Invoice
	for _, inv := range m.invoices {
		if inv.Status == status {
			out = append(out, cloneInvoice(inv))
		}
	}
	sortInvoices(out)
	return out, nil
}

func (m *Memory) DeleteInvoice(_ context.Context, id billing.InvoiceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[id]; !ok {
		return billing.ErrInvoiceNotFound
	}
	delete(m.invoices, id)
	return nil
}

// -----------------------------------------------------------------------------
// ProjectStore
// -----------------------------------------------------------------------------

func (m *Memory) SaveProject(_ context.Context, p billing.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = cloneProject(p)
	return nil
}

func (m *Memory) GetProject(_ context.Context, id billing.ProjectID) (*billing.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	out := cloneProject(p)
	return &out, nil
}

func (m *Memory) ListProjects(_ context.Context, freelancerID billing.UserID) ([]billing.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []billing.Project
	for _, p := range m.projects {
		if freelancerID == "" || p.FreelancerID == freelancerID {
			out = append(out, cloneProject(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// -----------------------------------------------------------------------------
// SettingsStore
// -----------------------------------------------------------------------------

func (m *Memory) SaveSettings(_ context.Context, s billing.ReminderSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[settingsKey{UserID: s.UserID, ProjectID: s.ProjectID}] = s
	return nil
}

func (m *Memory) GetUserSettings(_ context.Context, userID billing.UserID) (*billing.ReminderSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[settingsKey{UserID: userID}]
	if !ok {
		return nil, nil
	}
	out := s
	return &out, nil
}

func (m *Memory) GetProjectSettings(_ context.Context, userID billing.UserID, projectID billing.ProjectID) (*billing.ReminderSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[settingsKey{UserID: userID, ProjectID: projectID}]
	if !ok {
		return nil, nil
	}
	out := s
	return &out, nil
}

// -----------------------------------------------------------------------------
// ReminderLog (append-only)
// -----------------------------------------------------------------------------

func (m *Memory) AppendReminder(_ context.Context, e billing.ReminderEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.IdempotencyKey != "" && m.sentKeys[e.IdempotencyKey] {
		return billing.ErrDuplicateReminder
	}
	m.reminders = append(m.reminders, e)
	if e.IdempotencyKey != "" {
		m.sentKeys[e.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) ReminderExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sentKeys[idempotencyKey], nil
}

func (m *Memory) ListReminders(_ context.Context, invoiceID billing.InvoiceID) ([]billing.ReminderEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []billing.ReminderEntry
	for _, e := range m.reminders {
		if invoiceID == "" || e.InvoiceID == invoiceID {
			out = append(out, e)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func cloneInvoice(inv billing.Invoice) billing.Invoice {
	out := inv
	out.LineItems = append([]billing.LineItem(nil), inv.LineItems...)
	return out
}

func cloneProject(p billing.Project) billing.Project {
	out := p
	out.Milestones = append([]billing.Milestone(nil), p.Milestones...)
	return out
}

func sortInvoices(invs []billing.Invoice) {
	sort.Slice(invs, func(i, j int) bool { return invs[i].ID < invs[j].ID })
}
