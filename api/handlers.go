/*
handlers.go - HTTP API handlers for the billing engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Invoices:
    GET    /api/invoices               List invoices (filter by freelancer/status)
    POST   /api/invoices               Create draft invoice
    GET    /api/invoices/{id}          Get invoice details
    PUT    /api/invoices/{id}          Update a draft invoice
    DELETE /api/invoices/{id}          Delete a draft invoice
    POST   /api/invoices/{id}/send     draft -> sent
    POST   /api/invoices/{id}/pay      sent -> paid
    POST   /api/invoices/{id}/cancel   draft/sent -> cancelled
    GET    /api/invoices/{id}/reminders Reminder history for one invoice

  Projects:
    GET    /api/projects               List projects
    POST   /api/projects               Create project
    GET    /api/projects/{id}          Get project with milestones
    POST   /api/projects/{id}/activate Lock the milestone list (contract signed)
    POST   /api/projects/{id}/milestones                 Add milestone
    POST   /api/projects/{id}/milestones/{mid}/complete  Freelancer completes
    POST   /api/projects/{id}/milestones/{mid}/approve   Client approves
    POST   /api/projects/{id}/milestones/{mid}/paid      Payment received

  Reminder settings:
    GET    /api/settings/{userID}                        User-global settings
    PUT    /api/settings/{userID}                        Save user-global settings
    GET    /api/settings/{userID}/projects/{projectID}   Project override
    PUT    /api/settings/{userID}/projects/{projectID}   Save project override

  Reminders:
    POST   /api/reminders/run          Trigger a reminder pass now
    GET    /api/reminders/log          Sent-reminder log

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors (full violations list), invalid input
  - 404: Resource not found
  - 409: Rejected lifecycle transition, budget/lock/approval conflicts
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scheduler.go: The reminder pass behind /api/reminders/run
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/mail"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the handlers need from persistence. Satisfied by both
// the SQLite store and the in-memory store.
type Store interface {
	billing.InvoiceStore
	billing.ProjectStore
	billing.SettingsStore
	billing.ReminderLog
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  Store
	Mailer mail.Mailer

	// Now supplies "today" for all date-sensitive decisions. Overridable
	// so tests can pin the calendar.
	Now func() billing.Date

	// Track currently loaded scenario. Guarded by mu: the load and
	// current-scenario endpoints run on separate request goroutines.
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store and mailer.
func NewHandler(store Store, mailer mail.Mailer) *Handler {
	return &Handler{
		Store:  store,
		Mailer: mailer,
		Now:    func() billing.Date { return billing.DateOf(time.Now()) },
	}
}

// =============================================================================
// INVOICE ENDPOINTS
// =============================================================================

// ListInvoices returns invoices, optionally filtered by freelancer_id or
// status query parameters.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := h.Now()

	var (
		invoices []billing.Invoice
		err      error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		invoices, err = h.Store.ListInvoicesByStatus(ctx, billing.InvoiceStatus(status))
	} else {
		freelancerID := billing.UserID(r.URL.Query().Get("freelancer_id"))
		invoices, err = h.Store.ListInvoices(ctx, freelancerID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list invoices", err)
		return
	}

	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv, today)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateInvoice creates a draft invoice. Totals are computed server-side
// and an invoice number is assigned.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := h.Now()

	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	inv := billing.Invoice{
		ID:              billing.InvoiceID(fmt.Sprintf("inv-%d", time.Now().UnixNano())),
		Number:          newInvoiceNumber(today),
		ClientID:        req.ClientID,
		ClientName:      req.ClientName,
		ClientEmail:     req.ClientEmail,
		FreelancerID:    billing.UserID(req.FreelancerID),
		FreelancerName:  req.FreelancerName,
		FreelancerEmail: req.FreelancerEmail,
		ProjectID:       billing.ProjectID(req.ProjectID),
		TaxRate:         billing.DefaultTaxRate,
		Status:          billing.InvoiceDraft,
		IssueDate:       today,
		Notes:           req.Notes,
	}
	if req.TaxRate != nil {
		inv.TaxRate = decimal.NewFromFloat(*req.TaxRate)
	}
	if req.IssueDate != "" {
		d, err := billing.ParseDate(req.IssueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid issue_date", err)
			return
		}
		inv.IssueDate = d
	}
	if req.DueDate != "" {
		d, err := billing.ParseDate(req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid due_date", err)
			return
		}
		inv.DueDate = d
	}
	for _, item := range req.LineItems {
		inv.LineItems = append(inv.LineItems, fromLineItemDTO(item))
	}
	inv.Recalculate()

	if vs := inv.Validate(); !vs.OK() {
		writeViolations(w, vs)
		return
	}

	if err := h.Store.SaveInvoice(ctx, inv); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(inv, today))
}

// GetInvoice returns one invoice.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(*inv, h.Now()))
}

// UpdateInvoice replaces the mutable fields of a draft invoice. Sent and
// terminal invoices are immutable.
func (h *Handler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := h.Now()

	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}
	if inv.Status != billing.InvoiceDraft {
		writeError(w, http.StatusConflict, "only draft invoices can be edited", nil)
		return
	}

	var req UpdateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	inv.LineItems = nil
	for _, item := range req.LineItems {
		inv.LineItems = append(inv.LineItems, fromLineItemDTO(item))
	}
	if req.TaxRate != nil {
		inv.TaxRate = decimal.NewFromFloat(*req.TaxRate)
	}
	if req.DueDate != "" {
		d, err := billing.ParseDate(req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid due_date", err)
			return
		}
		inv.DueDate = d
	}
	inv.Notes = req.Notes
	inv.Recalculate()

	if vs := inv.Validate(); !vs.OK() {
		writeViolations(w, vs)
		return
	}

	if err := h.Store.SaveInvoice(ctx, *inv); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(*inv, today))
}

// DeleteInvoice removes a draft invoice. Anything past draft is part of
// the billing record and cannot be deleted.
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}
	if inv.Status != billing.InvoiceDraft {
		writeError(w, http.StatusConflict, "only draft invoices can be deleted", nil)
		return
	}
	if err := h.Store.DeleteInvoice(ctx, inv.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendInvoice transitions draft -> sent.
func (h *Handler) SendInvoice(w http.ResponseWriter, r *http.Request) {
	h.transitionInvoice(w, r, billing.InvoiceSent)
}

// PayInvoice transitions sent -> paid.
func (h *Handler) PayInvoice(w http.ResponseWriter, r *http.Request) {
	h.transitionInvoice(w, r, billing.InvoicePaid)
}

// CancelInvoice transitions draft/sent -> cancelled.
func (h *Handler) CancelInvoice(w http.ResponseWriter, r *http.Request) {
	h.transitionInvoice(w, r, billing.InvoiceCancelled)
}

func (h *Handler) transitionInvoice(w http.ResponseWriter, r *http.Request, target billing.InvoiceStatus) {
	ctx := r.Context()
	today := h.Now()

	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}

	// A draft must be valid before it goes out the door.
	if target == billing.InvoiceSent {
		if vs := inv.Validate(); !vs.OK() {
			writeViolations(w, vs)
			return
		}
	}

	if err := inv.Transition(target, today); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Store.SaveInvoice(ctx, *inv); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save invoice", err)
		return
	}

	// Paying the invoice settles its milestone, if it has one.
	if target == billing.InvoicePaid && inv.ProjectID != "" && inv.MilestoneID != "" {
		if err := h.settleMilestone(ctx, inv.ProjectID, inv.MilestoneID); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, toInvoiceDTO(*inv, today))
}

func (h *Handler) settleMilestone(ctx context.Context, projectID billing.ProjectID, milestoneID billing.MilestoneID) error {
	project, err := h.Store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project == nil {
		return billing.ErrProjectNotFound
	}
	m := project.MilestoneByID(milestoneID)
	if m == nil {
		return billing.ErrMilestoneNotFound
	}
	if err := billing.MarkPaid(m); err != nil {
		return err
	}
	return h.Store.SaveProject(ctx, *project)
}

// GetInvoiceReminders returns the reminder history for one invoice.
func (h *Handler) GetInvoiceReminders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}
	entries, err := h.Store.ListReminders(ctx, inv.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reminders", err)
		return
	}
	dtos := make([]ReminderEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toReminderEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) loadInvoice(w http.ResponseWriter, r *http.Request) (*billing.Invoice, bool) {
	id := billing.InvoiceID(chi.URLParam(r, "id"))
	inv, err := h.Store.GetInvoice(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load invoice", err)
		return nil, false
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "invoice not found", nil)
		return nil, false
	}
	return inv, true
}

// =============================================================================
// PROJECT AND MILESTONE ENDPOINTS
// =============================================================================

// ListProjects returns all projects, optionally filtered by freelancer_id.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	freelancerID := billing.UserID(r.URL.Query().Get("freelancer_id"))
	projects, err := h.Store.ListProjects(ctx, freelancerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list projects", err)
		return
	}
	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProject creates a project with an empty milestone list and a draft
// contract.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.FreelancerID) == "" || strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "freelancer_id and title are required", nil)
		return
	}

	policy := billing.PaymentPolicy(req.PaymentPolicy)
	if policy != billing.PayPerMilestone && policy != billing.PayAtEnd {
		writeError(w, http.StatusBadRequest, "payment_policy must be \"milestone\" or \"end\"", nil)
		return
	}

	p := billing.Project{
		ID:             billing.ProjectID(fmt.Sprintf("proj-%d", time.Now().UnixNano())),
		FreelancerID:   billing.UserID(req.FreelancerID),
		ClientID:       req.ClientID,
		ClientEmail:    req.ClientEmail,
		Title:          req.Title,
		PaymentPolicy:  policy,
		ContractStatus: billing.ContractDraft,
	}
	if err := h.Store.SaveProject(ctx, p); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save project", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(p))
}

// GetProject returns one project with its milestones.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(*project))
}

// ActivateContract marks the contract active, locking the milestone list.
func (h *Handler) ActivateContract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}
	project.ContractStatus = billing.ContractActive
	if err := h.Store.SaveProject(ctx, *project); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save project", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(*project))
}

// AddMilestone adds a milestone to a project. Fails once the contract is
// active or when the percentage budget would be exceeded.
func (h *Handler) AddMilestone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	var req AddMilestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required", nil)
		return
	}
	if req.Percentage <= 0 || req.Percentage > 100 {
		writeError(w, http.StatusBadRequest, "percentage must be between 1 and 100", nil)
		return
	}

	input := billing.MilestoneInput{
		Title:                  req.Title,
		Description:            req.Description,
		Percentage:             req.Percentage,
		Amount:                 billing.NewMoney(req.Amount),
		RequiresClientApproval: req.RequiresClientApproval,
	}
	if req.DueDate != "" {
		d, err := billing.ParseDate(req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid due_date", err)
			return
		}
		input.DueDate = d
	}

	m, err := billing.AddMilestone(project, input, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Store.SaveProject(ctx, *project); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save project", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMilestoneDTO(*m))
}

// CompleteMilestone records the freelancer's completion with evidence.
func (h *Handler) CompleteMilestone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := h.Now()

	project, m, ok := h.loadMilestone(w, r)
	if !ok {
		return
	}

	var req CompleteMilestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := billing.CompleteMilestone(m, req.Evidence, billing.UserID(req.ActingUserID), today); err != nil {
		writeDomainError(w, err)
		return
	}
	// An invoice raised at approval time links up now that the work is
	// done, so the milestone can reach paid when that invoice settles.
	if m.InvoiceID != "" {
		if err := billing.MarkInvoiced(m, m.InvoiceID); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	if err := h.Store.SaveProject(ctx, *project); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save project", err)
		return
	}
	writeJSON(w, http.StatusOK, toMilestoneDTO(*m))
}

// ApproveMilestone records the client's approval and performs the
// invoicing side effect the payment policy calls for. Idempotent at the
// approval level; the invoice side effect runs at most once because the
// milestone keeps its invoice link.
func (h *Handler) ApproveMilestone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := h.Now()

	project, m, ok := h.loadMilestone(w, r)
	if !ok {
		return
	}

	billing.ClientApprove(m, today)
	outcome := billing.OnMilestoneApproved(project, m)

	resp := ApproveMilestoneResponse{
		ShouldInvoiceNow:      outcome.ShouldInvoiceNow,
		ShouldCompleteProject: outcome.ShouldCompleteProject,
	}

	if outcome.ShouldInvoiceNow && m.InvoiceID == "" {
		inv := h.invoiceForMilestones(*project, today, billing.LineItemForMilestone(m))
		inv.MilestoneID = m.ID
		if err := h.Store.SaveInvoice(ctx, inv); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save invoice", err)
			return
		}
		if m.Status == billing.MilestoneCompleted {
			if err := billing.MarkInvoiced(m, inv.ID); err != nil {
				writeDomainError(w, err)
				return
			}
		} else {
			// Approved before completion: remember the invoice so the
			// side effect never runs twice.
			m.InvoiceID = inv.ID
		}
		resp.InvoiceID = string(inv.ID)
	}

	// An ended contract already has its final invoice; re-approving a
	// milestone must not raise another one.
	if outcome.ShouldCompleteProject && project.ContractStatus != billing.ContractEnded {
		items := make([]billing.LineItem, len(project.Milestones))
		for i := range project.Milestones {
			items[i] = billing.LineItemForMilestone(&project.Milestones[i])
		}
		inv := h.invoiceForMilestones(*project, today, items...)
		if err := h.Store.SaveInvoice(ctx, inv); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save invoice", err)
			return
		}
		project.ContractStatus = billing.ContractEnded
		resp.InvoiceID = string(inv.ID)
	}

	if err := h.Store.SaveProject(ctx, *project); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save project", err)
		return
	}

	resp.Milestone = toMilestoneDTO(*m)
	writeJSON(w, http.StatusOK, resp)
}

// MilestonePaid records the external payment event for an invoiced milestone.
func (h *Handler) MilestonePaid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	project, m, ok := h.loadMilestone(w, r)
	if !ok {
		return
	}
	if err := billing.MarkPaid(m); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Store.SaveProject(ctx, *project); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save project", err)
		return
	}
	writeJSON(w, http.StatusOK, toMilestoneDTO(*m))
}

// invoiceForMilestones builds a draft invoice for the given project line
// items. Due in 14 days, default tax rate.
func (h *Handler) invoiceForMilestones(project billing.Project, today billing.Date, items ...billing.LineItem) billing.Invoice {
	inv := billing.Invoice{
		ID:           billing.InvoiceID(fmt.Sprintf("inv-%d", time.Now().UnixNano())),
		Number:       newInvoiceNumber(today),
		ClientID:     project.ClientID,
		ClientEmail:  project.ClientEmail,
		FreelancerID: project.FreelancerID,
		ProjectID:    project.ID,
		LineItems:    items,
		TaxRate:      billing.DefaultTaxRate,
		Status:       billing.InvoiceDraft,
		IssueDate:    today,
		DueDate:      today.AddDays(14),
	}
	inv.Recalculate()
	return inv
}

func (h *Handler) loadProject(w http.ResponseWriter, r *http.Request) (*billing.Project, bool) {
	id := billing.ProjectID(chi.URLParam(r, "id"))
	project, err := h.Store.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load project", err)
		return nil, false
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found", nil)
		return nil, false
	}
	return project, true
}

func (h *Handler) loadMilestone(w http.ResponseWriter, r *http.Request) (*billing.Project, *billing.Milestone, bool) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return nil, nil, false
	}
	m := project.MilestoneByID(billing.MilestoneID(chi.URLParam(r, "mid")))
	if m == nil {
		writeError(w, http.StatusNotFound, "milestone not found", nil)
		return nil, nil, false
	}
	return project, m, true
}

// =============================================================================
// REMINDER SETTINGS ENDPOINTS
// =============================================================================

// GetSettings returns the user's global reminder settings, falling back to
// defaults when nothing has been saved.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := billing.UserID(chi.URLParam(r, "userID"))

	saved, err := h.Store.GetUserSettings(ctx, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(billing.ResolveSettings(nil, saved, userID)))
}

// SaveSettings validates and saves the user's global reminder settings.
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	h.saveSettings(w, r, "")
}

// GetProjectSettings returns the project-specific override, falling back
// through the user's global settings to defaults.
func (h *Handler) GetProjectSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := billing.UserID(chi.URLParam(r, "userID"))
	projectID := billing.ProjectID(chi.URLParam(r, "projectID"))

	projectSpecific, err := h.Store.GetProjectSettings(ctx, userID, projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings", err)
		return
	}
	userGlobal, err := h.Store.GetUserSettings(ctx, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(billing.ResolveSettings(projectSpecific, userGlobal, userID)))
}

// SaveProjectSettings validates and saves a project-specific override.
func (h *Handler) SaveProjectSettings(w http.ResponseWriter, r *http.Request) {
	h.saveSettings(w, r, billing.ProjectID(chi.URLParam(r, "projectID")))
}

func (h *Handler) saveSettings(w http.ResponseWriter, r *http.Request, projectID billing.ProjectID) {
	ctx := r.Context()
	userID := billing.UserID(chi.URLParam(r, "userID"))

	var dto ReminderSettingsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	s := fromSettingsDTO(dto)
	s.UserID = userID
	s.ProjectID = projectID

	if vs := s.Validate(); !vs.OK() {
		writeViolations(w, vs)
		return
	}
	if err := h.Store.SaveSettings(ctx, s); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(s))
}

// =============================================================================
// REMINDER ENDPOINTS
// =============================================================================

// RunReminders triggers an immediate reminder pass. The optional body
// {"date": "YYYY-MM-DD"} pins the evaluation day, otherwise today is used.
func (h *Handler) RunReminders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := h.Now()

	var req struct {
		Date string `json:"date"`
	}
	// An empty body means "run for today"; only malformed JSON is an error.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Date != "" {
		d, err := billing.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date", err)
			return
		}
		today = d
	}

	result, err := RunReminderPass(ctx, h.Store, h.Mailer, today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reminder pass failed", err)
		return
	}
	writeJSON(w, http.StatusOK, RunRemindersResponse{
		Date:    today.String(),
		Sent:    result.Sent,
		Skipped: result.Skipped,
	})
}

// ListReminderLog returns sent reminders, optionally filtered by invoice_id.
func (h *Handler) ListReminderLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invoiceID := billing.InvoiceID(r.URL.Query().Get("invoice_id"))
	entries, err := h.Store.ListReminders(ctx, invoiceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reminders", err)
		return
	}
	dtos := make([]ReminderEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toReminderEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// newInvoiceNumber builds a human-facing invoice number: INV-<yyyymm>-<rand>.
func newInvoiceNumber(today billing.Date) string {
	return fmt.Sprintf("INV-%04d%02d-%04d", today.Year(), int(today.Month()), rand.Intn(10000))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeViolations(w http.ResponseWriter, vs billing.Violations) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:      "validation failed",
		Violations: toViolationDTOs(vs),
	})
}

// writeDomainError maps billing errors to HTTP statuses. Full violation
// lists become 400s; lifecycle and budget conflicts become 409s.
func writeDomainError(w http.ResponseWriter, err error) {
	var vs billing.Violations
	switch {
	case errors.As(err, &vs):
		writeViolations(w, vs)
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, billing.ErrInvalidTransition),
		errors.Is(err, billing.ErrBudgetExceeded),
		errors.Is(err, billing.ErrContractLocked),
		errors.Is(err, billing.ErrApprovalRequired),
		errors.Is(err, billing.ErrEvidenceRequired),
		errors.Is(err, billing.ErrDuplicateReminder):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
