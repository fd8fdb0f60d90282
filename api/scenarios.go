/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for testing and demos. Each scenario creates a freelancer with
	projects, milestones, invoices, and reminder settings that
	demonstrate specific features.

AVAILABLE SCENARIOS:

	getting-started:    One per-milestone project plus a few invoices
	overdue-escalation: Invoices at every reminder escalation stage
	pay-at-end:         A pay-at-end project one approval from its final invoice

HOW SCENARIOS WORK:
 1. Seed projects and milestones via the domain functions (never raw
    structs for stateful transitions, so the data is always reachable)
 2. Seed invoices with due dates relative to today
 3. Seed reminder settings where the scenario needs non-defaults

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "overdue-escalation"}

NOTE:

	Scenarios write into the live store without clearing it. Only use in
	development/demo environments.

SEE ALSO:
  - handlers.go: Invoice and milestone handlers operating on this data
  - scheduler.go: The reminder pass the escalation scenario feeds
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "getting-started",
		Name:        "Getting Started",
		Description: "A per-milestone project with work in flight and a few invoices",
	},
	{
		ID:          "overdue-escalation",
		Name:        "Overdue Escalation",
		Description: "Sent invoices at reminder, warning, and final-notice stages",
	},
	{
		ID:          "pay-at-end",
		Name:        "Pay At End",
		Description: "A pay-at-end project one client approval away from its final invoice",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:   current,
		Name: current,
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ctx := r.Context()
	var err error
	switch req.ScenarioID {
	case "getting-started":
		err = h.loadGettingStarted(ctx)
	case "overdue-escalation":
		err = h.loadOverdueEscalation(ctx)
	case "pay-at-end":
		err = h.loadPayAtEnd(ctx)
	default:
		writeError(w, http.StatusNotFound, "unknown scenario: "+req.ScenarioID, nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

const (
	demoFreelancerID    = "user-demo-freelancer"
	demoFreelancerEmail = "maya@studio.example"
	demoClientEmail     = "billing@acme.example"
)

// loadGettingStarted seeds a per-milestone project with milestones in
// pending, completed, and invoiced states, plus a draft and a sent invoice.
func (h *Handler) loadGettingStarted(ctx context.Context) error {
	today := h.Now()

	project := billing.Project{
		ID:             "proj-demo-website",
		FreelancerID:   demoFreelancerID,
		ClientID:       "client-acme",
		ClientEmail:    demoClientEmail,
		Title:          "Acme marketing site",
		PaymentPolicy:  billing.PayPerMilestone,
		ContractStatus: billing.ContractDraft,
	}

	specs := []billing.MilestoneInput{
		{Title: "Design", Description: "Wireframes and visual design", Percentage: 30, Amount: billing.NewMoneyFromInt(1500), DueDate: today.AddDays(-20)},
		{Title: "Build", Description: "Implementation and CMS setup", Percentage: 50, Amount: billing.NewMoneyFromInt(2500), DueDate: today.AddDays(10), RequiresClientApproval: true},
		{Title: "Launch", Description: "Deploy and handover", Percentage: 20, Amount: billing.NewMoneyFromInt(1000), DueDate: today.AddDays(30)},
	}
	for i, input := range specs {
		// Distinct nanosecond timestamps keep the generated IDs unique.
		if _, err := billing.AddMilestone(&project, input, time.Now().Add(time.Duration(i)*time.Microsecond)); err != nil {
			return err
		}
	}

	// The design milestone is already done and invoiced.
	design := &project.Milestones[0]
	if err := billing.CompleteMilestone(design, "Figma link: acme-final-v3", demoFreelancerID, today.AddDays(-15)); err != nil {
		return err
	}
	billing.ClientApprove(design, today.AddDays(-14))

	designInvoice := h.invoiceForMilestones(project, today.AddDays(-14), billing.LineItemForMilestone(design))
	designInvoice.ID = "inv-demo-design"
	designInvoice.MilestoneID = design.ID
	designInvoice.ClientName = "Acme Corp"
	designInvoice.FreelancerEmail = demoFreelancerEmail
	if err := designInvoice.Transition(billing.InvoiceSent, today.AddDays(-14)); err != nil {
		return err
	}
	if err := billing.MarkInvoiced(design, designInvoice.ID); err != nil {
		return err
	}

	if err := h.Store.SaveProject(ctx, project); err != nil {
		return err
	}
	if err := h.Store.SaveInvoice(ctx, designInvoice); err != nil {
		return err
	}

	// A standalone draft invoice, unrelated to the project.
	draft := billing.Invoice{
		ID:              "inv-demo-draft",
		Number:          newInvoiceNumber(today),
		ClientName:      "Side Gig LLC",
		ClientEmail:     "accounts@sidegig.example",
		FreelancerID:    demoFreelancerID,
		FreelancerEmail: demoFreelancerEmail,
		LineItems: []billing.LineItem{
			{Description: "Consulting (March)", Quantity: decimal.NewFromInt(8), Rate: billing.NewMoneyFromInt(120)},
		},
		TaxRate:   billing.DefaultTaxRate,
		Status:    billing.InvoiceDraft,
		IssueDate: today,
		DueDate:   today.AddDays(30),
	}
	draft.Recalculate()
	return h.Store.SaveInvoice(ctx, draft)
}

// loadOverdueEscalation seeds one sent invoice per escalation stage:
// upcoming (3 days out), overdue (3 days), warning (14 days), and final
// notice (30 days). With default settings every one fires today.
func (h *Handler) loadOverdueEscalation(ctx context.Context) error {
	today := h.Now()

	stages := []struct {
		id     string
		dueIn  int // days from today; negative = already overdue
		client string
		amount int
	}{
		{"inv-demo-upcoming", 3, "north@clients.example", 800},
		{"inv-demo-overdue", -3, "east@clients.example", 1200},
		{"inv-demo-warning", -14, "south@clients.example", 2400},
		{"inv-demo-final", -30, "west@clients.example", 5000},
	}

	for i, st := range stages {
		sentOn := today.AddDays(st.dueIn - 30)
		inv := billing.Invoice{
			ID:              billing.InvoiceID(st.id),
			Number:          fmt.Sprintf("INV-%04d%02d-%04d", today.Year(), int(today.Month()), 9000+i),
			ClientEmail:     st.client,
			FreelancerID:    demoFreelancerID,
			FreelancerEmail: demoFreelancerEmail,
			LineItems: []billing.LineItem{
				{Description: "Project work", Quantity: decimal.NewFromInt(1), Rate: billing.NewMoneyFromInt(st.amount)},
			},
			TaxRate:   billing.DefaultTaxRate,
			Status:    billing.InvoiceDraft,
			IssueDate: sentOn,
			DueDate:   today.AddDays(st.dueIn),
		}
		inv.Recalculate()
		if err := inv.Transition(billing.InvoiceSent, sentOn); err != nil {
			return err
		}
		if err := h.Store.SaveInvoice(ctx, inv); err != nil {
			return err
		}
	}

	// Custom settings: CC the freelancer and use a firmer final notice.
	settings := billing.DefaultSettings(demoFreelancerID)
	settings.CcFreelancer = true
	settings.FinalNoticeMessage = "Please note that continued non-payment may be referred to collections."
	return h.Store.SaveSettings(ctx, settings)
}

// loadPayAtEnd seeds a pay-at-end project where every milestone but one is
// completed and approved; approving the last one triggers the single final
// invoice.
func (h *Handler) loadPayAtEnd(ctx context.Context) error {
	today := h.Now()

	project := billing.Project{
		ID:             "proj-demo-rebrand",
		FreelancerID:   demoFreelancerID,
		ClientID:       "client-nimbus",
		ClientEmail:    "finance@nimbus.example",
		Title:          "Nimbus rebrand",
		PaymentPolicy:  billing.PayAtEnd,
		ContractStatus: billing.ContractDraft,
	}

	specs := []billing.MilestoneInput{
		{Title: "Brand audit", Percentage: 25, Amount: billing.NewMoneyFromInt(2000), DueDate: today.AddDays(-40)},
		{Title: "Identity system", Percentage: 50, Amount: billing.NewMoneyFromInt(4000), DueDate: today.AddDays(-10)},
		{Title: "Guidelines", Percentage: 25, Amount: billing.NewMoneyFromInt(2000), DueDate: today.AddDays(-2)},
	}
	for i, input := range specs {
		if _, err := billing.AddMilestone(&project, input, time.Now().Add(time.Duration(i)*time.Microsecond)); err != nil {
			return err
		}
	}

	evidence := []string{"Audit deck delivered", "Logo suite and palette delivered", "Guidelines PDF delivered"}
	for i := range project.Milestones {
		m := &project.Milestones[i]
		if err := billing.CompleteMilestone(m, evidence[i], demoFreelancerID, today.AddDays(-5+i)); err != nil {
			return err
		}
		// The last milestone awaits the client's approval.
		if i < len(project.Milestones)-1 {
			billing.ClientApprove(m, today.AddDays(-4+i))
		}
	}

	return h.Store.SaveProject(ctx, project)
}
