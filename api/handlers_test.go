/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Invoice creation, lifecycle transitions, and overdue display
- Milestone add/complete/approve flow including the invoicing side effect
- Reminder settings validation at the API boundary
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/billing/store"
	"github.com/warp/billing-engine/mail"
)

// newTestServer wires a handler onto the in-memory store with a pinned
// clock. Monday 2026-08-31 keeps the weekend pause out of the way.
func newTestServer() (*httptest.Server, *Handler, *mail.Recorder) {
	recorder := &mail.Recorder{}
	h := NewHandler(store.NewMemory(), recorder)
	h.Now = func() billing.Date { return billing.NewDate(2026, time.August, 31) }
	return httptest.NewServer(NewRouter(h)), h, recorder
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}

// =============================================================================
// INVOICE ENDPOINT TESTS
// =============================================================================

func TestCreateInvoice_ComputesTotalsServerSide(t *testing.T) {
	ts, _, _ := newTestServer()
	defer ts.Close()

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/invoices", CreateInvoiceRequest{
		ClientEmail:  "client@example.com",
		FreelancerID: "user-1",
		DueDate:      "2026-09-30",
		LineItems: []LineItemDTO{
			// Amount deliberately wrong; the server must recompute it.
			{Description: "Design work", Quantity: 10, Rate: 50, Amount: 9999},
		},
	})
	wantStatus(t, resp, http.StatusCreated)
	dto := decode[InvoiceDTO](t, resp)

	if dto.Subtotal != 500 || dto.TaxAmount != 30 || dto.TotalAmount != 530 {
		t.Errorf("expected 500/30/530, got %v/%v/%v", dto.Subtotal, dto.TaxAmount, dto.TotalAmount)
	}
	if dto.Status != "draft" {
		t.Errorf("new invoices must be drafts, got %s", dto.Status)
	}
	if dto.Number == "" {
		t.Error("expected an assigned invoice number")
	}
}

func TestCreateInvoice_ReturnsAllViolations(t *testing.T) {
	ts, _, _ := newTestServer()
	defer ts.Close()

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/invoices", CreateInvoiceRequest{
		FreelancerID: "user-1",
	})
	wantStatus(t, resp, http.StatusBadRequest)
	errResp := decode[ErrorResponse](t, resp)

	if len(errResp.Violations) < 3 {
		t.Errorf("expected violations for client, due date, and line items, got %v", errResp.Violations)
	}
}

func TestInvoiceLifecycle_SendPayViaAPI(t *testing.T) {
	ts, _, _ := newTestServer()
	defer ts.Close()

	created := decode[InvoiceDTO](t, doJSON(t, http.MethodPost, ts.URL+"/api/invoices", CreateInvoiceRequest{
		ClientEmail:  "client@example.com",
		FreelancerID: "user-1",
		DueDate:      "2026-09-30",
		LineItems:    []LineItemDTO{{Description: "Work", Quantity: 1, Rate: 100}},
	}))

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/invoices/%s/send", ts.URL, created.ID), nil)
	wantStatus(t, resp, http.StatusOK)
	sent := decode[InvoiceDTO](t, resp)
	if sent.Status != "sent" || sent.SentAt == "" {
		t.Errorf("expected sent with SentAt stamp, got %s/%q", sent.Status, sent.SentAt)
	}

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/invoices/%s/pay", ts.URL, created.ID), nil)
	wantStatus(t, resp, http.StatusOK)
	paid := decode[InvoiceDTO](t, resp)
	if paid.Status != "paid" || paid.PaidDate == "" {
		t.Errorf("expected paid with PaidDate stamp, got %s/%q", paid.Status, paid.PaidDate)
	}

	// Terminal: a second pay is a conflict.
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/invoices/%s/pay", ts.URL, created.ID), nil)
	wantStatus(t, resp, http.StatusConflict)
	resp.Body.Close()
}

func TestGetInvoice_OverdueDisplayStatus(t *testing.T) {
	ts, h, _ := newTestServer()
	defer ts.Close()

	// Seed a sent invoice due two weeks before the pinned clock.
	inv := billing.Invoice{
		ID:           "inv-overdue",
		Number:       "INV-202608-1234",
		ClientEmail:  "client@example.com",
		FreelancerID: "user-1",
		LineItems:    []billing.LineItem{billing.LineItemForMilestone(&billing.Milestone{Title: "Work", Amount: billing.NewMoneyFromInt(100)})},
		TaxRate:      billing.DefaultTaxRate,
		Status:       billing.InvoiceSent,
		DueDate:      billing.NewDate(2026, time.August, 17),
	}
	inv.Recalculate()
	if err := h.Store.SaveInvoice(context.Background(), inv); err != nil {
		t.Fatalf("seeding invoice: %v", err)
	}

	dto := decode[InvoiceDTO](t, doJSON(t, http.MethodGet, ts.URL+"/api/invoices/inv-overdue", nil))
	if dto.Status != "sent" {
		t.Errorf("stored status must stay sent, got %s", dto.Status)
	}
	if dto.DisplayStatus != "Overdue" || !dto.Overdue {
		t.Errorf("expected Overdue display, got %q (overdue=%v)", dto.DisplayStatus, dto.Overdue)
	}
}

func TestUpdateInvoice_RejectedOncePastDraft(t *testing.T) {
	ts, h, _ := newTestServer()
	defer ts.Close()

	inv := billing.Invoice{
		ID: "inv-sent", Number: "INV-1", ClientEmail: "c@example.com",
		FreelancerID: "user-1", Status: billing.InvoiceSent,
		DueDate: billing.NewDate(2026, time.September, 30),
	}
	if err := h.Store.SaveInvoice(context.Background(), inv); err != nil {
		t.Fatalf("seeding invoice: %v", err)
	}

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/invoices/inv-sent", UpdateInvoiceRequest{
		LineItems: []LineItemDTO{{Description: "Edit", Quantity: 1, Rate: 1}},
		DueDate:   "2026-10-31",
	})
	wantStatus(t, resp, http.StatusConflict)
	resp.Body.Close()
}

// =============================================================================
// PROJECT AND MILESTONE ENDPOINT TESTS
// =============================================================================

func createProject(t *testing.T, ts *httptest.Server, policy string) ProjectDTO {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/projects", CreateProjectRequest{
		FreelancerID:  "user-1",
		ClientEmail:   "client@example.com",
		Title:         "Test project",
		PaymentPolicy: policy,
	})
	wantStatus(t, resp, http.StatusCreated)
	return decode[ProjectDTO](t, resp)
}

func addMilestone(t *testing.T, ts *httptest.Server, projectID string, pct int, amount float64) MilestoneDTO {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/projects/"+projectID+"/milestones", AddMilestoneRequest{
		Title:      fmt.Sprintf("Milestone %d%%", pct),
		Percentage: pct,
		Amount:     amount,
	})
	wantStatus(t, resp, http.StatusCreated)
	return decode[MilestoneDTO](t, resp)
}

func TestAddMilestone_BudgetConflict(t *testing.T) {
	ts, _, _ := newTestServer()
	defer ts.Close()

	p := createProject(t, ts, "milestone")
	addMilestone(t, ts, p.ID, 60, 600)
	addMilestone(t, ts, p.ID, 40, 400)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/projects/"+p.ID+"/milestones", AddMilestoneRequest{
		Title: "Over budget", Percentage: 10, Amount: 100,
	})
	wantStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	got := decode[ProjectDTO](t, doJSON(t, http.MethodGet, ts.URL+"/api/projects/"+p.ID, nil))
	if len(got.Milestones) != 2 || got.PercentageAllocated != 100 {
		t.Errorf("rejected add mutated the project: %d milestones, %d%%",
			len(got.Milestones), got.PercentageAllocated)
	}
}

func TestAddMilestone_ContractLockConflict(t *testing.T) {
	ts, _, _ := newTestServer()
	defer ts.Close()

	p := createProject(t, ts, "milestone")
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/projects/"+p.ID+"/activate", nil)
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/projects/"+p.ID+"/milestones", AddMilestoneRequest{
		Title: "Too late", Percentage: 10, Amount: 100,
	})
	wantStatus(t, resp, http.StatusConflict)
	resp.Body.Close()
}

func TestApproveMilestone_PayPerMilestoneCreatesInvoice(t *testing.T) {
	// GIVEN: A completed milestone on a pay-per-milestone project
	// WHEN: The client approves it
	// THEN: A draft invoice for the milestone amount exists and the
	//       milestone is linked to it

	ts, h, _ := newTestServer()
	defer ts.Close()

	p := createProject(t, ts, "milestone")
	m := addMilestone(t, ts, p.ID, 50, 1500)

	resp := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/projects/%s/milestones/%s/complete", ts.URL, p.ID, m.ID),
		CompleteMilestoneRequest{Evidence: "Staging link", ActingUserID: "user-1"})
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/projects/%s/milestones/%s/approve", ts.URL, p.ID, m.ID), nil)
	wantStatus(t, resp, http.StatusOK)
	approval := decode[ApproveMilestoneResponse](t, resp)

	if !approval.ShouldInvoiceNow || approval.InvoiceID == "" {
		t.Fatalf("expected an immediate invoice, got %+v", approval)
	}
	if approval.Milestone.Status != "invoiced" {
		t.Errorf("expected milestone invoiced, got %s", approval.Milestone.Status)
	}

	inv, err := h.Store.GetInvoice(context.Background(), billing.InvoiceID(approval.InvoiceID))
	if err != nil || inv == nil {
		t.Fatalf("invoice not persisted: %v", err)
	}
	if inv.Status != billing.InvoiceDraft {
		t.Errorf("milestone invoices start as drafts, got %s", inv.Status)
	}
	if !inv.Subtotal.Equal(billing.NewMoneyFromInt(1500)) {
		t.Errorf("expected subtotal 1500, got %s", inv.Subtotal.Display())
	}
}

func TestApproveMilestone_PayAtEndWaitsThenInvoicesOnce(t *testing.T) {
	ts, h, _ := newTestServer()
	defer ts.Close()

	p := createProject(t, ts, "end")
	m1 := addMilestone(t, ts, p.ID, 50, 2000)
	m2 := addMilestone(t, ts, p.ID, 50, 2000)

	for _, m := range []MilestoneDTO{m1, m2} {
		resp := doJSON(t, http.MethodPost,
			fmt.Sprintf("%s/api/projects/%s/milestones/%s/complete", ts.URL, p.ID, m.ID),
			CompleteMilestoneRequest{Evidence: "Delivered", ActingUserID: "user-1"})
		wantStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}

	// First approval: nothing to invoice yet.
	first := decode[ApproveMilestoneResponse](t, doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/projects/%s/milestones/%s/approve", ts.URL, p.ID, m1.ID), nil))
	if first.ShouldInvoiceNow || first.ShouldCompleteProject || first.InvoiceID != "" {
		t.Fatalf("expected no invoicing on first approval, got %+v", first)
	}

	// Second approval completes the project and produces the final invoice.
	second := decode[ApproveMilestoneResponse](t, doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/projects/%s/milestones/%s/approve", ts.URL, p.ID, m2.ID), nil))
	if !second.ShouldCompleteProject || second.InvoiceID == "" {
		t.Fatalf("expected the final invoice, got %+v", second)
	}

	inv, err := h.Store.GetInvoice(context.Background(), billing.InvoiceID(second.InvoiceID))
	if err != nil || inv == nil {
		t.Fatalf("final invoice not persisted: %v", err)
	}
	if !inv.Subtotal.Equal(billing.NewMoneyFromInt(4000)) {
		t.Errorf("final invoice should cover both milestones, got %s", inv.Subtotal.Display())
	}
	if len(inv.LineItems) != 2 {
		t.Errorf("expected one line item per milestone, got %d", len(inv.LineItems))
	}
}

func TestApproveMilestone_PayAtEndReapprovalKeepsSingleFinalInvoice(t *testing.T) {
	// GIVEN: A pay-at-end project whose final invoice already exists
	// WHEN: A client re-sends the approval for an already-approved milestone
	// THEN: No second final invoice is created

	ts, _, _ := newTestServer()
	defer ts.Close()

	p := createProject(t, ts, "end")
	m1 := addMilestone(t, ts, p.ID, 50, 2000)
	m2 := addMilestone(t, ts, p.ID, 50, 2000)

	for _, m := range []MilestoneDTO{m1, m2} {
		resp := doJSON(t, http.MethodPost,
			fmt.Sprintf("%s/api/projects/%s/milestones/%s/complete", ts.URL, p.ID, m.ID),
			CompleteMilestoneRequest{Evidence: "Delivered", ActingUserID: "user-1"})
		wantStatus(t, resp, http.StatusOK)
		resp.Body.Close()
		resp = doJSON(t, http.MethodPost,
			fmt.Sprintf("%s/api/projects/%s/milestones/%s/approve", ts.URL, p.ID, m.ID), nil)
		wantStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}

	// Duplicate approval clicks must be side-effect free.
	for i := 0; i < 2; i++ {
		again := decode[ApproveMilestoneResponse](t, doJSON(t, http.MethodPost,
			fmt.Sprintf("%s/api/projects/%s/milestones/%s/approve", ts.URL, p.ID, m2.ID), nil))
		if again.InvoiceID != "" {
			t.Errorf("re-approval raised invoice %q", again.InvoiceID)
		}
	}

	invoices := decode[[]InvoiceDTO](t, doJSON(t, http.MethodGet, ts.URL+"/api/invoices", nil))
	if len(invoices) != 1 {
		t.Fatalf("expected exactly one final invoice, got %d", len(invoices))
	}
}

func TestApproveMilestone_BeforeCompletionStillReachesPaid(t *testing.T) {
	// GIVEN: An approval-gated milestone the client approves before the
	//        work is delivered (the invoice is raised eagerly)
	// WHEN: The freelancer later completes it and the invoice is paid
	// THEN: The milestone walks pending -> invoiced -> paid

	ts, h, _ := newTestServer()
	defer ts.Close()

	p := createProject(t, ts, "milestone")
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/projects/"+p.ID+"/milestones", AddMilestoneRequest{
		Title: "Gated", Percentage: 50, Amount: 1500, RequiresClientApproval: true,
	})
	wantStatus(t, resp, http.StatusCreated)
	m := decode[MilestoneDTO](t, resp)

	approval := decode[ApproveMilestoneResponse](t, doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/projects/%s/milestones/%s/approve", ts.URL, p.ID, m.ID), nil))
	if approval.InvoiceID == "" {
		t.Fatal("expected an eager invoice on approval")
	}
	if approval.Milestone.Status != "pending" {
		t.Fatalf("approval must not complete the milestone, got %s", approval.Milestone.Status)
	}

	resp = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/projects/%s/milestones/%s/complete", ts.URL, p.ID, m.ID),
		CompleteMilestoneRequest{Evidence: "Delivered", ActingUserID: "user-1"})
	wantStatus(t, resp, http.StatusOK)
	completed := decode[MilestoneDTO](t, resp)
	if completed.Status != "invoiced" {
		t.Fatalf("completion must pick up the eager invoice link, got %s", completed.Status)
	}

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/invoices/%s/send", ts.URL, approval.InvoiceID), nil)
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/invoices/%s/pay", ts.URL, approval.InvoiceID), nil)
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	project, err := h.Store.GetProject(context.Background(), billing.ProjectID(p.ID))
	if err != nil || project == nil {
		t.Fatalf("loading project: %v", err)
	}
	got := project.MilestoneByID(billing.MilestoneID(m.ID))
	if got == nil || got.Status != billing.MilestonePaid {
		t.Fatalf("expected the milestone paid after its invoice settled, got %+v", got)
	}
}

func TestCompleteMilestone_ApprovalGateViaAPI(t *testing.T) {
	ts, _, _ := newTestServer()
	defer ts.Close()

	p := createProject(t, ts, "milestone")
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/projects/"+p.ID+"/milestones", AddMilestoneRequest{
		Title: "Gated", Percentage: 50, Amount: 1000, RequiresClientApproval: true,
	})
	wantStatus(t, resp, http.StatusCreated)
	m := decode[MilestoneDTO](t, resp)

	resp = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/projects/%s/milestones/%s/complete", ts.URL, p.ID, m.ID),
		CompleteMilestoneRequest{Evidence: "Done", ActingUserID: "user-1"})
	wantStatus(t, resp, http.StatusConflict)
	resp.Body.Close()
}

// =============================================================================
// REMINDER SETTINGS ENDPOINT TESTS
// =============================================================================

func TestGetSettings_FallsBackToDefaults(t *testing.T) {
	ts, _, _ := newTestServer()
	defer ts.Close()

	dto := decode[ReminderSettingsDTO](t, doJSON(t, http.MethodGet, ts.URL+"/api/settings/user-1", nil))
	if !dto.Enabled || dto.SendWarningAt != 14 || dto.SendFinalNoticeAt != 30 {
		t.Errorf("expected hard-coded defaults, got %+v", dto)
	}
}

func TestSaveSettings_RejectsBadThresholds(t *testing.T) {
	ts, _, _ := newTestServer()
	defer ts.Close()

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/settings/user-1", ReminderSettingsDTO{
		Enabled:           true,
		SendWarningAt:     30,
		SendFinalNoticeAt: 14,
	})
	wantStatus(t, resp, http.StatusBadRequest)
	errResp := decode[ErrorResponse](t, resp)
	if len(errResp.Violations) == 0 {
		t.Error("expected a threshold violation")
	}
}

func TestSaveSettings_NormalizesOffsets(t *testing.T) {
	ts, _, _ := newTestServer()
	defer ts.Close()

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/settings/user-1", ReminderSettingsDTO{
		Enabled:            true,
		BeforeDueReminders: []int{3, 7, 3, -1, 0, 1},
		OverdueReminders:   []int{1},
		SendWarningAt:      14,
		SendFinalNoticeAt:  30,
	})
	wantStatus(t, resp, http.StatusOK)
	dto := decode[ReminderSettingsDTO](t, resp)

	want := []int{1, 3, 7}
	if len(dto.BeforeDueReminders) != len(want) {
		t.Fatalf("expected %v, got %v", want, dto.BeforeDueReminders)
	}
	for i := range want {
		if dto.BeforeDueReminders[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, dto.BeforeDueReminders)
		}
	}
}

// =============================================================================
// SCENARIO ENDPOINT TESTS
// =============================================================================

func TestLoadScenario_SeedsData(t *testing.T) {
	ts, _, _ := newTestServer()
	defer ts.Close()

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/scenarios/load", LoadScenarioRequest{ScenarioID: "getting-started"})
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	invoices := decode[[]InvoiceDTO](t, doJSON(t, http.MethodGet, ts.URL+"/api/invoices", nil))
	if len(invoices) == 0 {
		t.Error("scenario should have seeded invoices")
	}
	projects := decode[[]ProjectDTO](t, doJSON(t, http.MethodGet, ts.URL+"/api/projects", nil))
	if len(projects) == 0 {
		t.Error("scenario should have seeded a project")
	}

	current := decode[ScenarioDTO](t, doJSON(t, http.MethodGet, ts.URL+"/api/scenarios/current", nil))
	if current.ID != "getting-started" {
		t.Errorf("expected current scenario getting-started, got %q", current.ID)
	}
}

func TestScenarioEndpoints_ConcurrentLoadAndRead(t *testing.T) {
	// Loads and current-scenario reads race from separate request
	// goroutines; run under -race this catches unguarded state.
	ts, _, _ := newTestServer()
	defer ts.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			resp, err := http.Post(ts.URL+"/api/scenarios/load", "application/json",
				bytes.NewBufferString(`{"scenario_id":"overdue-escalation"}`))
			if err != nil {
				t.Errorf("load: %v", err)
				return
			}
			resp.Body.Close()
		}()
		go func() {
			defer wg.Done()
			resp, err := http.Get(ts.URL + "/api/scenarios/current")
			if err != nil {
				t.Errorf("current: %v", err)
				return
			}
			resp.Body.Close()
		}()
	}
	wg.Wait()
}
