/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AT THE BOUNDARY:
  Internal arithmetic is exact decimal; DTOs carry float64 for JSON.
  Conversion happens only here, never mid-computation.

VALIDATION:
  Validation is done by the billing package, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - billing/invoice.go: The domain model these project
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// INVOICE TYPES
// =============================================================================

// LineItemDTO represents one billable row.
type LineItemDTO struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
	Amount      float64 `json:"amount"`
}

// InvoiceDTO represents an invoice in API responses. Status is the stored
// status; DisplayStatus substitutes "Overdue" for past-due sent invoices.
type InvoiceDTO struct {
	ID              string        `json:"id"`
	Number          string        `json:"number"`
	ClientID        string        `json:"client_id,omitempty"`
	ClientName      string        `json:"client_name,omitempty"`
	ClientEmail     string        `json:"client_email,omitempty"`
	FreelancerID    string        `json:"freelancer_id"`
	FreelancerName  string        `json:"freelancer_name,omitempty"`
	FreelancerEmail string        `json:"freelancer_email,omitempty"`
	ProjectID       string        `json:"project_id,omitempty"`
	MilestoneID     string        `json:"milestone_id,omitempty"`
	LineItems       []LineItemDTO `json:"line_items"`
	TaxRate         float64       `json:"tax_rate"`
	Subtotal        float64       `json:"subtotal"`
	TaxAmount       float64       `json:"tax_amount"`
	TotalAmount     float64       `json:"total_amount"`
	Status          string        `json:"status"`
	DisplayStatus   string        `json:"display_status"`
	Overdue         bool          `json:"overdue"`
	IssueDate       string        `json:"issue_date,omitempty"`
	DueDate         string        `json:"due_date"`
	SentAt          string        `json:"sent_at,omitempty"`
	PaidDate        string        `json:"paid_date,omitempty"`
	Notes           string        `json:"notes,omitempty"`
}

// CreateInvoiceRequest is the request to create a draft invoice.
type CreateInvoiceRequest struct {
	ClientID        string        `json:"client_id"`
	ClientName      string        `json:"client_name"`
	ClientEmail     string        `json:"client_email"`
	FreelancerID    string        `json:"freelancer_id"`
	FreelancerName  string        `json:"freelancer_name"`
	FreelancerEmail string        `json:"freelancer_email"`
	ProjectID       string        `json:"project_id"`
	LineItems       []LineItemDTO `json:"line_items"`
	TaxRate         *float64      `json:"tax_rate,omitempty"` // default 0.06
	IssueDate       string        `json:"issue_date"`
	DueDate         string        `json:"due_date"`
	Notes           string        `json:"notes"`
}

// UpdateInvoiceRequest replaces the mutable fields of a draft invoice.
// Totals are always recomputed server-side.
type UpdateInvoiceRequest struct {
	LineItems []LineItemDTO `json:"line_items"`
	TaxRate   *float64      `json:"tax_rate,omitempty"`
	DueDate   string        `json:"due_date"`
	Notes     string        `json:"notes"`
}

// =============================================================================
// PROJECT AND MILESTONE TYPES
// =============================================================================

// MilestoneDTO represents a milestone within a project.
type MilestoneDTO struct {
	ID                     string  `json:"id"`
	Title                  string  `json:"title"`
	Description            string  `json:"description,omitempty"`
	Percentage             int     `json:"percentage"`
	Amount                 float64 `json:"amount"`
	Status                 string  `json:"status"`
	DueDate                string  `json:"due_date,omitempty"`
	Evidence               string  `json:"evidence,omitempty"`
	CompletedAt            string  `json:"completed_at,omitempty"`
	CompletedBy            string  `json:"completed_by,omitempty"`
	RequiresClientApproval bool    `json:"requires_client_approval"`
	ClientApproved         bool    `json:"client_approved"`
	ClientApprovedAt       string  `json:"client_approved_at,omitempty"`
	InvoiceID              string  `json:"invoice_id,omitempty"`
}

// ProjectDTO represents a project with its milestones.
type ProjectDTO struct {
	ID                  string         `json:"id"`
	FreelancerID        string         `json:"freelancer_id"`
	ClientID            string         `json:"client_id,omitempty"`
	ClientEmail         string         `json:"client_email,omitempty"`
	Title               string         `json:"title"`
	PaymentPolicy       string         `json:"payment_policy"`
	ContractStatus      string         `json:"contract_status"`
	PercentageAllocated int            `json:"percentage_allocated"`
	Milestones          []MilestoneDTO `json:"milestones"`
}

// CreateProjectRequest is the request to create a project.
type CreateProjectRequest struct {
	FreelancerID  string `json:"freelancer_id"`
	ClientID      string `json:"client_id"`
	ClientEmail   string `json:"client_email"`
	Title         string `json:"title"`
	PaymentPolicy string `json:"payment_policy"` // "milestone" or "end"
}

// AddMilestoneRequest is the request to add a milestone to a project.
type AddMilestoneRequest struct {
	Title                  string  `json:"title"`
	Description            string  `json:"description"`
	Percentage             int     `json:"percentage"`
	Amount                 float64 `json:"amount"`
	DueDate                string  `json:"due_date"`
	RequiresClientApproval bool    `json:"requires_client_approval"`
}

// CompleteMilestoneRequest carries the completion evidence.
type CompleteMilestoneRequest struct {
	Evidence     string `json:"evidence"`
	ActingUserID string `json:"acting_user_id"`
}

// ApproveMilestoneResponse reports the invoicing side effect of an approval.
type ApproveMilestoneResponse struct {
	Milestone             MilestoneDTO `json:"milestone"`
	ShouldInvoiceNow      bool         `json:"should_invoice_now"`
	ShouldCompleteProject bool         `json:"should_complete_project"`
	InvoiceID             string       `json:"invoice_id,omitempty"`
}

// =============================================================================
// REMINDER TYPES
// =============================================================================

// ReminderSettingsDTO mirrors billing.ReminderSettings at the JSON boundary.
type ReminderSettingsDTO struct {
	UserID                   string `json:"user_id"`
	ProjectID                string `json:"project_id,omitempty"`
	Enabled                  bool   `json:"enabled"`
	BeforeDueReminders       []int  `json:"before_due_reminders"`
	OverdueReminders         []int  `json:"overdue_reminders"`
	SendWarningAt            int    `json:"send_warning_at"`
	SendFinalNoticeAt        int    `json:"send_final_notice_at"`
	ReminderMessage          string `json:"reminder_message,omitempty"`
	WarningMessage           string `json:"warning_message,omitempty"`
	FinalNoticeMessage       string `json:"final_notice_message,omitempty"`
	ReminderSubject          string `json:"reminder_subject,omitempty"`
	WarningSubject           string `json:"warning_subject,omitempty"`
	FinalNoticeSubject       string `json:"final_notice_subject,omitempty"`
	CcFreelancer             bool   `json:"cc_freelancer"`
	PauseRemindersOnWeekends bool   `json:"pause_reminders_on_weekends"`
}

// ReminderEntryDTO is one row of the reminder log.
type ReminderEntryDTO struct {
	ID            string `json:"id"`
	InvoiceID     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	Recipient     string `json:"recipient"`
	Class         string `json:"class"`
	DaysFromDue   int    `json:"days_from_due"`
	Subject       string `json:"subject"`
	SentOn        string `json:"sent_on"`
}

// RunRemindersResponse reports the outcome of a reminder pass.
type RunRemindersResponse struct {
	Date    string `json:"date"`
	Sent    int    `json:"sent"`
	Skipped int    `json:"skipped"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ViolationDTO is one field-level validation failure.
type ViolationDTO struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the standard error response. Violations carries the
// complete list of business-rule failures when applicable.
type ErrorResponse struct {
	Error      string         `json:"error"`
	Details    any            `json:"details,omitempty"`
	Violations []ViolationDTO `json:"violations,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toLineItemDTO(item billing.LineItem) LineItemDTO {
	qty, _ := item.Quantity.Float64()
	return LineItemDTO{
		Description: item.Description,
		Quantity:    qty,
		Rate:        item.Rate.Float64(),
		Amount:      item.Amount.Float64(),
	}
}

func fromLineItemDTO(dto LineItemDTO) billing.LineItem {
	item := billing.LineItem{
		Description: dto.Description,
		Quantity:    decimal.NewFromFloat(dto.Quantity),
		Rate:        billing.NewMoney(dto.Rate),
	}
	item.Amount = item.Rate.Mul(item.Quantity)
	return item
}

func toInvoiceDTO(inv billing.Invoice, today billing.Date) InvoiceDTO {
	items := make([]LineItemDTO, len(inv.LineItems))
	for i, item := range inv.LineItems {
		items[i] = toLineItemDTO(item)
	}
	taxRate, _ := inv.TaxRate.Float64()
	return InvoiceDTO{
		ID:              string(inv.ID),
		Number:          inv.Number,
		ClientID:        inv.ClientID,
		ClientName:      inv.ClientName,
		ClientEmail:     inv.ClientEmail,
		FreelancerID:    string(inv.FreelancerID),
		FreelancerName:  inv.FreelancerName,
		FreelancerEmail: inv.FreelancerEmail,
		ProjectID:       string(inv.ProjectID),
		MilestoneID:     string(inv.MilestoneID),
		LineItems:       items,
		TaxRate:         taxRate,
		Subtotal:        inv.Subtotal.Float64(),
		TaxAmount:       inv.TaxAmount.Float64(),
		TotalAmount:     inv.TotalAmount.Float64(),
		Status:          string(inv.Status),
		DisplayStatus:   inv.DisplayStatus(today),
		Overdue:         inv.IsOverdue(today),
		IssueDate:       dateString(inv.IssueDate),
		DueDate:         dateString(inv.DueDate),
		SentAt:          datePtrString(inv.SentAt),
		PaidDate:        datePtrString(inv.PaidDate),
		Notes:           inv.Notes,
	}
}

func toMilestoneDTO(m billing.Milestone) MilestoneDTO {
	return MilestoneDTO{
		ID:                     string(m.ID),
		Title:                  m.Title,
		Description:            m.Description,
		Percentage:             m.Percentage,
		Amount:                 m.Amount.Float64(),
		Status:                 string(m.Status),
		DueDate:                dateString(m.DueDate),
		Evidence:               m.Evidence,
		CompletedAt:            datePtrString(m.CompletedAt),
		CompletedBy:            string(m.CompletedBy),
		RequiresClientApproval: m.RequiresClientApproval,
		ClientApproved:         m.ClientApproved,
		ClientApprovedAt:       datePtrString(m.ClientApprovedAt),
		InvoiceID:              string(m.InvoiceID),
	}
}

func toProjectDTO(p billing.Project) ProjectDTO {
	milestones := make([]MilestoneDTO, len(p.Milestones))
	for i, m := range p.Milestones {
		milestones[i] = toMilestoneDTO(m)
	}
	return ProjectDTO{
		ID:                  string(p.ID),
		FreelancerID:        string(p.FreelancerID),
		ClientID:            p.ClientID,
		ClientEmail:         p.ClientEmail,
		Title:               p.Title,
		PaymentPolicy:       string(p.PaymentPolicy),
		ContractStatus:      string(p.ContractStatus),
		PercentageAllocated: p.PercentageAllocated(),
		Milestones:          milestones,
	}
}

func toSettingsDTO(s billing.ReminderSettings) ReminderSettingsDTO {
	return ReminderSettingsDTO{
		UserID:                   string(s.UserID),
		ProjectID:                string(s.ProjectID),
		Enabled:                  s.Enabled,
		BeforeDueReminders:       s.BeforeDueReminders,
		OverdueReminders:         s.OverdueReminders,
		SendWarningAt:            s.SendWarningAt,
		SendFinalNoticeAt:        s.SendFinalNoticeAt,
		ReminderMessage:          s.ReminderMessage,
		WarningMessage:           s.WarningMessage,
		FinalNoticeMessage:       s.FinalNoticeMessage,
		ReminderSubject:          s.ReminderSubject,
		WarningSubject:           s.WarningSubject,
		FinalNoticeSubject:       s.FinalNoticeSubject,
		CcFreelancer:             s.CcFreelancer,
		PauseRemindersOnWeekends: s.PauseRemindersOnWeekends,
	}
}

func fromSettingsDTO(dto ReminderSettingsDTO) billing.ReminderSettings {
	return billing.ReminderSettings{
		UserID:                   billing.UserID(dto.UserID),
		ProjectID:                billing.ProjectID(dto.ProjectID),
		Enabled:                  dto.Enabled,
		BeforeDueReminders:       billing.NormalizeOffsets(dto.BeforeDueReminders),
		OverdueReminders:         billing.NormalizeOffsets(dto.OverdueReminders),
		SendWarningAt:            dto.SendWarningAt,
		SendFinalNoticeAt:        dto.SendFinalNoticeAt,
		ReminderMessage:          dto.ReminderMessage,
		WarningMessage:           dto.WarningMessage,
		FinalNoticeMessage:       dto.FinalNoticeMessage,
		ReminderSubject:          dto.ReminderSubject,
		WarningSubject:           dto.WarningSubject,
		FinalNoticeSubject:       dto.FinalNoticeSubject,
		CcFreelancer:             dto.CcFreelancer,
		PauseRemindersOnWeekends: dto.PauseRemindersOnWeekends,
	}
}

func toReminderEntryDTO(e billing.ReminderEntry) ReminderEntryDTO {
	return ReminderEntryDTO{
		ID:            e.ID,
		InvoiceID:     string(e.InvoiceID),
		InvoiceNumber: e.InvoiceNum,
		Recipient:     e.Recipient,
		Class:         string(e.Class),
		DaysFromDue:   e.DaysFromDue,
		Subject:       e.Subject,
		SentOn:        dateString(e.SentOn),
	}
}

func toViolationDTOs(vs billing.Violations) []ViolationDTO {
	dtos := make([]ViolationDTO, len(vs))
	for i, v := range vs {
		dtos[i] = ViolationDTO{Field: v.Field, Code: v.Code, Message: v.Message}
	}
	return dtos
}

func dateString(d billing.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func datePtrString(d *billing.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
