/*
reminder.go - Reminder scheduling decisions and settings

PURPOSE:
  Decides, for a given invoice due date and today's date, whether a
  payment reminder fires today and which class it belongs to. The
  decision is a pure function over (daysFromDue, settings); actually
  sending mail, and skipping weekend days when configured, belong to
  the external scheduler.

CLASSIFICATION:
  daysFromDue < 0                          -> upcoming
  daysFromDue < settings.SendWarningAt     -> overdue
  daysFromDue < settings.SendFinalNoticeAt -> warning
  otherwise                                -> final_notice

DAY-EXACT FIRING:
  Reminders fire only on the exact configured day offsets. With
  BeforeDueReminders = {7,3,1} a reminder goes out 7, 3, and 1 days
  before the due date and on NO other day; an invoice overdue by a day
  not listed in OverdueReminders gets nothing that day even though it
  is overdue.

SETTINGS RESOLUTION:
  One active record is selected per evaluation:
  project-specific record if present, else the user's global record,
  else hard-coded defaults.

SEE ALSO:
  - date.go: DaysBetween arithmetic
  - errors.go: ErrInvalidThresholds
*/
package billing

import (
	"sort"
	"strings"
)

// =============================================================================
// REMINDER SETTINGS - Per-user or per-project configuration
// =============================================================================

// ReminderSettings configures the reminder escalation for a user, or for
// a single project when ProjectID is set. Validated at save time, not on
// every policy evaluation.
type ReminderSettings struct {
	UserID    UserID
	ProjectID ProjectID // empty = user-global record

	Enabled bool

	// Day offsets on which reminders fire. Positive integers; duplicates
	// and non-positive values are normalized away at input-parsing time.
	BeforeDueReminders []int // days before the due date, e.g. {7,3,1}
	OverdueReminders   []int // days past the due date, e.g. {1,3,7,14,30}

	// Escalation thresholds in days overdue. Invariant (enforced on save):
	// SendFinalNoticeAt > SendWarningAt >= 0.
	SendWarningAt     int
	SendFinalNoticeAt int

	// Optional custom message bodies per reminder class.
	ReminderMessage    string
	WarningMessage     string
	FinalNoticeMessage string

	// Optional custom subject templates; {invoiceNumber} is substituted.
	ReminderSubject    string
	WarningSubject     string
	FinalNoticeSubject string

	CcFreelancer bool

	// Declared here, enforced by the external scheduler (not by
	// ShouldSendToday): skip sending on Saturdays and Sundays.
	PauseRemindersOnWeekends bool
}

// DefaultSettings is the hard-coded fallback used when a user has saved
// nothing.
func DefaultSettings(userID UserID) ReminderSettings {
	return ReminderSettings{
		UserID:             userID,
		Enabled:            true,
		BeforeDueReminders: []int{7, 3, 1},
		OverdueReminders:   []int{1, 3, 7, 14, 30},
		SendWarningAt:      14,
		SendFinalNoticeAt:  30,
	}
}

// ResolveSettings picks the one active record: project-specific if
// present, else the user-global record, else defaults.
func ResolveSettings(projectSpecific, userGlobal *ReminderSettings, userID UserID) ReminderSettings {
	if projectSpecific != nil {
		return *projectSpecific
	}
	if userGlobal != nil {
		return *userGlobal
	}
	return DefaultSettings(userID)
}

// Validate checks the save-time invariants and returns the complete list
// of violations.
func (s *ReminderSettings) Validate() Violations {
	var vs Violations

	if s.SendWarningAt < 0 {
		vs = append(vs, Violation{
			Field:   "sendWarningAt",
			Code:    "negative",
			Message: "warning threshold must be >= 0",
		})
	}
	if s.SendFinalNoticeAt <= s.SendWarningAt {
		vs = append(vs, Violation{
			Field:   "sendFinalNoticeAt",
			Code:    "threshold_order",
			Message: ErrInvalidThresholds.Error() + ": final notice threshold must be greater than warning threshold",
		})
	}
	for _, d := range s.BeforeDueReminders {
		if d <= 0 {
			vs = append(vs, Violation{
				Field:   "beforeDueReminders",
				Code:    "non_positive",
				Message: "day offsets must be positive",
			})
			break
		}
	}
	for _, d := range s.OverdueReminders {
		if d <= 0 {
			vs = append(vs, Violation{
				Field:   "overdueReminders",
				Code:    "non_positive",
				Message: "day offsets must be positive",
			})
			break
		}
	}

	return vs
}

// NormalizeOffsets sorts a day-offset list ascending, dropping duplicates
// and non-positive values. Applied at input-parsing time so policy
// evaluation can assume clean sets.
func NormalizeOffsets(offsets []int) []int {
	seen := make(map[int]bool, len(offsets))
	var out []int
	for _, d := range offsets {
		if d <= 0 || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// =============================================================================
// POLICY EVALUATION - Pure decisions over (daysFromDue, settings)
// =============================================================================

// DaysFromDue returns now - dueDate in whole calendar days. Negative means
// before the due date, zero means due today, positive means days overdue.
func DaysFromDue(dueDate, now Date) int {
	return DaysBetween(dueDate, now)
}

// ClassifyReminder buckets a reminder by escalation stage.
func ClassifyReminder(daysFromDue int, s ReminderSettings) ReminderClass {
	switch {
	case daysFromDue < 0:
		return ReminderUpcoming
	case daysFromDue < s.SendWarningAt:
		return ReminderOverdue
	case daysFromDue < s.SendFinalNoticeAt:
		return ReminderWarning
	default:
		return ReminderFinalNotice
	}
}

// ShouldSendToday reports whether a reminder fires on exactly this day
// offset. Disabled settings never fire. Before the due date the absolute
// offset must appear in BeforeDueReminders; on or after it, the offset
// must appear in OverdueReminders.
func ShouldSendToday(daysFromDue int, s ReminderSettings) bool {
	if !s.Enabled {
		return false
	}
	if daysFromDue < 0 {
		return containsInt(s.BeforeDueReminders, -daysFromDue)
	}
	return containsInt(s.OverdueReminders, daysFromDue)
}

func containsInt(xs []int, n int) bool {
	for _, x := range xs {
		if x == n {
			return true
		}
	}
	return false
}

// =============================================================================
// EMAIL COMPOSITION - Subjects and bodies handed to the mail boundary
// =============================================================================

// Default subject templates; {invoiceNumber} is substituted verbatim.
const (
	defaultReminderSubject    = "Payment reminder: invoice {invoiceNumber}"
	defaultWarningSubject     = "Payment warning: invoice {invoiceNumber} is overdue"
	defaultFinalNoticeSubject = "Final notice: invoice {invoiceNumber}"
)

// EmailSubject selects the subject template for the reminder class and
// substitutes {invoiceNumber}. Upcoming and plain overdue reminders share
// the reminder template; warning and final notice each have their own.
func EmailSubject(invoiceNumber string, class ReminderClass, s ReminderSettings) string {
	var tmpl string
	switch class {
	case ReminderWarning:
		tmpl = s.WarningSubject
		if tmpl == "" {
			tmpl = defaultWarningSubject
		}
	case ReminderFinalNotice:
		tmpl = s.FinalNoticeSubject
		if tmpl == "" {
			tmpl = defaultFinalNoticeSubject
		}
	default:
		tmpl = s.ReminderSubject
		if tmpl == "" {
			tmpl = defaultReminderSubject
		}
	}
	return strings.ReplaceAll(tmpl, "{invoiceNumber}", invoiceNumber)
}

// CustomMessage returns the configured message body for the class, or the
// empty string when unset.
func CustomMessage(class ReminderClass, s ReminderSettings) string {
	switch class {
	case ReminderWarning:
		return s.WarningMessage
	case ReminderFinalNotice:
		return s.FinalNoticeMessage
	default:
		return s.ReminderMessage
	}
}
