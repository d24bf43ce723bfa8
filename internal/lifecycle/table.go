// Package lifecycle decides which appointment actions a role may take and
// dispatches them. The table below is the single source of those rules.
package lifecycle

import (
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/platform/auth"
)

type Action string

const (
	ActionConfirm    Action = "confirm"
	ActionComplete   Action = "complete"
	ActionCancel     Action = "cancel"
	ActionReschedule Action = "reschedule"
	ActionFeedback   Action = "feedback"
)

// Input is what an action needs before it may be sent.
type Input int

const (
	NeedsReason Input = 1 << iota
	NeedsSlot
	NeedsRating
)

// Rule is one row of the transition table. To is empty when the action
// leaves the status unchanged.
type Rule struct {
	Role   auth.Role
	From   scheduling.Status
	Action Action
	To     scheduling.Status
	Needs  Input
}

// Rules lists every legal action. Order is display order per status.
var Rules = []Rule{
	{auth.RoleDoctor, scheduling.StatusPending, ActionConfirm, scheduling.StatusConfirmed, 0},
	{auth.RoleDoctor, scheduling.StatusPending, ActionCancel, scheduling.StatusCancelled, NeedsReason},
	{auth.RoleDoctor, scheduling.StatusConfirmed, ActionComplete, scheduling.StatusCompleted, 0},
	{auth.RoleDoctor, scheduling.StatusConfirmed, ActionCancel, scheduling.StatusCancelled, NeedsReason},

	{auth.RolePatient, scheduling.StatusPending, ActionCancel, scheduling.StatusCancelled, NeedsReason},
	{auth.RolePatient, scheduling.StatusPending, ActionReschedule, "", NeedsSlot | NeedsReason},
	{auth.RolePatient, scheduling.StatusConfirmed, ActionReschedule, "", NeedsSlot | NeedsReason},
	{auth.RolePatient, scheduling.StatusCompleted, ActionFeedback, "", NeedsReason | NeedsRating},
}

// Lookup returns the rule for role taking action on an appointment in status from.
func Lookup(role auth.Role, from scheduling.Status, action Action) (Rule, bool) {
	for _, r := range Rules {
		if r.Role == role && r.From == from && r.Action == action {
			return r, true
		}
	}
	return Rule{}, false
}

// Allowed returns the actions role may take on a. Feedback is offered once.
func Allowed(role auth.Role, a scheduling.Appointment) []Action {
	var out []Action
	for _, r := range Rules {
		if r.Role != role || r.From != a.Status {
			continue
		}
		if r.Action == ActionFeedback && a.FeedbackSubmitted {
			continue
		}
		out = append(out, r.Action)
	}
	return out
}

func Can(role auth.Role, a scheduling.Appointment, action Action) bool {
	for _, got := range Allowed(role, a) {
		if got == action {
			return true
		}
	}
	return false
}
