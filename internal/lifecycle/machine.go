// Package lifecycle holds the booking state machine.
package lifecycle

import (
	"fmt"

	"courtbook/internal/domain"
	"courtbook/internal/models"
)

const (
	ActionConfirm  = "confirm"
	ActionStart    = "start"
	ActionComplete = "complete"
	ActionCancel   = "cancel"
	ActionReopen   = "reopen"
)

var actionSources = map[string]func(from string) bool{
	ActionConfirm:  func(from string) bool { return from == models.StateDraft },
	ActionStart:    func(from string) bool { return from == models.StateConfirmed },
	ActionComplete: func(from string) bool { return from == models.StateInProgress },
	ActionCancel:   func(from string) bool { return from != models.StateCompleted },
	ActionReopen:   func(from string) bool { return from == models.StateCancelled },
}

var actionTargets = map[string]string{
	ActionConfirm:  models.StateConfirmed,
	ActionStart:    models.StateInProgress,
	ActionComplete: models.StateCompleted,
	ActionCancel:   models.StateCancelled,
	ActionReopen:   models.StateDraft,
}

var actionNotes = map[string]string{
	ActionConfirm:  "Booking confirmed",
	ActionStart:    "Booking started",
	ActionComplete: "Booking completed",
	ActionCancel:   "Booking cancelled",
	ActionReopen:   "Booking reopened as draft",
}

// Next returns the state reached by applying action to from.
func Next(from, action string) (string, error) {
	allowed, ok := actionSources[action]
	if !ok {
		return from, &domain.RejectionError{
			Kind:    domain.KindIllegalTransition,
			Reason:  domain.ReasonIllegalTransition,
			Message: fmt.Sprintf("unknown action %q", action),
		}
	}
	if !allowed(from) {
		return from, &domain.RejectionError{
			Kind:    domain.KindIllegalTransition,
			Reason:  domain.ReasonIllegalTransition,
			Message: fmt.Sprintf("cannot %s a booking in state %s", action, from),
		}
	}
	return actionTargets[action], nil
}

// RequiresAdmission reports whether the transition re-occupies a slot and so
// must pass the rule set and the overlap check again.
func RequiresAdmission(from, to string) bool {
	return from == models.StateCancelled && to != models.StateCancelled
}

// Note is the human-readable audit note for an action.
func Note(action string) string {
	return actionNotes[action]
}

// Actions lists every known action.
func Actions() []string {
	return []string{ActionConfirm, ActionStart, ActionComplete, ActionCancel, ActionReopen}
}
