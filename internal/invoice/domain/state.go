package domain

import "fmt"

// Action is a lifecycle operation requested on an invoice.
type Action string

const (
	ActionSubmit Action = "submit"
	ActionCancel Action = "cancel"
)

// Command is a side effect the caller must run after a transition commits.
// The state machine itself is pure; it only names the effects.
type Command string

const (
	CommandMarkPaymentReceived   Command = "mark_payment_received"
	CommandEnsureEnrollment      Command = "ensure_enrollment"
	CommandRevertPaymentReceived Command = "revert_payment_received"
)

// InvalidTransitionError reports an action the current status does not allow.
type InvalidTransitionError struct {
	Status string
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invoice in status %s does not allow %s", e.Status, e.Action)
}

// Transition returns the next status and the side effects to run.
//
//	DRAFT --submit--> PAID       (mark payment received, ensure enrollment)
//	DRAFT --cancel--> CANCELLED
//	PAID  --cancel--> CANCELLED  (revert payment received)
func Transition(status string, action Action) (string, []Command, error) {
	switch {
	case status == StatusDraft && action == ActionSubmit:
		return StatusPaid, []Command{CommandMarkPaymentReceived, CommandEnsureEnrollment}, nil
	case status == StatusDraft && action == ActionCancel:
		return StatusCancelled, nil, nil
	case status == StatusPaid && action == ActionCancel:
		return StatusCancelled, []Command{CommandRevertPaymentReceived}, nil
	default:
		return status, nil, &InvalidTransitionError{Status: status, Action: action}
	}
}
