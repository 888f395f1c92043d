package applier

import (
	"errors"
	"fmt"

	"github.com/ashureev/fitcoach/internal/shared"
)

var (
	// ErrProposalPending is returned when a proposal is parked while another awaits a decision.
	ErrProposalPending = errors.New("a proposal is already pending")
	// ErrNoPendingProposal is returned by Accept when the slot is empty.
	ErrNoPendingProposal = errors.New("no pending proposal")
)

// Kind classifies a persistence failure for the user-facing message.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindPermission Kind = "permission"
	KindGeneric    Kind = "generic"
)

// PersistenceError is a failed Plan Store read or write.
type PersistenceError struct {
	Kind Kind
	Op   string
	// Partial is set when an earlier write of the same proposal was committed.
	Partial bool
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistenceError(op string, err error) *PersistenceError {
	kind := KindGeneric
	switch {
	case shared.IsPermissionError(err):
		kind = KindPermission
	case shared.IsNetworkError(err):
		kind = KindNetwork
	}
	return &PersistenceError{Kind: kind, Op: op, Err: err}
}

func (e *PersistenceError) userMessage() string {
	if e.Partial {
		return "Your nutrition goals were updated, but saving the meal plan failed. Please review your meal plan and try again."
	}
	switch e.Kind {
	case KindNetwork:
		return "I couldn't reach your saved plan, so nothing was changed. Please check your connection and try again."
	case KindPermission:
		return "I don't have permission to update your plan, so nothing was changed."
	default:
		return "Something went wrong while saving the change, so your plan was left as it was. Please try again."
	}
}
