package bookingflow

import (
	"errors"
	"fmt"
)

var (
	ErrFlowNotFound         = errors.New("booking flow not found")
	ErrFlowClosed           = errors.New("booking flow is closed")
	ErrForbidden            = errors.New("booking flow belongs to another user")
	ErrWrongPhase           = errors.New("action not allowed at this step")
	ErrSubmissionInProgress = errors.New("submission already in progress")
)

const (
	MsgLoadFailed    = "Failed to load buses and users"
	MsgSeatsFailed   = "Failed to load seat information"
	MsgConfirmFailed = "Failed to confirm payment. Please try again."
)

// PhaseError reports an action attempted in a phase that does not accept it.
type PhaseError struct {
	Action string
	Phase  Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Action, e.Phase)
}

func (e *PhaseError) Is(target error) bool {
	return target == ErrWrongPhase
}

// PartialLoadError is a failed optional fetch. The flow keeps going without
// the data.
type PartialLoadError struct {
	Section string
	Err     error
}

func (e *PartialLoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Section, e.Err)
}

func (e *PartialLoadError) Unwrap() error { return e.Err }
