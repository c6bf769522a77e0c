package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/crmkit/workflow-engine/internal/domain/definition"
)

var (
	// ErrAlreadyStarted is returned when starting an instance not in DRAFT.
	ErrAlreadyStarted = errors.New("instance already started")

	// ErrInstanceTerminal is returned when mutating a COMPLETED or CANCELLED
	// instance.
	ErrInstanceTerminal = errors.New("instance is in a terminal status")

	// ErrNotStarted is returned when advancing an instance still in DRAFT.
	ErrNotStarted = errors.New("instance has not been started")

	// ErrStepNotInProgress is returned when a decision or completion targets a
	// step that is not currently open.
	ErrStepNotInProgress = errors.New("step is not in progress")

	// ErrStepsPending is returned when advancing while the current step group
	// still has open steps.
	ErrStepsPending = errors.New("current step group has unfinished steps")

	// ErrStepNotResettable is returned when resetting a step outside the
	// instance's current step group.
	ErrStepNotResettable = errors.New("only steps in the current group can be reset")

	// ErrInvalidDecision is returned for decisions other than APPROVED/REJECTED.
	ErrInvalidDecision = errors.New("decision must be APPROVED or REJECTED")

	// ErrApproverNotAssigned is returned when the voter is not in the step's
	// assigned approver set.
	ErrApproverNotAssigned = errors.New("approver is not assigned to this step")

	// ErrStepTypeMismatch is returned when an operation targets the wrong step
	// type, e.g. voting on an automated step.
	ErrStepTypeMismatch = errors.New("operation does not apply to this step type")
)

// InvalidDefinitionError carries the full list of publish-time violations.
type InvalidDefinitionError struct {
	Violations []definition.Violation
}

func (e *InvalidDefinitionError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.String())
	}
	return fmt.Sprintf("invalid workflow definition: %s", strings.Join(msgs, "; "))
}

// Unwrap lets callers match errors.Is(err, definition.ErrInvalidDefinition).
func (e *InvalidDefinitionError) Unwrap() error {
	return definition.ErrInvalidDefinition
}
