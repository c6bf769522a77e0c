package definition

import "errors"

var (
	// ErrInvalidDefinition is returned when publish-time validation fails.
	// It always travels with the full list of violations.
	ErrInvalidDefinition = errors.New("invalid workflow definition")

	// ErrAlreadyPublished is returned when publishing a definition twice.
	ErrAlreadyPublished = errors.New("definition already published")
)

// Violation codes raised by Validate.
const (
	CodeDanglingStateReference    = "danglingStateReference"
	CodeMissingOrDuplicateInitial = "missingOrDuplicateInitialState"
	CodeMissingFinalState         = "missingFinalState"
	CodeAmbiguousTransition       = "ambiguousTransition"
	CodeDuplicateStateCode        = "duplicateStateCode"
	CodeNoStates                  = "noStates"
	CodeInvalidCondition          = "invalidCondition"
)

// Violation describes one validation failure of a definition.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Code + ": " + v.Message
}
