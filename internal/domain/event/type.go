package event

// Type identifies the type of domain event
type Type string

const (
	TypeInstanceStarted     Type = "instance.started"
	TypeInstanceAdvanced    Type = "instance.advanced"
	TypeInstanceCompleted   Type = "instance.completed"
	TypeInstanceCancelled   Type = "instance.cancelled"
	TypeStepActivated       Type = "step.activated"
	TypeStepCompleted       Type = "step.completed"
	TypeVoteRecorded        Type = "vote.recorded"
	TypeTransitionEvaluated Type = "transition.evaluated"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeInstanceStarted,
		TypeInstanceAdvanced,
		TypeInstanceCompleted,
		TypeInstanceCancelled,
		TypeStepActivated,
		TypeStepCompleted,
		TypeVoteRecorded,
		TypeTransitionEvaluated:
		return true
	default:
		return false
	}
}
