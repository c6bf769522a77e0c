package workflow

// State represents a lifecycle state of a running workflow instance
type State string

const (
	StateDraft      State = "DRAFT"
	StateInProgress State = "IN_PROGRESS"
	StateCompleted  State = "COMPLETED"
	StateCancelled  State = "CANCELLED"
)

var validStates = map[State]bool{
	StateDraft:      true,
	StateInProgress: true,
	StateCompleted:  true,
	StateCancelled:  true,
}

var terminalStates = map[State]bool{
	StateCompleted: true,
	StateCancelled: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid instance lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
