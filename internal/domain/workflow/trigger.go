package workflow

// Trigger represents an event that can cause an instance lifecycle transition
type Trigger string

const (
	TriggerStart    Trigger = "START"
	TriggerComplete Trigger = "COMPLETE"
	TriggerCancel   Trigger = "CANCEL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
