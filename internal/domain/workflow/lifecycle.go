package workflow

// BuildInstanceLifecycle creates the state machine governing a workflow
// instance: DRAFT -> IN_PROGRESS on start, IN_PROGRESS -> COMPLETED when the
// last step group finishes, and CANCEL permitted from any non-terminal state.
func BuildInstanceLifecycle(initialState State) StateMachine {
	builder := NewBuilder()

	builder.Configure(StateDraft).
		Permit(TriggerStart, StateInProgress).
		Permit(TriggerCancel, StateCancelled)

	builder.Configure(StateInProgress).
		Permit(TriggerComplete, StateCompleted).
		Permit(TriggerCancel, StateCancelled)

	// COMPLETED and CANCELLED are terminal - no outgoing transitions

	return builder.Build(initialState)
}
