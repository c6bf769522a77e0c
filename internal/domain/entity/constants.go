package entity

// Status constants for WorkflowInstance
const (
	InstanceStatusDraft      = "DRAFT"
	InstanceStatusInProgress = "IN_PROGRESS"
	InstanceStatusCompleted  = "COMPLETED"
	InstanceStatusCancelled  = "CANCELLED"
)

// Status constants for WorkflowStep
const (
	StepStatusPending    = "PENDING"
	StepStatusInProgress = "IN_PROGRESS"
	StepStatusApproved   = "APPROVED"
	StepStatusRejected   = "REJECTED"
	StepStatusSkipped    = "SKIPPED"
)

// Step type constants
const (
	StepTypeApproval     = "APPROVAL"
	StepTypeAutomated    = "AUTOMATED"
	StepTypeNotification = "NOTIFICATION"
	StepTypeConditional  = "CONDITIONAL"
)

// Decision constants for ApprovalRecord. An empty decision means the approver
// has not voted yet.
const (
	DecisionPending  = ""
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
)

// IsTerminalInstanceStatus returns true for statuses no instance ever leaves.
func IsTerminalInstanceStatus(status string) bool {
	return status == InstanceStatusCompleted || status == InstanceStatusCancelled
}

// IsTerminalStepStatus returns true for per-step statuses that end the step.
func IsTerminalStepStatus(status string) bool {
	switch status {
	case StepStatusApproved, StepStatusRejected, StepStatusSkipped:
		return true
	}
	return false
}
