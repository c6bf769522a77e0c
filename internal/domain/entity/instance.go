package entity

import "time"

// WorkflowInstance is one running execution of a workflow definition, attached
// to a single business entity. Version is the optimistic-concurrency counter
// checked by the persistence layer on every update.
type WorkflowInstance struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenant_id"`
	DefinitionID     string     `json:"definition_id"`
	EntityID         string     `json:"entity_id"`
	CurrentState     string     `json:"current_state"`
	Status           string     `json:"status"`
	CurrentStepOrder int        `json:"current_step_order"`
	CancelReason     string     `json:"cancel_reason,omitempty"`
	Version          int64      `json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the instance has reached COMPLETED or CANCELLED.
func (i *WorkflowInstance) IsTerminal() bool {
	return IsTerminalInstanceStatus(i.Status)
}

// WorkflowStep is a unit of work within an instance. ApprovalsReceived is
// derived from the approval records and recomputed on every vote, never set
// directly.
type WorkflowStep struct {
	ID                   string     `json:"id"`
	InstanceID           string     `json:"instance_id"`
	Name                 string     `json:"name"`
	StepOrder            int        `json:"step_order"`
	StepType             string     `json:"step_type"`
	IsParallel           bool       `json:"is_parallel"`
	RequiresAllApprovers bool       `json:"requires_all_approvers"`
	ApprovalsRequired    int        `json:"approvals_required"`
	ApprovalsReceived    int        `json:"approvals_received"`
	NonBlocking          bool       `json:"non_blocking"`
	Status               string     `json:"status"`
	ActivatedAt          *time.Time `json:"activated_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the step has reached a terminal per-step status.
func (s *WorkflowStep) IsTerminal() bool {
	return IsTerminalStepStatus(s.Status)
}
