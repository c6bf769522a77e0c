package entity

import "time"

// ApprovalRecord is one (step, approver) ledger row. Records are created in
// the pending state when the step's approver set is assigned; the decision is
// immutable once set. Re-voting requires an explicit step reset.
type ApprovalRecord struct {
	ID         string     `json:"id"`
	StepID     string     `json:"step_id"`
	ApproverID string     `json:"approver_id"`
	Decision   string     `json:"decision,omitempty"`
	Comment    string     `json:"comment,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// HasVoted reports whether the approver has committed a decision.
func (r *ApprovalRecord) HasVoted() bool {
	return r.Decision != DecisionPending
}

// ApprovalTally aggregates a step's ledger rows. Decided counts every non-null
// decision regardless of outcome.
type ApprovalTally struct {
	Total    int `json:"total"`
	Decided  int `json:"decided"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// PendingApproval pairs a pending record with enough step/instance context for
// an approver's work queue.
type PendingApproval struct {
	Record     ApprovalRecord `json:"record"`
	StepName   string         `json:"step_name"`
	InstanceID string         `json:"instance_id"`
	TenantID   string         `json:"tenant_id"`
	EntityID   string         `json:"entity_id"`
}
