package port

import (
	"context"
	"errors"
	"time"

	"github.com/crmkit/workflow-engine/internal/domain/definition"
	"github.com/crmkit/workflow-engine/internal/domain/entity"
)

var (
	// ErrNotFound is returned when a requested row does not exist for the tenant.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when an optimistic version check fails;
	// callers treat it as a transient, retryable storage fault.
	ErrVersionConflict = errors.New("version conflict")

	// ErrDuplicateVote is returned when a decision already exists for a
	// (step, approver) pair.
	ErrDuplicateVote = errors.New("approver already voted on this step")
)

// DefinitionRepository defines persistence operations for WorkflowDefinition
// and its owned states and rules. All reads are tenant-scoped.
type DefinitionRepository interface {
	// Create persists a draft definition with its states and rules.
	Create(ctx context.Context, def *definition.WorkflowDefinition) error

	// GetByID retrieves a definition with states and rules loaded.
	GetByID(ctx context.Context, tenantID, id string) (*definition.WorkflowDefinition, error)

	// GetActive retrieves the single active published version for a case type.
	GetActive(ctx context.Context, tenantID, caseType string) (*definition.WorkflowDefinition, error)

	// ListVersions returns all versions for a case type, newest first.
	ListVersions(ctx context.Context, tenantID, caseType string) ([]*definition.WorkflowDefinition, error)

	// LatestVersion returns the highest version number for a case type,
	// or 0 when none exists.
	LatestVersion(ctx context.Context, tenantID, caseType string) (int, error)

	// MarkPublished flips a draft to PUBLISHED and active.
	MarkPublished(ctx context.Context, tenantID, id string, publishedAt time.Time) error

	// Deactivate clears the active flag on a definition.
	Deactivate(ctx context.Context, tenantID, id string) error
}

// InstanceRepository defines persistence operations for WorkflowInstance.
type InstanceRepository interface {
	Create(ctx context.Context, instance *entity.WorkflowInstance) error

	GetByID(ctx context.Context, tenantID, id string) (*entity.WorkflowInstance, error)

	// Update writes all mutable instance fields guarded by the optimistic
	// version counter; it returns ErrVersionConflict when the stored version
	// does not match and increments the version on success.
	Update(ctx context.Context, instance *entity.WorkflowInstance) error

	List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.WorkflowInstance, error)
}

// StepRepository defines persistence operations for WorkflowStep.
type StepRepository interface {
	CreateBatch(ctx context.Context, steps []*entity.WorkflowStep) error

	GetByID(ctx context.Context, id string) (*entity.WorkflowStep, error)

	// GetByInstanceID returns the instance's steps ordered by step order.
	GetByInstanceID(ctx context.Context, instanceID string) ([]*entity.WorkflowStep, error)

	UpdateStatus(ctx context.Context, id, status string, at time.Time) error

	// SetApprovalsReceived stores the derived decided-vote count.
	SetApprovalsReceived(ctx context.Context, id string, received int) error
}

// ApprovalRepository is the approval ledger: one row per (step, approver),
// at most one non-null decision each, ever.
type ApprovalRepository interface {
	// CreateBatch materializes the assigned-approver set as pending records.
	CreateBatch(ctx context.Context, records []*entity.ApprovalRecord) error

	Get(ctx context.Context, stepID, approverID string) (*entity.ApprovalRecord, error)

	GetByStepID(ctx context.Context, stepID string) ([]*entity.ApprovalRecord, error)

	// RecordDecision sets the decision for a pending record. It returns
	// ErrDuplicateVote when a decision already exists and ErrNotFound when the
	// approver is not assigned to the step.
	RecordDecision(ctx context.Context, stepID, approverID, decision, comment string, decidedAt time.Time) error

	// ClearDecisions resets every record of a step back to pending.
	ClearDecisions(ctx context.Context, stepID string) error

	// TallyByStep aggregates the step's ledger rows.
	TallyByStep(ctx context.Context, stepID string) (*entity.ApprovalTally, error)

	// ListPendingForApprover returns the approver's open votes across
	// instances of the tenant, restricted to steps currently in progress.
	ListPendingForApprover(ctx context.Context, tenantID, approverID string) ([]*entity.PendingApproval, error)
}

// HistoryRepository is the append-only transition history sink.
type HistoryRepository interface {
	Append(ctx context.Context, entry *entity.TransitionHistoryEntry) error
	ListByInstanceID(ctx context.Context, instanceID string) ([]*entity.TransitionHistoryEntry, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
