package service

import (
	"context"

	"github.com/crmkit/workflow-engine/internal/application/port"
	"github.com/crmkit/workflow-engine/internal/domain/entity"
)

// ApprovalService is the approver-facing surface: casting votes and listing
// the approver's open work.
type ApprovalService interface {
	// Vote records an approver's decision on a step.
	Vote(ctx context.Context, tenantID, stepID, approverID, decision, comment string) (*VoteOutcome, error)

	// ListPending returns the approver's undecided assignments on steps that
	// are currently open.
	ListPending(ctx context.Context, tenantID, approverID string) ([]*entity.PendingApproval, error)

	// Ledger returns every approval record of a step, decided or not.
	Ledger(ctx context.Context, tenantID, stepID string) ([]*entity.ApprovalRecord, error)
}

type approvalServiceImpl struct {
	workflowService WorkflowService
	approvalRepo    port.ApprovalRepository
	stepRepo        port.StepRepository
	instanceRepo    port.InstanceRepository
	logger          Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	workflowService WorkflowService,
	approvalRepo port.ApprovalRepository,
	stepRepo port.StepRepository,
	instanceRepo port.InstanceRepository,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		workflowService: workflowService,
		approvalRepo:    approvalRepo,
		stepRepo:        stepRepo,
		instanceRepo:    instanceRepo,
		logger:          logger,
	}
}

func (s *approvalServiceImpl) Vote(ctx context.Context, tenantID, stepID, approverID, decision, comment string) (*VoteOutcome, error) {
	outcome, err := s.workflowService.RecordApprovalDecision(ctx, tenantID, stepID, approverID, decision, comment)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Approval decision recorded",
		"tenant_id", tenantID,
		"step_id", stepID,
		"approver_id", approverID,
		"decision", decision,
		"step_status", outcome.StepStatus,
	)
	return outcome, nil
}

func (s *approvalServiceImpl) ListPending(ctx context.Context, tenantID, approverID string) ([]*entity.PendingApproval, error) {
	return s.approvalRepo.ListPendingForApprover(ctx, tenantID, approverID)
}

func (s *approvalServiceImpl) Ledger(ctx context.Context, tenantID, stepID string) ([]*entity.ApprovalRecord, error) {
	step, err := s.stepRepo.GetByID(ctx, stepID)
	if err != nil {
		return nil, err
	}
	// Tenant scoping flows through the owning instance.
	if _, err := s.instanceRepo.GetByID(ctx, tenantID, step.InstanceID); err != nil {
		return nil, err
	}
	return s.approvalRepo.GetByStepID(ctx, stepID)
}

var _ ApprovalService = (*approvalServiceImpl)(nil)
