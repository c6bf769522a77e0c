package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crmkit/workflow-engine/internal/application/port"
	"github.com/crmkit/workflow-engine/internal/domain/entity"
)

// StepRepository implements port.StepRepository
type StepRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStepRepository creates a new step repository
func NewStepRepository(db *sql.DB, logger *zap.Logger) port.StepRepository {
	return &StepRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts all steps of a new instance
func (r *StepRepository) CreateBatch(ctx context.Context, steps []*entity.WorkflowStep) error {
	exec := pick(ctx, r.db)
	query := `
		INSERT INTO workflow_steps (
			id, instance_id, name, step_order, step_type,
			is_parallel, requires_all_approvers, approvals_required,
			approvals_received, non_blocking, status, activated_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, step := range steps {
		_, err := exec.ExecContext(ctx, query,
			step.ID,
			step.InstanceID,
			step.Name,
			step.StepOrder,
			step.StepType,
			step.IsParallel,
			step.RequiresAllApprovers,
			step.ApprovalsRequired,
			step.ApprovalsReceived,
			step.NonBlocking,
			step.Status,
			nullTime(step.ActivatedAt),
			nullTime(step.CompletedAt),
		)
		if err != nil {
			r.logger.Error("Failed to create step", zap.String("name", step.Name), zap.Error(err))
			return fmt.Errorf("failed to create step %s: %w", step.Name, err)
		}
	}
	return nil
}

// GetByID retrieves a step by ID
func (r *StepRepository) GetByID(ctx context.Context, id string) (*entity.WorkflowStep, error) {
	query := `
		SELECT id, instance_id, name, step_order, step_type,
			is_parallel, requires_all_approvers, approvals_required,
			approvals_received, non_blocking, status, activated_at, completed_at
		FROM workflow_steps
		WHERE id = ?
	`
	step, err := scanStep(pick(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get step", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get step: %w", err)
	}
	return step, nil
}

// GetByInstanceID returns the instance's steps ordered by step order
func (r *StepRepository) GetByInstanceID(ctx context.Context, instanceID string) ([]*entity.WorkflowStep, error) {
	query := `
		SELECT id, instance_id, name, step_order, step_type,
			is_parallel, requires_all_approvers, approvals_required,
			approvals_received, non_blocking, status, activated_at, completed_at
		FROM workflow_steps
		WHERE instance_id = ?
		ORDER BY step_order, name
	`
	rows, err := pick(ctx, r.db).QueryContext(ctx, query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}
	defer rows.Close()

	var steps []*entity.WorkflowStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// UpdateStatus sets a step's status, stamping activation or completion time
// as the status dictates.
func (r *StepRepository) UpdateStatus(ctx context.Context, id, status string, at time.Time) error {
	var (
		query string
		args  []interface{}
	)
	switch {
	case status == entity.StepStatusInProgress:
		query = `
			UPDATE workflow_steps
			SET status = ?, activated_at = ?, completed_at = NULL
			WHERE id = ?
		`
		args = []interface{}{status, at, id}
	case entity.IsTerminalStepStatus(status):
		query = `
			UPDATE workflow_steps
			SET status = ?, completed_at = ?
			WHERE id = ?
		`
		args = []interface{}{status, at, id}
	default:
		query = `
			UPDATE workflow_steps
			SET status = ?, activated_at = NULL, completed_at = NULL
			WHERE id = ?
		`
		args = []interface{}{status, id}
	}

	result, err := pick(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update step status", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update step status: %w", err)
	}
	return requireRow(result)
}

// SetApprovalsReceived stores the derived decided-vote count
func (r *StepRepository) SetApprovalsReceived(ctx context.Context, id string, received int) error {
	result, err := pick(ctx, r.db).ExecContext(ctx, `
		UPDATE workflow_steps SET approvals_received = ? WHERE id = ?
	`, received, id)
	if err != nil {
		return fmt.Errorf("failed to set approvals received: %w", err)
	}
	return requireRow(result)
}

func scanStep(row scannable) (*entity.WorkflowStep, error) {
	var (
		step        entity.WorkflowStep
		activatedAt sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&step.ID,
		&step.InstanceID,
		&step.Name,
		&step.StepOrder,
		&step.StepType,
		&step.IsParallel,
		&step.RequiresAllApprovers,
		&step.ApprovalsRequired,
		&step.ApprovalsReceived,
		&step.NonBlocking,
		&step.Status,
		&activatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	if activatedAt.Valid {
		step.ActivatedAt = &activatedAt.Time
	}
	if completedAt.Valid {
		step.CompletedAt = &completedAt.Time
	}
	return &step, nil
}

// Verify interface compliance
var _ port.StepRepository = (*StepRepository)(nil)
