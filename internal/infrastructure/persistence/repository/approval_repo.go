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

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch materializes the assigned-approver set as pending records
func (r *ApprovalRepository) CreateBatch(ctx context.Context, records []*entity.ApprovalRecord) error {
	exec := pick(ctx, r.db)
	query := `
		INSERT INTO approval_records (id, step_id, approver_id, decision, comment, decided_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, record := range records {
		_, err := exec.ExecContext(ctx, query,
			record.ID,
			record.StepID,
			record.ApproverID,
			record.Decision,
			record.Comment,
			nullTime(record.DecidedAt),
			record.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create approval record",
				zap.String("step_id", record.StepID),
				zap.String("approver_id", record.ApproverID),
				zap.Error(err))
			return fmt.Errorf("failed to create approval record: %w", err)
		}
	}
	return nil
}

// Get retrieves the record for a (step, approver) pair
func (r *ApprovalRepository) Get(ctx context.Context, stepID, approverID string) (*entity.ApprovalRecord, error) {
	query := `
		SELECT id, step_id, approver_id, decision, comment, decided_at, created_at
		FROM approval_records
		WHERE step_id = ? AND approver_id = ?
	`
	record, err := scanApproval(pick(ctx, r.db).QueryRowContext(ctx, query, stepID, approverID))
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval record: %w", err)
	}
	return record, nil
}

// GetByStepID returns every record of a step
func (r *ApprovalRepository) GetByStepID(ctx context.Context, stepID string) ([]*entity.ApprovalRecord, error) {
	query := `
		SELECT id, step_id, approver_id, decision, comment, decided_at, created_at
		FROM approval_records
		WHERE step_id = ?
		ORDER BY created_at, approver_id
	`
	rows, err := pick(ctx, r.db).QueryContext(ctx, query, stepID)
	if err != nil {
		return nil, fmt.Errorf("failed to get approval records: %w", err)
	}
	defer rows.Close()

	var records []*entity.ApprovalRecord
	for rows.Next() {
		record, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// RecordDecision sets the decision on a still-pending record. The guard on
// the current decision value makes double voting lose the race at the
// database, not just in the service.
func (r *ApprovalRepository) RecordDecision(ctx context.Context, stepID, approverID, decision, comment string, decidedAt time.Time) error {
	result, err := pick(ctx, r.db).ExecContext(ctx, `
		UPDATE approval_records
		SET decision = ?, comment = ?, decided_at = ?
		WHERE step_id = ? AND approver_id = ? AND decision = ''
	`, decision, comment, decidedAt, stepID, approverID)
	if err != nil {
		r.logger.Error("Failed to record decision",
			zap.String("step_id", stepID),
			zap.String("approver_id", approverID),
			zap.Error(err))
		return fmt.Errorf("failed to record decision: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		checkErr := pick(ctx, r.db).QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM approval_records WHERE step_id = ? AND approver_id = ?)
		`, stepID, approverID).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("failed to record decision: %w", checkErr)
		}
		if exists {
			return port.ErrDuplicateVote
		}
		return port.ErrNotFound
	}
	return nil
}

// ClearDecisions resets every record of a step back to pending
func (r *ApprovalRepository) ClearDecisions(ctx context.Context, stepID string) error {
	_, err := pick(ctx, r.db).ExecContext(ctx, `
		UPDATE approval_records
		SET decision = '', comment = '', decided_at = NULL
		WHERE step_id = ?
	`, stepID)
	if err != nil {
		return fmt.Errorf("failed to clear decisions: %w", err)
	}
	return nil
}

// TallyByStep aggregates the step's ledger rows
func (r *ApprovalRepository) TallyByStep(ctx context.Context, stepID string) (*entity.ApprovalTally, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN decision != '' THEN 1 END),
			COUNT(CASE WHEN decision = ? THEN 1 END),
			COUNT(CASE WHEN decision = ? THEN 1 END)
		FROM approval_records
		WHERE step_id = ?
	`
	var tally entity.ApprovalTally
	err := pick(ctx, r.db).QueryRowContext(ctx, query,
		entity.DecisionApproved, entity.DecisionRejected, stepID,
	).Scan(&tally.Total, &tally.Decided, &tally.Approved, &tally.Rejected)
	if err != nil {
		return nil, fmt.Errorf("failed to tally step: %w", err)
	}
	return &tally, nil
}

// ListPendingForApprover returns the approver's open votes on steps that are
// currently in progress, scoped to the tenant.
func (r *ApprovalRepository) ListPendingForApprover(ctx context.Context, tenantID, approverID string) ([]*entity.PendingApproval, error) {
	query := `
		SELECT ar.id, ar.step_id, ar.approver_id, ar.decision, ar.comment, ar.decided_at, ar.created_at,
			ws.name, wi.id, wi.tenant_id, wi.entity_id
		FROM approval_records ar
		JOIN workflow_steps ws ON ws.id = ar.step_id
		JOIN workflow_instances wi ON wi.id = ws.instance_id
		WHERE wi.tenant_id = ?
			AND ar.approver_id = ?
			AND ar.decision = ''
			AND ws.status = ?
		ORDER BY ar.created_at
	`
	rows, err := pick(ctx, r.db).QueryContext(ctx, query, tenantID, approverID, entity.StepStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}
	defer rows.Close()

	var pending []*entity.PendingApproval
	for rows.Next() {
		var (
			record    entity.ApprovalRecord
			decidedAt sql.NullTime
			item      entity.PendingApproval
		)
		err := rows.Scan(
			&record.ID, &record.StepID, &record.ApproverID,
			&record.Decision, &record.Comment, &decidedAt, &record.CreatedAt,
			&item.StepName, &item.InstanceID, &item.TenantID, &item.EntityID,
		)
		if err != nil {
			return nil, err
		}
		if decidedAt.Valid {
			record.DecidedAt = &decidedAt.Time
		}
		item.Record = record
		pending = append(pending, &item)
	}
	return pending, rows.Err()
}

func scanApproval(row scannable) (*entity.ApprovalRecord, error) {
	var (
		record    entity.ApprovalRecord
		decidedAt sql.NullTime
	)
	err := row.Scan(
		&record.ID,
		&record.StepID,
		&record.ApproverID,
		&record.Decision,
		&record.Comment,
		&decidedAt,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if decidedAt.Valid {
		record.DecidedAt = &decidedAt.Time
	}
	return &record, nil
}

// Verify interface compliance
var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
