package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/crmkit/workflow-engine/internal/application/port"
	"github.com/crmkit/workflow-engine/internal/domain/entity"
)

// InstanceRepository implements port.InstanceRepository
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sql.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new workflow instance
func (r *InstanceRepository) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	query := `
		INSERT INTO workflow_instances (
			id, tenant_id, definition_id, entity_id, current_state,
			status, current_step_order, cancel_reason, version,
			created_at, updated_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := pick(ctx, r.db).ExecContext(ctx, query,
		instance.ID,
		instance.TenantID,
		instance.DefinitionID,
		instance.EntityID,
		instance.CurrentState,
		instance.Status,
		instance.CurrentStepOrder,
		instance.CancelReason,
		instance.Version,
		instance.CreatedAt,
		instance.UpdatedAt,
		nullTime(instance.CompletedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create instance", zap.Error(err))
		return fmt.Errorf("failed to create instance: %w", err)
	}
	return nil
}

// GetByID retrieves a workflow instance scoped to the tenant
func (r *InstanceRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.WorkflowInstance, error) {
	query := `
		SELECT id, tenant_id, definition_id, entity_id, current_state,
			status, current_step_order, cancel_reason, version,
			created_at, updated_at, completed_at
		FROM workflow_instances
		WHERE tenant_id = ? AND id = ?
	`
	instance, err := scanInstance(pick(ctx, r.db).QueryRowContext(ctx, query, tenantID, id))
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get instance", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return instance, nil
}

// Update writes all mutable fields guarded by the version counter. It returns
// ErrVersionConflict when another writer got there first.
func (r *InstanceRepository) Update(ctx context.Context, instance *entity.WorkflowInstance) error {
	query := `
		UPDATE workflow_instances
		SET current_state = ?, status = ?, current_step_order = ?,
			cancel_reason = ?, updated_at = ?, completed_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?
	`
	result, err := pick(ctx, r.db).ExecContext(ctx, query,
		instance.CurrentState,
		instance.Status,
		instance.CurrentStepOrder,
		instance.CancelReason,
		instance.UpdatedAt,
		nullTime(instance.CompletedAt),
		instance.ID,
		instance.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update instance", zap.String("id", instance.ID), zap.Error(err))
		return fmt.Errorf("failed to update instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		checkErr := pick(ctx, r.db).QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM workflow_instances WHERE id = ?)", instance.ID,
		).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("failed to update instance: %w", checkErr)
		}
		if exists {
			return port.ErrVersionConflict
		}
		return port.ErrNotFound
	}

	instance.Version++
	return nil
}

// List returns the tenant's instances, newest first
func (r *InstanceRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.WorkflowInstance, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, tenant_id, definition_id, entity_id, current_state,
			status, current_step_order, cancel_reason, version,
			created_at, updated_at, completed_at
		FROM workflow_instances
		WHERE tenant_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := pick(ctx, r.db).QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []*entity.WorkflowInstance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

func scanInstance(row scannable) (*entity.WorkflowInstance, error) {
	var (
		instance    entity.WorkflowInstance
		completedAt sql.NullTime
	)
	err := row.Scan(
		&instance.ID,
		&instance.TenantID,
		&instance.DefinitionID,
		&instance.EntityID,
		&instance.CurrentState,
		&instance.Status,
		&instance.CurrentStepOrder,
		&instance.CancelReason,
		&instance.Version,
		&instance.CreatedAt,
		&instance.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		instance.CompletedAt = &completedAt.Time
	}
	return &instance, nil
}

// Verify interface compliance
var _ port.InstanceRepository = (*InstanceRepository)(nil)
