package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crmkit/workflow-engine/internal/application/port"
	"github.com/crmkit/workflow-engine/internal/domain/condition"
	"github.com/crmkit/workflow-engine/internal/domain/definition"
)

// DefinitionRepository implements port.DefinitionRepository
type DefinitionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDefinitionRepository creates a new definition repository
func NewDefinitionRepository(db *sql.DB, logger *zap.Logger) port.DefinitionRepository {
	return &DefinitionRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a draft definition with its states and rules.
func (r *DefinitionRepository) Create(ctx context.Context, def *definition.WorkflowDefinition) error {
	exec := pick(ctx, r.db)

	query := `
		INSERT INTO workflow_definitions (
			id, tenant_id, case_type, version, parent_version_id,
			status, active, created_at, published_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := exec.ExecContext(ctx, query,
		def.ID,
		def.TenantID,
		def.CaseType,
		def.Version,
		nullString(def.ParentVersionID),
		def.Status,
		def.Active,
		def.CreatedAt,
		nullTime(def.PublishedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create definition", zap.Error(err))
		return fmt.Errorf("failed to create definition: %w", err)
	}

	for i, state := range def.States {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO workflow_states (definition_id, code, name, is_initial, is_final, position)
			VALUES (?, ?, ?, ?, ?, ?)
		`, def.ID, state.Code, state.Name, state.IsInitial, state.IsFinal, i)
		if err != nil {
			return fmt.Errorf("failed to create state %s: %w", state.Code, err)
		}
	}

	for i, rule := range def.Rules {
		requiredFields, err := marshalStrings(rule.RequiredFields)
		if err != nil {
			return err
		}
		allowedRoles, err := marshalStrings(rule.AllowedRoles)
		if err != nil {
			return err
		}
		var cond sql.NullString
		if rule.Condition != nil {
			data, err := rule.Condition.Marshal()
			if err != nil {
				return fmt.Errorf("marshal condition for rule %s: %w", rule.ID, err)
			}
			cond = sql.NullString{String: string(data), Valid: true}
		}

		_, err = exec.ExecContext(ctx, `
			INSERT INTO transition_rules (
				id, definition_id, from_state, to_state,
				required_fields, allowed_roles, condition, priority, is_active, position
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rule.ID, def.ID, rule.FromState, rule.ToState,
			requiredFields, allowedRoles, cond, rule.Priority, rule.IsActive, i)
		if err != nil {
			return fmt.Errorf("failed to create rule %s: %w", rule.ID, err)
		}
	}

	return nil
}

// GetByID retrieves a definition with states and rules loaded.
func (r *DefinitionRepository) GetByID(ctx context.Context, tenantID, id string) (*definition.WorkflowDefinition, error) {
	return r.loadOne(ctx, `
		SELECT id, tenant_id, case_type, version, parent_version_id,
			status, active, created_at, published_at
		FROM workflow_definitions
		WHERE tenant_id = ? AND id = ?
	`, tenantID, id)
}

// GetActive retrieves the single active published version for a case type.
func (r *DefinitionRepository) GetActive(ctx context.Context, tenantID, caseType string) (*definition.WorkflowDefinition, error) {
	return r.loadOne(ctx, `
		SELECT id, tenant_id, case_type, version, parent_version_id,
			status, active, created_at, published_at
		FROM workflow_definitions
		WHERE tenant_id = ? AND case_type = ? AND active = 1
	`, tenantID, caseType)
}

// ListVersions returns all versions for a case type, newest first.
func (r *DefinitionRepository) ListVersions(ctx context.Context, tenantID, caseType string) ([]*definition.WorkflowDefinition, error) {
	exec := pick(ctx, r.db)

	rows, err := exec.QueryContext(ctx, `
		SELECT id, tenant_id, case_type, version, parent_version_id,
			status, active, created_at, published_at
		FROM workflow_definitions
		WHERE tenant_id = ? AND case_type = ?
		ORDER BY version DESC
	`, tenantID, caseType)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var defs []*definition.WorkflowDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, def := range defs {
		if err := r.loadChildren(ctx, def); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

// LatestVersion returns the highest version number for a case type.
func (r *DefinitionRepository) LatestVersion(ctx context.Context, tenantID, caseType string) (int, error) {
	var version int
	err := pick(ctx, r.db).QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM workflow_definitions
		WHERE tenant_id = ? AND case_type = ?
	`, tenantID, caseType).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest version: %w", err)
	}
	return version, nil
}

// MarkPublished flips a draft to PUBLISHED and active.
func (r *DefinitionRepository) MarkPublished(ctx context.Context, tenantID, id string, publishedAt time.Time) error {
	result, err := pick(ctx, r.db).ExecContext(ctx, `
		UPDATE workflow_definitions
		SET status = ?, active = 1, published_at = ?
		WHERE tenant_id = ? AND id = ?
	`, definition.StatusPublished, publishedAt, tenantID, id)
	if err != nil {
		r.logger.Error("Failed to mark definition published", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark published: %w", err)
	}
	return requireRow(result)
}

// Deactivate clears the active flag on a definition.
func (r *DefinitionRepository) Deactivate(ctx context.Context, tenantID, id string) error {
	result, err := pick(ctx, r.db).ExecContext(ctx, `
		UPDATE workflow_definitions
		SET active = 0
		WHERE tenant_id = ? AND id = ?
	`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate definition: %w", err)
	}
	return requireRow(result)
}

func (r *DefinitionRepository) loadOne(ctx context.Context, query string, args ...interface{}) (*definition.WorkflowDefinition, error) {
	row := pick(ctx, r.db).QueryRowContext(ctx, query, args...)
	def, err := scanDefinition(row)
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to load definition", zap.Error(err))
		return nil, fmt.Errorf("failed to load definition: %w", err)
	}
	if err := r.loadChildren(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

func (r *DefinitionRepository) loadChildren(ctx context.Context, def *definition.WorkflowDefinition) error {
	exec := pick(ctx, r.db)

	rows, err := exec.QueryContext(ctx, `
		SELECT code, name, is_initial, is_final
		FROM workflow_states
		WHERE definition_id = ?
		ORDER BY position
	`, def.ID)
	if err != nil {
		return fmt.Errorf("failed to load states: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state definition.State
		if err := rows.Scan(&state.Code, &state.Name, &state.IsInitial, &state.IsFinal); err != nil {
			return err
		}
		def.States = append(def.States, state)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	ruleRows, err := exec.QueryContext(ctx, `
		SELECT id, from_state, to_state, required_fields, allowed_roles, condition, priority, is_active
		FROM transition_rules
		WHERE definition_id = ?
		ORDER BY position
	`, def.ID)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	defer ruleRows.Close()

	for ruleRows.Next() {
		var (
			rule           definition.TransitionRule
			requiredFields string
			allowedRoles   string
			cond           sql.NullString
		)
		if err := ruleRows.Scan(
			&rule.ID, &rule.FromState, &rule.ToState,
			&requiredFields, &allowedRoles, &cond,
			&rule.Priority, &rule.IsActive,
		); err != nil {
			return err
		}
		if rule.RequiredFields, err = unmarshalStrings(requiredFields); err != nil {
			return err
		}
		if rule.AllowedRoles, err = unmarshalStrings(allowedRoles); err != nil {
			return err
		}
		if cond.Valid && cond.String != "" {
			node, err := condition.Parse([]byte(cond.String))
			if err != nil {
				return fmt.Errorf("parse condition for rule %s: %w", rule.ID, err)
			}
			rule.Condition = node
		}
		def.Rules = append(def.Rules, rule)
	}
	return ruleRows.Err()
}

// scannable covers *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...interface{}) error
}

func scanDefinition(row scannable) (*definition.WorkflowDefinition, error) {
	var (
		def         definition.WorkflowDefinition
		parentID    sql.NullString
		publishedAt sql.NullTime
	)
	err := row.Scan(
		&def.ID,
		&def.TenantID,
		&def.CaseType,
		&def.Version,
		&parentID,
		&def.Status,
		&def.Active,
		&def.CreatedAt,
		&publishedAt,
	)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		def.ParentVersionID = parentID.String
	}
	if publishedAt.Valid {
		def.PublishedAt = &publishedAt.Time
	}
	return &def, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return port.ErrNotFound
	}
	return nil
}

// Verify interface compliance
var _ port.DefinitionRepository = (*DefinitionRepository)(nil)
