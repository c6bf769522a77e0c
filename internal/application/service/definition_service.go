package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/crmkit/workflow-engine/internal/application/port"
	"github.com/crmkit/workflow-engine/internal/domain/definition"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// DefinitionService manages versioned workflow definitions for a tenant.
type DefinitionService interface {
	// CreateDraft creates the next version of a case type's definition in
	// DRAFT status. Drafts are mutable only by replacement: callers create a
	// new draft rather than editing a published version.
	CreateDraft(ctx context.Context, tenantID, caseType string, states []definition.State, rules []definition.TransitionRule) (*definition.WorkflowDefinition, error)

	// Publish validates the draft and, atomically with demoting the previous
	// active version, marks it published and active. Validation failures are
	// returned as *InvalidDefinitionError with the complete violation list.
	Publish(ctx context.Context, tenantID, definitionID string) (*definition.WorkflowDefinition, error)

	// GetActive returns the single active published definition for a case type.
	GetActive(ctx context.Context, tenantID, caseType string) (*definition.WorkflowDefinition, error)

	// GetVersionHistory returns every version for a case type, newest first.
	GetVersionHistory(ctx context.Context, tenantID, caseType string) ([]*definition.WorkflowDefinition, error)
}

type definitionServiceImpl struct {
	definitionRepo port.DefinitionRepository
	txManager      port.TransactionManager
	clock          port.ClockSource
	logger         Logger
}

// NewDefinitionService creates a new DefinitionService
func NewDefinitionService(
	definitionRepo port.DefinitionRepository,
	txManager port.TransactionManager,
	clock port.ClockSource,
	logger Logger,
) DefinitionService {
	return &definitionServiceImpl{
		definitionRepo: definitionRepo,
		txManager:      txManager,
		clock:          clock,
		logger:         logger,
	}
}

// CreateDraft creates the next definition version for (tenant, caseType).
func (s *definitionServiceImpl) CreateDraft(ctx context.Context, tenantID, caseType string, states []definition.State, rules []definition.TransitionRule) (*definition.WorkflowDefinition, error) {
	if caseType == "" {
		return nil, fmt.Errorf("case type is required")
	}

	latest, err := s.definitionRepo.LatestVersion(ctx, tenantID, caseType)
	if err != nil {
		return nil, fmt.Errorf("resolve latest version: %w", err)
	}

	var parentID string
	if latest > 0 {
		versions, err := s.definitionRepo.ListVersions(ctx, tenantID, caseType)
		if err != nil {
			return nil, fmt.Errorf("list versions: %w", err)
		}
		if len(versions) > 0 {
			parentID = versions[0].ID
		}
	}

	def := &definition.WorkflowDefinition{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		CaseType:        caseType,
		Version:         latest + 1,
		ParentVersionID: parentID,
		Status:          definition.StatusDraft,
		States:          states,
		Rules:           rules,
		CreatedAt:       s.clock.Now(),
	}

	for i := range def.Rules {
		if def.Rules[i].ID == "" {
			def.Rules[i].ID = uuid.NewString()
		}
	}

	if err := s.definitionRepo.Create(ctx, def); err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}

	s.logger.Info("Definition draft created",
		"tenant_id", tenantID,
		"case_type", caseType,
		"definition_id", def.ID,
		"version", def.Version,
	)
	return def, nil
}

// Publish validates the draft and activates it, demoting the previous active
// version in the same transaction so no window exists where both or neither
// are active.
func (s *definitionServiceImpl) Publish(ctx context.Context, tenantID, definitionID string) (*definition.WorkflowDefinition, error) {
	def, err := s.definitionRepo.GetByID(ctx, tenantID, definitionID)
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", err)
	}
	if def.IsPublished() {
		return nil, definition.ErrAlreadyPublished
	}

	if violations := def.Validate(); len(violations) > 0 {
		s.logger.Warn("Definition publish rejected",
			"tenant_id", tenantID,
			"definition_id", definitionID,
			"violation_count", len(violations),
		)
		return nil, &InvalidDefinitionError{Violations: violations}
	}

	publishedAt := s.clock.Now()
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.definitionRepo.GetActive(txCtx, tenantID, def.CaseType)
		if err != nil && !errors.Is(err, port.ErrNotFound) {
			return fmt.Errorf("load active version: %w", err)
		}
		if current != nil && current.ID != def.ID {
			if err := s.definitionRepo.Deactivate(txCtx, tenantID, current.ID); err != nil {
				return fmt.Errorf("deactivate version %d: %w", current.Version, err)
			}
		}
		if err := s.definitionRepo.MarkPublished(txCtx, tenantID, def.ID, publishedAt); err != nil {
			return fmt.Errorf("mark published: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	def.Status = definition.StatusPublished
	def.Active = true
	def.PublishedAt = &publishedAt

	s.logger.Info("Definition published",
		"tenant_id", tenantID,
		"case_type", def.CaseType,
		"definition_id", def.ID,
		"version", def.Version,
	)
	return def, nil
}

// GetActive returns the active published definition for a case type.
func (s *definitionServiceImpl) GetActive(ctx context.Context, tenantID, caseType string) (*definition.WorkflowDefinition, error) {
	return s.definitionRepo.GetActive(ctx, tenantID, caseType)
}

// GetVersionHistory returns all versions for a case type, newest first.
func (s *definitionServiceImpl) GetVersionHistory(ctx context.Context, tenantID, caseType string) ([]*definition.WorkflowDefinition, error) {
	return s.definitionRepo.ListVersions(ctx, tenantID, caseType)
}

var _ DefinitionService = (*definitionServiceImpl)(nil)
