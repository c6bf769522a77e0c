package service

import (
	"context"

	"github.com/crmkit/workflow-engine/internal/application/port"
	"github.com/crmkit/workflow-engine/internal/domain/entity"
)

// HistoryService exposes the transition history of an instance for audits.
type HistoryService interface {
	// ListTransitions returns every transition attempt for the instance in
	// chronological order, denied attempts included.
	ListTransitions(ctx context.Context, tenantID, instanceID string) ([]*entity.TransitionHistoryEntry, error)
}

type historyServiceImpl struct {
	historyRepo  port.HistoryRepository
	instanceRepo port.InstanceRepository
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(historyRepo port.HistoryRepository, instanceRepo port.InstanceRepository) HistoryService {
	return &historyServiceImpl{
		historyRepo:  historyRepo,
		instanceRepo: instanceRepo,
	}
}

func (s *historyServiceImpl) ListTransitions(ctx context.Context, tenantID, instanceID string) ([]*entity.TransitionHistoryEntry, error) {
	// Tenant check before reading the unscoped history table.
	if _, err := s.instanceRepo.GetByID(ctx, tenantID, instanceID); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByInstanceID(ctx, instanceID)
}

var _ HistoryService = (*historyServiceImpl)(nil)
