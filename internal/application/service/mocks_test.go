package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/crmkit/workflow-engine/internal/application/port"
	"github.com/crmkit/workflow-engine/internal/domain/definition"
	"github.com/crmkit/workflow-engine/internal/domain/entity"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type staticRoleResolver struct {
	roles map[string][]string
}

func (r *staticRoleResolver) ResolveRoles(ctx context.Context, tenantID, userID string) ([]string, error) {
	return r.roles[userID], nil
}

// In-memory repositories. The workflow service reads back what it wrote
// within a flow, so func-field stubs are not enough here.

type memDefinitionRepo struct {
	mu   sync.Mutex
	defs map[string]*definition.WorkflowDefinition
}

func newMemDefinitionRepo() *memDefinitionRepo {
	return &memDefinitionRepo{defs: make(map[string]*definition.WorkflowDefinition)}
}

func (r *memDefinitionRepo) Create(ctx context.Context, def *definition.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *def
	r.defs[def.ID] = &copied
	return nil
}

func (r *memDefinitionRepo) GetByID(ctx context.Context, tenantID, id string) (*definition.WorkflowDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[id]
	if !ok || def.TenantID != tenantID {
		return nil, port.ErrNotFound
	}
	copied := *def
	return &copied, nil
}

func (r *memDefinitionRepo) GetActive(ctx context.Context, tenantID, caseType string) (*definition.WorkflowDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, def := range r.defs {
		if def.TenantID == tenantID && def.CaseType == caseType && def.Active {
			copied := *def
			return &copied, nil
		}
	}
	// Wrapped; callers must match with errors.Is.
	return nil, fmt.Errorf("no active definition: %w", port.ErrNotFound)
}

func (r *memDefinitionRepo) ListVersions(ctx context.Context, tenantID, caseType string) ([]*definition.WorkflowDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*definition.WorkflowDefinition
	for _, def := range r.defs {
		if def.TenantID == tenantID && def.CaseType == caseType {
			copied := *def
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (r *memDefinitionRepo) LatestVersion(ctx context.Context, tenantID, caseType string) (int, error) {
	versions, _ := r.ListVersions(ctx, tenantID, caseType)
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[0].Version, nil
}

func (r *memDefinitionRepo) MarkPublished(ctx context.Context, tenantID, id string, publishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[id]
	if !ok || def.TenantID != tenantID {
		return port.ErrNotFound
	}
	def.Status = definition.StatusPublished
	def.Active = true
	def.PublishedAt = &publishedAt
	return nil
}

func (r *memDefinitionRepo) Deactivate(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[id]
	if !ok || def.TenantID != tenantID {
		return port.ErrNotFound
	}
	def.Active = false
	return nil
}

type memInstanceRepo struct {
	mu        sync.Mutex
	instances map[string]*entity.WorkflowInstance
}

func newMemInstanceRepo() *memInstanceRepo {
	return &memInstanceRepo{instances: make(map[string]*entity.WorkflowInstance)}
}

func (r *memInstanceRepo) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *instance
	r.instances[instance.ID] = &copied
	return nil
}

func (r *memInstanceRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	instance, ok := r.instances[id]
	if !ok || instance.TenantID != tenantID {
		return nil, port.ErrNotFound
	}
	copied := *instance
	return &copied, nil
}

func (r *memInstanceRepo) Update(ctx context.Context, instance *entity.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.instances[instance.ID]
	if !ok {
		return port.ErrNotFound
	}
	if stored.Version != instance.Version {
		return port.ErrVersionConflict
	}
	copied := *instance
	copied.Version++
	r.instances[instance.ID] = &copied
	instance.Version = copied.Version
	return nil
}

func (r *memInstanceRepo) List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.WorkflowInstance
	for _, instance := range r.instances {
		if instance.TenantID == tenantID {
			copied := *instance
			out = append(out, &copied)
		}
	}
	return out, nil
}

type memStepRepo struct {
	mu    sync.Mutex
	steps map[string]*entity.WorkflowStep
}

func newMemStepRepo() *memStepRepo {
	return &memStepRepo{steps: make(map[string]*entity.WorkflowStep)}
}

func (r *memStepRepo) CreateBatch(ctx context.Context, steps []*entity.WorkflowStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, step := range steps {
		copied := *step
		r.steps[step.ID] = &copied
	}
	return nil
}

func (r *memStepRepo) GetByID(ctx context.Context, id string) (*entity.WorkflowStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.steps[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	copied := *step
	return &copied, nil
}

func (r *memStepRepo) GetByInstanceID(ctx context.Context, instanceID string) ([]*entity.WorkflowStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.WorkflowStep
	for _, step := range r.steps {
		if step.InstanceID == instanceID {
			copied := *step
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StepOrder != out[j].StepOrder {
			return out[i].StepOrder < out[j].StepOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *memStepRepo) UpdateStatus(ctx context.Context, id, status string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.steps[id]
	if !ok {
		return port.ErrNotFound
	}
	step.Status = status
	if status == entity.StepStatusInProgress {
		step.ActivatedAt = &at
	} else if entity.IsTerminalStepStatus(status) {
		step.CompletedAt = &at
	}
	return nil
}

func (r *memStepRepo) SetApprovalsReceived(ctx context.Context, id string, received int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	step, ok := r.steps[id]
	if !ok {
		return port.ErrNotFound
	}
	step.ApprovalsReceived = received
	return nil
}

type memApprovalRepo struct {
	mu      sync.Mutex
	records map[string]*entity.ApprovalRecord
	steps   *memStepRepo
	inst    *memInstanceRepo
}

func newMemApprovalRepo(steps *memStepRepo, inst *memInstanceRepo) *memApprovalRepo {
	return &memApprovalRepo{
		records: make(map[string]*entity.ApprovalRecord),
		steps:   steps,
		inst:    inst,
	}
}

func approvalKey(stepID, approverID string) string {
	return stepID + "/" + approverID
}

func (r *memApprovalRepo) CreateBatch(ctx context.Context, records []*entity.ApprovalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		copied := *rec
		r.records[approvalKey(rec.StepID, rec.ApproverID)] = &copied
	}
	return nil
}

func (r *memApprovalRepo) Get(ctx context.Context, stepID, approverID string) (*entity.ApprovalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[approvalKey(stepID, approverID)]
	if !ok {
		return nil, port.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (r *memApprovalRepo) GetByStepID(ctx context.Context, stepID string) ([]*entity.ApprovalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ApprovalRecord
	for _, rec := range r.records {
		if rec.StepID == stepID {
			copied := *rec
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memApprovalRepo) RecordDecision(ctx context.Context, stepID, approverID, decision, comment string, decidedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[approvalKey(stepID, approverID)]
	if !ok {
		return port.ErrNotFound
	}
	if rec.Decision != entity.DecisionPending {
		return port.ErrDuplicateVote
	}
	rec.Decision = decision
	rec.Comment = comment
	rec.DecidedAt = &decidedAt
	return nil
}

func (r *memApprovalRepo) ClearDecisions(ctx context.Context, stepID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.StepID == stepID {
			rec.Decision = entity.DecisionPending
			rec.Comment = ""
			rec.DecidedAt = nil
		}
	}
	return nil
}

func (r *memApprovalRepo) TallyByStep(ctx context.Context, stepID string) (*entity.ApprovalTally, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tally := &entity.ApprovalTally{}
	for _, rec := range r.records {
		if rec.StepID != stepID {
			continue
		}
		tally.Total++
		switch rec.Decision {
		case entity.DecisionApproved:
			tally.Decided++
			tally.Approved++
		case entity.DecisionRejected:
			tally.Decided++
			tally.Rejected++
		}
	}
	return tally, nil
}

func (r *memApprovalRepo) ListPendingForApprover(ctx context.Context, tenantID, approverID string) ([]*entity.PendingApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.PendingApproval
	for _, rec := range r.records {
		if rec.ApproverID != approverID || rec.Decision != entity.DecisionPending {
			continue
		}
		step, err := r.steps.GetByID(ctx, rec.StepID)
		if err != nil || step.Status != entity.StepStatusInProgress {
			continue
		}
		instance, err := r.inst.GetByID(ctx, tenantID, step.InstanceID)
		if err != nil {
			continue
		}
		out = append(out, &entity.PendingApproval{
			Record:     *rec,
			StepName:   step.Name,
			InstanceID: instance.ID,
			TenantID:   instance.TenantID,
			EntityID:   instance.EntityID,
		})
	}
	return out, nil
}

type memHistoryRepo struct {
	mu      sync.Mutex
	entries []*entity.TransitionHistoryEntry
}

func newMemHistoryRepo() *memHistoryRepo {
	return &memHistoryRepo{}
}

func (r *memHistoryRepo) Append(ctx context.Context, entry *entity.TransitionHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *entry
	r.entries = append(r.entries, &copied)
	return nil
}

func (r *memHistoryRepo) ListByInstanceID(ctx context.Context, instanceID string) ([]*entity.TransitionHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.TransitionHistoryEntry
	for _, entry := range r.entries {
		if entry.InstanceID == instanceID {
			copied := *entry
			out = append(out, &copied)
		}
	}
	return out, nil
}
