package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crmkit/workflow-engine/internal/application/dispatcher"
	"github.com/crmkit/workflow-engine/internal/application/evaluator"
	"github.com/crmkit/workflow-engine/internal/application/port"
	"github.com/crmkit/workflow-engine/internal/domain/entity"
	"github.com/crmkit/workflow-engine/internal/domain/event"
	domainwf "github.com/crmkit/workflow-engine/internal/domain/workflow"
)

// StepSpec describes one step of a new workflow instance.
type StepSpec struct {
	Name                 string   `json:"name"`
	StepOrder            int      `json:"step_order"`
	StepType             string   `json:"step_type"`
	IsParallel           bool     `json:"is_parallel"`
	RequiresAllApprovers bool     `json:"requires_all_approvers"`
	ApprovalsRequired    int      `json:"approvals_required"`
	NonBlocking          bool     `json:"non_blocking"`
	Approvers            []string `json:"approvers"`
}

// InstanceStatus is the read model returned by GetStatus.
type InstanceStatus struct {
	Instance *entity.WorkflowInstance `json:"instance"`
	Steps    []*entity.WorkflowStep   `json:"steps"`
}

// VoteOutcome reports the aggregate state after a recorded decision, so the
// caller needs no second read to learn what the vote did.
type VoteOutcome struct {
	Tally          entity.ApprovalTally `json:"tally"`
	StepStatus     string               `json:"step_status"`
	InstanceStatus string               `json:"instance_status"`
}

// WorkflowService owns the lifecycle of running workflow instances: step
// sequencing, approval quorum tracking and completion/cancellation.
type WorkflowService interface {
	// CreateInstance attaches a new DRAFT instance of the active definition
	// to a business entity, materializing its steps and approver assignments.
	CreateInstance(ctx context.Context, tenantID, caseType, entityID string, steps []StepSpec) (*entity.WorkflowInstance, error)

	// Start moves a DRAFT instance to IN_PROGRESS and activates the first
	// step group.
	Start(ctx context.Context, tenantID, instanceID string) error

	// RequestTransition evaluates a state change for the instance's business
	// entity and applies it when allowed. Every attempt, allowed or denied,
	// is appended to the transition history.
	RequestTransition(ctx context.Context, tenantID, instanceID, toState, actorID string, fields map[string]any) (evaluator.TransitionDecision, error)

	// RecordApprovalDecision records one approver's vote on a step and
	// recomputes step completion, advancing or cancelling the instance as the
	// quorum outcome dictates.
	RecordApprovalDecision(ctx context.Context, tenantID, stepID, approverID, decision, comment string) (*VoteOutcome, error)

	// CompleteStep finishes an AUTOMATED or CONDITIONAL step on behalf of the
	// external system that executed it.
	CompleteStep(ctx context.Context, tenantID, stepID string, success bool) error

	// Advance moves past the current step group once every step in it is
	// terminal; when no further group exists the instance completes.
	Advance(ctx context.Context, tenantID, instanceID string) error

	// Cancel marks the instance CANCELLED and skips all open steps. Cancelling
	// an already-cancelled instance is a no-op.
	Cancel(ctx context.Context, tenantID, instanceID, reason string) error

	// ResetStep clears the decisions of a step in the current group and
	// reopens it for voting.
	ResetStep(ctx context.Context, tenantID, stepID string) error

	// GetStatus returns the instance with its steps.
	GetStatus(ctx context.Context, tenantID, instanceID string) (*InstanceStatus, error)
}

type workflowServiceImpl struct {
	definitionRepo port.DefinitionRepository
	instanceRepo   port.InstanceRepository
	stepRepo       port.StepRepository
	approvalRepo   port.ApprovalRepository
	historyRepo    port.HistoryRepository
	txManager      port.TransactionManager
	eval           *evaluator.Evaluator
	roleResolver   port.RoleResolver
	clock          port.ClockSource
	dispatcher     dispatcher.Dispatcher
	locks          *instanceLocks
	logger         Logger
}

// WorkflowOption configures the workflow service
type WorkflowOption func(*workflowServiceImpl)

// WithDispatcher sets the event dispatcher for emitting workflow events
func WithDispatcher(d dispatcher.Dispatcher) WorkflowOption {
	return func(s *workflowServiceImpl) {
		s.dispatcher = d
	}
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	definitionRepo port.DefinitionRepository,
	instanceRepo port.InstanceRepository,
	stepRepo port.StepRepository,
	approvalRepo port.ApprovalRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	eval *evaluator.Evaluator,
	roleResolver port.RoleResolver,
	clock port.ClockSource,
	logger Logger,
	opts ...WorkflowOption,
) WorkflowService {
	s := &workflowServiceImpl{
		definitionRepo: definitionRepo,
		instanceRepo:   instanceRepo,
		stepRepo:       stepRepo,
		approvalRepo:   approvalRepo,
		historyRepo:    historyRepo,
		txManager:      txManager,
		eval:           eval,
		roleResolver:   roleResolver,
		clock:          clock,
		locks:          newInstanceLocks(),
		logger:         logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateInstance attaches a new instance of the tenant's active definition to
// a business entity.
func (s *workflowServiceImpl) CreateInstance(ctx context.Context, tenantID, caseType, entityID string, specs []StepSpec) (*entity.WorkflowInstance, error) {
	def, err := s.definitionRepo.GetActive(ctx, tenantID, caseType)
	if err != nil {
		return nil, fmt.Errorf("load active definition: %w", err)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("at least one step is required")
	}

	initial := def.InitialState()
	if initial == nil {
		return nil, fmt.Errorf("definition %s has no initial state", def.ID)
	}

	now := s.clock.Now()
	instance := &entity.WorkflowInstance{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		DefinitionID: def.ID,
		EntityID:     entityID,
		CurrentState: initial.Code,
		Status:       entity.InstanceStatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	steps := make([]*entity.WorkflowStep, 0, len(specs))
	var records []*entity.ApprovalRecord
	for _, spec := range specs {
		step, stepRecords, err := buildStep(instance.ID, spec, now)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
		records = append(records, stepRecords...)
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.instanceRepo.Create(txCtx, instance); err != nil {
			return fmt.Errorf("create instance: %w", err)
		}
		if err := s.stepRepo.CreateBatch(txCtx, steps); err != nil {
			return fmt.Errorf("create steps: %w", err)
		}
		if len(records) > 0 {
			if err := s.approvalRepo.CreateBatch(txCtx, records); err != nil {
				return fmt.Errorf("create approval records: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Workflow instance created",
		"tenant_id", tenantID,
		"instance_id", instance.ID,
		"case_type", caseType,
		"entity_id", entityID,
		"step_count", len(steps),
	)
	return instance, nil
}

// buildStep validates one spec and materializes its step plus pending
// approval records.
func buildStep(instanceID string, spec StepSpec, now time.Time) (*entity.WorkflowStep, []*entity.ApprovalRecord, error) {
	switch spec.StepType {
	case entity.StepTypeApproval, entity.StepTypeAutomated, entity.StepTypeNotification, entity.StepTypeConditional:
	default:
		return nil, nil, fmt.Errorf("unknown step type %q", spec.StepType)
	}

	step := &entity.WorkflowStep{
		ID:                   uuid.NewString(),
		InstanceID:           instanceID,
		Name:                 spec.Name,
		StepOrder:            spec.StepOrder,
		StepType:             spec.StepType,
		IsParallel:           spec.IsParallel,
		RequiresAllApprovers: spec.RequiresAllApprovers,
		ApprovalsRequired:    spec.ApprovalsRequired,
		NonBlocking:          spec.NonBlocking,
		Status:               entity.StepStatusPending,
	}

	if spec.StepType != entity.StepTypeApproval {
		return step, nil, nil
	}

	if len(spec.Approvers) == 0 {
		return nil, nil, fmt.Errorf("approval step %q has no assigned approvers", spec.Name)
	}
	if spec.RequiresAllApprovers {
		step.ApprovalsRequired = len(spec.Approvers)
	} else {
		if step.ApprovalsRequired <= 0 {
			step.ApprovalsRequired = 1
		}
		if step.ApprovalsRequired > len(spec.Approvers) {
			return nil, nil, fmt.Errorf("approval step %q requires %d approvals but has %d approvers", spec.Name, step.ApprovalsRequired, len(spec.Approvers))
		}
	}

	seen := make(map[string]bool, len(spec.Approvers))
	records := make([]*entity.ApprovalRecord, 0, len(spec.Approvers))
	for _, approver := range spec.Approvers {
		if seen[approver] {
			return nil, nil, fmt.Errorf("approver %q assigned twice to step %q", approver, spec.Name)
		}
		seen[approver] = true
		records = append(records, &entity.ApprovalRecord{
			ID:         uuid.NewString(),
			StepID:     step.ID,
			ApproverID: approver,
			CreatedAt:  now,
		})
	}
	return step, records, nil
}

// Start moves a DRAFT instance to IN_PROGRESS and activates the first group.
func (s *workflowServiceImpl) Start(ctx context.Context, tenantID, instanceID string) error {
	release := s.locks.acquire(instanceID)
	defer release()

	instance, err := s.instanceRepo.GetByID(ctx, tenantID, instanceID)
	if err != nil {
		return err
	}
	if instance.Status != entity.InstanceStatusDraft {
		return ErrAlreadyStarted
	}

	machine := domainwf.BuildInstanceLifecycle(domainwf.State(instance.Status))
	if err := machine.Fire(ctx, domainwf.TriggerStart); err != nil {
		return err
	}
	instance.Status = machine.State().String()

	steps, err := s.stepRepo.GetByInstanceID(ctx, instanceID)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return fmt.Errorf("instance %s has no steps", instanceID)
	}

	first := steps[0].StepOrder
	for _, step := range steps {
		if step.StepOrder < first {
			first = step.StepOrder
		}
	}

	var events []*event.Event
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		events, err = s.progress(txCtx, instance, steps, first)
		return err
	})
	if err != nil {
		return err
	}

	events = append([]*event.Event{event.NewEvent(event.TypeInstanceStarted, tenantID, instanceID, nil)}, events...)
	s.emit(ctx, events)

	s.logger.Info("Workflow instance started",
		"tenant_id", tenantID,
		"instance_id", instanceID,
		"first_step_order", first,
	)
	return nil
}

// RequestTransition evaluates and applies a state change for the instance's
// business entity, recording the attempt in the transition history either way.
func (s *workflowServiceImpl) RequestTransition(ctx context.Context, tenantID, instanceID, toState, actorID string, fields map[string]any) (evaluator.TransitionDecision, error) {
	release := s.locks.acquire(instanceID)
	defer release()

	instance, err := s.instanceRepo.GetByID(ctx, tenantID, instanceID)
	if err != nil {
		return evaluator.TransitionDecision{}, err
	}
	if instance.IsTerminal() {
		return evaluator.TransitionDecision{}, ErrInstanceTerminal
	}

	def, err := s.definitionRepo.GetByID(ctx, tenantID, instance.DefinitionID)
	if err != nil {
		return evaluator.TransitionDecision{}, fmt.Errorf("load definition: %w", err)
	}

	roles, err := s.roleResolver.ResolveRoles(ctx, tenantID, actorID)
	if err != nil {
		return evaluator.TransitionDecision{}, fmt.Errorf("resolve roles for %s: %w", actorID, err)
	}

	fromState := instance.CurrentState
	decision := s.eval.Evaluate(def, fromState, toState, evaluator.Context{Fields: fields, Roles: roles})

	entry := &entity.TransitionHistoryEntry{
		ID:         uuid.NewString(),
		InstanceID: instanceID,
		FromState:  fromState,
		ToState:    toState,
		Allowed:    decision.Allowed,
		Errors:     decision.ErrorStrings(),
		Warnings:   decision.Warnings,
		ActorID:    actorID,
		Timestamp:  s.clock.Now(),
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.historyRepo.Append(txCtx, entry); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		if decision.Allowed {
			instance.CurrentState = toState
			instance.UpdatedAt = s.clock.Now()
			if err := s.instanceRepo.Update(txCtx, instance); err != nil {
				return fmt.Errorf("update instance state: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return evaluator.TransitionDecision{}, err
	}

	evt := event.NewEvent(event.TypeTransitionEvaluated, tenantID, instanceID, map[string]any{
		"from_state": fromState,
		"to_state":   toState,
		"allowed":    decision.Allowed,
		"actor_id":   actorID,
	})
	s.emit(ctx, []*event.Event{evt})

	return decision, nil
}

// RecordApprovalDecision records one vote and recomputes step completion.
func (s *workflowServiceImpl) RecordApprovalDecision(ctx context.Context, tenantID, stepID, approverID, decision, comment string) (*VoteOutcome, error) {
	if decision != entity.DecisionApproved && decision != entity.DecisionRejected {
		return nil, ErrInvalidDecision
	}

	step, instance, release, err := s.lockStep(ctx, tenantID, stepID)
	if err != nil {
		return nil, err
	}
	defer release()

	if instance.IsTerminal() {
		return nil, ErrInstanceTerminal
	}
	if step.StepType != entity.StepTypeApproval {
		return nil, ErrStepTypeMismatch
	}
	if step.Status != entity.StepStatusInProgress {
		return nil, ErrStepNotInProgress
	}

	record, err := s.approvalRepo.Get(ctx, stepID, approverID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, ErrApproverNotAssigned
		}
		return nil, err
	}
	if record.HasVoted() {
		return nil, port.ErrDuplicateVote
	}

	now := s.clock.Now()
	var (
		tally  *entity.ApprovalTally
		events []*event.Event
	)
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.approvalRepo.RecordDecision(txCtx, stepID, approverID, decision, comment, now); err != nil {
			return err
		}

		tally, err = s.approvalRepo.TallyByStep(txCtx, stepID)
		if err != nil {
			return fmt.Errorf("tally step: %w", err)
		}
		if err := s.stepRepo.SetApprovalsReceived(txCtx, stepID, tally.Decided); err != nil {
			return fmt.Errorf("update approvals received: %w", err)
		}
		step.ApprovalsReceived = tally.Decided

		events = append(events, event.NewEvent(event.TypeVoteRecorded, tenantID, instance.ID, map[string]any{
			"approver_id": approverID,
			"decision":    decision,
		}).WithStep(stepID))

		newStatus := resolveApprovalStatus(step, tally)
		if newStatus == entity.StepStatusInProgress {
			return nil
		}

		settled, err := s.settleStep(txCtx, instance, step, newStatus)
		if err != nil {
			return err
		}
		events = append(events, settled...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events)

	return &VoteOutcome{
		Tally:          *tally,
		StepStatus:     step.Status,
		InstanceStatus: instance.Status,
	}, nil
}

// CompleteStep finishes an AUTOMATED or CONDITIONAL step.
func (s *workflowServiceImpl) CompleteStep(ctx context.Context, tenantID, stepID string, success bool) error {
	step, instance, release, err := s.lockStep(ctx, tenantID, stepID)
	if err != nil {
		return err
	}
	defer release()

	if instance.IsTerminal() {
		return ErrInstanceTerminal
	}
	if step.StepType == entity.StepTypeApproval {
		return ErrStepTypeMismatch
	}
	if step.Status != entity.StepStatusInProgress {
		return ErrStepNotInProgress
	}

	newStatus := entity.StepStatusApproved
	if !success {
		newStatus = entity.StepStatusRejected
	}

	var events []*event.Event
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		events, err = s.settleStep(txCtx, instance, step, newStatus)
		return err
	})
	if err != nil {
		return err
	}

	s.emit(ctx, events)
	return nil
}

// Advance moves past the current group when every step in it is terminal.
func (s *workflowServiceImpl) Advance(ctx context.Context, tenantID, instanceID string) error {
	release := s.locks.acquire(instanceID)
	defer release()

	instance, err := s.instanceRepo.GetByID(ctx, tenantID, instanceID)
	if err != nil {
		return err
	}
	if instance.Status == entity.InstanceStatusDraft {
		return ErrNotStarted
	}
	if instance.IsTerminal() {
		return ErrInstanceTerminal
	}

	steps, err := s.stepRepo.GetByInstanceID(ctx, instanceID)
	if err != nil {
		return err
	}
	for _, step := range steps {
		if step.StepOrder == instance.CurrentStepOrder && !step.IsTerminal() {
			return ErrStepsPending
		}
	}

	var events []*event.Event
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		events, err = s.advanceLocked(txCtx, instance, steps)
		return err
	})
	if err != nil {
		return err
	}

	s.emit(ctx, events)
	return nil
}

// Cancel marks the instance CANCELLED; cancelling twice is a no-op.
func (s *workflowServiceImpl) Cancel(ctx context.Context, tenantID, instanceID, reason string) error {
	release := s.locks.acquire(instanceID)
	defer release()

	instance, err := s.instanceRepo.GetByID(ctx, tenantID, instanceID)
	if err != nil {
		return err
	}
	if instance.Status == entity.InstanceStatusCancelled {
		return nil
	}
	if instance.Status == entity.InstanceStatusCompleted {
		return ErrInstanceTerminal
	}

	steps, err := s.stepRepo.GetByInstanceID(ctx, instanceID)
	if err != nil {
		return err
	}

	var events []*event.Event
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		events, err = s.cancelLocked(txCtx, instance, steps, reason)
		return err
	})
	if err != nil {
		return err
	}

	s.emit(ctx, events)

	s.logger.Info("Workflow instance cancelled",
		"tenant_id", tenantID,
		"instance_id", instanceID,
		"reason", reason,
	)
	return nil
}

// ResetStep clears a current-group step's decisions and reopens voting.
func (s *workflowServiceImpl) ResetStep(ctx context.Context, tenantID, stepID string) error {
	step, instance, release, err := s.lockStep(ctx, tenantID, stepID)
	if err != nil {
		return err
	}
	defer release()

	if instance.IsTerminal() {
		return ErrInstanceTerminal
	}
	if step.StepType != entity.StepTypeApproval {
		return ErrStepTypeMismatch
	}
	if step.StepOrder != instance.CurrentStepOrder {
		return ErrStepNotResettable
	}

	now := s.clock.Now()
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.approvalRepo.ClearDecisions(txCtx, stepID); err != nil {
			return fmt.Errorf("clear decisions: %w", err)
		}
		if err := s.stepRepo.SetApprovalsReceived(txCtx, stepID, 0); err != nil {
			return err
		}
		return s.stepRepo.UpdateStatus(txCtx, stepID, entity.StepStatusInProgress, now)
	})
	if err != nil {
		return err
	}

	s.emit(ctx, []*event.Event{
		event.NewEvent(event.TypeStepActivated, tenantID, instance.ID, map[string]any{"reset": true}).WithStep(stepID),
	})

	s.logger.Info("Step reset",
		"tenant_id", tenantID,
		"instance_id", instance.ID,
		"step_id", stepID,
	)
	return nil
}

// GetStatus returns the instance and its steps.
func (s *workflowServiceImpl) GetStatus(ctx context.Context, tenantID, instanceID string) (*InstanceStatus, error) {
	instance, err := s.instanceRepo.GetByID(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	steps, err := s.stepRepo.GetByInstanceID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return &InstanceStatus{Instance: instance, Steps: steps}, nil
}

// lockStep resolves a step's owning instance, acquires the instance lock and
// re-reads both rows under it so quorum recomputation sees a consistent
// snapshot.
func (s *workflowServiceImpl) lockStep(ctx context.Context, tenantID, stepID string) (*entity.WorkflowStep, *entity.WorkflowInstance, func(), error) {
	step, err := s.stepRepo.GetByID(ctx, stepID)
	if err != nil {
		return nil, nil, nil, err
	}

	release := s.locks.acquire(step.InstanceID)

	instance, err := s.instanceRepo.GetByID(ctx, tenantID, step.InstanceID)
	if err != nil {
		release()
		return nil, nil, nil, err
	}
	step, err = s.stepRepo.GetByID(ctx, stepID)
	if err != nil {
		release()
		return nil, nil, nil, err
	}

	return step, instance, release, nil
}

// settleStep writes a terminal step status and either cancels the instance
// (blocking rejection) or advances past the group when it is finished.
func (s *workflowServiceImpl) settleStep(txCtx context.Context, instance *entity.WorkflowInstance, step *entity.WorkflowStep, newStatus string) ([]*event.Event, error) {
	now := s.clock.Now()
	if err := s.stepRepo.UpdateStatus(txCtx, step.ID, newStatus, now); err != nil {
		return nil, fmt.Errorf("update step status: %w", err)
	}
	step.Status = newStatus
	step.CompletedAt = &now

	events := []*event.Event{
		event.NewEvent(event.TypeStepCompleted, instance.TenantID, instance.ID, map[string]any{
			"status": newStatus,
		}).WithStep(step.ID),
	}

	if newStatus == entity.StepStatusRejected && !step.NonBlocking {
		steps, err := s.stepRepo.GetByInstanceID(txCtx, instance.ID)
		if err != nil {
			return nil, err
		}
		cancelled, err := s.cancelLocked(txCtx, instance, steps, fmt.Sprintf("step %q rejected", step.Name))
		if err != nil {
			return nil, err
		}
		return append(events, cancelled...), nil
	}

	steps, err := s.stepRepo.GetByInstanceID(txCtx, instance.ID)
	if err != nil {
		return nil, err
	}
	for _, sibling := range steps {
		if sibling.StepOrder == instance.CurrentStepOrder && !sibling.IsTerminal() {
			// Parallel group still has open steps; hold position.
			return events, nil
		}
	}

	advanced, err := s.advanceLocked(txCtx, instance, steps)
	if err != nil {
		return nil, err
	}
	return append(events, advanced...), nil
}

// advanceLocked moves to the next step order or completes the instance.
// Caller holds the instance lock and an open transaction.
func (s *workflowServiceImpl) advanceLocked(txCtx context.Context, instance *entity.WorkflowInstance, steps []*entity.WorkflowStep) ([]*event.Event, error) {
	next, ok := nextStepOrder(steps, instance.CurrentStepOrder)
	if !ok {
		return s.completeLocked(txCtx, instance)
	}

	events, err := s.progress(txCtx, instance, steps, next)
	if err != nil {
		return nil, err
	}
	return append([]*event.Event{
		event.NewEvent(event.TypeInstanceAdvanced, instance.TenantID, instance.ID, map[string]any{
			"step_order": next,
		}),
	}, events...), nil
}

// progress activates the group at the given order, auto-completing
// NOTIFICATION steps and cascading past fully self-completing groups until a
// group stays open or the instance completes.
func (s *workflowServiceImpl) progress(txCtx context.Context, instance *entity.WorkflowInstance, steps []*entity.WorkflowStep, order int) ([]*event.Event, error) {
	var events []*event.Event

	for {
		now := s.clock.Now()
		open := 0
		for _, step := range steps {
			if step.StepOrder != order || step.Status != entity.StepStatusPending {
				continue
			}

			if err := s.stepRepo.UpdateStatus(txCtx, step.ID, entity.StepStatusInProgress, now); err != nil {
				return nil, fmt.Errorf("activate step: %w", err)
			}
			step.Status = entity.StepStatusInProgress
			step.ActivatedAt = &now
			events = append(events, event.NewEvent(event.TypeStepActivated, instance.TenantID, instance.ID, map[string]any{
				"step_order": order,
			}).WithStep(step.ID))

			// Notification steps have no external completer; they fire and finish.
			if step.StepType == entity.StepTypeNotification {
				if err := s.stepRepo.UpdateStatus(txCtx, step.ID, entity.StepStatusApproved, now); err != nil {
					return nil, err
				}
				step.Status = entity.StepStatusApproved
				step.CompletedAt = &now
				events = append(events, event.NewEvent(event.TypeStepCompleted, instance.TenantID, instance.ID, map[string]any{
					"status": entity.StepStatusApproved,
				}).WithStep(step.ID))
				continue
			}
			open++
		}

		instance.CurrentStepOrder = order
		instance.Status = entity.InstanceStatusInProgress
		instance.UpdatedAt = now
		if err := s.instanceRepo.Update(txCtx, instance); err != nil {
			return nil, fmt.Errorf("update instance: %w", err)
		}

		if open > 0 {
			return events, nil
		}

		nextOrder, ok := nextStepOrder(steps, order)
		if !ok {
			completed, err := s.completeLocked(txCtx, instance)
			if err != nil {
				return nil, err
			}
			return append(events, completed...), nil
		}
		order = nextOrder
	}
}

// completeLocked marks the instance COMPLETED through the lifecycle machine.
func (s *workflowServiceImpl) completeLocked(txCtx context.Context, instance *entity.WorkflowInstance) ([]*event.Event, error) {
	machine := domainwf.BuildInstanceLifecycle(domainwf.State(instance.Status))
	if err := machine.Fire(txCtx, domainwf.TriggerComplete); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	instance.Status = machine.State().String()
	instance.CompletedAt = &now
	instance.UpdatedAt = now
	if err := s.instanceRepo.Update(txCtx, instance); err != nil {
		return nil, fmt.Errorf("complete instance: %w", err)
	}

	return []*event.Event{
		event.NewEvent(event.TypeInstanceCompleted, instance.TenantID, instance.ID, nil),
	}, nil
}

// cancelLocked marks the instance CANCELLED and skips all open steps.
func (s *workflowServiceImpl) cancelLocked(txCtx context.Context, instance *entity.WorkflowInstance, steps []*entity.WorkflowStep, reason string) ([]*event.Event, error) {
	machine := domainwf.BuildInstanceLifecycle(domainwf.State(instance.Status))
	if err := machine.Fire(txCtx, domainwf.TriggerCancel); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	for _, step := range steps {
		if step.IsTerminal() {
			continue
		}
		if err := s.stepRepo.UpdateStatus(txCtx, step.ID, entity.StepStatusSkipped, now); err != nil {
			return nil, fmt.Errorf("skip step: %w", err)
		}
		step.Status = entity.StepStatusSkipped
	}

	instance.Status = machine.State().String()
	instance.CancelReason = reason
	instance.UpdatedAt = now
	if err := s.instanceRepo.Update(txCtx, instance); err != nil {
		return nil, fmt.Errorf("cancel instance: %w", err)
	}

	return []*event.Event{
		event.NewEvent(event.TypeInstanceCancelled, instance.TenantID, instance.ID, map[string]any{
			"reason": reason,
		}),
	}, nil
}

// resolveApprovalStatus applies the quorum rules to a step's tally.
func resolveApprovalStatus(step *entity.WorkflowStep, tally *entity.ApprovalTally) string {
	if step.RequiresAllApprovers {
		// A single rejection settles the step without waiting for the rest.
		if tally.Rejected > 0 {
			return entity.StepStatusRejected
		}
		if tally.Total > 0 && tally.Decided == tally.Total {
			return entity.StepStatusApproved
		}
		return entity.StepStatusInProgress
	}

	if tally.Approved >= step.ApprovalsRequired {
		return entity.StepStatusApproved
	}
	// Rejections never count toward quorum; the step fails once they make
	// reaching quorum impossible.
	if tally.Total-tally.Rejected < step.ApprovalsRequired {
		return entity.StepStatusRejected
	}
	return entity.StepStatusInProgress
}

// nextStepOrder returns the smallest step order greater than current.
func nextStepOrder(steps []*entity.WorkflowStep, current int) (int, bool) {
	next := 0
	found := false
	for _, step := range steps {
		if step.StepOrder <= current {
			continue
		}
		if !found || step.StepOrder < next {
			next = step.StepOrder
			found = true
		}
	}
	return next, found
}

func (s *workflowServiceImpl) emit(ctx context.Context, events []*event.Event) {
	if s.dispatcher == nil {
		return
	}
	for _, evt := range events {
		s.dispatcher.DispatchAsync(ctx, evt)
	}
}

var _ WorkflowService = (*workflowServiceImpl)(nil)
