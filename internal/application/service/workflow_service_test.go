package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmkit/workflow-engine/internal/application/evaluator"
	"github.com/crmkit/workflow-engine/internal/application/port"
	"github.com/crmkit/workflow-engine/internal/domain/definition"
	"github.com/crmkit/workflow-engine/internal/domain/entity"
)

const (
	testTenant   = "acme"
	testCaseType = "deal"
)

type testEnv struct {
	defs      *memDefinitionRepo
	instances *memInstanceRepo
	steps     *memStepRepo
	approvals *memApprovalRepo
	history   *memHistoryRepo
	clock     *fakeClock
	svc       WorkflowService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := &mockLogger{}
	env := &testEnv{
		defs:      newMemDefinitionRepo(),
		instances: newMemInstanceRepo(),
		steps:     newMemStepRepo(),
		history:   newMemHistoryRepo(),
		clock:     newFakeClock(),
	}
	env.approvals = newMemApprovalRepo(env.steps, env.instances)

	roles := &staticRoleResolver{roles: map[string][]string{
		"user-legal": {"legal"},
		"user-sales": {"sales"},
	}}

	env.svc = NewWorkflowService(
		env.defs,
		env.instances,
		env.steps,
		env.approvals,
		env.history,
		&mockTxManager{},
		evaluator.New(logger),
		roles,
		env.clock,
		logger,
	)

	def := &definition.WorkflowDefinition{
		ID:       "def-1",
		TenantID: testTenant,
		CaseType: testCaseType,
		Version:  1,
		Status:   definition.StatusPublished,
		Active:   true,
		States: []definition.State{
			{Code: "DRAFT", Name: "Draft", IsInitial: true},
			{Code: "REVIEW", Name: "In Review"},
			{Code: "SIGNED", Name: "Signed", IsFinal: true},
		},
		Rules: []definition.TransitionRule{
			{
				ID:             "rule-1",
				FromState:      "DRAFT",
				ToState:        "REVIEW",
				RequiredFields: []string{"documentId"},
				AllowedRoles:   []string{"legal"},
				Priority:       10,
				IsActive:       true,
			},
			{
				ID:        "rule-2",
				FromState: "REVIEW",
				ToState:   "SIGNED",
				Priority:  10,
				IsActive:  true,
			},
		},
	}
	require.NoError(t, env.defs.Create(context.Background(), def))

	return env
}

func approvalStep(name string, order int, required int, approvers ...string) StepSpec {
	return StepSpec{
		Name:              name,
		StepOrder:         order,
		StepType:          entity.StepTypeApproval,
		ApprovalsRequired: required,
		Approvers:         approvers,
	}
}

func (env *testEnv) mustCreate(t *testing.T, specs ...StepSpec) *entity.WorkflowInstance {
	t.Helper()
	instance, err := env.svc.CreateInstance(context.Background(), testTenant, testCaseType, "entity-1", specs)
	require.NoError(t, err)
	return instance
}

func (env *testEnv) mustStart(t *testing.T, specs ...StepSpec) *entity.WorkflowInstance {
	t.Helper()
	instance := env.mustCreate(t, specs...)
	require.NoError(t, env.svc.Start(context.Background(), testTenant, instance.ID))
	return instance
}

func (env *testEnv) stepsOf(t *testing.T, instanceID string) []*entity.WorkflowStep {
	t.Helper()
	steps, err := env.steps.GetByInstanceID(context.Background(), instanceID)
	require.NoError(t, err)
	return steps
}

func (env *testEnv) instanceOf(t *testing.T, instanceID string) *entity.WorkflowInstance {
	t.Helper()
	instance, err := env.instances.GetByID(context.Background(), testTenant, instanceID)
	require.NoError(t, err)
	return instance
}

func TestWorkflowService_CreateInstance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustCreate(t,
		approvalStep("manager approval", 1, 1, "alice"),
		StepSpec{Name: "notify legal", StepOrder: 2, StepType: entity.StepTypeNotification},
	)

	assert.Equal(t, entity.InstanceStatusDraft, instance.Status)
	assert.Equal(t, "DRAFT", instance.CurrentState)

	steps := env.stepsOf(t, instance.ID)
	require.Len(t, steps, 2)
	assert.Equal(t, entity.StepStatusPending, steps[0].Status)

	records, err := env.approvals.GetByStepID(ctx, steps[0].ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, entity.DecisionPending, records[0].Decision)
}

func TestWorkflowService_CreateInstance_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		specs []StepSpec
	}{
		{"no steps", nil},
		{"approval without approvers", []StepSpec{{Name: "a", StepOrder: 1, StepType: entity.StepTypeApproval}}},
		{"quorum above approver count", []StepSpec{approvalStep("a", 1, 3, "alice", "bob")}},
		{"duplicate approver", []StepSpec{approvalStep("a", 1, 1, "alice", "alice")}},
		{"unknown step type", []StepSpec{{Name: "a", StepOrder: 1, StepType: "MAGIC"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.CreateInstance(ctx, testTenant, testCaseType, "entity-1", tt.specs)
			assert.Error(t, err)
		})
	}

	_, err := env.svc.CreateInstance(ctx, testTenant, "unknown-case", "entity-1", []StepSpec{approvalStep("a", 1, 1, "alice")})
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestWorkflowService_CreateInstance_RequiresAllOverridesQuorum(t *testing.T) {
	env := newTestEnv(t)

	instance := env.mustCreate(t, StepSpec{
		Name:                 "board approval",
		StepOrder:            1,
		StepType:             entity.StepTypeApproval,
		RequiresAllApprovers: true,
		ApprovalsRequired:    1,
		Approvers:            []string{"alice", "bob", "carol"},
	})

	steps := env.stepsOf(t, instance.ID)
	assert.Equal(t, 3, steps[0].ApprovalsRequired)
}

func TestWorkflowService_Start(t *testing.T) {
	env := newTestEnv(t)

	instance := env.mustStart(t,
		approvalStep("first", 1, 1, "alice"),
		approvalStep("second", 2, 1, "bob"),
	)

	got := env.instanceOf(t, instance.ID)
	assert.Equal(t, entity.InstanceStatusInProgress, got.Status)
	assert.Equal(t, 1, got.CurrentStepOrder)

	steps := env.stepsOf(t, instance.ID)
	assert.Equal(t, entity.StepStatusInProgress, steps[0].Status)
	assert.Equal(t, entity.StepStatusPending, steps[1].Status)

	err := env.svc.Start(context.Background(), testTenant, instance.ID)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestWorkflowService_Start_NotificationOnlyCompletes(t *testing.T) {
	env := newTestEnv(t)

	instance := env.mustStart(t,
		StepSpec{Name: "notify one", StepOrder: 1, StepType: entity.StepTypeNotification},
		StepSpec{Name: "notify two", StepOrder: 2, StepType: entity.StepTypeNotification},
	)

	got := env.instanceOf(t, instance.ID)
	assert.Equal(t, entity.InstanceStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	for _, step := range env.stepsOf(t, instance.ID) {
		assert.Equal(t, entity.StepStatusApproved, step.Status)
	}
}

func TestWorkflowService_QuorumApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustStart(t, approvalStep("two of three", 1, 2, "alice", "bob", "carol"))
	steps := env.stepsOf(t, instance.ID)
	stepID := steps[0].ID

	outcome, err := env.svc.RecordApprovalDecision(ctx, testTenant, stepID, "alice", entity.DecisionApproved, "ok")
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusInProgress, outcome.StepStatus)
	assert.Equal(t, 1, outcome.Tally.Approved)

	outcome, err = env.svc.RecordApprovalDecision(ctx, testTenant, stepID, "bob", entity.DecisionApproved, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusApproved, outcome.StepStatus)
	assert.Equal(t, entity.InstanceStatusCompleted, outcome.InstanceStatus)

	// Carol's seat stays pending but the step is settled.
	got := env.instanceOf(t, instance.ID)
	assert.Equal(t, entity.InstanceStatusCompleted, got.Status)
	assert.Equal(t, 2, env.stepsOf(t, instance.ID)[0].ApprovalsReceived)
}

func TestWorkflowService_RequiresAllRejectionShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustStart(t,
		StepSpec{
			Name:                 "unanimous",
			StepOrder:            1,
			StepType:             entity.StepTypeApproval,
			RequiresAllApprovers: true,
			Approvers:            []string{"alice", "bob"},
		},
		approvalStep("later", 2, 1, "carol"),
	)
	steps := env.stepsOf(t, instance.ID)

	outcome, err := env.svc.RecordApprovalDecision(ctx, testTenant, steps[0].ID, "alice", entity.DecisionRejected, "no")
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusRejected, outcome.StepStatus)
	assert.Equal(t, entity.InstanceStatusCancelled, outcome.InstanceStatus)

	steps = env.stepsOf(t, instance.ID)
	assert.Equal(t, entity.StepStatusSkipped, steps[1].Status)
	assert.Equal(t, entity.InstanceStatusCancelled, env.instanceOf(t, instance.ID).Status)
}

func TestWorkflowService_ImpossibleQuorumRejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustStart(t, approvalStep("two of three", 1, 2, "alice", "bob", "carol"))
	stepID := env.stepsOf(t, instance.ID)[0].ID

	outcome, err := env.svc.RecordApprovalDecision(ctx, testTenant, stepID, "alice", entity.DecisionRejected, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusInProgress, outcome.StepStatus)

	// Second rejection leaves only one possible approval against a quorum of two.
	outcome, err = env.svc.RecordApprovalDecision(ctx, testTenant, stepID, "bob", entity.DecisionRejected, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusRejected, outcome.StepStatus)
	assert.Equal(t, entity.InstanceStatusCancelled, outcome.InstanceStatus)
}

func TestWorkflowService_NonBlockingRejectionAdvances(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustStart(t,
		StepSpec{
			Name:              "advisory",
			StepOrder:         1,
			StepType:          entity.StepTypeApproval,
			ApprovalsRequired: 1,
			NonBlocking:       true,
			Approvers:         []string{"alice"},
		},
		approvalStep("binding", 2, 1, "bob"),
	)
	steps := env.stepsOf(t, instance.ID)

	outcome, err := env.svc.RecordApprovalDecision(ctx, testTenant, steps[0].ID, "alice", entity.DecisionRejected, "concerns")
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusRejected, outcome.StepStatus)
	assert.Equal(t, entity.InstanceStatusInProgress, outcome.InstanceStatus)

	got := env.instanceOf(t, instance.ID)
	assert.Equal(t, 2, got.CurrentStepOrder)
	assert.Equal(t, entity.StepStatusInProgress, env.stepsOf(t, instance.ID)[1].Status)
}

func TestWorkflowService_ParallelGroupWaitsForAllSteps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustStart(t,
		StepSpec{Name: "finance", StepOrder: 1, StepType: entity.StepTypeApproval, IsParallel: true, ApprovalsRequired: 1, Approvers: []string{"alice"}},
		StepSpec{Name: "legal", StepOrder: 1, StepType: entity.StepTypeApproval, IsParallel: true, ApprovalsRequired: 1, Approvers: []string{"bob"}},
		approvalStep("final", 2, 1, "carol"),
	)
	steps := env.stepsOf(t, instance.ID)
	require.Len(t, steps, 3)
	assert.Equal(t, entity.StepStatusInProgress, steps[0].Status)
	assert.Equal(t, entity.StepStatusInProgress, steps[1].Status)

	_, err := env.svc.RecordApprovalDecision(ctx, testTenant, steps[0].ID, "alice", entity.DecisionApproved, "")
	require.NoError(t, err)

	// Sibling still open, group holds.
	got := env.instanceOf(t, instance.ID)
	assert.Equal(t, 1, got.CurrentStepOrder)
	assert.Equal(t, entity.StepStatusPending, env.stepsOf(t, instance.ID)[2].Status)

	_, err = env.svc.RecordApprovalDecision(ctx, testTenant, steps[1].ID, "bob", entity.DecisionApproved, "")
	require.NoError(t, err)

	got = env.instanceOf(t, instance.ID)
	assert.Equal(t, 2, got.CurrentStepOrder)
	assert.Equal(t, entity.StepStatusInProgress, env.stepsOf(t, instance.ID)[2].Status)
}

func TestWorkflowService_VoteErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustStart(t, approvalStep("solo", 1, 1, "alice", "bob"))
	stepID := env.stepsOf(t, instance.ID)[0].ID

	_, err := env.svc.RecordApprovalDecision(ctx, testTenant, stepID, "alice", "MAYBE", "")
	assert.ErrorIs(t, err, ErrInvalidDecision)

	_, err = env.svc.RecordApprovalDecision(ctx, testTenant, stepID, "mallory", entity.DecisionApproved, "")
	assert.ErrorIs(t, err, ErrApproverNotAssigned)

	_, err = env.svc.RecordApprovalDecision(ctx, testTenant, stepID, "alice", entity.DecisionApproved, "")
	require.NoError(t, err)

	// The step settled at quorum one, so the second seat finds it closed.
	_, err = env.svc.RecordApprovalDecision(ctx, testTenant, stepID, "bob", entity.DecisionApproved, "")
	assert.ErrorIs(t, err, ErrInstanceTerminal)
}

func TestWorkflowService_DuplicateVote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustStart(t, approvalStep("pair", 1, 2, "alice", "bob"))
	stepID := env.stepsOf(t, instance.ID)[0].ID

	_, err := env.svc.RecordApprovalDecision(ctx, testTenant, stepID, "alice", entity.DecisionApproved, "")
	require.NoError(t, err)

	_, err = env.svc.RecordApprovalDecision(ctx, testTenant, stepID, "alice", entity.DecisionRejected, "changed my mind")
	assert.ErrorIs(t, err, port.ErrDuplicateVote)
}

func TestWorkflowService_CompleteStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustStart(t,
		StepSpec{Name: "sync crm", StepOrder: 1, StepType: entity.StepTypeAutomated},
		approvalStep("review", 2, 1, "alice"),
	)
	steps := env.stepsOf(t, instance.ID)

	err := env.svc.CompleteStep(ctx, testTenant, steps[1].ID, true)
	assert.ErrorIs(t, err, ErrStepTypeMismatch)

	require.NoError(t, env.svc.CompleteStep(ctx, testTenant, steps[0].ID, true))

	got := env.instanceOf(t, instance.ID)
	assert.Equal(t, 2, got.CurrentStepOrder)
	assert.Equal(t, entity.StepStatusApproved, env.stepsOf(t, instance.ID)[0].Status)
}

func TestWorkflowService_CompleteStep_FailureCancels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustStart(t,
		StepSpec{Name: "credit check", StepOrder: 1, StepType: entity.StepTypeConditional},
		approvalStep("review", 2, 1, "alice"),
	)
	steps := env.stepsOf(t, instance.ID)

	require.NoError(t, env.svc.CompleteStep(ctx, testTenant, steps[0].ID, false))

	got := env.instanceOf(t, instance.ID)
	assert.Equal(t, entity.InstanceStatusCancelled, got.Status)
	assert.Equal(t, entity.StepStatusSkipped, env.stepsOf(t, instance.ID)[1].Status)
}

func TestWorkflowService_Cancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustStart(t, approvalStep("review", 1, 1, "alice"))

	require.NoError(t, env.svc.Cancel(ctx, testTenant, instance.ID, "deal withdrawn"))
	got := env.instanceOf(t, instance.ID)
	assert.Equal(t, entity.InstanceStatusCancelled, got.Status)
	assert.Equal(t, "deal withdrawn", got.CancelReason)
	assert.Equal(t, entity.StepStatusSkipped, env.stepsOf(t, instance.ID)[0].Status)

	// Cancelling again is a no-op.
	require.NoError(t, env.svc.Cancel(ctx, testTenant, instance.ID, "again"))
	assert.Equal(t, "deal withdrawn", env.instanceOf(t, instance.ID).CancelReason)
}

func TestWorkflowService_CancelCompletedFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustStart(t, StepSpec{Name: "notify", StepOrder: 1, StepType: entity.StepTypeNotification})
	require.Equal(t, entity.InstanceStatusCompleted, env.instanceOf(t, instance.ID).Status)

	err := env.svc.Cancel(ctx, testTenant, instance.ID, "too late")
	assert.ErrorIs(t, err, ErrInstanceTerminal)
}

func TestWorkflowService_Advance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustCreate(t, approvalStep("review", 1, 1, "alice"))
	err := env.svc.Advance(ctx, testTenant, instance.ID)
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, env.svc.Start(ctx, testTenant, instance.ID))
	err = env.svc.Advance(ctx, testTenant, instance.ID)
	assert.ErrorIs(t, err, ErrStepsPending)
}

func TestWorkflowService_ResetStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustStart(t,
		approvalStep("panel", 1, 2, "alice", "bob", "carol"),
		approvalStep("later", 2, 1, "dave"),
	)
	steps := env.stepsOf(t, instance.ID)
	stepID := steps[0].ID

	_, err := env.svc.RecordApprovalDecision(ctx, testTenant, stepID, "alice", entity.DecisionApproved, "")
	require.NoError(t, err)

	require.NoError(t, env.svc.ResetStep(ctx, testTenant, stepID))

	step, err := env.steps.GetByID(ctx, stepID)
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusInProgress, step.Status)
	assert.Equal(t, 0, step.ApprovalsReceived)

	// Alice can vote again after the reset. One rejection out of three
	// still leaves the quorum reachable, so nothing settles.
	outcome, err := env.svc.RecordApprovalDecision(ctx, testTenant, stepID, "alice", entity.DecisionRejected, "")
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Tally.Rejected)
	assert.Equal(t, entity.StepStatusInProgress, outcome.StepStatus)
	assert.Equal(t, entity.InstanceStatusInProgress, outcome.InstanceStatus)

	// Steps outside the current group cannot be reset.
	err = env.svc.ResetStep(ctx, testTenant, steps[1].ID)
	assert.ErrorIs(t, err, ErrStepNotResettable)
}

func TestWorkflowService_RequestTransition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance := env.mustStart(t, approvalStep("review", 1, 1, "alice"))

	decision, err := env.svc.RequestTransition(ctx, testTenant, instance.ID, "REVIEW", "user-legal", map[string]any{})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	require.Len(t, decision.Issues, 1)
	assert.Equal(t, "missingField(documentId)", decision.Issues[0].String())

	// The denied attempt still lands in the history.
	entries, err := env.history.ListByInstanceID(ctx, instance.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Allowed)
	assert.Equal(t, "user-legal", entries[0].ActorID)

	decision, err = env.svc.RequestTransition(ctx, testTenant, instance.ID, "REVIEW", "user-legal", map[string]any{"documentId": "doc-9"})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, "REVIEW", env.instanceOf(t, instance.ID).CurrentState)

	// Role gate: sales may not sign.
	decision, err = env.svc.RequestTransition(ctx, testTenant, instance.ID, "DRAFT", "user-sales", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	entries, err = env.history.ListByInstanceID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestWorkflowService_ConcurrentVotes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	approvers := make([]string, 10)
	for i := range approvers {
		approvers[i] = fmt.Sprintf("approver-%d", i)
	}
	instance := env.mustStart(t, StepSpec{
		Name:                 "everyone",
		StepOrder:            1,
		StepType:             entity.StepTypeApproval,
		RequiresAllApprovers: true,
		Approvers:            approvers,
	})
	stepID := env.stepsOf(t, instance.ID)[0].ID

	var wg sync.WaitGroup
	errs := make([]error, len(approvers))
	for i, approver := range approvers {
		wg.Add(1)
		go func(i int, approver string) {
			defer wg.Done()
			_, errs[i] = env.svc.RecordApprovalDecision(ctx, testTenant, stepID, approver, entity.DecisionApproved, "")
		}(i, approver)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "approver %d", i)
	}

	step, err := env.steps.GetByID(ctx, stepID)
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusApproved, step.Status)
	assert.Equal(t, len(approvers), step.ApprovalsReceived)
	assert.Equal(t, entity.InstanceStatusCompleted, env.instanceOf(t, instance.ID).Status)
}

func TestResolveApprovalStatus(t *testing.T) {
	tests := []struct {
		name  string
		step  entity.WorkflowStep
		tally entity.ApprovalTally
		want  string
	}{
		{
			name:  "quorum reached",
			step:  entity.WorkflowStep{ApprovalsRequired: 2},
			tally: entity.ApprovalTally{Total: 3, Decided: 2, Approved: 2},
			want:  entity.StepStatusApproved,
		},
		{
			name:  "quorum still reachable",
			step:  entity.WorkflowStep{ApprovalsRequired: 2},
			tally: entity.ApprovalTally{Total: 3, Decided: 1, Rejected: 1},
			want:  entity.StepStatusInProgress,
		},
		{
			name:  "quorum impossible",
			step:  entity.WorkflowStep{ApprovalsRequired: 2},
			tally: entity.ApprovalTally{Total: 3, Decided: 2, Rejected: 2},
			want:  entity.StepStatusRejected,
		},
		{
			name:  "requires all, partial approvals",
			step:  entity.WorkflowStep{RequiresAllApprovers: true, ApprovalsRequired: 3},
			tally: entity.ApprovalTally{Total: 3, Decided: 2, Approved: 2},
			want:  entity.StepStatusInProgress,
		},
		{
			name:  "requires all, unanimous",
			step:  entity.WorkflowStep{RequiresAllApprovers: true, ApprovalsRequired: 3},
			tally: entity.ApprovalTally{Total: 3, Decided: 3, Approved: 3},
			want:  entity.StepStatusApproved,
		},
		{
			name:  "requires all, single rejection",
			step:  entity.WorkflowStep{RequiresAllApprovers: true, ApprovalsRequired: 3},
			tally: entity.ApprovalTally{Total: 3, Decided: 1, Rejected: 1},
			want:  entity.StepStatusRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveApprovalStatus(&tt.step, &tt.tally)
			assert.Equal(t, tt.want, got)
		})
	}
}
