package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmkit/workflow-engine/internal/domain/definition"
)

func newDefinitionService(repo *memDefinitionRepo) DefinitionService {
	return NewDefinitionService(repo, &mockTxManager{}, newFakeClock(), &mockLogger{})
}

func validStates() []definition.State {
	return []definition.State{
		{Code: "DRAFT", Name: "Draft", IsInitial: true},
		{Code: "SIGNED", Name: "Signed", IsFinal: true},
	}
}

func validRules() []definition.TransitionRule {
	return []definition.TransitionRule{
		{FromState: "DRAFT", ToState: "SIGNED", Priority: 10, IsActive: true},
	}
}

func TestDefinitionService_CreateDraft(t *testing.T) {
	repo := newMemDefinitionRepo()
	svc := newDefinitionService(repo)
	ctx := context.Background()

	def, err := svc.CreateDraft(ctx, testTenant, testCaseType, validStates(), validRules())
	require.NoError(t, err)
	assert.Equal(t, 1, def.Version)
	assert.Equal(t, definition.StatusDraft, def.Status)
	assert.False(t, def.Active)
	assert.Empty(t, def.ParentVersionID)
	for _, rule := range def.Rules {
		assert.NotEmpty(t, rule.ID)
	}

	next, err := svc.CreateDraft(ctx, testTenant, testCaseType, validStates(), validRules())
	require.NoError(t, err)
	assert.Equal(t, 2, next.Version)
	assert.Equal(t, def.ID, next.ParentVersionID)
}

func TestDefinitionService_CreateDraft_StructurallyInvalidIsStillADraft(t *testing.T) {
	repo := newMemDefinitionRepo()
	svc := newDefinitionService(repo)
	ctx := context.Background()

	// Drafts may be saved half-finished; validation bites at publish time.
	states := []definition.State{{Code: "DRAFT", Name: "Draft", IsInitial: true}}
	rules := []definition.TransitionRule{{FromState: "DRAFT", ToState: "NOWHERE", IsActive: true}}

	def, err := svc.CreateDraft(ctx, testTenant, testCaseType, states, rules)
	require.NoError(t, err)

	_, err = svc.Publish(ctx, testTenant, def.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, definition.ErrInvalidDefinition)

	var invalid *InvalidDefinitionError
	require.True(t, errors.As(err, &invalid))
	assert.NotEmpty(t, invalid.Violations)
}

func TestDefinitionService_PublishDeactivatesPrevious(t *testing.T) {
	repo := newMemDefinitionRepo()
	svc := newDefinitionService(repo)
	ctx := context.Background()

	v1, err := svc.CreateDraft(ctx, testTenant, testCaseType, validStates(), validRules())
	require.NoError(t, err)
	published, err := svc.Publish(ctx, testTenant, v1.ID)
	require.NoError(t, err)
	assert.True(t, published.Active)
	require.NotNil(t, published.PublishedAt)

	v2, err := svc.CreateDraft(ctx, testTenant, testCaseType, validStates(), validRules())
	require.NoError(t, err)
	_, err = svc.Publish(ctx, testTenant, v2.ID)
	require.NoError(t, err)

	active, err := svc.GetActive(ctx, testTenant, testCaseType)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, active.ID)
	assert.Equal(t, 2, active.Version)

	previous, err := repo.GetByID(ctx, testTenant, v1.ID)
	require.NoError(t, err)
	assert.False(t, previous.Active)
}

func TestDefinitionService_PublishTwice(t *testing.T) {
	repo := newMemDefinitionRepo()
	svc := newDefinitionService(repo)
	ctx := context.Background()

	def, err := svc.CreateDraft(ctx, testTenant, testCaseType, validStates(), validRules())
	require.NoError(t, err)
	_, err = svc.Publish(ctx, testTenant, def.ID)
	require.NoError(t, err)

	_, err = svc.Publish(ctx, testTenant, def.ID)
	assert.ErrorIs(t, err, definition.ErrAlreadyPublished)
}

func TestDefinitionService_VersionHistory(t *testing.T) {
	repo := newMemDefinitionRepo()
	svc := newDefinitionService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateDraft(ctx, testTenant, testCaseType, validStates(), validRules())
		require.NoError(t, err)
	}

	history, err := svc.GetVersionHistory(ctx, testTenant, testCaseType)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 3, history[0].Version)
	assert.Equal(t, 1, history[2].Version)
}
