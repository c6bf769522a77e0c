package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEventGeneratesIdentity(t *testing.T) {
	evt := NewEvent(TypeInstanceStarted, "tenant-1", "inst-1", map[string]any{"actor": "u-1"})

	assert.NotEmpty(t, evt.ID)
	assert.NotEmpty(t, evt.CorrelationID)
	assert.False(t, evt.Timestamp.IsZero())
	assert.Equal(t, "tenant-1", evt.TenantID)
	assert.Equal(t, "inst-1", evt.InstanceID)

	other := NewEvent(TypeInstanceStarted, "tenant-1", "inst-1", nil)
	assert.NotEqual(t, evt.ID, other.ID)
}

func TestWithPayloadIsImmutable(t *testing.T) {
	evt := NewEvent(TypeVoteRecorded, "tenant-1", "inst-1", map[string]any{"decision": "APPROVED"})

	extended := evt.WithPayload("approver", "u-9")

	assert.Equal(t, "u-9", extended.GetPayloadString("approver"))
	assert.Empty(t, evt.GetPayloadString("approver"))
	assert.Equal(t, "APPROVED", extended.GetPayloadString("decision"))
}

func TestWithStepScopesEvent(t *testing.T) {
	evt := NewEvent(TypeStepActivated, "tenant-1", "inst-1", nil)

	scoped := evt.WithStep("step-3")

	assert.Equal(t, "step-3", scoped.StepID)
	assert.Empty(t, evt.StepID)
	assert.Equal(t, evt.ID, scoped.ID)
}

func TestTypeValidity(t *testing.T) {
	assert.True(t, TypeInstanceCompleted.IsValid())
	assert.True(t, TypeTransitionEvaluated.IsValid())
	assert.False(t, Type("instance.reopened").IsValid())
}
