package port

import (
	"context"
	"time"
)

// ClockSource supplies the current time; injected so tests are deterministic.
type ClockSource interface {
	Now() time.Time
}

// Notification kinds delivered through the NotifierGateway.
const (
	NotifyStepActivated     = "step.activated"
	NotifyStepCompleted     = "step.completed"
	NotifyInstanceCompleted = "instance.completed"
	NotifyInstanceCancelled = "instance.cancelled"
)

// Notification is the payload handed to the NotifierGateway.
type Notification struct {
	Kind       string
	TenantID   string
	InstanceID string
	StepID     string
	Data       map[string]any
}

// NotifierGateway delivers workflow notifications. Delivery is best-effort:
// a failure is logged by the caller and never rolls back the workflow
// mutation that produced it.
type NotifierGateway interface {
	Notify(ctx context.Context, n Notification) error
}

// RoleResolver returns the role identifiers of a user, used by the transition
// evaluator's allowed-roles check.
type RoleResolver interface {
	ResolveRoles(ctx context.Context, tenantID, userID string) ([]string, error)
}

// SystemClock is the production ClockSource.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

var _ ClockSource = SystemClock{}
