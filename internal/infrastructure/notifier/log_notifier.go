// Package notifier holds the outbound gateways the workflow runtime talks
// to: notification delivery and role resolution.
package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/crmkit/workflow-engine/internal/application/port"
)

// LogNotifier writes notifications to the structured log. It stands in for a
// real delivery channel until one is wired per deployment.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements port.NotifierGateway
func (n *LogNotifier) Notify(ctx context.Context, notification port.Notification) error {
	n.logger.Info("Workflow notification",
		zap.String("kind", notification.Kind),
		zap.String("tenant_id", notification.TenantID),
		zap.String("instance_id", notification.InstanceID),
		zap.String("step_id", notification.StepID),
		zap.Any("data", notification.Data),
	)
	return nil
}

// Verify interface compliance
var _ port.NotifierGateway = (*LogNotifier)(nil)
