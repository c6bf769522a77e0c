package notifier

import (
	"context"

	"github.com/crmkit/workflow-engine/internal/application/dispatcher"
	"github.com/crmkit/workflow-engine/internal/application/port"
	"github.com/crmkit/workflow-engine/internal/domain/event"
)

// eventKinds maps dispatched event types to notification kinds. Event types
// without an entry are not delivered.
var eventKinds = map[event.Type]string{
	event.TypeStepActivated:     port.NotifyStepActivated,
	event.TypeStepCompleted:     port.NotifyStepCompleted,
	event.TypeInstanceCompleted: port.NotifyInstanceCompleted,
	event.TypeInstanceCancelled: port.NotifyInstanceCancelled,
}

// Subscribe registers the notification bridge on the dispatcher, forwarding
// the notification-worthy workflow events to the gateway.
func Subscribe(d dispatcher.Dispatcher, gateway port.NotifierGateway) {
	for eventType, kind := range eventKinds {
		kind := kind
		d.SubscribeNamed(eventType, "notifier-bridge", func(ctx context.Context, evt *event.Event) error {
			return gateway.Notify(ctx, port.Notification{
				Kind:       kind,
				TenantID:   evt.TenantID,
				InstanceID: evt.InstanceID,
				StepID:     evt.StepID,
				Data:       evt.Payload,
			})
		})
	}
}
