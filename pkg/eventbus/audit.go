package eventbus

import (
	"context"
	"log/slog"

	"github.com/mbellotti/exitflow/pkg/events"
)

var lifecycleEventTypes = []events.EventType{
	events.LeaseExitCreatedEvent,
	events.LeaseExitReadyEvent,
	events.LeaseExitReviewNeededEvent,
	events.FormSubmittedEvent,
	events.ApprovalChainCreatedEvent,
	events.ApprovalDecidedEvent,
	events.NotificationDispatchedEvent,
}

// RegisterAuditLog subscribes a logging handler to every lifecycle event
// type, giving each deployment an audit trail of what the workflow did.
// The caller still has to start the subscription with Subscribe.
func RegisterAuditLog(subscriber EventSubscriber, logger *slog.Logger) error {
	auditLogger := logger.With("module", "event_audit")

	handler := func(ctx context.Context, event interface{}) error {
		typed, ok := event.(Event)
		if !ok {
			return nil
		}

		auditLogger.InfoContext(ctx, "Lifecycle event", "event_type", typed.GetType(), "event", event)

		return nil
	}

	for _, eventType := range lifecycleEventTypes {
		err := subscriber.Handle(eventType, handler)
		if err != nil {
			return err
		}
	}

	return nil
}
