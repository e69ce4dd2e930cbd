package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/support-assistant/internal/events"
	"github.com/spec-kit/support-assistant/internal/observability"
)

// NotificationService turns domain events into an audit log and telemetry
// counters. The chat-facing notifications themselves are sent inline by the
// owning services; this subscriber is the cross-cutting record of them.
type NotificationService struct {
	dispatcher events.Dispatcher
	telemetry  *observability.Telemetry
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, telemetry *observability.Telemetry, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		telemetry:  telemetry,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.logEvent)
	n.dispatcher.Subscribe(events.EventQnaPairAdded, n.logEvent)
	n.dispatcher.Subscribe(events.EventQnaPairUpdated, n.logEvent)
	n.dispatcher.Subscribe(events.EventQnaPairDeleted, n.logEvent)
	n.dispatcher.Subscribe(events.EventBatchCompleted, n.logEvent)
}

func (n *NotificationService) logEvent(ctx context.Context, event events.Event) error {
	n.logger.Info("domain event",
		zap.String("event_type", string(event.Type)),
		zap.String("actor", event.Actor.UserID),
		zap.Any("payload", event.Payload))
	n.telemetry.TrackEvent(string(event.Type), 1, 0)
	return nil
}
