package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/events"
)

// NotificationService writes an audit log line for ticket lifecycle events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketForwarded, n.handleTicketForwarded)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.Int64("ticket_id", event.TicketID),
	}
	if payload, ok := event.Payload.(events.TicketCreatedPayload); ok {
		fields = append(fields,
			zap.String("category", string(payload.Ticket.Category)),
			zap.String("priority", string(payload.Ticket.Priority)))
	}
	n.logger.Info("TicketCreated", fields...)
	return nil
}

func (n *NotificationService) handleTicketForwarded(ctx context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.Int64("ticket_id", event.TicketID),
	}
	if payload, ok := event.Payload.(events.TicketForwardedPayload); ok {
		fields = append(fields, zap.String("outcome", payload.Outcome))
		if payload.RemoteID != "" {
			fields = append(fields, zap.String("remote_id", payload.RemoteID))
		}
	}
	n.logger.Info("TicketForwarded", fields...)
	return nil
}
