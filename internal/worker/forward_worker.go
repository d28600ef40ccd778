package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/internal/integration/crm"
	"github.com/spec-kit/ticket-intake/internal/integration/oauth"
	"github.com/spec-kit/ticket-intake/internal/observability"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeSkipped = "skipped"
)

// RecordCreator forwards a stored ticket to the CRM.
type RecordCreator interface {
	Configured() bool
	CreateRecord(ctx context.Context, ticket *domain.Ticket) (string, error)
}

// RemoteIDWriter stores the CRM identifier on the local ticket.
type RemoteIDWriter interface {
	SetRemoteID(ctx context.Context, id int64, remoteID string) error
}

// ForwardWorker pushes newly created tickets to the CRM in the background.
type ForwardWorker struct {
	crm        RecordCreator
	tickets    RemoteIDWriter
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewForwardWorker constructs the worker. tickets and metrics may be nil.
func NewForwardWorker(crmClient RecordCreator, tickets RemoteIDWriter, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *ForwardWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ForwardWorker{
		crm:        crmClient,
		tickets:    tickets,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// Start subscribes the worker to ticket creation events.
func (w *ForwardWorker) Start() {
	if w.dispatcher == nil {
		return
	}
	w.dispatcher.Subscribe(events.EventTicketCreated, w.handleTicketCreated)
}

// Wait stops accepting new forwards and blocks until every in-flight forward
// has finished. Tickets created after Wait is called are not forwarded.
func (w *ForwardWorker) Wait() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *ForwardWorker) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	ticket := payload.Ticket

	if !w.crm.Configured() {
		w.logger.Info("crm not configured, skipping forward", zap.Int64("ticket_id", ticket.ID))
		w.metrics.RecordForward(outcomeSkipped)
		return nil
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn("forwarder draining, skipping forward", zap.Int64("ticket_id", ticket.ID))
		w.metrics.RecordForward(outcomeSkipped)
		return nil
	}
	w.wg.Add(1)
	w.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	go func() {
		defer w.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("panic while forwarding ticket", zap.Int64("ticket_id", ticket.ID), zap.Any("panic", r))
				w.metrics.RecordForward(outcomeFailure)
			}
		}()
		w.forward(detached, &ticket)
	}()
	return nil
}

func (w *ForwardWorker) forward(ctx context.Context, ticket *domain.Ticket) {
	start := time.Now()
	remoteID, err := w.crm.CreateRecord(ctx, ticket)
	if err != nil {
		w.metrics.RecordForward(outcomeFailure)
		fields := []zap.Field{
			zap.Int64("ticket_id", ticket.ID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		}
		var rejected *crm.RemoteRejectedError
		switch {
		case errors.Is(err, oauth.ErrAuthUnavailable):
			fields = append(fields, zap.String("reason", "auth_unavailable"))
		case errors.As(err, &rejected):
			fields = append(fields, zap.String("reason", "remote_rejected"), zap.Int("status", rejected.StatusCode))
		}
		w.logger.Warn("failed to forward ticket to crm", fields...)
		w.publish(ctx, ticket.ID, events.TicketForwardedPayload{Outcome: outcomeFailure})
		return
	}

	w.metrics.RecordForward(outcomeSuccess)
	w.logger.Info("ticket forwarded to crm",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("remote_id", remoteID),
		zap.Duration("elapsed", time.Since(start)))

	if remoteID != "" && w.tickets != nil {
		if err := w.tickets.SetRemoteID(ctx, ticket.ID, remoteID); err != nil {
			w.logger.Warn("failed to store crm record id", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	w.publish(ctx, ticket.ID, events.TicketForwardedPayload{RemoteID: remoteID, Outcome: outcomeSuccess})
}

func (w *ForwardWorker) publish(ctx context.Context, ticketID int64, payload events.TicketForwardedPayload) {
	if w.dispatcher == nil {
		return
	}
	_ = w.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketForwarded,
		TicketID:  ticketID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
