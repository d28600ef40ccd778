package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/classifier"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/internal/repository"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

// ErrUnenriched is returned when a ticket would be stored without category or priority.
var ErrUnenriched = errors.New("ticket missing category or priority after analysis")

// Analyzer enriches ticket submissions. Implementations never fail.
type Analyzer interface {
	Analyze(ctx context.Context, req classifier.Request) domain.ClassificationResult
}

// TicketService coordinates ticket intake.
type TicketService struct {
	tickets    repository.TicketRepository
	analyzer   Analyzer
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Analyzer   Analyzer
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes a sanitized ticket submission.
type TicketCreateInput struct {
	Name        string
	Email       string
	RequestType domain.Category
	Description string
	AudioBase64 *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		analyzer:   deps.Analyzer,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// CreateTicket analyzes, persists and announces a ticket. Only a persistence
// failure is returned; forwarding happens after the event is published.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		Name:        strings.TrimSpace(input.Name),
		Email:       strings.TrimSpace(input.Email),
		RequestType: input.RequestType,
		Description: strings.TrimSpace(input.Description),
		AudioBase64: input.AudioBase64,
	}

	analysis := s.analyzer.Analyze(ctx, classifier.Request{
		Description: ticket.Description,
		RequestType: ticket.RequestType,
		AudioBase64: ticket.AudioBase64,
	})
	analysis.Apply(ticket)

	if !ticket.Enriched() {
		s.logger.Error("refusing to persist unenriched ticket",
			zap.String("category", string(ticket.Category)),
			zap.String("priority", string(ticket.Priority)))
		return nil, apperrors.NewInternalError(ErrUnenriched)
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("persist ticket: %w", err)
	}
	s.logger.Info("ticket created",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("category", string(ticket.Category)),
		zap.String("priority", string(ticket.Priority)),
		zap.String("analysis_source", string(analysis.Source)))

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload:  events.TicketCreatedPayload{Ticket: *ticket},
	})
	return ticket, nil
}

// ListTickets returns tickets matching filter, newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.tickets.List(ctx, filter)
}

// GetTicket fetches a single ticket.
func (s *TicketService) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// Stats summarizes stored tickets.
func (s *TicketService) Stats(ctx context.Context) (*repository.TicketStats, error) {
	return s.tickets.Stats(ctx)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
