package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-intake/internal/api/dto"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/repository"
	"github.com/spec-kit/ticket-intake/internal/service"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

// TicketsHandler manages the intake and dashboard ticket endpoints.
type TicketsHandler struct {
	service       *service.TicketService
	status        *service.StatusService
	sanitizer     *Sanitizer
	healthTimeout time.Duration
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, statusService *service.StatusService, sanitizer *Sanitizer, healthTimeout time.Duration) *TicketsHandler {
	if sanitizer == nil {
		sanitizer = NewSanitizer()
	}
	if healthTimeout <= 0 {
		healthTimeout = 5 * time.Second
	}
	return &TicketsHandler{
		service:       ticketService,
		status:        statusService,
		sanitizer:     sanitizer,
		healthTimeout: healthTimeout,
	}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	input, err := validateCreateTicket(h.sanitizer, req)
	if err != nil {
		return err
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success":    true,
		"data":       dto.NewTicketResponse(ticket),
		"aiAnalysis": dto.NewAnalysisResponse(ticket),
	})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query, err := validateListQuery(h.sanitizer, listQueryValues{
		Category:    c.Query("category"),
		Priority:    c.Query("priority"),
		RequestType: c.Query("requestType"),
		Q:           c.Query("q"),
		Limit:       c.Query("limit"),
	})
	if err != nil {
		return err
	}

	tickets, err := h.service.ListTickets(c.UserContext(), toRepositoryFilter(query))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
		"count":   len(items),
		"filters": query,
	})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, ok := parsePositiveInt(c.Params("id"))
	if !ok {
		return apperrors.NewValidationError("ticket id must be a positive integer", map[string]any{"id": c.Params("id")})
	}
	ticket, err := h.service.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": dto.NewTicketResponse(ticket)})
}

// Stats GET /api/tickets/stats/summary.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": dto.StatsResponse{
		Total:      stats.Total,
		ByCategory: stats.ByCategory,
		ByPriority: stats.ByPriority,
	}})
}

// IntegrationStatus GET /api/tickets/health/status.
func (h *TicketsHandler) IntegrationStatus(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.healthTimeout)
	defer cancel()

	status := h.status.IntegrationStatus(ctx)
	return c.JSON(dto.IntegrationStatusResponse{
		Success: true,
		Services: dto.ServicesStatus{
			Database: status.Database,
			AI:       status.AI,
			Zoho: dto.CRMStatus{
				Configured: status.CRMConfigured,
				Healthy:    status.CRMHealthy,
			},
		},
		Timestamp: status.Timestamp,
	})
}

func toRepositoryFilter(q dto.TicketListQuery) repository.TicketFilter {
	filter := repository.TicketFilter{Limit: q.Limit}
	if q.Category != "" {
		category := domain.Category(q.Category)
		filter.Category = &category
	}
	if q.Priority != "" {
		priority := domain.TicketPriority(q.Priority)
		filter.Priority = &priority
	}
	if q.RequestType != "" {
		requestType := domain.Category(q.RequestType)
		filter.RequestType = &requestType
	}
	if q.Q != "" {
		search := q.Q
		filter.SearchTerm = &search
	}
	return filter
}

func parsePositiveInt(raw string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
