package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spec-kit/ticket-intake/internal/api/http/handlers"
	"github.com/spec-kit/ticket-intake/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	Tickets     *handlers.TicketsHandler
	Analytics   *handlers.AnalyticsHandler
	RateLimiter *RateLimiter
	Gatherer    prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(observability.Handler(cfg.Gatherer)))
	}

	api := app.Group("/api")

	tickets := api.Group("/tickets")
	createHandlers := []fiber.Handler{cfg.Tickets.CreateTicket}
	if cfg.RateLimiter != nil {
		createHandlers = append([]fiber.Handler{cfg.RateLimiter.Middleware()}, createHandlers...)
	}
	tickets.Post("", createHandlers...)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/stats/summary", cfg.Tickets.Stats)
	tickets.Get("/health/status", cfg.Tickets.IntegrationStatus)
	tickets.Get("/:id", cfg.Tickets.GetTicket)

	analytics := api.Group("/analytics")
	analytics.Get("/performance", cfg.Analytics.Performance)
	analytics.Get("/low-confidence", cfg.Analytics.LowConfidence)
}
