package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-intake/internal/api/dto"
	"github.com/spec-kit/ticket-intake/internal/service"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

// AnalyticsHandler serves classification quality reports.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Performance GET /api/analytics/performance.
func (h *AnalyticsHandler) Performance(c *fiber.Ctx) error {
	report, err := h.analytics.Performance(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": dto.PerformanceResponse{
		TotalAnalyzed:        report.TotalAnalyzed,
		CategoryDistribution: report.CategoryDistribution,
		PriorityDistribution: report.PriorityDistribution,
		AverageConfidence:    report.AverageConfidence,
		HighConfidence:       report.HighConfidence,
		AccuracyScore:        report.AccuracyScore,
	}})
}

// LowConfidence GET /api/analytics/low-confidence?threshold=.
func (h *AnalyticsHandler) LowConfidence(c *fiber.Ctx) error {
	threshold := service.DefaultConfidenceThreshold
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			return apperrors.NewValidationError("threshold must be a number in (0, 1]", map[string]any{"threshold": raw})
		}
		threshold = parsed
	}

	report, err := h.analytics.LowConfidence(c.UserContext(), threshold)
	if err != nil {
		return err
	}
	items := make([]dto.LowConfidenceItem, 0, len(report.Tickets))
	for _, t := range report.Tickets {
		items = append(items, dto.LowConfidenceItem{
			ID:                  t.ID,
			Category:            t.Category,
			Priority:            t.Priority,
			Description:         t.DescriptionPreview,
			EstimatedConfidence: t.EstimatedConfidence,
		})
	}
	return c.JSON(fiber.Map{"success": true, "data": dto.LowConfidenceResponse{
		Threshold:          report.Threshold,
		LowConfidenceCount: len(items),
		Tickets:            items,
	}})
}
