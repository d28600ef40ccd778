package service

import (
	"context"
	"strings"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/repository"
)

const (
	analyticsSampleSize  = 1000
	lowConfidenceLimit   = 20
	highConfidenceCutoff = 0.8
	// DefaultConfidenceThreshold applies when the caller supplies none.
	DefaultConfidenceThreshold = 0.7
)

var urgencyKeywords = []string{"urgent", "critical", "emergency", "asap", "immediately", "down", "broken"}

// AnalyticsService derives classification quality reports from stored tickets.
type AnalyticsService struct {
	tickets repository.TicketRepository
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(tickets repository.TicketRepository) *AnalyticsService {
	return &AnalyticsService{tickets: tickets}
}

// PerformanceReport describes the classification mix over recent tickets.
type PerformanceReport struct {
	TotalAnalyzed        int
	CategoryDistribution map[domain.Category]int
	PriorityDistribution map[domain.TicketPriority]int
	AverageConfidence    float64
	HighConfidence       int
	AccuracyScore        float64
}

// LowConfidenceTicket is one entry of a low-confidence report.
type LowConfidenceTicket struct {
	ID                  int64
	Category            domain.Category
	Priority            domain.TicketPriority
	DescriptionPreview  string
	EstimatedConfidence float64
}

// LowConfidenceReport lists tickets whose estimated confidence is below Threshold.
type LowConfidenceReport struct {
	Threshold float64
	Tickets   []LowConfidenceTicket
}

// Performance reports distributions and estimated confidence.
func (s *AnalyticsService) Performance(ctx context.Context) (*PerformanceReport, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{Limit: analyticsSampleSize})
	if err != nil {
		return nil, err
	}
	report := &PerformanceReport{
		TotalAnalyzed:        len(tickets),
		CategoryDistribution: make(map[domain.Category]int),
		PriorityDistribution: make(map[domain.TicketPriority]int),
	}
	if len(tickets) == 0 {
		return report, nil
	}

	var sum float64
	for i := range tickets {
		report.CategoryDistribution[tickets[i].Category]++
		report.PriorityDistribution[tickets[i].Priority]++
		confidence := EstimateConfidence(&tickets[i])
		sum += confidence
		if confidence >= highConfidenceCutoff {
			report.HighConfidence++
		}
	}
	report.AverageConfidence = sum / float64(len(tickets))
	report.AccuracyScore = float64(report.HighConfidence) * 100 / float64(len(tickets))
	return report, nil
}

// LowConfidence returns up to 20 recent tickets whose estimated confidence is below threshold.
// A non-positive threshold selects DefaultConfidenceThreshold.
func (s *AnalyticsService) LowConfidence(ctx context.Context, threshold float64) (*LowConfidenceReport, error) {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{Limit: analyticsSampleSize})
	if err != nil {
		return nil, err
	}
	report := &LowConfidenceReport{Threshold: threshold, Tickets: []LowConfidenceTicket{}}
	for i := range tickets {
		confidence := EstimateConfidence(&tickets[i])
		if confidence >= threshold {
			continue
		}
		report.Tickets = append(report.Tickets, LowConfidenceTicket{
			ID:                  tickets[i].ID,
			Category:            tickets[i].Category,
			Priority:            tickets[i].Priority,
			DescriptionPreview:  preview(tickets[i].Description, 100),
			EstimatedConfidence: confidence,
		})
		if len(report.Tickets) == lowConfidenceLimit {
			break
		}
	}
	return report, nil
}

// EstimateConfidence scores how well a stored classification is supported by
// the ticket text, between 0.5 and 0.95.
func EstimateConfidence(ticket *domain.Ticket) float64 {
	points := 50
	if ticket.Category != domain.CategoryGeneral {
		points += 20
	}
	if len([]rune(ticket.Description)) > 100 {
		points += 10
	}
	urgent := ticket.Priority == domain.TicketPriorityUrgent || ticket.Priority == domain.TicketPriorityHigh
	if urgent && containsUrgencyKeyword(ticket.Description) {
		points += 20
	}
	if points > 95 {
		points = 95
	}
	return float64(points) / 100
}

func containsUrgencyKeyword(description string) bool {
	lower := strings.ToLower(description)
	for _, keyword := range urgencyKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func preview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
