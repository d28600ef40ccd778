package dto

import (
	"time"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	RequestType string  `json:"requestType"`
	Description string  `json:"description"`
	AudioBase64 *string `json:"audioBase64"`
}

// TicketListQuery captures dashboard filters after validation.
type TicketListQuery struct {
	Category    string `json:"category,omitempty"`
	Priority    string `json:"priority,omitempty"`
	RequestType string `json:"requestType,omitempty"`
	Q           string `json:"q,omitempty"`
	Limit       int    `json:"limit"`
}

// TicketResponse is a stored ticket as returned by the API.
type TicketResponse struct {
	ID          int64                 `json:"id"`
	Name        string                `json:"name"`
	Email       string                `json:"email"`
	RequestType domain.Category       `json:"requestType"`
	Description string                `json:"description"`
	AudioBase64 *string               `json:"audioBase64,omitempty"`
	Category    domain.Category       `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	Summary     *string               `json:"summary"`
	Entities    map[string]any        `json:"entities"`
	RemoteID    *string               `json:"remoteId,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
}

// AnalysisResponse echoes the enrichment applied to a new ticket.
type AnalysisResponse struct {
	Category domain.Category       `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
	Summary  *string               `json:"summary"`
	Entities map[string]any        `json:"entities"`
}

// StatsResponse summarizes stored tickets.
type StatsResponse struct {
	Total      int64                           `json:"total"`
	ByCategory map[domain.Category]int64       `json:"byCategory"`
	ByPriority map[domain.TicketPriority]int64 `json:"byPriority"`
}

// CRMStatus reports the forwarding target.
type CRMStatus struct {
	Configured bool `json:"configured"`
	Healthy    bool `json:"healthy"`
}

// ServicesStatus reports each collaborator.
type ServicesStatus struct {
	Database bool      `json:"database"`
	AI       bool      `json:"ai"`
	Zoho     CRMStatus `json:"zoho"`
}

// IntegrationStatusResponse is the body of the integration health endpoint.
type IntegrationStatusResponse struct {
	Success   bool           `json:"success"`
	Services  ServicesStatus `json:"services"`
	Timestamp time.Time      `json:"timestamp"`
}

// PerformanceResponse reports classification quality.
type PerformanceResponse struct {
	TotalAnalyzed        int                           `json:"totalAnalyzed"`
	CategoryDistribution map[domain.Category]int       `json:"categoryDistribution"`
	PriorityDistribution map[domain.TicketPriority]int `json:"priorityDistribution"`
	AverageConfidence    float64                       `json:"averageConfidence"`
	HighConfidence       int                           `json:"highConfidence"`
	AccuracyScore        float64                       `json:"accuracyScore"`
}

// LowConfidenceItem is one ticket in a low-confidence report.
type LowConfidenceItem struct {
	ID                  int64                 `json:"id"`
	Category            domain.Category       `json:"category"`
	Priority            domain.TicketPriority `json:"priority"`
	Description         string                `json:"description"`
	EstimatedConfidence float64               `json:"estimatedConfidence"`
}

// LowConfidenceResponse lists tickets below the requested threshold.
type LowConfidenceResponse struct {
	Threshold          float64             `json:"threshold"`
	LowConfidenceCount int                 `json:"lowConfidenceCount"`
	Tickets            []LowConfidenceItem `json:"tickets"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Name:        t.Name,
		Email:       t.Email,
		RequestType: t.RequestType,
		Description: t.Description,
		AudioBase64: t.AudioBase64,
		Category:    t.Category,
		Priority:    t.Priority,
		Summary:     t.Summary,
		Entities:    t.Entities,
		RemoteID:    t.RemoteID,
		CreatedAt:   t.CreatedAt,
	}
}

// NewAnalysisResponse extracts the enrichment fields of a ticket.
func NewAnalysisResponse(t *domain.Ticket) AnalysisResponse {
	return AnalysisResponse{
		Category: t.Category,
		Priority: t.Priority,
		Summary:  t.Summary,
		Entities: t.Entities,
	}
}
