package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// ErrNotConfigured is returned when no CRM form URL is set.
var ErrNotConfigured = errors.New("crm form url not configured")

const healthTimeout = 5 * time.Second

// Submitter sends an authenticated request to the CRM.
type Submitter interface {
	Submit(ctx context.Context, method, url string, payload any) (*Response, error)
}

// Client maps tickets onto the CRM form schema.
type Client struct {
	submitter  Submitter
	formURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a form client posting to formURL. An empty formURL disables forwarding.
func NewClient(submitter Submitter, formURL string, logger *zap.Logger) *Client {
	return &Client{
		submitter:  submitter,
		formURL:    formURL,
		httpClient: &http.Client{Timeout: healthTimeout},
		logger:     logger,
	}
}

// Configured reports whether a form URL is set.
func (c *Client) Configured() bool {
	return c.formURL != ""
}

// RecordName is the CRM's split name field.
type RecordName struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// RecordData is the CRM form record.
type RecordData struct {
	Name        RecordName     `json:"Name"`
	Email       string         `json:"Email"`
	RequestType string         `json:"Request_Type"`
	Description string         `json:"Description"`
	Category    string         `json:"Category"`
	Priority    string         `json:"Priority"`
	Summary     string         `json:"Summary"`
	Entities    map[string]any `json:"Entities,omitempty"`
	Status      string         `json:"Status"`
}

// RecordPayload wraps a record the way the form API expects it.
type RecordPayload struct {
	Data RecordData `json:"data"`
}

// NewRecordPayload maps a stored ticket to the remote schema.
func NewRecordPayload(ticket *domain.Ticket) RecordPayload {
	first, last := splitName(ticket.Name)

	category := string(ticket.Category)
	if category == "" {
		category = string(ticket.RequestType)
	}
	priority := string(ticket.Priority)
	if priority == "" {
		priority = string(domain.TicketPriorityMedium)
	}
	summary := fmt.Sprintf("%s request from %s", ticket.RequestType, ticket.Name)
	if ticket.Summary != nil && *ticket.Summary != "" {
		summary = *ticket.Summary
	}

	return RecordPayload{Data: RecordData{
		Name:        RecordName{FirstName: first, LastName: last},
		Email:       ticket.Email,
		RequestType: string(ticket.RequestType),
		Description: ticket.Description,
		Category:    category,
		Priority:    priority,
		Summary:     summary,
		Entities:    ticket.Entities,
		Status:      "Open",
	}}
}

// CreateRecord forwards ticket and returns the remote identifier when the CRM reports one.
func (c *Client) CreateRecord(ctx context.Context, ticket *domain.Ticket) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	resp, err := c.submitter.Submit(ctx, http.MethodPost, c.formURL, NewRecordPayload(ticket))
	if err != nil {
		return "", err
	}
	return parseRemoteID(resp.Body), nil
}

// Health reports whether the CRM host answers at all. Authorization is not checked.
func (c *Client) Health(ctx context.Context) bool {
	if !c.Configured() {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.formURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("crm health check failed", zap.Error(err))
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return name, ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// parseRemoteID reads "id" or "data.ID" from a CRM reply.
func parseRemoteID(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var reply struct {
		ID   any `json:"id"`
		Data struct {
			ID any `json:"ID"`
		} `json:"data"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&reply); err != nil {
		return ""
	}
	if id := idString(reply.ID); id != "" {
		return id
	}
	return idString(reply.Data.ID)
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	}
	return ""
}
