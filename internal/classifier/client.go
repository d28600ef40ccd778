// Package classifier enriches tickets with a category and priority from the
// external analysis service, falling back to keyword rules when it is unavailable.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/observability"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultHealthTimeout = 5 * time.Second
	maxResponseBytes     = 1 << 20
)

var errIncompleteAnalysis = errors.New("analysis service returned incomplete analysis")

// Config points the client at the analysis service.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	HealthTimeout time.Duration
	HTTPClient    *http.Client
	Metrics       *observability.Metrics
}

// Request is the input to Analyze.
type Request struct {
	Description string
	RequestType domain.Category
	AudioBase64 *string
}

type analyzeRequest struct {
	Description string  `json:"description"`
	RequestType string  `json:"requestType"`
	AudioBase64 *string `json:"audioBase64,omitempty"`
}

type analyzeResponse struct {
	Category string         `json:"category"`
	Priority string         `json:"priority"`
	Summary  *string        `json:"summary"`
	Entities map[string]any `json:"entities"`
}

// Client calls the analysis service.
type Client struct {
	baseURL       string
	timeout       time.Duration
	healthTimeout time.Duration
	httpClient    *http.Client
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewClient builds a client for cfg.BaseURL.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		timeout:       cfg.Timeout,
		healthTimeout: cfg.HealthTimeout,
		httpClient:    cfg.HTTPClient,
		metrics:       cfg.Metrics,
		logger:        logger,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.healthTimeout <= 0 {
		c.healthTimeout = defaultHealthTimeout
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c
}

// Analyze classifies a ticket. It never fails: any error talking to the
// service, or an answer without a usable category and priority, yields
// FallbackClassify instead.
func (c *Client) Analyze(ctx context.Context, req Request) domain.ClassificationResult {
	result, err := c.analyzeRemote(ctx, req)
	if err != nil {
		c.logger.Warn("analysis service unavailable, using fallback analysis",
			zap.Error(err),
			zap.String("request_type", string(req.RequestType)),
		)
		c.metrics.RecordClassification(string(domain.SourceFallback))
		return FallbackClassify(req.Description, req.RequestType)
	}
	c.metrics.RecordClassification(string(domain.SourceRemote))
	return result
}

func (c *Client) analyzeRemote(ctx context.Context, req Request) (domain.ClassificationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(analyzeRequest{
		Description: req.Description,
		RequestType: string(req.RequestType),
		AudioBase64: req.AudioBase64,
	})
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("encode analyze request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("create analyze request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("read analyze response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ClassificationResult{}, fmt.Errorf("analysis service returned status %d: %s", resp.StatusCode, truncate(string(raw), 256))
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("decode analyze response: %w", err)
	}

	category, ok := parseCategory(parsed.Category)
	if !ok {
		return domain.ClassificationResult{}, fmt.Errorf("%w: category %q", errIncompleteAnalysis, parsed.Category)
	}
	priority, ok := parsePriority(parsed.Priority)
	if !ok {
		return domain.ClassificationResult{}, fmt.Errorf("%w: priority %q", errIncompleteAnalysis, parsed.Priority)
	}

	result := domain.ClassificationResult{
		Category: category,
		Priority: priority,
		Entities: parsed.Entities,
		Source:   domain.SourceRemote,
	}
	if parsed.Summary != nil && strings.TrimSpace(*parsed.Summary) != "" {
		result.Summary = parsed.Summary
	}
	return result, nil
}

// Health reports whether GET /health answers 200.
func (c *Client) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("analysis service health check failed", zap.Error(err))
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func parseCategory(v string) (domain.Category, bool) {
	v = strings.TrimSpace(v)
	for _, c := range domain.Categories {
		if strings.EqualFold(v, string(c)) {
			return c, true
		}
	}
	return "", false
}

func parsePriority(v string) (domain.TicketPriority, bool) {
	v = strings.TrimSpace(v)
	for _, p := range domain.Priorities {
		if strings.EqualFold(v, string(p)) {
			return p, true
		}
	}
	return "", false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
