// Package crm forwards tickets to the remote CRM form service.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/integration/oauth"
	"github.com/spec-kit/ticket-intake/internal/observability"
)

const (
	defaultAuthScheme       = "Zoho-oauthtoken"
	defaultRequestTimeout   = 15 * time.Second
	maxResponseBodyBytes    = 1 << 20
	transportFailureCode    = "transport"
	remoteRejectedErrorCode = "remote_rejected"
)

// RemoteRejectedError reports a CRM failure other than an expired token.
// StatusCode is 0 when no response was received.
type RemoteRejectedError struct {
	StatusCode int
	Code       string
	Body       string
	Err        error
}

func (e *RemoteRejectedError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("crm request failed (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("crm rejected request with status %d: %s", e.StatusCode, e.Body)
}

func (e *RemoteRejectedError) Unwrap() error {
	return e.Err
}

// Response is a successful CRM reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// TokenSource exposes the current bearer token.
type TokenSource interface {
	AccessToken() string
}

// Refresher obtains a new bearer token.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// GatewayConfig tunes outbound requests.
type GatewayConfig struct {
	AuthScheme string
	Timeout    time.Duration
	HTTPClient *http.Client
	Metrics    *observability.Metrics
}

// Gateway sends authenticated requests to the CRM and recovers from a single
// rejected token by refreshing it and retrying once.
type Gateway struct {
	tokens     TokenSource
	refresher  Refresher
	authScheme string
	timeout    time.Duration
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewGateway wires the gateway to its credential collaborators.
func NewGateway(tokens TokenSource, refresher Refresher, cfg GatewayConfig, logger *zap.Logger) *Gateway {
	g := &Gateway{
		tokens:     tokens,
		refresher:  refresher,
		authScheme: cfg.AuthScheme,
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		metrics:    cfg.Metrics,
		logger:     logger,
	}
	if g.authScheme == "" {
		g.authScheme = defaultAuthScheme
	}
	if g.timeout <= 0 {
		g.timeout = defaultRequestTimeout
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{}
	}
	return g
}

type submitState int

const (
	stateUnauthenticated submitState = iota
	stateAuthenticated
	stateRefreshing
	stateAuthenticatedRetry
	stateTerminal
)

// Submit sends payload as JSON. It issues at most two physical requests and
// at most two refreshes: one when no token is held and one after a 401.
// Failures are ErrAuthUnavailable or *RemoteRejectedError.
func (g *Gateway) Submit(ctx context.Context, method, url string, payload any) (*Response, error) {
	body, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	var (
		token  string
		resp   *Response
		result error
	)

	state := stateUnauthenticated
	for state != stateTerminal {
		switch state {
		case stateUnauthenticated:
			if token = g.tokens.AccessToken(); token != "" {
				state = stateAuthenticated
				continue
			}
			token, result = g.refresh(ctx)
			if result != nil {
				state = stateTerminal
				continue
			}
			state = stateAuthenticated

		case stateAuthenticated:
			resp, result = g.send(ctx, method, url, body, token)
			if errors.Is(result, errTokenRejected) {
				g.logger.Info("crm rejected access token, refreshing", zap.String("url", url))
				result = nil
				state = stateRefreshing
				continue
			}
			state = stateTerminal

		case stateRefreshing:
			token, result = g.refresh(ctx)
			if result != nil {
				state = stateTerminal
				continue
			}
			state = stateAuthenticatedRetry

		case stateAuthenticatedRetry:
			resp, result = g.send(ctx, method, url, body, token)
			if errors.Is(result, errTokenRejected) {
				result = &RemoteRejectedError{StatusCode: http.StatusUnauthorized, Code: remoteRejectedErrorCode, Body: resp.bodyString()}
			}
			state = stateTerminal
		}
	}

	if result != nil {
		return nil, result
	}
	return resp, nil
}

var errTokenRejected = errors.New("access token rejected")

func (g *Gateway) refresh(ctx context.Context) (string, error) {
	token, err := g.refresher.Refresh(ctx)
	if err != nil {
		if errors.Is(err, oauth.ErrAuthUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", oauth.ErrAuthUnavailable, err)
	}
	if token == "" {
		return "", oauth.ErrAuthUnavailable
	}
	return token, nil
}

// send performs one physical request. A 401 returns the response together with errTokenRejected.
func (g *Gateway) send(ctx context.Context, method, url string, body []byte, token string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &RemoteRejectedError{Code: transportFailureCode, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", g.authScheme+" "+token)

	httpResp, err := g.httpClient.Do(req)
	if err != nil {
		g.metrics.RecordGatewayRequest(0)
		return nil, &RemoteRejectedError{Code: transportFailureCode, Err: err}
	}
	defer httpResp.Body.Close()
	g.metrics.RecordGatewayRequest(httpResp.StatusCode)

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, &RemoteRejectedError{StatusCode: httpResp.StatusCode, Code: transportFailureCode, Err: fmt.Errorf("read response: %w", err)}
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: respBody}
	switch {
	case httpResp.StatusCode == http.StatusUnauthorized:
		return resp, errTokenRejected
	case httpResp.StatusCode < 200 || httpResp.StatusCode > 299:
		return nil, &RemoteRejectedError{StatusCode: httpResp.StatusCode, Code: remoteRejectedErrorCode, Body: resp.bodyString()}
	}
	return resp, nil
}

func (r *Response) bodyString() string {
	if r == nil {
		return ""
	}
	const max = 512
	if len(r.Body) > max {
		return string(r.Body[:max]) + "..."
	}
	return string(r.Body)
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.([]byte); ok {
		return raw, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode crm payload: %w", err)
	}
	return body, nil
}
