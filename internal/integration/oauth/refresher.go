package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/observability"
)

// ErrAuthUnavailable means no usable bearer token could be obtained, either
// because the refresh credentials are not configured or the exchange failed.
var ErrAuthUnavailable = errors.New("crm authorization unavailable")

const (
	maxTokenResponseBytes = 1 << 20
	cacheTTLMargin        = time.Minute
	// defaultCacheTTL applies when the token response carries no expires_in.
	defaultCacheTTL = 55 * time.Minute
)

// TokenCache persists the latest access token outside the process.
type TokenCache interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string, ttl time.Duration) error
}

// RefresherConfig configures the token endpoint and optional collaborators.
type RefresherConfig struct {
	TokenURL   string
	HTTPClient *http.Client
	Cache      TokenCache
	Metrics    *observability.Metrics
}

// TokenRefresher exchanges the refresh token for a new access token.
type TokenRefresher struct {
	store      *CredentialStore
	tokenURL   string
	httpClient *http.Client
	cache      TokenCache
	metrics    *observability.Metrics
	logger     *zap.Logger
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Error       string `json:"error"`
}

// NewTokenRefresher builds a refresher that writes into store.
func NewTokenRefresher(store *CredentialStore, cfg RefresherConfig, logger *zap.Logger) *TokenRefresher {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &TokenRefresher{
		store:      store,
		tokenURL:   cfg.TokenURL,
		httpClient: httpClient,
		cache:      cfg.Cache,
		metrics:    cfg.Metrics,
		logger:     logger,
	}
}

// Refresh performs one refresh_token grant. On success the new token is
// stored and returned. Every failure is reported as ErrAuthUnavailable and
// leaves the store unchanged. Refresh never retries.
func (r *TokenRefresher) Refresh(ctx context.Context) (string, error) {
	cred := r.store.Get()
	if !cred.CanRefresh() {
		r.logger.Warn("crm oauth credentials not configured for token refresh")
		r.metrics.RecordTokenRefresh("unconfigured")
		return "", fmt.Errorf("%w: client id, client secret and refresh token are required", ErrAuthUnavailable)
	}

	r.logger.Info("refreshing crm access token")
	token, expiresIn, err := r.exchange(ctx, cred.ClientID, cred.ClientSecret, cred.RefreshToken)
	if err != nil {
		r.logger.Error("failed to refresh crm access token", zap.Error(err))
		r.metrics.RecordTokenRefresh("failure")
		return "", fmt.Errorf("%w: %w", ErrAuthUnavailable, err)
	}

	r.store.SetAccessToken(token)
	r.metrics.RecordTokenRefresh("success")
	r.logger.Info("crm access token refreshed", zap.Int("expires_in", expiresIn))
	r.saveToCache(ctx, token, expiresIn)
	return token, nil
}

// Restore seeds an unauthenticated store from the token cache.
// It reports whether a cached token was applied.
func (r *TokenRefresher) Restore(ctx context.Context) bool {
	if r.cache == nil || r.store.AccessToken() != "" {
		return false
	}
	token, err := r.cache.Load(ctx)
	if err != nil {
		r.logger.Warn("failed to load cached crm access token", zap.Error(err))
		return false
	}
	if token == "" {
		return false
	}
	r.store.SetAccessToken(token)
	r.logger.Info("restored crm access token from cache")
	return true
}

func (r *TokenRefresher) exchange(ctx context.Context, clientID, clientSecret, refreshToken string) (string, int, error) {
	form := url.Values{
		"refresh_token": {refreshToken},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return "", 0, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	if parsed.AccessToken == "" {
		if parsed.Error != "" {
			return "", 0, fmt.Errorf("token endpoint error: %s", parsed.Error)
		}
		return "", 0, errors.New("token response missing access_token")
	}
	return parsed.AccessToken, parsed.ExpiresIn, nil
}

func (r *TokenRefresher) saveToCache(ctx context.Context, token string, expiresIn int) {
	if r.cache == nil {
		return
	}
	ttl := time.Duration(expiresIn) * time.Second
	switch {
	case ttl <= 0:
		ttl = defaultCacheTTL
	case ttl > cacheTTLMargin:
		ttl -= cacheTTLMargin
	}
	if err := r.cache.Save(ctx, token, ttl); err != nil {
		r.logger.Warn("failed to cache crm access token", zap.Error(err))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
