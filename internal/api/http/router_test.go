package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/ticket-intake/internal/api/http/handlers"
	"github.com/spec-kit/ticket-intake/internal/classifier"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/internal/observability"
	"github.com/spec-kit/ticket-intake/internal/repository"
	"github.com/spec-kit/ticket-intake/internal/service"
)

type memoryRepo struct {
	mu        sync.Mutex
	tickets   []domain.Ticket
	createErr error
	lastList  repository.TicketFilter
}

func (r *memoryRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	ticket.ID = int64(len(r.tickets) + 1)
	ticket.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.tickets = append(r.tickets, *ticket)
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tickets {
		if r.tickets[i].ID == id {
			t := r.tickets[i]
			return &t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memoryRepo) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastList = filter
	out := []domain.Ticket{}
	for _, t := range r.tickets {
		if filter.Category != nil && t.Category != *filter.Category {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *memoryRepo) Stats(ctx context.Context) (*repository.TicketStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &repository.TicketStats{
		Total:      int64(len(r.tickets)),
		ByCategory: map[domain.Category]int64{},
		ByPriority: map[domain.TicketPriority]int64{},
	}
	for _, t := range r.tickets {
		stats.ByCategory[t.Category]++
		stats.ByPriority[t.Priority]++
	}
	return stats, nil
}

func (r *memoryRepo) SetRemoteID(ctx context.Context, id int64, remoteID string) error {
	return nil
}

type fixedAnalyzer struct{}

func (fixedAnalyzer) Analyze(ctx context.Context, req classifier.Request) domain.ClassificationResult {
	return classifier.FallbackClassify(req.Description, req.RequestType)
}

type pinger struct{ err error }

func (p pinger) Ping(ctx context.Context) error { return p.err }

type health struct{ ok, configured bool }

func (h health) Health(ctx context.Context) bool { return h.ok }
func (h health) Configured() bool                { return h.configured }

type testServer struct {
	app      *fiber.App
	repo     *memoryRepo
	registry *prometheus.Registry
}

func newTestServer(t *testing.T, limiter *RateLimiter) *testServer {
	t.Helper()
	repo := &memoryRepo{}
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	logger := zap.NewNop()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repo,
		Analyzer:   fixedAnalyzer{},
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Logger:     logger,
	})
	statusService := service.NewStatusService(pinger{}, health{ok: true}, health{})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:      handlers.NewHealthHandler("ticket-intake", "test", pinger{}, pinger{err: errors.New("redis down")}),
		Tickets:     handlers.NewTicketsHandler(ticketService, statusService, nil, time.Second),
		Analytics:   handlers.NewAnalyticsHandler(service.NewAnalyticsService(repo)),
		RateLimiter: limiter,
		Gatherer:    registry,
	})
	return &testServer{app: app, repo: repo, registry: registry}
}

func (s *testServer) do(t *testing.T, method, target, body string) (*nethttp.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp, decoded
}

const validTicket = `{"name":"Jane Doe","email":"Jane@Example.com","requestType":"Network","description":"My wifi is down, urgent!"}`

func TestCreateTicket_ReturnsEnrichedTicket(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := srv.do(t, nethttp.MethodPost, "/api/tickets", validTicket)
	if resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	data := body["data"].(map[string]any)
	if data["category"] != "Network" || data["priority"] != "Urgent" {
		t.Errorf("data = %v", data)
	}
	if data["email"] != "jane@example.com" {
		t.Errorf("email = %v, want lowercased", data["email"])
	}
	analysis := body["aiAnalysis"].(map[string]any)
	if analysis["priority"] != "Urgent" {
		t.Errorf("aiAnalysis = %v", analysis)
	}
	if resp.Header.Get(observability.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestCreateTicket_StripsHTML(t *testing.T) {
	srv := newTestServer(t, nil)

	payload := `{"name":"<b>Jane</b> Doe","email":"jane@example.com","requestType":"Cloud","description":"<script>alert(1)</script>Backup of R&D share failed"}`
	resp, body := srv.do(t, nethttp.MethodPost, "/api/tickets", payload)
	if resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	stored := srv.repo.tickets[0]
	if stored.Name != "Jane Doe" {
		t.Errorf("name = %q", stored.Name)
	}
	if strings.Contains(stored.Description, "<") || !strings.Contains(stored.Description, "R&D") {
		t.Errorf("description = %q", stored.Description)
	}

	encoded := `{"name":"Jane Doe","email":"jane@example.com","requestType":"Network","description":"&lt;script&gt;alert(1)&lt;/script&gt; my wifi is down"}`
	resp, body = srv.do(t, nethttp.MethodPost, "/api/tickets", encoded)
	if resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("encoded status = %d, body = %v", resp.StatusCode, body)
	}
	stored = srv.repo.tickets[1]
	if strings.Contains(stored.Description, "<script") || stored.Description != "my wifi is down" {
		t.Errorf("encoded description = %q", stored.Description)
	}
}

func TestCreateTicket_ValidationErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	cases := map[string]struct {
		payload string
		field   string
	}{
		"short name":    {`{"name":"J","email":"jane@example.com","requestType":"Network","description":"long enough text"}`, "name"},
		"bad email":     {`{"name":"Jane","email":"not-an-email","requestType":"Network","description":"long enough text"}`, "email"},
		"display email": {`{"name":"Jane","email":"Jane <jane@example.com>","requestType":"Network","description":"long enough text"}`, "email"},
		"request type":  {`{"name":"Jane","email":"jane@example.com","requestType":"Printers","description":"long enough text"}`, "requestType"},
		"short desc":    {`{"name":"Jane","email":"jane@example.com","requestType":"Network","description":"short"}`, "description"},
		"html only":     {`{"name":"Jane","email":"jane@example.com","requestType":"Network","description":"<p></p><br><br><br>"}`, "description"},
		"audio":         {`{"name":"Jane","email":"jane@example.com","requestType":"Network","description":"long enough text","audioBase64":"data:image/png;base64,AAA"}`, "audioBase64"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp, body := srv.do(t, nethttp.MethodPost, "/api/tickets", tc.payload)
			if resp.StatusCode != nethttp.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			errBody := body["error"].(map[string]any)
			if errBody["code"] != "VALIDATION_FAILED" {
				t.Errorf("code = %v", errBody["code"])
			}
			details := errBody["details"].(map[string]any)
			if _, ok := details[tc.field]; !ok {
				t.Errorf("details = %v, want %s", details, tc.field)
			}
		})
	}
	if len(srv.repo.tickets) != 0 {
		t.Errorf("invalid tickets persisted: %d", len(srv.repo.tickets))
	}
}

func TestCreateTicket_PersistenceFailureIs500(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.repo.createErr = errors.New("connection reset")

	resp, body := srv.do(t, nethttp.MethodPost, "/api/tickets", validTicket)
	if resp.StatusCode != nethttp.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["error"].(map[string]any)["code"] != "INTERNAL_ERROR" {
		t.Errorf("body = %v", body)
	}
}

func TestCreateTicket_RateLimited(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{Rate: rate.Limit(1.0 / 60.0), Burst: 1}, zap.NewNop())
	defer limiter.Stop()
	srv := newTestServer(t, limiter)

	if resp, _ := srv.do(t, nethttp.MethodPost, "/api/tickets", validTicket); resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("first status = %d", resp.StatusCode)
	}
	resp, body := srv.do(t, nethttp.MethodPost, "/api/tickets", validTicket)
	if resp.StatusCode != nethttp.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Errorf("Retry-After = %q", resp.Header.Get("Retry-After"))
	}
	if body["error"].(map[string]any)["code"] != "RATE_LIMITED" {
		t.Errorf("body = %v", body)
	}

	if resp, _ := srv.do(t, nethttp.MethodGet, "/api/tickets", ""); resp.StatusCode != nethttp.StatusOK {
		t.Errorf("listing should not be rate limited, got %d", resp.StatusCode)
	}
}

func TestListTickets_FiltersAndLimit(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.do(t, nethttp.MethodPost, "/api/tickets", validTicket)
	srv.do(t, nethttp.MethodPost, "/api/tickets", `{"name":"Bob Roe","email":"bob@example.com","requestType":"Cloud","description":"Backup sync keeps failing"}`)

	resp, body := srv.do(t, nethttp.MethodGet, "/api/tickets?category=Cloud&limit=5&q=backup", "")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["count"].(float64) != 1 {
		t.Errorf("count = %v, want 1", body["count"])
	}
	filters := body["filters"].(map[string]any)
	if filters["category"] != "Cloud" || filters["limit"].(float64) != 5 {
		t.Errorf("filters = %v", filters)
	}
	if srv.repo.lastList.Limit != 5 || srv.repo.lastList.SearchTerm == nil || *srv.repo.lastList.SearchTerm != "backup" {
		t.Errorf("repository filter = %+v", srv.repo.lastList)
	}
}

func TestListTickets_RejectsBadQuery(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, target := range []string{
		"/api/tickets?limit=0",
		"/api/tickets?limit=101",
		"/api/tickets?limit=abc",
		"/api/tickets?requestType=Printers",
		"/api/tickets?priority=Whenever",
	} {
		if resp, _ := srv.do(t, nethttp.MethodGet, target, ""); resp.StatusCode != nethttp.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, resp.StatusCode)
		}
	}
}

func TestGetTicket(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.do(t, nethttp.MethodPost, "/api/tickets", validTicket)

	resp, body := srv.do(t, nethttp.MethodGet, "/api/tickets/1", "")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["data"].(map[string]any)["id"].(float64) != 1 {
		t.Errorf("body = %v", body)
	}

	resp, body = srv.do(t, nethttp.MethodGet, "/api/tickets/99", "")
	if resp.StatusCode != nethttp.StatusNotFound || body["error"].(map[string]any)["code"] != "NOT_FOUND" {
		t.Errorf("missing ticket: %d %v", resp.StatusCode, body)
	}

	for _, bad := range []string{"0", "-3", "abc"} {
		if resp, _ := srv.do(t, nethttp.MethodGet, "/api/tickets/"+bad, ""); resp.StatusCode != nethttp.StatusBadRequest {
			t.Errorf("id %q: status = %d, want 400", bad, resp.StatusCode)
		}
	}
}

func TestStatsSummary(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.do(t, nethttp.MethodPost, "/api/tickets", validTicket)

	resp, body := srv.do(t, nethttp.MethodGet, "/api/tickets/stats/summary", "")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	data := body["data"].(map[string]any)
	if data["total"].(float64) != 1 || data["byCategory"].(map[string]any)["Network"].(float64) != 1 {
		t.Errorf("data = %v", data)
	}
}

func TestIntegrationStatus(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := srv.do(t, nethttp.MethodGet, "/api/tickets/health/status", "")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	services := body["services"].(map[string]any)
	zoho := services["zoho"].(map[string]any)
	if services["database"] != true || services["ai"] != true || zoho["configured"] != false || zoho["healthy"] != false {
		t.Errorf("services = %v", services)
	}
	if body["timestamp"] == nil {
		t.Error("missing timestamp")
	}
}

func TestAnalyticsRoutes(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.do(t, nethttp.MethodPost, "/api/tickets", `{"name":"Jane Doe","email":"jane@example.com","requestType":"General","description":"Question about invoices"}`)

	resp, body := srv.do(t, nethttp.MethodGet, "/api/analytics/performance", "")
	if resp.StatusCode != nethttp.StatusOK || body["data"].(map[string]any)["totalAnalyzed"].(float64) != 1 {
		t.Errorf("performance: %d %v", resp.StatusCode, body)
	}

	resp, body = srv.do(t, nethttp.MethodGet, "/api/analytics/low-confidence?threshold=0.6", "")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("low-confidence status = %d", resp.StatusCode)
	}
	data := body["data"].(map[string]any)
	if data["lowConfidenceCount"].(float64) != 1 || data["threshold"].(float64) != 0.6 {
		t.Errorf("data = %v", data)
	}

	if resp, _ := srv.do(t, nethttp.MethodGet, "/api/analytics/low-confidence?threshold=abc", ""); resp.StatusCode != nethttp.StatusBadRequest {
		t.Errorf("bad threshold status = %d", resp.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)

	if resp, _ := srv.do(t, nethttp.MethodGet, "/health/live", ""); resp.StatusCode != nethttp.StatusOK {
		t.Errorf("live status = %d", resp.StatusCode)
	}
	resp, body := srv.do(t, nethttp.MethodGet, "/health/ready", "")
	if resp.StatusCode != nethttp.StatusOK {
		t.Errorf("ready status = %d, body = %v", resp.StatusCode, body)
	}
	deps := body["dependencies"].(map[string]any)
	if deps["postgres"] != "ok" || deps["redis"] != "redis down" {
		t.Errorf("dependencies = %v", deps)
	}

	resp, err := srv.app.Test(httptest.NewRequest(nethttp.MethodGet, "/metrics", nil), -1)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != nethttp.StatusOK || !strings.Contains(string(raw), "ticket_intake_http_requests_total") {
		t.Errorf("metrics status = %d, body = %s", resp.StatusCode, raw)
	}
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := srv.do(t, nethttp.MethodGet, "/api/nope", "")
	if resp.StatusCode != nethttp.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["error"].(map[string]any)["code"] != "NOT_FOUND" {
		t.Errorf("body = %v", body)
	}
}
