package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-intake/internal/classifier"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/repository"
)

type memoryTicketRepo struct {
	mu        sync.Mutex
	tickets   []domain.Ticket
	createErr error
	listErr   error
	nextID    int64
}

func (r *memoryTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	ticket.ID = r.nextID
	ticket.CreatedAt = time.Now()
	r.tickets = append(r.tickets, *ticket)
	return nil
}

func (r *memoryTicketRepo) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tickets {
		if r.tickets[i].ID == id {
			ticket := r.tickets[i]
			return &ticket, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memoryTicketRepo) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]domain.Ticket, 0, len(r.tickets))
	for i := len(r.tickets) - 1; i >= 0; i-- {
		t := r.tickets[i]
		if filter.Category != nil && t.Category != *filter.Category {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *memoryTicketRepo) Stats(ctx context.Context) (*repository.TicketStats, error) {
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

func (r *memoryTicketRepo) SetRemoteID(ctx context.Context, id int64, remoteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tickets {
		if r.tickets[i].ID == id {
			r.tickets[i].RemoteID = &remoteID
			return nil
		}
	}
	return pgx.ErrNoRows
}

type stubAnalyzer struct {
	result domain.ClassificationResult
	calls  int
	last   classifier.Request
}

func (a *stubAnalyzer) Analyze(ctx context.Context, req classifier.Request) domain.ClassificationResult {
	a.calls++
	a.last = req
	return a.result
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

type stubHealth struct {
	healthy    bool
	configured bool
	calls      int
	mu         sync.Mutex
}

func (h *stubHealth) Health(ctx context.Context) bool {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	return h.healthy
}

func (h *stubHealth) Configured() bool { return h.configured }

var errDatabaseDown = errors.New("database down")
