package repository

import (
	"strings"
	"testing"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

func TestBuildListQuery_NoFilters(t *testing.T) {
	query, args := buildListQuery(TicketFilter{})

	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
	if !strings.Contains(query, "WHERE 1=1 ORDER BY created_at DESC, id DESC LIMIT 50") {
		t.Errorf("unexpected query: %s", query)
	}
}

func TestBuildListQuery_AllFilters(t *testing.T) {
	category := domain.CategoryNetwork
	priority := domain.TicketPriorityUrgent
	requestType := domain.CategoryGeneral
	search := "  WiFi "

	query, args := buildListQuery(TicketFilter{
		Category:    &category,
		Priority:    &priority,
		RequestType: &requestType,
		SearchTerm:  &search,
		Limit:       10,
	})

	for _, fragment := range []string{
		"category=$1",
		"priority=$2",
		"request_type=$3",
		"LOWER(description) LIKE $4",
		"LOWER(name) LIKE $4",
		"LIMIT 10",
	} {
		if !strings.Contains(query, fragment) {
			t.Errorf("query missing %q: %s", fragment, query)
		}
	}
	if len(args) != 4 {
		t.Fatalf("len(args) = %d, want 4", len(args))
	}
	if args[0] != domain.CategoryNetwork || args[1] != domain.TicketPriorityUrgent || args[2] != domain.CategoryGeneral {
		t.Errorf("unexpected filter args: %v", args[:3])
	}
	if args[3] != "%wifi%" {
		t.Errorf("search arg = %v, want %%wifi%%", args[3])
	}
}

func TestBuildListQuery_BlankSearchIgnored(t *testing.T) {
	blank := "   "
	query, args := buildListQuery(TicketFilter{SearchTerm: &blank})
	if len(args) != 0 || strings.Contains(query, "LIKE") {
		t.Errorf("blank search should not filter: %s %v", query, args)
	}
}

func TestBuildListQuery_LimitClamped(t *testing.T) {
	query, _ := buildListQuery(TicketFilter{Limit: 5000})
	if !strings.HasSuffix(query, "LIMIT 1000") {
		t.Errorf("limit not clamped: %s", query)
	}
}
