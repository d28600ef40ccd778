package handlers

import (
	"strings"
	"testing"

	"github.com/spec-kit/ticket-intake/internal/api/dto"
)

func TestSanitizerText(t *testing.T) {
	s := NewSanitizer()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  My wifi is down  ", "My wifi is down"},
		{"ampersand", "Backup of R&D share", "Backup of R&D share"},
		{"literal tags", "<b>Jane</b> Doe", "Jane Doe"},
		{"literal script", "<script>alert(1)</script>hello", "hello"},
		{"encoded script", "&lt;script&gt;alert(1)&lt;/script&gt; my wifi is down", "my wifi is down"},
		{"encoded tag", "&lt;img src=x onerror=alert(1)&gt;printer", "printer"},
		{"double encoded", "&amp;lt;b&amp;gt;x", "&lt;b&gt;x"},
	}
	for _, tc := range cases {
		if got := s.Text(tc.in); got != tc.want {
			t.Errorf("%s: Text(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestValidateCreateTicket_EncodedMarkupIsStripped(t *testing.T) {
	input, err := validateCreateTicket(NewSanitizer(), dto.CreateTicketRequest{
		Name:        "Jane Doe",
		Email:       "jane@example.com",
		RequestType: "Network",
		Description: "&lt;script&gt;alert(1)&lt;/script&gt; my wifi is down",
	})
	if err != nil {
		t.Fatalf("validateCreateTicket: %v", err)
	}
	if strings.ContainsAny(input.Description, "<>") {
		t.Errorf("description still carries markup: %q", input.Description)
	}
	if input.Description != "my wifi is down" {
		t.Errorf("description = %q", input.Description)
	}
}
