package handlers

import (
	"html"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/spec-kit/ticket-intake/internal/api/dto"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/service"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

const (
	nameMinLen        = 2
	nameMaxLen        = 100
	descriptionMinLen = 10
	descriptionMaxLen = 2000
	searchMaxLen      = 100
	listLimitMax      = 100
	listLimitDefault  = 50
	audioPrefix       = "data:audio/"
)

// Sanitizer strips markup from free-text form fields.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// angleEscaper keeps stray brackets inert once entities are decoded.
var angleEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// NewSanitizer returns a sanitizer that removes every HTML element.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Text decodes entities, removes tags and trims whitespace. Encoded markup is
// decoded before the policy runs, so it is stripped like literal markup.
// Plain text such as "R&D" survives unchanged.
func (s *Sanitizer) Text(raw string) string {
	stripped := s.policy.Sanitize(html.UnescapeString(raw))
	return strings.TrimSpace(angleEscaper.Replace(html.UnescapeString(stripped)))
}

// validateCreateTicket sanitizes req and checks every field, reporting all
// failures at once.
func validateCreateTicket(s *Sanitizer, req dto.CreateTicketRequest) (service.TicketCreateInput, error) {
	input := service.TicketCreateInput{
		Name:        s.Text(req.Name),
		Email:       s.Text(req.Email),
		RequestType: domain.Category(s.Text(req.RequestType)),
		Description: s.Text(req.Description),
	}
	problems := map[string]any{}

	if n := utf8.RuneCountInString(input.Name); n < nameMinLen || n > nameMaxLen {
		problems["name"] = "name must be between 2 and 100 characters"
	}
	if input.Email == "" {
		problems["email"] = "email is required"
	} else if addr, err := mail.ParseAddress(input.Email); err != nil || addr.Address != input.Email {
		problems["email"] = "invalid email format"
	} else {
		input.Email = strings.ToLower(input.Email)
	}
	if !input.RequestType.Valid() {
		problems["requestType"] = "requestType must be one of: Network, Security, Cloud, General"
	}
	if n := utf8.RuneCountInString(input.Description); n < descriptionMinLen || n > descriptionMaxLen {
		problems["description"] = "description must be between 10 and 2000 characters"
	}
	if req.AudioBase64 != nil && *req.AudioBase64 != "" {
		if !strings.HasPrefix(*req.AudioBase64, audioPrefix) {
			problems["audioBase64"] = "invalid audio format"
		} else {
			input.AudioBase64 = req.AudioBase64
		}
	}

	if len(problems) > 0 {
		return service.TicketCreateInput{}, apperrors.NewValidationError("validation failed", problems)
	}
	return input, nil
}

// listQueryValues are the raw query string values of the listing endpoint.
type listQueryValues struct {
	Category    string
	Priority    string
	RequestType string
	Q           string
	Limit       string
}

func validateListQuery(s *Sanitizer, raw listQueryValues) (dto.TicketListQuery, error) {
	q := dto.TicketListQuery{
		Category:    strings.TrimSpace(raw.Category),
		Priority:    strings.TrimSpace(raw.Priority),
		RequestType: strings.TrimSpace(raw.RequestType),
		Q:           s.Text(raw.Q),
		Limit:       listLimitDefault,
	}
	problems := map[string]any{}

	if q.Category != "" && !domain.Category(q.Category).Valid() {
		problems["category"] = "unknown category"
	}
	if q.Priority != "" && !domain.TicketPriority(q.Priority).Valid() {
		problems["priority"] = "unknown priority"
	}
	if q.RequestType != "" && !domain.Category(q.RequestType).Valid() {
		problems["requestType"] = "requestType must be one of: Network, Security, Cloud, General"
	}
	if utf8.RuneCountInString(q.Q) > searchMaxLen {
		problems["q"] = "search query too long"
	}
	if raw.Limit != "" {
		limit, ok := parsePositiveInt(raw.Limit)
		if !ok || limit > listLimitMax {
			problems["limit"] = "limit must be between 1 and 100"
		} else {
			q.Limit = int(limit)
		}
	}

	if len(problems) > 0 {
		return dto.TicketListQuery{}, apperrors.NewValidationError("invalid query parameters", problems)
	}
	return q, nil
}
