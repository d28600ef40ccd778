package classifier

import (
	"fmt"
	"strings"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

const summaryPrefixRunes = 100

type keywordRule[T any] struct {
	value    T
	keywords []string
}

// Rules are checked in order; the first matching set wins.
var priorityRules = []keywordRule[domain.TicketPriority]{
	{domain.TicketPriorityUrgent, []string{"urgent", "critical", "emergency", "down", "outage", "not working"}},
	{domain.TicketPriorityHigh, []string{"important", "asap", "high priority", "production"}},
	{domain.TicketPriorityLow, []string{"question", "inquiry", "request", "when possible"}},
}

var categoryRules = []keywordRule[domain.Category]{
	{domain.CategoryNetwork, []string{"wifi", "internet", "connection", "network", "bandwidth"}},
	{domain.CategorySecurity, []string{"password", "access", "login", "security", "breach", "virus"}},
	{domain.CategoryCloud, []string{"cloud", "backup", "sync", "storage", "drive"}},
}

// FallbackClassify derives a classification from keyword rules alone.
// It is deterministic and always yields a valid category and priority.
func FallbackClassify(description string, requestType domain.Category) domain.ClassificationResult {
	text := strings.ToLower(description)

	category := requestType
	if !category.Valid() {
		category = domain.CategoryGeneral
	}

	summary := fmt.Sprintf("%s request - %s...", requestType, firstRunes(description, summaryPrefixRunes))

	return domain.ClassificationResult{
		Category: firstMatch(text, categoryRules, category),
		Priority: firstMatch(text, priorityRules, domain.TicketPriorityMedium),
		Summary:  &summary,
		Source:   domain.SourceFallback,
	}
}

func firstMatch[T any](text string, rules []keywordRule[T], fallback T) T {
	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.value
			}
		}
	}
	return fallback
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
