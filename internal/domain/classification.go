package domain

// ClassificationSource tells whether a result came from the remote service.
type ClassificationSource string

const (
	SourceRemote   ClassificationSource = "remote"
	SourceFallback ClassificationSource = "fallback"
)

// ClassificationResult is the enrichment merged into a ticket before it is stored.
type ClassificationResult struct {
	Category Category
	Priority TicketPriority
	Summary  *string
	Entities map[string]any
	Source   ClassificationSource
}

// Apply copies the classification fields onto the ticket.
func (r ClassificationResult) Apply(t *Ticket) {
	t.Category = r.Category
	t.Priority = r.Priority
	t.Summary = r.Summary
	t.Entities = r.Entities
}
