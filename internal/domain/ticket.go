package domain

import "time"

// Category enumerates the support areas a ticket can belong to.
type Category string

const (
	CategoryNetwork  Category = "Network"
	CategorySecurity Category = "Security"
	CategoryCloud    Category = "Cloud"
	CategoryGeneral  Category = "General"
)

// Categories lists every known category in display order.
var Categories = []Category{CategoryNetwork, CategorySecurity, CategoryCloud, CategoryGeneral}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryNetwork, CategorySecurity, CategoryCloud, CategoryGeneral:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
	TicketPriorityUrgent TicketPriority = "Urgent"
)

// Priorities lists every known priority from lowest to highest.
var Priorities = []TicketPriority{TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent}

// Valid reports whether p is one of the known priorities.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          int64
	Name        string
	Email       string
	RequestType Category
	Description string
	AudioBase64 *string
	Category    Category
	Priority    TicketPriority
	Summary     *string
	Entities    map[string]any
	RemoteID    *string
	CreatedAt   time.Time
}

// Enriched reports whether the ticket carries both classification fields.
func (t *Ticket) Enriched() bool {
	return t.Category.Valid() && t.Priority.Valid()
}
