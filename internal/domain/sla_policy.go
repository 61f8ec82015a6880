package domain

import "time"

// SLAPolicy holds the per-tenant time budgets for one priority.
type SLAPolicy struct {
	TenantID          int64
	Priority          TicketPriority
	ResponseMinutes   int
	ResolutionMinutes int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
