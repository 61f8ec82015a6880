package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusOnHold     TicketStatus = "on_hold"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists every status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusOnHold,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, candidate := range TicketStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// IsTerminal is true for resolved and closed.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// TicketPriorities lists priorities from least to most urgent.
var TicketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	return p.Rank() >= 0
}

// Rank orders priorities for escalation; -1 for unknown values.
func (p TicketPriority) Rank() int {
	for i, candidate := range TicketPriorities {
		if p == candidate {
			return i
		}
	}
	return -1
}

// TicketSource records the channel a ticket arrived through.
type TicketSource string

const (
	TicketSourcePortal TicketSource = "portal"
	TicketSourceEmail  TicketSource = "email"
	TicketSourceChat   TicketSource = "chat"
	TicketSourceAPI    TicketSource = "api"
)

// Valid reports whether s is a known source.
func (s TicketSource) Valid() bool {
	switch s {
	case TicketSourcePortal, TicketSourceEmail, TicketSourceChat, TicketSourceAPI:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID           string
	TenantID     int64
	Identifier   string
	Title        string
	Description  string
	Status       TicketStatus
	Priority     TicketPriority
	Source       TicketSource
	AssignedTo   *string
	CreatedBy    *string
	ContactName  string
	ContactEmail string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	FirstResponseAt    *time.Time
	ResolvedAt         *time.Time
	SLAResponseDueAt   *time.Time
	SLAResolutionDueAt *time.Time
	SLAResponseMet     *bool
	SLAResolutionMet   *bool

	// Version is bumped on every successful update.
	Version int
}

// HasDueDates is true once both SLA deadlines are stamped.
func (t *Ticket) HasDueDates() bool {
	return t.SLAResponseDueAt != nil && t.SLAResolutionDueAt != nil
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.AssignedTo = cloneString(t.AssignedTo)
	c.CreatedBy = cloneString(t.CreatedBy)
	c.FirstResponseAt = cloneTime(t.FirstResponseAt)
	c.ResolvedAt = cloneTime(t.ResolvedAt)
	c.SLAResponseDueAt = cloneTime(t.SLAResponseDueAt)
	c.SLAResolutionDueAt = cloneTime(t.SLAResolutionDueAt)
	c.SLAResponseMet = cloneBool(t.SLAResponseMet)
	c.SLAResolutionMet = cloneBool(t.SLAResolutionMet)
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
