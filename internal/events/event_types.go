package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket.created"
	EventTicketStatusChanged   EventType = "ticket.status_changed"
	EventTicketPriorityChanged EventType = "ticket.priority_changed"
	EventTicketAssigned        EventType = "ticket.assigned"
	EventTicketSLAStarted      EventType = "ticket.sla_started"
	EventTicketCommentAdded    EventType = "ticket.comment_added"
	EventTicketFirstResponse   EventType = "ticket.first_response"
	EventTicketResolved        EventType = "ticket.resolved"
	EventTicketReopened        EventType = "ticket.reopened"
	EventTicketSLARecalculated EventType = "ticket.sla_recalculated"
)

// AllEventTypes lists every type the services publish.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketPriorityChanged,
	EventTicketAssigned,
	EventTicketSLAStarted,
	EventTicketCommentAdded,
	EventTicketFirstResponse,
	EventTicketResolved,
	EventTicketReopened,
	EventTicketSLARecalculated,
}

// TypeForActivity maps an activity kind onto its event type.
func TypeForActivity(kind domain.ActivityKind) EventType {
	return EventType("ticket." + string(kind))
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	TenantID   int64           `json:"tenant_id"`
	TicketID   string          `json:"ticket_id"`
	Identifier string          `json:"identifier"`
	ActorID    *string         `json:"actor_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    ActivityPayload `json:"payload"`
}

// ActivityPayload mirrors the activity entry plus a ticket snapshot.
type ActivityPayload struct {
	ActivityID  int64                 `json:"activity_id"`
	Kind        domain.ActivityKind   `json:"kind"`
	Description string                `json:"description"`
	OldValue    *string               `json:"old_value,omitempty"`
	NewValue    *string               `json:"new_value,omitempty"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	AssignedTo  *string               `json:"assigned_to,omitempty"`
}

// FromActivity builds the event announcing entry.
func FromActivity(ticket *domain.Ticket, entry domain.TicketActivity) Event {
	return Event{
		Type:       TypeForActivity(entry.Kind),
		TenantID:   ticket.TenantID,
		TicketID:   ticket.ID,
		Identifier: ticket.Identifier,
		ActorID:    entry.ActorID,
		Timestamp:  entry.CreatedAt,
		Payload: ActivityPayload{
			ActivityID:  entry.ID,
			Kind:        entry.Kind,
			Description: entry.Description,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			Status:      ticket.Status,
			Priority:    ticket.Priority,
			AssignedTo:  ticket.AssignedTo,
		},
	}
}
