package sla

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// State is the outcome of one SLA track.
type State string

const (
	StatePending State = "pending"
	StateMet     State = "met"
	StateMissed  State = "missed"
)

// Track reports one of the two SLA clocks of a ticket.
type Track struct {
	State       State
	Overdue     bool
	DueAt       *time.Time
	CompletedAt *time.Time
}

// Status is the read model handed to collaborators.
type Status struct {
	Response   Track
	Resolution Track
}

// Breached is true when either track is overdue or missed.
func (s Status) Breached() bool {
	return s.Response.Overdue || s.Resolution.Overdue ||
		s.Response.State == StateMissed || s.Resolution.State == StateMissed
}

// Evaluate computes SLA status at now. Overdue is never stored.
func Evaluate(ticket *domain.Ticket, now time.Time) Status {
	return Status{
		Response: Track{
			State:       stateOf(ticket.SLAResponseMet),
			Overdue:     ResponseOverdue(ticket, now),
			DueAt:       ticket.SLAResponseDueAt,
			CompletedAt: ticket.FirstResponseAt,
		},
		Resolution: Track{
			State:       stateOf(ticket.SLAResolutionMet),
			Overdue:     ResolutionOverdue(ticket, now),
			DueAt:       ticket.SLAResolutionDueAt,
			CompletedAt: ticket.ResolvedAt,
		},
	}
}

// ResponseOverdue: no first response yet and now is past the due instant.
func ResponseOverdue(ticket *domain.Ticket, now time.Time) bool {
	return ticket.FirstResponseAt == nil && ticket.SLAResponseDueAt != nil && now.After(*ticket.SLAResponseDueAt)
}

// ResolutionOverdue: still working and now is past the due instant.
func ResolutionOverdue(ticket *domain.Ticket, now time.Time) bool {
	return !ticket.Status.IsTerminal() && ticket.SLAResolutionDueAt != nil && now.After(*ticket.SLAResolutionDueAt)
}

// IsOverdue is true when either track is overdue.
func IsOverdue(ticket *domain.Ticket, now time.Time) bool {
	return ResponseOverdue(ticket, now) || ResolutionOverdue(ticket, now)
}

// Met compares an event instant with its due instant; reaching the due
// instant exactly still counts as met.
func Met(at, due time.Time) bool {
	return !at.After(due)
}

func stateOf(met *bool) State {
	switch {
	case met == nil:
		return StatePending
	case *met:
		return StateMet
	default:
		return StateMissed
	}
}
