// Package lifecycle applies status, priority, assignment and comment events
// to tickets and keeps their SLA fields consistent.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/helpdesk/internal/activity"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/sla"
)

var (
	// ErrInvalidStatus is returned for statuses outside the known set.
	ErrInvalidStatus = errors.New("invalid ticket status")
	// ErrInvalidPriority is returned for priorities outside the known set.
	ErrInvalidPriority = errors.New("invalid ticket priority")
)

const unassigned = "Unassigned"

// AssigneeChange sets or clears the assignee. A nil AgentID unassigns.
type AssigneeChange struct {
	AgentID *string
}

// Changes is one declarative transition request. Nil fields are untouched.
type Changes struct {
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
	Assignee *AssigneeChange
}

// Empty is true when nothing is requested.
func (c Changes) Empty() bool {
	return c.Status == nil && c.Priority == nil && c.Assignee == nil
}

// Machine is the permissive ticket state machine. Every status may move to
// every other status.
type Machine struct {
	calculator *sla.Calculator
	clock      sla.Clock
	triggers   Triggers
}

// NewMachine builds a Machine. A nil clock reads system time and nil
// triggers fall back to DefaultTriggers.
func NewMachine(calculator *sla.Calculator, clock sla.Clock, triggers Triggers) *Machine {
	if clock == nil {
		clock = sla.SystemClock{}
	}
	if triggers == nil {
		triggers = DefaultTriggers()
	}
	return &Machine{calculator: calculator, clock: clock, triggers: triggers}
}

// Now exposes the machine clock.
func (m *Machine) Now() time.Time {
	return m.clock.Now()
}

// Start initialises a new ticket: status open, due instants stamped from
// CreatedAt. Returns the created, sla_started and optional assigned entries.
func (m *Machine) Start(ctx context.Context, ticket *domain.Ticket, actor *string) ([]domain.TicketActivity, error) {
	if !ticket.Priority.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, ticket.Priority)
	}
	now := m.clock.Now()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = ticket.CreatedAt
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusOpen
	}
	if err := m.calculator.Stamp(ctx, ticket); err != nil {
		return nil, err
	}

	entries := []domain.TicketActivity{
		activity.New(ticket, domain.ActivityCreated,
			fmt.Sprintf("Ticket created with %s priority", ticket.Priority),
			nil, activity.Value(string(ticket.Status)), actor, ticket.CreatedAt),
		activity.New(ticket, domain.ActivitySLAStarted,
			fmt.Sprintf("SLA started: response due %s, resolution due %s",
				ticket.SLAResponseDueAt.Format(time.RFC3339), ticket.SLAResolutionDueAt.Format(time.RFC3339)),
			nil, nil, nil, ticket.CreatedAt),
	}
	if ticket.AssignedTo != nil {
		entries = append(entries, activity.New(ticket, domain.ActivityAssigned,
			fmt.Sprintf("Assigned to %s", *ticket.AssignedTo),
			activity.Value(unassigned), activity.Value(*ticket.AssignedTo), actor, ticket.CreatedAt))
	}
	return entries, nil
}

// EnsureDueDates lazily computes missing due instants from CreatedAt and the
// current priority. Tickets that already have both are left alone.
func (m *Machine) EnsureDueDates(ctx context.Context, ticket *domain.Ticket) ([]domain.TicketActivity, error) {
	if ticket.HasDueDates() {
		return nil, nil
	}
	if err := m.calculator.Stamp(ctx, ticket); err != nil {
		return nil, err
	}
	return []domain.TicketActivity{m.recalculatedEntry(ticket, "SLA due dates computed")}, nil
}

// Recalculate fills missing due instants, or with force re-derives both from
// CreatedAt and the current policy. Met flags are never touched. changed
// reports whether any due instant moved.
func (m *Machine) Recalculate(ctx context.Context, ticket *domain.Ticket, force bool) (entries []domain.TicketActivity, changed bool, err error) {
	if !force {
		entries, err = m.EnsureDueDates(ctx, ticket)
		return entries, len(entries) > 0, err
	}
	if !ticket.HasDueDates() {
		entries, err = m.EnsureDueDates(ctx, ticket)
		return entries, len(entries) > 0, err
	}

	deadlines, err := m.calculator.DueDates(ctx, ticket.TenantID, ticket.Priority, ticket.CreatedAt)
	if err != nil {
		return nil, false, err
	}
	if deadlines.Response.Equal(*ticket.SLAResponseDueAt) && deadlines.Resolution.Equal(*ticket.SLAResolutionDueAt) {
		return nil, false, nil
	}
	response, resolution := deadlines.Response, deadlines.Resolution
	ticket.SLAResponseDueAt = &response
	ticket.SLAResolutionDueAt = &resolution
	return []domain.TicketActivity{m.recalculatedEntry(ticket, "SLA due dates recalculated from current policy")}, true, nil
}

func (m *Machine) recalculatedEntry(ticket *domain.Ticket, what string) domain.TicketActivity {
	return activity.New(ticket, domain.ActivitySLARecalculated,
		fmt.Sprintf("%s: response due %s, resolution due %s", what,
			ticket.SLAResponseDueAt.Format(time.RFC3339), ticket.SLAResolutionDueAt.Format(time.RFC3339)),
		nil, nil, nil, m.clock.Now())
}

// Apply runs one transition request in order: priority, assignee, status.
func (m *Machine) Apply(ctx context.Context, ticket *domain.Ticket, changes Changes, actor *string) ([]domain.TicketActivity, error) {
	if changes.Status != nil && !changes.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *changes.Status)
	}
	if changes.Priority != nil && !changes.Priority.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, *changes.Priority)
	}

	now := m.clock.Now()
	entries, err := m.EnsureDueDates(ctx, ticket)
	if err != nil {
		return nil, err
	}
	mutated := len(entries) > 0

	if changes.Priority != nil && *changes.Priority != ticket.Priority {
		old := ticket.Priority
		ticket.Priority = *changes.Priority
		if err := m.calculator.Stamp(ctx, ticket); err != nil {
			return nil, err
		}
		entries = append(entries, activity.New(ticket, domain.ActivityPriorityChanged,
			fmt.Sprintf("Priority changed from %s to %s", old, ticket.Priority),
			activity.Value(string(old)), activity.Value(string(ticket.Priority)), actor, now))
		mutated = true
	}

	if changes.Assignee != nil && !sameAssignee(ticket.AssignedTo, changes.Assignee.AgentID) {
		old := assigneeLabel(ticket.AssignedTo)
		ticket.AssignedTo = cloneString(changes.Assignee.AgentID)
		next := assigneeLabel(ticket.AssignedTo)
		description := fmt.Sprintf("Assigned to %s", next)
		if ticket.AssignedTo == nil {
			description = "Unassigned"
		}
		entries = append(entries, activity.New(ticket, domain.ActivityAssigned, description,
			activity.Value(old), activity.Value(next), actor, now))
		mutated = true
	}

	if changes.Status != nil && *changes.Status != ticket.Status {
		old := ticket.Status
		ticket.Status = *changes.Status
		entries = append(entries, activity.New(ticket, domain.ActivityStatusChanged,
			fmt.Sprintf("Status changed from %s to %s", old, ticket.Status),
			activity.Value(string(old)), activity.Value(string(ticket.Status)), actor, now))

		if m.triggers.Enabled(TriggerStatusChange) && ticket.FirstResponseAt == nil &&
			ticket.Status != domain.TicketStatusOpen && ticket.AssignedTo != nil {
			entries = append(entries, m.stampFirstResponse(ticket, now, actor))
		}

		switch {
		case ticket.Status.IsTerminal() && ticket.ResolvedAt == nil:
			entries = append(entries, m.stampResolved(ticket, now, actor))
		case old.IsTerminal() && !ticket.Status.IsTerminal():
			ticket.ResolvedAt = nil
			ticket.SLAResolutionMet = nil
			entries = append(entries, activity.New(ticket, domain.ActivityReopened,
				fmt.Sprintf("Ticket reopened from %s; resolution tracking reset", old),
				activity.Value(string(old)), activity.Value(string(ticket.Status)), actor, now))
		}
		mutated = true
	}

	if mutated {
		ticket.UpdatedAt = now
	}
	return entries, nil
}

// RecordComment reacts to a new comment. staff is true when an agent wrote it.
func (m *Machine) RecordComment(ctx context.Context, ticket *domain.Ticket, comment *domain.TicketComment, staff bool) ([]domain.TicketActivity, error) {
	now := m.clock.Now()
	entries, err := m.EnsureDueDates(ctx, ticket)
	if err != nil {
		return nil, err
	}

	description := "Comment added"
	switch {
	case comment.IsInternal:
		description = "Internal note added"
	case comment.IsCustomer:
		description = "Customer reply added"
	}
	entries = append(entries, activity.New(ticket, domain.ActivityCommentAdded, description,
		nil, nil, comment.AuthorID, now))

	if staff && !comment.IsCustomer && ticket.FirstResponseAt == nil {
		qualifies := (!comment.IsInternal && m.triggers.Enabled(TriggerPublicComment)) ||
			(comment.IsInternal && m.triggers.Enabled(TriggerInternalComment))
		if qualifies {
			entries = append(entries, m.stampFirstResponse(ticket, now, comment.AuthorID))
		}
	}
	ticket.UpdatedAt = now
	return entries, nil
}

func (m *Machine) stampFirstResponse(ticket *domain.Ticket, now time.Time, actor *string) domain.TicketActivity {
	at := now
	met := sla.Met(at, *ticket.SLAResponseDueAt)
	ticket.FirstResponseAt = &at
	ticket.SLAResponseMet = &met
	return activity.New(ticket, domain.ActivityFirstResponse,
		fmt.Sprintf("First response recorded, response SLA %s", outcome(met)),
		nil, activity.Value(at.Format(time.RFC3339)), actor, now)
}

func (m *Machine) stampResolved(ticket *domain.Ticket, now time.Time, actor *string) domain.TicketActivity {
	at := now
	met := sla.Met(at, *ticket.SLAResolutionDueAt)
	ticket.ResolvedAt = &at
	ticket.SLAResolutionMet = &met
	return activity.New(ticket, domain.ActivityResolved,
		fmt.Sprintf("Ticket %s, resolution SLA %s", ticket.Status, outcome(met)),
		nil, activity.Value(at.Format(time.RFC3339)), actor, now)
}

func outcome(met bool) string {
	if met {
		return "met"
	}
	return "missed"
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func assigneeLabel(v *string) string {
	if v == nil {
		return unassigned
	}
	return *v
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
