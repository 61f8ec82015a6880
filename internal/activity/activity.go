// Package activity is the append-only audit trail of ticket changes.
package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// SystemPrefix tags descriptions of entries without a human actor.
const SystemPrefix = "[system] "

// New builds an unsaved entry for ticket.
func New(ticket *domain.Ticket, kind domain.ActivityKind, description string, oldValue, newValue, actor *string, at time.Time) domain.TicketActivity {
	if actor == nil && !strings.HasPrefix(description, SystemPrefix) {
		description = SystemPrefix + description
	}
	return domain.TicketActivity{
		TicketID:    ticket.ID,
		TenantID:    ticket.TenantID,
		ActorID:     actor,
		Kind:        kind,
		Description: description,
		OldValue:    oldValue,
		NewValue:    newValue,
		CreatedAt:   at,
	}
}

// Value is a convenience for building old/new pairs.
func Value(v string) *string {
	return &v
}

// Log persists entries and lists them for display.
type Log struct {
	repo repository.TicketActivityRepository
}

// NewLog wraps repo.
func NewLog(repo repository.TicketActivityRepository) *Log {
	return &Log{repo: repo}
}

// Record appends one entry.
func (l *Log) Record(ctx context.Context, ticket *domain.Ticket, kind domain.ActivityKind, description string, oldValue, newValue, actor *string, at time.Time) (*domain.TicketActivity, error) {
	entry := New(ticket, kind, description, oldValue, newValue, actor, at)
	if err := l.repo.Create(ctx, &entry); err != nil {
		return nil, fmt.Errorf("record %s activity: %w", kind, err)
	}
	return &entry, nil
}

// RecordAll appends entries in order and writes back their ids.
func (l *Log) RecordAll(ctx context.Context, entries []domain.TicketActivity) error {
	for i := range entries {
		if entries[i].ActorID == nil && !strings.HasPrefix(entries[i].Description, SystemPrefix) {
			entries[i].Description = SystemPrefix + entries[i].Description
		}
		if err := l.repo.Create(ctx, &entries[i]); err != nil {
			return fmt.Errorf("record %s activity: %w", entries[i].Kind, err)
		}
	}
	return nil
}

// List returns entries newest first, ties broken by id.
func (l *Log) List(ctx context.Context, ticketID string) ([]domain.TicketActivity, error) {
	return l.repo.ListByTicket(ctx, ticketID)
}
