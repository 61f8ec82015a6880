package sla

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestDefaultBudgets(t *testing.T) {
	tests := []struct {
		priority   domain.TicketPriority
		response   time.Duration
		resolution time.Duration
	}{
		{domain.TicketPriorityHigh, 240 * time.Minute, 1440 * time.Minute},
		{domain.TicketPriorityMedium, 720 * time.Minute, 2880 * time.Minute},
		{domain.TicketPriorityLow, 1440 * time.Minute, 4320 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			b := DefaultBudgets(tt.priority)
			assert.Equal(t, tt.response, b.Response)
			assert.Equal(t, tt.resolution, b.Resolution)
		})
	}
}

func TestDueDatesFallBackToDefaults(t *testing.T) {
	store := memory.NewStore()
	calc := NewCalculator(NewPolicyStore(store.SLAPolicies()))

	deadlines, err := calc.DueDates(context.Background(), 5, domain.TicketPriorityHigh, t0)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(240*time.Minute), deadlines.Response)
	assert.Equal(t, t0.Add(1440*time.Minute), deadlines.Resolution)
}

func TestDueDatesUseTenantPolicy(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.SLAPolicies().Upsert(ctx, &domain.SLAPolicy{
		TenantID: 5, Priority: domain.TicketPriorityHigh, ResponseMinutes: 30, ResolutionMinutes: 120,
	}))
	calc := NewCalculator(NewPolicyStore(store.SLAPolicies()))

	deadlines, err := calc.DueDates(ctx, 5, domain.TicketPriorityHigh, t0)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(30*time.Minute), deadlines.Response)
	assert.Equal(t, t0.Add(120*time.Minute), deadlines.Resolution)

	other, err := calc.DueDates(ctx, 6, domain.TicketPriorityHigh, t0)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(240*time.Minute), other.Response, "policies are tenant scoped")

	again, err := calc.DueDates(ctx, 5, domain.TicketPriorityHigh, t0)
	require.NoError(t, err)
	assert.Equal(t, deadlines, again)
}

type failingLookup struct{}

func (failingLookup) Lookup(context.Context, int64, domain.TicketPriority) (Budgets, bool, error) {
	return Budgets{}, false, errors.New("db down")
}

func TestDueDatesPropagatesLookupErrors(t *testing.T) {
	_, err := NewCalculator(failingLookup{}).DueDates(context.Background(), 1, domain.TicketPriorityLow, t0)
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	calc := NewCalculator(nil)
	ticket := &domain.Ticket{TenantID: 5, Priority: domain.TicketPriorityHigh, Status: domain.TicketStatusOpen, CreatedAt: t0}
	require.NoError(t, calc.Stamp(context.Background(), ticket))

	status := Evaluate(ticket, t0.Add(100*time.Minute))
	assert.Equal(t, StatePending, status.Response.State)
	assert.False(t, status.Response.Overdue)
	assert.False(t, status.Breached())

	status = Evaluate(ticket, t0.Add(241*time.Minute))
	assert.True(t, status.Response.Overdue)
	assert.False(t, status.Resolution.Overdue)
	assert.True(t, status.Breached())

	met := true
	at := t0.Add(100 * time.Minute)
	ticket.FirstResponseAt, ticket.SLAResponseMet = &at, &met
	status = Evaluate(ticket, t0.Add(1441*time.Minute))
	assert.Equal(t, StateMet, status.Response.State)
	assert.False(t, status.Response.Overdue)
	assert.True(t, status.Resolution.Overdue)

	missed := false
	resolvedAt := t0.Add(2000 * time.Minute)
	ticket.Status, ticket.ResolvedAt, ticket.SLAResolutionMet = domain.TicketStatusResolved, &resolvedAt, &missed
	status = Evaluate(ticket, t0.Add(3000*time.Minute))
	assert.Equal(t, StateMissed, status.Resolution.State)
	assert.False(t, status.Resolution.Overdue)
	assert.Equal(t, &resolvedAt, status.Resolution.CompletedAt)
}

func TestMetBoundary(t *testing.T) {
	due := t0.Add(time.Hour)
	assert.True(t, Met(due, due))
	assert.True(t, Met(due.Add(-time.Second), due))
	assert.False(t, Met(due.Add(time.Nanosecond), due))
}
