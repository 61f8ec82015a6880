package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/sla"
)

var t0 = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) advance(d time.Duration) { c.now = t0.Add(d) }

func newMachine(t *testing.T, triggers Triggers) (*Machine, *manualClock, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	clock := &manualClock{now: t0}
	calc := sla.NewCalculator(sla.NewPolicyStore(store.SLAPolicies()))
	return NewMachine(calc, clock, triggers), clock, store
}

func startTicket(t *testing.T, m *Machine, assignee *string) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		ID:         "ticket-1",
		TenantID:   5,
		Identifier: "FR5-001",
		Priority:   domain.TicketPriorityHigh,
		AssignedTo: assignee,
	}
	_, err := m.Start(context.Background(), ticket, nil)
	require.NoError(t, err)
	return ticket
}

func kinds(entries []domain.TicketActivity) []domain.ActivityKind {
	out := make([]domain.ActivityKind, len(entries))
	for i, e := range entries {
		out[i] = e.Kind
	}
	return out
}

func status(s domain.TicketStatus) *domain.TicketStatus       { return &s }
func priority(p domain.TicketPriority) *domain.TicketPriority { return &p }
func str(s string) *string                                    { return &s }

func TestScenarios(t *testing.T) {
	ctx := context.Background()
	m, clock, _ := newMachine(t, nil)
	agent := str("agent-1")

	// A: creation stamps due instants from the default high policy.
	ticket := &domain.Ticket{ID: "ticket-1", TenantID: 5, Identifier: "FR5-001", Priority: domain.TicketPriorityHigh}
	entries, err := m.Start(ctx, ticket, nil)
	require.NoError(t, err)
	assert.Equal(t, []domain.ActivityKind{domain.ActivityCreated, domain.ActivitySLAStarted}, kinds(entries))
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, t0.Add(240*time.Minute), *ticket.SLAResponseDueAt)
	assert.Equal(t, t0.Add(1440*time.Minute), *ticket.SLAResolutionDueAt)
	assert.Nil(t, ticket.SLAResponseMet)
	assert.Nil(t, ticket.SLAResolutionMet)

	// B: first staff response at T0+100m.
	clock.advance(100 * time.Minute)
	entries, err = m.RecordComment(ctx, ticket, &domain.TicketComment{AuthorID: agent, Body: "on it"}, true)
	require.NoError(t, err)
	assert.Equal(t, []domain.ActivityKind{domain.ActivityCommentAdded, domain.ActivityFirstResponse}, kinds(entries))
	assert.Equal(t, t0.Add(100*time.Minute), *ticket.FirstResponseAt)
	require.NotNil(t, ticket.SLAResponseMet)
	assert.True(t, *ticket.SLAResponseMet)

	// C: resolved at T0+2000m misses the 1440m budget.
	clock.advance(2000 * time.Minute)
	entries, err = m.Apply(ctx, ticket, Changes{Status: status(domain.TicketStatusResolved)}, agent)
	require.NoError(t, err)
	assert.Equal(t, []domain.ActivityKind{domain.ActivityStatusChanged, domain.ActivityResolved}, kinds(entries))
	assert.Equal(t, t0.Add(2000*time.Minute), *ticket.ResolvedAt)
	require.NotNil(t, ticket.SLAResolutionMet)
	assert.False(t, *ticket.SLAResolutionMet)

	// D: reopening clears resolution tracking only.
	clock.advance(2100 * time.Minute)
	entries, err = m.Apply(ctx, ticket, Changes{Status: status(domain.TicketStatusInProgress)}, agent)
	require.NoError(t, err)
	assert.Equal(t, []domain.ActivityKind{domain.ActivityStatusChanged, domain.ActivityReopened}, kinds(entries))
	assert.Nil(t, ticket.ResolvedAt)
	assert.Nil(t, ticket.SLAResolutionMet)
	assert.Equal(t, t0.Add(100*time.Minute), *ticket.FirstResponseAt)
	assert.True(t, *ticket.SLAResponseMet)
}

func TestFirstResponseByStatusChangeNeedsAssignee(t *testing.T) {
	ctx := context.Background()
	m, clock, _ := newMachine(t, nil)
	ticket := startTicket(t, m, nil)

	clock.advance(30 * time.Minute)
	_, err := m.Apply(ctx, ticket, Changes{Status: status(domain.TicketStatusInProgress)}, nil)
	require.NoError(t, err)
	assert.Nil(t, ticket.FirstResponseAt, "unassigned tickets do not get a first response from a status change")

	clock.advance(300 * time.Minute)
	entries, err := m.Apply(ctx, ticket, Changes{
		Assignee: &AssigneeChange{AgentID: str("agent-7")},
		Status:   status(domain.TicketStatusOnHold),
	}, str("agent-7"))
	require.NoError(t, err)
	assert.Equal(t, []domain.ActivityKind{
		domain.ActivityAssigned, domain.ActivityStatusChanged, domain.ActivityFirstResponse,
	}, kinds(entries))
	assert.Equal(t, t0.Add(300*time.Minute), *ticket.FirstResponseAt)
	assert.False(t, *ticket.SLAResponseMet, "300m is past the 240m budget")
}

func TestFirstResponseIsStampedOnce(t *testing.T) {
	ctx := context.Background()
	m, clock, _ := newMachine(t, nil)
	ticket := startTicket(t, m, str("agent-1"))

	clock.advance(10 * time.Minute)
	_, err := m.Apply(ctx, ticket, Changes{Status: status(domain.TicketStatusInProgress)}, str("agent-1"))
	require.NoError(t, err)
	first := *ticket.FirstResponseAt

	clock.advance(500 * time.Minute)
	entries, err := m.RecordComment(ctx, ticket, &domain.TicketComment{AuthorID: str("agent-1"), Body: "update"}, true)
	require.NoError(t, err)
	assert.Equal(t, []domain.ActivityKind{domain.ActivityCommentAdded}, kinds(entries))
	assert.Equal(t, first, *ticket.FirstResponseAt)
	assert.True(t, *ticket.SLAResponseMet)
}

func TestCommentTriggers(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		triggers Triggers
		comment  domain.TicketComment
		staff    bool
		stamped  bool
	}{
		{"staff public comment", nil, domain.TicketComment{Body: "hi"}, true, true},
		{"staff internal note default", nil, domain.TicketComment{Body: "note", IsInternal: true}, true, false},
		{"staff internal note enabled", Triggers{TriggerInternalComment: true}, domain.TicketComment{Body: "note", IsInternal: true}, true, true},
		{"public trigger disabled", Triggers{TriggerStatusChange: true}, domain.TicketComment{Body: "hi"}, true, false},
		{"customer comment", nil, domain.TicketComment{Body: "help", IsCustomer: true}, false, false},
		{"non staff comment", nil, domain.TicketComment{Body: "hi"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, clock, _ := newMachine(t, tt.triggers)
			ticket := startTicket(t, m, nil)
			clock.advance(5 * time.Minute)

			_, err := m.RecordComment(ctx, ticket, &tt.comment, tt.staff)
			require.NoError(t, err)
			assert.Equal(t, tt.stamped, ticket.FirstResponseAt != nil)
		})
	}
}

func TestPriorityChangeRecomputesFromCreation(t *testing.T) {
	ctx := context.Background()
	m, clock, _ := newMachine(t, nil)
	ticket := startTicket(t, m, str("agent-1"))

	clock.advance(60 * time.Minute)
	_, err := m.Apply(ctx, ticket, Changes{Status: status(domain.TicketStatusInProgress)}, str("agent-1"))
	require.NoError(t, err)

	clock.advance(600 * time.Minute)
	entries, err := m.Apply(ctx, ticket, Changes{Priority: priority(domain.TicketPriorityLow)}, str("agent-1"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActivityPriorityChanged, entries[0].Kind)
	assert.Equal(t, "high", *entries[0].OldValue)
	assert.Equal(t, "low", *entries[0].NewValue)
	assert.Equal(t, t0.Add(1440*time.Minute), *ticket.SLAResponseDueAt)
	assert.Equal(t, t0.Add(4320*time.Minute), *ticket.SLAResolutionDueAt)
	assert.True(t, *ticket.SLAResponseMet, "met flags survive a priority change")
}

func TestAssignmentEntries(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newMachine(t, nil)
	ticket := startTicket(t, m, nil)

	entries, err := m.Apply(ctx, ticket, Changes{Assignee: &AssigneeChange{AgentID: str("a1")}}, str("admin"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Unassigned", *entries[0].OldValue)
	assert.Equal(t, "a1", *entries[0].NewValue)

	entries, err = m.Apply(ctx, ticket, Changes{Assignee: &AssigneeChange{AgentID: str("a1")}}, str("admin"))
	require.NoError(t, err)
	assert.Empty(t, entries, "same assignee is a no-op")

	entries, err = m.Apply(ctx, ticket, Changes{Assignee: &AssigneeChange{}}, str("admin"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Unassigned", *entries[0].NewValue)
	assert.Nil(t, ticket.AssignedTo)
}

func TestClosedToResolvedKeepsResolution(t *testing.T) {
	ctx := context.Background()
	m, clock, _ := newMachine(t, nil)
	ticket := startTicket(t, m, nil)

	clock.advance(100 * time.Minute)
	_, err := m.Apply(ctx, ticket, Changes{Status: status(domain.TicketStatusClosed)}, nil)
	require.NoError(t, err)
	resolved := *ticket.ResolvedAt

	clock.advance(5000 * time.Minute)
	entries, err := m.Apply(ctx, ticket, Changes{Status: status(domain.TicketStatusResolved)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []domain.ActivityKind{domain.ActivityStatusChanged}, kinds(entries))
	assert.Equal(t, resolved, *ticket.ResolvedAt)
	assert.True(t, *ticket.SLAResolutionMet)
}

func TestPermissiveTransitions(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newMachine(t, nil)
	ticket := startTicket(t, m, nil)

	for _, from := range domain.TicketStatuses {
		for _, to := range domain.TicketStatuses {
			ticket.Status = from
			ticket.ResolvedAt, ticket.SLAResolutionMet = nil, nil
			if from.IsTerminal() {
				at := t0
				ticket.ResolvedAt = &at
			}
			_, err := m.Apply(ctx, ticket, Changes{Status: status(to)}, nil)
			require.NoError(t, err, "%s -> %s", from, to)
			assert.Equal(t, to, ticket.Status)
			if to.IsTerminal() {
				assert.NotNil(t, ticket.ResolvedAt)
			}
			if from.IsTerminal() && !to.IsTerminal() {
				assert.Nil(t, ticket.ResolvedAt)
			}
		}
	}
}

func TestApplyRejectsUnknownValues(t *testing.T) {
	m, _, _ := newMachine(t, nil)
	ticket := startTicket(t, m, nil)

	_, err := m.Apply(context.Background(), ticket, Changes{Status: status("archived")}, nil)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = m.Apply(context.Background(), ticket, Changes{Priority: priority("urgent")}, nil)
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestLazyDueDates(t *testing.T) {
	ctx := context.Background()
	m, clock, _ := newMachine(t, nil)
	ticket := &domain.Ticket{
		ID: "legacy", TenantID: 5, Priority: domain.TicketPriorityMedium,
		Status: domain.TicketStatusOpen, CreatedAt: t0, AssignedTo: str("a1"),
	}

	clock.advance(800 * time.Minute)
	entries, err := m.Apply(ctx, ticket, Changes{Status: status(domain.TicketStatusInProgress)}, str("a1"))
	require.NoError(t, err)
	assert.Equal(t, []domain.ActivityKind{
		domain.ActivitySLARecalculated, domain.ActivityStatusChanged, domain.ActivityFirstResponse,
	}, kinds(entries))
	assert.True(t, entries[0].SystemGenerated())
	assert.Equal(t, t0.Add(720*time.Minute), *ticket.SLAResponseDueAt)
	assert.False(t, *ticket.SLAResponseMet)

	again, err := m.EnsureDueDates(ctx, ticket)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestRecalculate(t *testing.T) {
	ctx := context.Background()
	m, _, store := newMachine(t, nil)
	ticket := startTicket(t, m, nil)
	met := true
	ticket.SLAResponseMet = &met

	entries, changed, err := m.Recalculate(ctx, ticket, false)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, entries)

	require.NoError(t, store.SLAPolicies().Upsert(ctx, &domain.SLAPolicy{
		TenantID: 5, Priority: domain.TicketPriorityHigh, ResponseMinutes: 60, ResolutionMinutes: 480,
	}))

	_, changed, err = m.Recalculate(ctx, ticket, false)
	require.NoError(t, err)
	assert.False(t, changed, "default recalculation leaves stamped tickets alone")
	assert.Equal(t, t0.Add(240*time.Minute), *ticket.SLAResponseDueAt)

	entries, changed, err = m.Recalculate(ctx, ticket, true)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []domain.ActivityKind{domain.ActivitySLARecalculated}, kinds(entries))
	assert.Equal(t, t0.Add(60*time.Minute), *ticket.SLAResponseDueAt)
	assert.Equal(t, t0.Add(480*time.Minute), *ticket.SLAResolutionDueAt)
	assert.True(t, *ticket.SLAResponseMet)

	_, changed, err = m.Recalculate(ctx, ticket, true)
	require.NoError(t, err)
	assert.False(t, changed, "recomputation is idempotent")
}

func TestParseTriggers(t *testing.T) {
	set, err := ParseTriggers(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTriggers(), set)

	set, err = ParseTriggers([]string{"Internal_Comment", " status_change"})
	require.NoError(t, err)
	assert.True(t, set.Enabled(TriggerInternalComment))
	assert.True(t, set.Enabled(TriggerStatusChange))
	assert.False(t, set.Enabled(TriggerPublicComment))

	_, err = ParseTriggers([]string{"phase_of_moon"})
	assert.Error(t, err)
}
