package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

func newTicket(id, identifier string, tenantID int64, created time.Time) *domain.Ticket {
	return &domain.Ticket{
		ID:         id,
		TenantID:   tenantID,
		Identifier: identifier,
		Title:      "t " + identifier,
		Status:     domain.TicketStatusOpen,
		Priority:   domain.TicketPriorityMedium,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestTenantSequence(t *testing.T) {
	ctx := context.Background()
	tenants := NewStore().Tenants()

	first := &domain.Tenant{Name: "Frontline"}
	require.NoError(t, tenants.Create(ctx, first))
	assert.Equal(t, int64(1), first.ID)

	require.NoError(t, tenants.Create(ctx, &domain.Tenant{ID: 10, Name: "Acme"}))
	next := &domain.Tenant{Name: "Beta"}
	require.NoError(t, tenants.Create(ctx, next))
	assert.Equal(t, int64(11), next.ID)

	require.NoError(t, tenants.Delete(ctx, 10))
	_, err := tenants.GetByID(ctx, 10)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestTicketUniquenessAndVersioning(t *testing.T) {
	ctx := context.Background()
	tickets := NewStore().Tickets()
	now := time.Now().UTC()

	ticket := newTicket("a", "FR5-001", 5, now)
	require.NoError(t, tickets.Create(ctx, ticket))
	assert.Equal(t, 1, ticket.Version)

	err := tickets.Create(ctx, newTicket("b", "FR5-001", 5, now))
	assert.ErrorIs(t, err, repository.ErrDuplicateIdentifier)
	require.NoError(t, tickets.Create(ctx, newTicket("c", "FR5-001", 6, now)), "identifiers are unique per tenant")

	stale := *ticket
	ticket.Title = "updated"
	require.NoError(t, tickets.Update(ctx, ticket))
	assert.Equal(t, 2, ticket.Version)

	stale.Title = "lost"
	assert.ErrorIs(t, tickets.Update(ctx, &stale), repository.ErrStaleTicket)

	stored, err := tickets.GetByIdentifier(ctx, 5, "FR5-001")
	require.NoError(t, err)
	assert.Equal(t, "updated", stored.Title)

	_, err = tickets.GetByID(ctx, 6, "a")
	assert.ErrorIs(t, err, pgx.ErrNoRows, "tickets are invisible across tenants")
}

func TestTicketFilterAndOrdering(t *testing.T) {
	ctx := context.Background()
	tickets := NewStore().Tickets()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	agent := "agent-1"

	for i, identifier := range []string{"FR5-001", "FR5-002", "FR5-003"} {
		ticket := newTicket(identifier, identifier, 5, base.Add(time.Duration(i)*time.Hour))
		if i == 1 {
			ticket.AssignedTo = &agent
			ticket.Priority = domain.TicketPriorityHigh
		}
		require.NoError(t, tickets.Create(ctx, ticket))
	}

	all, err := tickets.ListWithFilter(ctx, repository.TicketFilter{TenantID: 5})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "FR5-003", all[0].Identifier, "newest first")

	assigned, err := tickets.ListWithFilter(ctx, repository.TicketFilter{TenantID: 5, AssignedTo: &agent})
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, "FR5-002", assigned[0].Identifier)

	from := base.Add(30 * time.Minute)
	page, err := tickets.ListWithFilter(ctx, repository.TicketFilter{TenantID: 5, CreatedFrom: &from, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "FR5-002", page[0].Identifier)

	oldest, err := tickets.ListByTenant(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "FR5-001", oldest[0].Identifier)

	ids, err := tickets.IdentifiersWithPrefix(ctx, 5, "FR5")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"FR5-001", "FR5-002", "FR5-003"}, ids)

	n, err := tickets.DeleteByTenant(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestAgentEmailUniqueness(t *testing.T) {
	ctx := context.Background()
	agents := NewStore().Agents()

	require.NoError(t, agents.Create(ctx, &domain.Agent{ID: "a1", TenantID: 5, Email: "ana@frontline.test"}))
	err := agents.Create(ctx, &domain.Agent{ID: "a2", TenantID: 6, Email: "ANA@frontline.test"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	found, err := agents.GetByEmail(ctx, "Ana@Frontline.test")
	require.NoError(t, err)
	assert.Equal(t, "a1", found.ID)
}

func TestActivityNewestFirst(t *testing.T) {
	ctx := context.Background()
	activities := NewStore().Activities()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for _, kind := range []domain.ActivityKind{domain.ActivityCreated, domain.ActivitySLAStarted, domain.ActivityAssigned} {
		require.NoError(t, activities.Create(ctx, &domain.TicketActivity{TicketID: "t1", TenantID: 5, Kind: kind, CreatedAt: at}))
	}
	require.NoError(t, activities.Create(ctx, &domain.TicketActivity{TicketID: "t2", TenantID: 5, Kind: domain.ActivityCreated, CreatedAt: at}))

	entries, err := activities.ListByTicket(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.ActivityAssigned, entries[0].Kind)
	assert.Equal(t, domain.ActivityCreated, entries[2].Kind)

	require.NoError(t, activities.DeleteByTenant(ctx, 5))
	entries, err = activities.ListByTicket(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
