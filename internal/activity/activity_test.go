package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
)

func TestNewTagsSystemEntries(t *testing.T) {
	ticket := &domain.Ticket{ID: "t1", TenantID: 3}
	now := time.Now().UTC()

	system := New(ticket, domain.ActivitySLAStarted, "SLA clock started", nil, nil, nil, now)
	assert.Equal(t, "[system] SLA clock started", system.Description)
	assert.True(t, system.SystemGenerated())
	assert.Equal(t, int64(3), system.TenantID)

	agent := "agent-1"
	human := New(ticket, domain.ActivityStatusChanged, "Status changed", Value("open"), Value("resolved"), &agent, now)
	assert.Equal(t, "Status changed", human.Description)
	assert.False(t, human.SystemGenerated())
}

func TestLogListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	log := NewLog(memory.NewStore().Activities())
	ticket := &domain.Ticket{ID: "t1", TenantID: 1}
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := log.Record(ctx, ticket, domain.ActivityCreated, "Ticket created", nil, nil, nil, t0)
	require.NoError(t, err)
	require.NoError(t, log.RecordAll(ctx, []domain.TicketActivity{
		New(ticket, domain.ActivityStatusChanged, "a", nil, nil, nil, t0.Add(time.Minute)),
		New(ticket, domain.ActivityResolved, "b", nil, nil, nil, t0.Add(time.Minute)),
	}))
	_, err = log.Record(ctx, &domain.Ticket{ID: "t2"}, domain.ActivityCreated, "other", nil, nil, nil, t0)
	require.NoError(t, err)

	entries, err := log.List(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.ActivityResolved, entries[0].Kind, "same instant: higher id first")
	assert.Equal(t, domain.ActivityStatusChanged, entries[1].Kind)
	assert.Equal(t, domain.ActivityCreated, entries[2].Kind)
	assert.Greater(t, entries[0].ID, entries[1].ID)
}
