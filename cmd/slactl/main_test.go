package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/app"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/sla"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newTestServices(t *testing.T, clock sla.Clock) (*app.Services, openFunc) {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Tenants().Create(context.Background(), &domain.Tenant{ID: 5, Name: "Frontline"}))
	cfg := &config.Config{
		Auth:       config.AuthConfig{JWTSecret: "x", AccessTokenTTLMinutes: 5, BcryptCost: 4},
		Identifier: config.IdentifierConfig{MaxAttempts: 50},
		SLA:        config.SLAConfig{FirstResponseTriggers: []string{"status_change", "public_comment"}},
	}
	services, err := app.NewServices(app.Options{Config: cfg, Repos: app.MemoryRepositories(store), Clock: clock})
	require.NoError(t, err)
	return services, func(context.Context) (*app.Services, func(), error) {
		return services, func() {}, nil
	}
}

func TestRunUsage(t *testing.T) {
	_, open := newTestServices(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, run(ctx, nil, &bytes.Buffer{}, open), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"bogus"}, &bytes.Buffer{}, open), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"recalculate"}, &bytes.Buffer{}, open), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"overdue"}, &bytes.Buffer{}, open), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"import-policies"}, &bytes.Buffer{}, open), errUsage)

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"help"}, &out, open))
	assert.Contains(t, out.String(), "import-policies")
}

func TestRunImportRecalculateAndOverdue(t *testing.T) {
	clock := &fixedClock{now: time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)}
	services, open := newTestServices(t, clock)
	ctx := context.Background()

	ticket, err := services.Tickets.CreateTicket(ctx, nil, 5, service.TicketCreateInput{Title: "down", Priority: domain.TicketPriorityHigh})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`tenant: 5
policies:
  - priority: high
    response_minutes: 30
    resolution_minutes: 120
`), 0o600))

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"import-policies", "--file", path}, &out, open))
	assert.Contains(t, out.String(), "tenant 5 high: response 30m resolution 120m")

	out.Reset()
	require.NoError(t, run(ctx, []string{"recalculate", "--tenant", "5", "--force"}, &out, open))
	assert.Equal(t, "tenant 5: scanned 1 tickets, updated 1\n", out.String())

	reloaded, err := services.Tickets.GetTicket(ctx, 5, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(30*time.Minute), *reloaded.SLAResponseDueAt)

	clock.now = clock.now.Add(time.Hour)
	out.Reset()
	require.NoError(t, run(ctx, []string{"overdue", "--tenant", "5"}, &out, open))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "FR5-001")
	assert.Contains(t, lines[1], "pending (overdue)")

	err = run(ctx, []string{"overdue", "--tenant", "9"}, &out, open)
	assert.Error(t, err)
}

func TestParsePolicyFile(t *testing.T) {
	file, err := parsePolicyFile(strings.NewReader("policies:\n  - priority: low\n    response_minutes: 5\n    resolution_minutes: 10\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), file.Tenant)
	assert.Equal(t, []service.PolicyInput{{Priority: domain.TicketPriorityLow, ResponseMinutes: 5, ResolutionMinutes: 10}}, file.Policies)

	_, err = parsePolicyFile(strings.NewReader("policies: []\n"))
	assert.Error(t, err)

	_, err = parsePolicyFile(strings.NewReader("tenant: 5\nunknown: true\npolicies:\n  - priority: low\n"))
	assert.Error(t, err)
}
