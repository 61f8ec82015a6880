package sla

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Deadlines are absolute due instants for a ticket.
type Deadlines struct {
	Response   time.Time
	Resolution time.Time
}

// Calculator derives due instants from creation time and priority.
type Calculator struct {
	policies PolicyLookup
}

// NewCalculator builds a Calculator. A nil lookup always uses defaults.
func NewCalculator(policies PolicyLookup) *Calculator {
	return &Calculator{policies: policies}
}

// Budgets returns the tenant policy for priority or the default row.
func (c *Calculator) Budgets(ctx context.Context, tenantID int64, priority domain.TicketPriority) (Budgets, error) {
	if c.policies == nil {
		return DefaultBudgets(priority), nil
	}
	budgets, ok, err := c.policies.Lookup(ctx, tenantID, priority)
	if err != nil {
		return Budgets{}, fmt.Errorf("lookup sla policy: %w", err)
	}
	if !ok {
		return DefaultBudgets(priority), nil
	}
	return budgets, nil
}

// DueDates is a pure function of createdAt, priority and the tenant policy set.
func (c *Calculator) DueDates(ctx context.Context, tenantID int64, priority domain.TicketPriority, createdAt time.Time) (Deadlines, error) {
	budgets, err := c.Budgets(ctx, tenantID, priority)
	if err != nil {
		return Deadlines{}, err
	}
	return Deadlines{
		Response:   createdAt.Add(budgets.Response),
		Resolution: createdAt.Add(budgets.Resolution),
	}, nil
}

// Stamp writes fresh due instants onto ticket. Met flags are left alone.
func (c *Calculator) Stamp(ctx context.Context, ticket *domain.Ticket) error {
	deadlines, err := c.DueDates(ctx, ticket.TenantID, ticket.Priority, ticket.CreatedAt)
	if err != nil {
		return err
	}
	response, resolution := deadlines.Response, deadlines.Resolution
	ticket.SLAResponseDueAt = &response
	ticket.SLAResolutionDueAt = &resolution
	return nil
}
