// Package sla computes service-level deadlines and evaluates ticket SLA state.
package sla

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// Budgets are the time allowances for one (tenant, priority) pair.
type Budgets struct {
	Response   time.Duration
	Resolution time.Duration
}

var defaultBudgets = map[domain.TicketPriority]Budgets{
	domain.TicketPriorityHigh:   {Response: 240 * time.Minute, Resolution: 1440 * time.Minute},
	domain.TicketPriorityMedium: {Response: 720 * time.Minute, Resolution: 2880 * time.Minute},
	domain.TicketPriorityLow:    {Response: 1440 * time.Minute, Resolution: 4320 * time.Minute},
}

// DefaultBudgets returns the built-in budgets for priority. Unknown priorities
// get the medium row.
func DefaultBudgets(priority domain.TicketPriority) Budgets {
	if b, ok := defaultBudgets[priority]; ok {
		return b
	}
	return defaultBudgets[domain.TicketPriorityMedium]
}

// BudgetsFromPolicy converts a stored policy into durations.
func BudgetsFromPolicy(policy domain.SLAPolicy) Budgets {
	return Budgets{
		Response:   time.Duration(policy.ResponseMinutes) * time.Minute,
		Resolution: time.Duration(policy.ResolutionMinutes) * time.Minute,
	}
}

// PolicyLookup resolves tenant-specific budgets. ok is false when the tenant
// has no policy for the priority.
type PolicyLookup interface {
	Lookup(ctx context.Context, tenantID int64, priority domain.TicketPriority) (Budgets, bool, error)
}

// PolicyStore reads policies from a repository.
type PolicyStore struct {
	repo repository.SLAPolicyRepository
}

// NewPolicyStore wraps repo.
func NewPolicyStore(repo repository.SLAPolicyRepository) *PolicyStore {
	return &PolicyStore{repo: repo}
}

// Lookup implements PolicyLookup.
func (s *PolicyStore) Lookup(ctx context.Context, tenantID int64, priority domain.TicketPriority) (Budgets, bool, error) {
	policy, err := s.repo.Get(ctx, tenantID, priority)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Budgets{}, false, nil
		}
		return Budgets{}, false, err
	}
	return BudgetsFromPolicy(*policy), true, nil
}
