package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/sla"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// maxBudgetMinutes caps a single budget at one year.
const maxBudgetMinutes = 525600

// SLAPolicyService manages per-tenant SLA budgets.
type SLAPolicyService struct {
	policies repository.SLAPolicyRepository
	logger   *zap.Logger
}

// PolicyInput is one (priority, budgets) row to upsert.
type PolicyInput struct {
	Priority          domain.TicketPriority `yaml:"priority"`
	ResponseMinutes   int                   `yaml:"response_minutes"`
	ResolutionMinutes int                   `yaml:"resolution_minutes"`
}

// EffectivePolicy is the budget a priority resolves to, stored or default.
type EffectivePolicy struct {
	Priority          domain.TicketPriority `json:"priority"`
	ResponseMinutes   int                   `json:"response_minutes"`
	ResolutionMinutes int                   `json:"resolution_minutes"`
	Custom            bool                  `json:"custom"`
}

// NewSLAPolicyService constructs the service.
func NewSLAPolicyService(policies repository.SLAPolicyRepository, logger *zap.Logger) *SLAPolicyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAPolicyService{policies: policies, logger: logger}
}

// Upsert writes the budgets for (tenant, priority), replacing any existing row.
func (s *SLAPolicyService) Upsert(ctx context.Context, tenantID int64, input PolicyInput) (*domain.SLAPolicy, error) {
	if err := validatePolicy(input); err != nil {
		return nil, err
	}
	policy := &domain.SLAPolicy{
		TenantID:          tenantID,
		Priority:          input.Priority,
		ResponseMinutes:   input.ResponseMinutes,
		ResolutionMinutes: input.ResolutionMinutes,
	}
	if err := s.policies.Upsert(ctx, policy); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("sla policy upserted",
		zap.Int64("tenant_id", tenantID),
		zap.String("priority", string(policy.Priority)),
		zap.Int("response_minutes", policy.ResponseMinutes),
		zap.Int("resolution_minutes", policy.ResolutionMinutes))
	return policy, nil
}

// Import upserts several rows, validating all of them first.
func (s *SLAPolicyService) Import(ctx context.Context, tenantID int64, inputs []PolicyInput) ([]domain.SLAPolicy, error) {
	for _, input := range inputs {
		if err := validatePolicy(input); err != nil {
			return nil, err
		}
	}
	out := make([]domain.SLAPolicy, 0, len(inputs))
	for _, input := range inputs {
		policy, err := s.Upsert(ctx, tenantID, input)
		if err != nil {
			return out, err
		}
		out = append(out, *policy)
	}
	return out, nil
}

// List returns the effective policy of every priority, most urgent first.
func (s *SLAPolicyService) List(ctx context.Context, tenantID int64) ([]EffectivePolicy, error) {
	stored, err := s.policies.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byPriority := make(map[domain.TicketPriority]domain.SLAPolicy, len(stored))
	for _, policy := range stored {
		byPriority[policy.Priority] = policy
	}

	out := make([]EffectivePolicy, 0, len(domain.TicketPriorities))
	for i := len(domain.TicketPriorities) - 1; i >= 0; i-- {
		priority := domain.TicketPriorities[i]
		if policy, ok := byPriority[priority]; ok {
			out = append(out, EffectivePolicy{
				Priority:          priority,
				ResponseMinutes:   policy.ResponseMinutes,
				ResolutionMinutes: policy.ResolutionMinutes,
				Custom:            true,
			})
			continue
		}
		budgets := sla.DefaultBudgets(priority)
		out = append(out, EffectivePolicy{
			Priority:          priority,
			ResponseMinutes:   int(budgets.Response.Minutes()),
			ResolutionMinutes: int(budgets.Resolution.Minutes()),
		})
	}
	return out, nil
}

func validatePolicy(input PolicyInput) error {
	if !input.Priority.Valid() {
		return apperrors.NewValidationError("invalid priority", map[string]any{"priority": input.Priority})
	}
	if input.ResponseMinutes <= 0 || input.ResolutionMinutes <= 0 {
		return apperrors.NewValidationError("budgets must be positive minutes", map[string]any{
			"priority":           input.Priority,
			"response_minutes":   input.ResponseMinutes,
			"resolution_minutes": input.ResolutionMinutes,
		})
	}
	if input.ResponseMinutes > maxBudgetMinutes || input.ResolutionMinutes > maxBudgetMinutes {
		return apperrors.NewValidationError("budgets may not exceed one year", map[string]any{"priority": input.Priority})
	}
	return nil
}
