package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// TenantService handles onboarding and removal of tenants.
type TenantService struct {
	tenants    repository.TenantRepository
	policies   repository.SLAPolicyRepository
	agents     repository.AgentRepository
	tickets    repository.TicketRepository
	comments   repository.TicketCommentRepository
	activities repository.TicketActivityRepository
	agentSvc   *AgentService
	logger     *zap.Logger
}

// TenantDependencies bundles repositories for tenant service.
type TenantDependencies struct {
	TenantRepo   repository.TenantRepository
	PolicyRepo   repository.SLAPolicyRepository
	AgentRepo    repository.AgentRepository
	TicketRepo   repository.TicketRepository
	CommentRepo  repository.TicketCommentRepository
	ActivityRepo repository.TicketActivityRepository
	Agents       *AgentService
	Logger       *zap.Logger
}

// OnboardInput creates a tenant together with its first administrator.
type OnboardInput struct {
	TenantName    string
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

// NewTenantService constructs the service.
func NewTenantService(deps TenantDependencies) *TenantService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantService{
		tenants:    deps.TenantRepo,
		policies:   deps.PolicyRepo,
		agents:     deps.AgentRepo,
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		activities: deps.ActivityRepo,
		agentSvc:   deps.Agents,
		logger:     logger,
	}
}

// Onboard creates the tenant and its admin agent.
func (s *TenantService) Onboard(ctx context.Context, input OnboardInput) (*domain.Tenant, *domain.Agent, error) {
	name := strings.TrimSpace(input.TenantName)
	if len([]rune(name)) < 2 {
		return nil, nil, apperrors.NewValidationError("tenant name needs at least two characters", map[string]any{"field": "tenant_name"})
	}
	tenant := &domain.Tenant{Name: name}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	admin, err := s.agentSvc.create(ctx, tenant.ID, AgentInput{
		Name:     input.AdminName,
		Email:    input.AdminEmail,
		Password: input.AdminPassword,
		Role:     domain.AgentRoleAdmin,
	})
	if err != nil {
		if delErr := s.tenants.Delete(ctx, tenant.ID); delErr != nil {
			s.logger.Error("rollback tenant failed", zap.Int64("tenant_id", tenant.ID), zap.Error(delErr))
		}
		return nil, nil, err
	}
	s.logger.Info("tenant onboarded", zap.Int64("tenant_id", tenant.ID), zap.String("name", tenant.Name))
	return tenant, admin, nil
}

// Get returns the tenant.
func (s *TenantService) Get(ctx context.Context, tenantID int64) (*domain.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInvalidTenant(tenantID)
		}
		return nil, apperrors.MapError(err)
	}
	return tenant, nil
}

// Delete removes the tenant after its activities, comments, tickets,
// policies and agents.
func (s *TenantService) Delete(ctx context.Context, actor *domain.Agent, tenantID int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor.TenantID != tenantID {
		return apperrors.NewForbidden("cannot delete another tenant")
	}
	if _, err := s.Get(ctx, tenantID); err != nil {
		return err
	}

	if err := s.activities.DeleteByTenant(ctx, tenantID); err != nil {
		return apperrors.MapError(err)
	}
	if err := s.comments.DeleteByTenant(ctx, tenantID); err != nil {
		return apperrors.MapError(err)
	}
	removed, err := s.tickets.DeleteByTenant(ctx, tenantID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := s.policies.DeleteByTenant(ctx, tenantID); err != nil {
		return apperrors.MapError(err)
	}
	if err := s.agents.DeleteByTenant(ctx, tenantID); err != nil {
		return apperrors.MapError(err)
	}
	if err := s.tenants.Delete(ctx, tenantID); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("tenant deleted", zap.Int64("tenant_id", tenantID), zap.Int64("tickets_removed", removed))
	return nil
}
