package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// AgentService manages tenant staff.
type AgentService struct {
	agents     repository.AgentRepository
	bcryptCost int
}

// AgentInput describes a new agent.
type AgentInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.AgentRole
}

// NewAgentService constructs the service.
func NewAgentService(agents repository.AgentRepository, bcryptCost int) *AgentService {
	return &AgentService{agents: agents, bcryptCost: bcryptCost}
}

func requireAdmin(actor *domain.Agent) error {
	if !actor.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// CreateAgent adds an agent to the actor's tenant.
func (s *AgentService) CreateAgent(ctx context.Context, actor *domain.Agent, input AgentInput) (*domain.Agent, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.create(ctx, actor.TenantID, input)
}

func (s *AgentService) create(ctx context.Context, tenantID int64, input AgentInput) (*domain.Agent, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"email": input.Email})
	}
	role := input.Role
	if role == "" {
		role = domain.AgentRoleAgent
	}
	if role != domain.AgentRoleAdmin && role != domain.AgentRoleAgent {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, apperrors.NewValidationError("password too short", map[string]any{"min_length": auth.MinPasswordLength})
		}
		return nil, apperrors.NewInternalError(err)
	}

	agent := &domain.Agent{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}
	return agent, nil
}

// ListAgents returns the agents of the actor's tenant.
func (s *AgentService) ListAgents(ctx context.Context, actor *domain.Agent) ([]domain.Agent, error) {
	agents, err := s.agents.ListByTenant(ctx, actor.TenantID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return agents, nil
}
