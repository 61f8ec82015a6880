package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// AgentLoginRequest payload.
type AgentLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// CreateAgentRequest payload for admins adding staff.
type CreateAgentRequest struct {
	Name     string           `json:"name" validate:"required,max=120"`
	Email    string           `json:"email" validate:"required,email"`
	Password string           `json:"password" validate:"required,min=8"`
	Role     domain.AgentRole `json:"role" validate:"omitempty,oneof=admin agent"`
}

// OnboardTenantRequest creates a tenant and its first admin.
type OnboardTenantRequest struct {
	TenantName    string `json:"tenant_name" validate:"required,min=2,max=120"`
	AdminName     string `json:"admin_name" validate:"required,max=120"`
	AdminEmail    string `json:"admin_email" validate:"required,email"`
	AdminPassword string `json:"admin_password" validate:"required,min=8"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AgentResponse never carries the password hash.
type AgentResponse struct {
	ID        string           `json:"id"`
	TenantID  int64            `json:"tenant_id"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Role      domain.AgentRole `json:"role"`
	Active    bool             `json:"active"`
	CreatedAt time.Time        `json:"created_at"`
}

// TenantResponse describes a tenant.
type TenantResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAgentResponse maps an agent.
func NewAgentResponse(agent *domain.Agent) AgentResponse {
	return AgentResponse{
		ID:        agent.ID,
		TenantID:  agent.TenantID,
		Name:      agent.Name,
		Email:     agent.Email,
		Role:      agent.Role,
		Active:    agent.Active,
		CreatedAt: agent.CreatedAt,
	}
}

// NewTenantResponse maps a tenant.
func NewTenantResponse(tenant *domain.Tenant) TenantResponse {
	return TenantResponse{ID: tenant.ID, Name: tenant.Name, CreatedAt: tenant.CreatedAt}
}
