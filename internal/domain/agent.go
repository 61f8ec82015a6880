package domain

import "time"

// AgentRole enumerates staff roles inside a tenant.
type AgentRole string

const (
	AgentRoleAdmin AgentRole = "admin"
	AgentRoleAgent AgentRole = "agent"
)

// Agent models a tenant staff member who works tickets.
type Agent struct {
	ID           string
	TenantID     int64
	Name         string
	Email        string
	PasswordHash string
	Role         AgentRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the agent may manage tenant settings.
func (a *Agent) IsAdmin() bool {
	return a != nil && a.Role == AgentRoleAdmin
}
