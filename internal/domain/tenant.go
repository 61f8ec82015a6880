package domain

import "time"

// Tenant is the isolation boundary for tickets, agents and SLA policies.
type Tenant struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}
