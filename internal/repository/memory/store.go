// Package memory provides in-process implementations of the repository
// interfaces. It backs the service when no Postgres DSN is configured and is
// used throughout the tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// Store keeps every aggregate behind a single mutex.
type Store struct {
	mu sync.RWMutex

	tenantSeq   int64
	activitySeq int64

	tenants    map[int64]domain.Tenant
	policies   map[policyKey]domain.SLAPolicy
	agents     map[string]domain.Agent
	tickets    map[string]*domain.Ticket
	activities []domain.TicketActivity
	comments   []domain.TicketComment
}

type policyKey struct {
	tenantID int64
	priority domain.TicketPriority
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		tenants:  make(map[int64]domain.Tenant),
		policies: make(map[policyKey]domain.SLAPolicy),
		agents:   make(map[string]domain.Agent),
		tickets:  make(map[string]*domain.Ticket),
	}
}

func (s *Store) Tenants() repository.TenantRepository            { return tenantRepo{s} }
func (s *Store) SLAPolicies() repository.SLAPolicyRepository     { return policyRepo{s} }
func (s *Store) Agents() repository.AgentRepository              { return agentRepo{s} }
func (s *Store) Tickets() repository.TicketRepository            { return ticketRepo{s} }
func (s *Store) Activities() repository.TicketActivityRepository { return activityRepo{s} }
func (s *Store) Comments() repository.TicketCommentRepository    { return commentRepo{s} }

// tenants

type tenantRepo struct{ s *Store }

func (r tenantRepo) Create(_ context.Context, tenant *domain.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	switch {
	case tenant.ID == 0:
		r.s.tenantSeq++
		tenant.ID = r.s.tenantSeq
	case tenant.ID > r.s.tenantSeq:
		r.s.tenantSeq = tenant.ID
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}
	r.s.tenants[tenant.ID] = *tenant
	return nil
}

func (r tenantRepo) GetByID(_ context.Context, id int64) (*domain.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tenant, ok := r.s.tenants[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &tenant, nil
}

func (r tenantRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tenants[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.tenants, id)
	return nil
}

// sla policies

type policyRepo struct{ s *Store }

func (r policyRepo) Upsert(_ context.Context, policy *domain.SLAPolicy) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := policyKey{policy.TenantID, policy.Priority}
	now := time.Now().UTC()
	if existing, ok := r.s.policies[key]; ok {
		policy.CreatedAt = existing.CreatedAt
	} else {
		policy.CreatedAt = now
	}
	policy.UpdatedAt = now
	r.s.policies[key] = *policy
	return nil
}

func (r policyRepo) Get(_ context.Context, tenantID int64, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	policy, ok := r.s.policies[policyKey{tenantID, priority}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &policy, nil
}

func (r policyRepo) ListByTenant(_ context.Context, tenantID int64) ([]domain.SLAPolicy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.SLAPolicy
	for key, policy := range r.s.policies {
		if key.tenantID == tenantID {
			result = append(result, policy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Priority < result[j].Priority })
	return result, nil
}

func (r policyRepo) DeleteByTenant(_ context.Context, tenantID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for key := range r.s.policies {
		if key.tenantID == tenantID {
			delete(r.s.policies, key)
		}
	}
	return nil
}

// agents

type agentRepo struct{ s *Store }

func (r agentRepo) Create(_ context.Context, agent *domain.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.agents {
		if strings.EqualFold(existing.Email, agent.Email) {
			return fmt.Errorf("%s: %w", agent.Email, repository.ErrDuplicateEmail)
		}
	}
	now := time.Now().UTC()
	agent.CreatedAt, agent.UpdatedAt = now, now
	r.s.agents[agent.ID] = *agent
	return nil
}

func (r agentRepo) Update(_ context.Context, agent *domain.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.agents[agent.ID]; !ok {
		return pgx.ErrNoRows
	}
	agent.UpdatedAt = time.Now().UTC()
	r.s.agents[agent.ID] = *agent
	return nil
}

func (r agentRepo) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	agent, ok := r.s.agents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &agent, nil
}

func (r agentRepo) GetByEmail(_ context.Context, email string) (*domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, agent := range r.s.agents {
		if strings.EqualFold(agent.Email, email) {
			found := agent
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r agentRepo) ListByTenant(_ context.Context, tenantID int64) ([]domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Agent
	for _, agent := range r.s.agents {
		if agent.TenantID == tenantID {
			result = append(result, agent)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r agentRepo) DeleteByTenant(_ context.Context, tenantID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, agent := range r.s.agents {
		if agent.TenantID == tenantID {
			delete(r.s.agents, id)
		}
	}
	return nil
}

// tickets

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.tickets {
		if existing.TenantID == ticket.TenantID && existing.Identifier == ticket.Identifier {
			return fmt.Errorf("%s: %w", ticket.Identifier, repository.ErrDuplicateIdentifier)
		}
	}
	ticket.Version = 1
	r.s.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticket.ID]
	if !ok || stored.TenantID != ticket.TenantID {
		return pgx.ErrNoRows
	}
	if stored.Version != ticket.Version {
		return repository.ErrStaleTicket
	}
	for _, existing := range r.s.tickets {
		if existing.ID != ticket.ID && existing.TenantID == ticket.TenantID && existing.Identifier == ticket.Identifier {
			return fmt.Errorf("%s: %w", ticket.Identifier, repository.ErrDuplicateIdentifier)
		}
	}
	ticket.Version++
	updated := ticket.Clone()
	updated.CreatedAt = stored.CreatedAt
	updated.CreatedBy = stored.CreatedBy
	updated.Source = stored.Source
	r.s.tickets[ticket.ID] = updated
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, tenantID int64, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok || ticket.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	return ticket.Clone(), nil
}

func (r ticketRepo) GetByIdentifier(_ context.Context, tenantID int64, identifier string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, ticket := range r.s.tickets {
		if ticket.TenantID == tenantID && ticket.Identifier == identifier {
			return ticket.Clone(), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r ticketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	var matched []domain.Ticket
	for _, ticket := range r.s.tickets {
		if matchesFilter(ticket, filter) {
			matched = append(matched, *ticket.Clone())
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Identifier > matched[j].Identifier
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func matchesFilter(ticket *domain.Ticket, filter repository.TicketFilter) bool {
	if ticket.TenantID != filter.TenantID {
		return false
	}
	if filter.AssignedTo != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo) {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, ticket.Priority) {
		return false
	}
	if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && ticket.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	return true
}

func containsStatus(list []domain.TicketStatus, v domain.TicketStatus) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, v domain.TicketPriority) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (r ticketRepo) ListByTenant(_ context.Context, tenantID int64) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	var result []domain.Ticket
	for _, ticket := range r.s.tickets {
		if ticket.TenantID == tenantID {
			result = append(result, *ticket.Clone())
		}
	}
	r.s.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].Identifier < result[j].Identifier
	})
	return result, nil
}

func (r ticketRepo) IdentifiersWithPrefix(_ context.Context, tenantID int64, prefix string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []string
	for _, ticket := range r.s.tickets {
		if ticket.TenantID == tenantID && strings.HasPrefix(ticket.Identifier, prefix+"-") {
			result = append(result, ticket.Identifier)
		}
	}
	return result, nil
}

func (r ticketRepo) IdentifierExists(_ context.Context, tenantID int64, identifier string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, ticket := range r.s.tickets {
		if ticket.TenantID == tenantID && ticket.Identifier == identifier {
			return true, nil
		}
	}
	return false, nil
}

func (r ticketRepo) DeleteByTenant(_ context.Context, tenantID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, ticket := range r.s.tickets {
		if ticket.TenantID == tenantID {
			delete(r.s.tickets, id)
			n++
		}
	}
	return n, nil
}

// activities

type activityRepo struct{ s *Store }

func (r activityRepo) Create(_ context.Context, activity *domain.TicketActivity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.activitySeq++
	activity.ID = r.s.activitySeq
	r.s.activities = append(r.s.activities, *activity)
	return nil
}

func (r activityRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketActivity, error) {
	r.s.mu.RLock()
	var result []domain.TicketActivity
	for _, activity := range r.s.activities {
		if activity.TicketID == ticketID {
			result = append(result, activity)
		}
	}
	r.s.mu.RUnlock()
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (r activityRepo) DeleteByTenant(_ context.Context, tenantID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.activities[:0]
	for _, activity := range r.s.activities {
		if activity.TenantID != tenantID {
			kept = append(kept, activity)
		}
	}
	r.s.activities = kept
	return nil
}

// comments

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, comment *domain.TicketComment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.comments = append(r.s.comments, *comment)
	return nil
}

func (r commentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketComment, error) {
	r.s.mu.RLock()
	var result []domain.TicketComment
	for i := len(r.s.comments) - 1; i >= 0; i-- {
		if r.s.comments[i].TicketID == ticketID {
			result = append(result, r.s.comments[i])
		}
	}
	r.s.mu.RUnlock()
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r commentRepo) DeleteByTenant(_ context.Context, tenantID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.comments[:0]
	for _, comment := range r.s.comments {
		ticket, ok := r.s.tickets[comment.TicketID]
		if ok && ticket.TenantID == tenantID {
			continue
		}
		kept = append(kept, comment)
	}
	r.s.comments = kept
	return nil
}
