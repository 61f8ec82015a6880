package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// AgentRepository handles persistence for tenant staff.
type AgentRepository interface {
	Create(ctx context.Context, agent *domain.Agent) error
	Update(ctx context.Context, agent *domain.Agent) error
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	GetByEmail(ctx context.Context, email string) (*domain.Agent, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]domain.Agent, error)
	DeleteByTenant(ctx context.Context, tenantID int64) error
}

const agentUniqueEmail = "agents_email_key"

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository instantiates the repository.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

func (r *agentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	const query = `
        INSERT INTO agents (id, tenant_id, name, email, password_hash, role, active_flag)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		agent.ID,
		agent.TenantID,
		agent.Name,
		agent.Email,
		agent.PasswordHash,
		agent.Role,
		agent.Active,
	).Scan(&agent.CreatedAt, &agent.UpdatedAt)
	if isUniqueViolation(err, agentUniqueEmail) {
		return fmt.Errorf("%s: %w", agent.Email, ErrDuplicateEmail)
	}
	return err
}

func (r *agentRepository) Update(ctx context.Context, agent *domain.Agent) error {
	const query = `
        UPDATE agents
        SET name=$1, email=$2, password_hash=$3, role=$4, active_flag=$5, updated_at=NOW()
        WHERE id=$6`

	cmd, err := r.pool.Exec(ctx, query,
		agent.Name,
		agent.Email,
		agent.PasswordHash,
		agent.Role,
		agent.Active,
		agent.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *agentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	const query = `
        SELECT id, tenant_id, name, email, password_hash, role, active_flag, created_at, updated_at
        FROM agents WHERE id=$1`
	return r.fetchOne(ctx, query, id)
}

func (r *agentRepository) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	const query = `
        SELECT id, tenant_id, name, email, password_hash, role, active_flag, created_at, updated_at
        FROM agents WHERE email=$1`
	return r.fetchOne(ctx, query, email)
}

func (r *agentRepository) ListByTenant(ctx context.Context, tenantID int64) ([]domain.Agent, error) {
	const query = `
        SELECT id, tenant_id, name, email, password_hash, role, active_flag, created_at, updated_at
        FROM agents WHERE tenant_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *agent)
	}
	return result, rows.Err()
}

func (r *agentRepository) DeleteByTenant(ctx context.Context, tenantID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM agents WHERE tenant_id=$1`, tenantID)
	return err
}

func (r *agentRepository) fetchOne(ctx context.Context, query string, arg any) (*domain.Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, query, arg))
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var agent domain.Agent
	if err := row.Scan(
		&agent.ID,
		&agent.TenantID,
		&agent.Name,
		&agent.Email,
		&agent.PasswordHash,
		&agent.Role,
		&agent.Active,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &agent, nil
}
