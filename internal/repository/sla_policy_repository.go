package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// SLAPolicyRepository stores per-tenant, per-priority SLA budgets.
type SLAPolicyRepository interface {
	Upsert(ctx context.Context, policy *domain.SLAPolicy) error
	Get(ctx context.Context, tenantID int64, priority domain.TicketPriority) (*domain.SLAPolicy, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]domain.SLAPolicy, error)
	DeleteByTenant(ctx context.Context, tenantID int64) error
}

type slaPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewSLAPolicyRepository builds the repository.
func NewSLAPolicyRepository(pool *pgxpool.Pool) SLAPolicyRepository {
	return &slaPolicyRepository{pool: pool}
}

func (r *slaPolicyRepository) Upsert(ctx context.Context, policy *domain.SLAPolicy) error {
	const query = `
        INSERT INTO sla_policies (tenant_id, priority, response_minutes, resolution_minutes)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (tenant_id, priority) DO UPDATE
            SET response_minutes=EXCLUDED.response_minutes,
                resolution_minutes=EXCLUDED.resolution_minutes,
                updated_at=NOW()
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		policy.TenantID,
		policy.Priority,
		policy.ResponseMinutes,
		policy.ResolutionMinutes,
	).Scan(&policy.CreatedAt, &policy.UpdatedAt)
}

func (r *slaPolicyRepository) Get(ctx context.Context, tenantID int64, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	const query = `
        SELECT tenant_id, priority, response_minutes, resolution_minutes, created_at, updated_at
        FROM sla_policies WHERE tenant_id=$1 AND priority=$2`
	var policy domain.SLAPolicy
	if err := r.pool.QueryRow(ctx, query, tenantID, priority).Scan(
		&policy.TenantID,
		&policy.Priority,
		&policy.ResponseMinutes,
		&policy.ResolutionMinutes,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *slaPolicyRepository) ListByTenant(ctx context.Context, tenantID int64) ([]domain.SLAPolicy, error) {
	const query = `
        SELECT tenant_id, priority, response_minutes, resolution_minutes, created_at, updated_at
        FROM sla_policies WHERE tenant_id=$1 ORDER BY priority`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAPolicy
	for rows.Next() {
		var policy domain.SLAPolicy
		if err := rows.Scan(
			&policy.TenantID,
			&policy.Priority,
			&policy.ResponseMinutes,
			&policy.ResolutionMinutes,
			&policy.CreatedAt,
			&policy.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, policy)
	}
	return result, rows.Err()
}

func (r *slaPolicyRepository) DeleteByTenant(ctx context.Context, tenantID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sla_policies WHERE tenant_id=$1`, tenantID)
	return err
}
