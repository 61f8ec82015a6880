package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TenantRepository manages tenant persistence.
type TenantRepository interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	GetByID(ctx context.Context, id int64) (*domain.Tenant, error)
	Delete(ctx context.Context, id int64) error
}

type tenantRepository struct {
	pool *pgxpool.Pool
}

// NewTenantRepository builds the repository.
func NewTenantRepository(pool *pgxpool.Pool) TenantRepository {
	return &tenantRepository{pool: pool}
}

func (r *tenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	const query = `
        INSERT INTO tenants (name)
        VALUES ($1)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, tenant.Name).Scan(&tenant.ID, &tenant.CreatedAt)
}

func (r *tenantRepository) GetByID(ctx context.Context, id int64) (*domain.Tenant, error) {
	const query = `SELECT id, name, created_at FROM tenants WHERE id=$1`
	var tenant domain.Tenant
	if err := r.pool.QueryRow(ctx, query, id).Scan(&tenant.ID, &tenant.Name, &tenant.CreatedAt); err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
