package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketActivityRepository stores the append-only activity log.
type TicketActivityRepository interface {
	Create(ctx context.Context, activity *domain.TicketActivity) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketActivity, error)
	DeleteByTenant(ctx context.Context, tenantID int64) error
}

type ticketActivityRepository struct {
	pool *pgxpool.Pool
}

// NewTicketActivityRepository builds repository.
func NewTicketActivityRepository(pool *pgxpool.Pool) TicketActivityRepository {
	return &ticketActivityRepository{pool: pool}
}

func (r *ticketActivityRepository) Create(ctx context.Context, activity *domain.TicketActivity) error {
	const query = `
        INSERT INTO ticket_activities (ticket_id, tenant_id, actor_id, kind, description, old_value, new_value, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		activity.TicketID,
		activity.TenantID,
		activity.ActorID,
		activity.Kind,
		activity.Description,
		activity.OldValue,
		activity.NewValue,
		activity.CreatedAt,
	).Scan(&activity.ID)
}

func (r *ticketActivityRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketActivity, error) {
	const query = `
        SELECT id, ticket_id, tenant_id, actor_id, kind, description, old_value, new_value, created_at
        FROM ticket_activities WHERE ticket_id=$1 ORDER BY created_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketActivity
	for rows.Next() {
		var activity domain.TicketActivity
		if err := rows.Scan(
			&activity.ID,
			&activity.TicketID,
			&activity.TenantID,
			&activity.ActorID,
			&activity.Kind,
			&activity.Description,
			&activity.OldValue,
			&activity.NewValue,
			&activity.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, activity)
	}
	return result, rows.Err()
}

func (r *ticketActivityRepository) DeleteByTenant(ctx context.Context, tenantID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM ticket_activities WHERE tenant_id=$1`, tenantID)
	return err
}
