package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketFilter captures listing parameters inside one tenant.
type TicketFilter struct {
	TenantID    int64
	AssignedTo  *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, tenantID int64, id string) (*domain.Ticket, error)
	GetByIdentifier(ctx context.Context, tenantID int64, identifier string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]domain.Ticket, error)
	IdentifiersWithPrefix(ctx context.Context, tenantID int64, prefix string) ([]string, error)
	IdentifierExists(ctx context.Context, tenantID int64, identifier string) (bool, error)
	DeleteByTenant(ctx context.Context, tenantID int64) (int64, error)
}

const ticketUniqueIdentifier = "tickets_tenant_identifier_key"

const ticketColumns = `id, tenant_id, identifier, title, description, status, priority, source,
               assigned_to, created_by, contact_name, contact_email, created_at, updated_at,
               first_response_at, resolved_at, sla_response_due_at, sla_resolution_due_at,
               sla_response_met, sla_resolution_met, version`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, tenant_id, identifier, title, description, status, priority, source,
            assigned_to, created_by, contact_name, contact_email, created_at, updated_at,
            first_response_at, resolved_at, sla_response_due_at, sla_resolution_due_at,
            sla_response_met, sla_resolution_met, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,1)`
	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.TenantID,
		ticket.Identifier,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Source,
		ticket.AssignedTo,
		ticket.CreatedBy,
		ticket.ContactName,
		ticket.ContactEmail,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.FirstResponseAt,
		ticket.ResolvedAt,
		ticket.SLAResponseDueAt,
		ticket.SLAResolutionDueAt,
		ticket.SLAResponseMet,
		ticket.SLAResolutionMet,
	)
	if err != nil {
		if isUniqueViolation(err, ticketUniqueIdentifier) {
			return fmt.Errorf("%s: %w", ticket.Identifier, ErrDuplicateIdentifier)
		}
		return err
	}
	ticket.Version = 1
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET identifier=$1, title=$2, description=$3, status=$4, priority=$5,
            assigned_to=$6, contact_name=$7, contact_email=$8, updated_at=$9,
            first_response_at=$10, resolved_at=$11, sla_response_due_at=$12, sla_resolution_due_at=$13,
            sla_response_met=$14, sla_resolution_met=$15, version=version+1
        WHERE id=$16 AND tenant_id=$17 AND version=$18`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Identifier,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedTo,
		ticket.ContactName,
		ticket.ContactEmail,
		ticket.UpdatedAt,
		ticket.FirstResponseAt,
		ticket.ResolvedAt,
		ticket.SLAResponseDueAt,
		ticket.SLAResolutionDueAt,
		ticket.SLAResponseMet,
		ticket.SLAResolutionMet,
		ticket.ID,
		ticket.TenantID,
		ticket.Version,
	)
	if err != nil {
		if isUniqueViolation(err, ticketUniqueIdentifier) {
			return fmt.Errorf("%s: %w", ticket.Identifier, ErrDuplicateIdentifier)
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1 AND tenant_id=$2)`,
			ticket.ID, ticket.TenantID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
		return ErrStaleTicket
	}
	ticket.Version++
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, tenantID int64, id string) (*domain.Ticket, error) {
	// ids are uuid typed; anything else cannot match a row
	if _, err := uuid.Parse(id); err != nil {
		return nil, pgx.ErrNoRows
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE tenant_id=$1 AND id=$2`
	return r.fetchSingle(ctx, query, tenantID, id)
}

func (r *ticketRepository) GetByIdentifier(ctx context.Context, tenantID int64, identifier string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE tenant_id=$1 AND identifier=$2`
	return r.fetchSingle(ctx, query, tenantID, identifier)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"tenant_id=$1"}
	args := []any{filter.TenantID}

	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, identifier DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListByTenant(ctx context.Context, tenantID int64) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE tenant_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) IdentifiersWithPrefix(ctx context.Context, tenantID int64, prefix string) ([]string, error) {
	const query = `SELECT identifier FROM tickets WHERE tenant_id=$1 AND identifier LIKE $2 ESCAPE '\'`
	rows, err := r.pool.Query(ctx, query, tenantID, likeEscape(prefix+"-")+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var identifier string
		if err := rows.Scan(&identifier); err != nil {
			return nil, err
		}
		result = append(result, identifier)
	}
	return result, rows.Err()
}

func (r *ticketRepository) IdentifierExists(ctx context.Context, tenantID int64, identifier string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM tickets WHERE tenant_id=$1 AND identifier=$2)`,
		tenantID, identifier,
	).Scan(&exists)
	return exists, err
}

func (r *ticketRepository) DeleteByTenant(ctx context.Context, tenantID int64) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE tenant_id=$1`, tenantID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func likeEscape(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TenantID,
		&ticket.Identifier,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Source,
		&ticket.AssignedTo,
		&ticket.CreatedBy,
		&ticket.ContactName,
		&ticket.ContactEmail,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.FirstResponseAt,
		&ticket.ResolvedAt,
		&ticket.SLAResponseDueAt,
		&ticket.SLAResolutionDueAt,
		&ticket.SLAResponseMet,
		&ticket.SLAResolutionMet,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
