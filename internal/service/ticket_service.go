package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/activity"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/identifier"
	"github.com/spec-kit/helpdesk/internal/lifecycle"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/sla"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// maxUpdateAttempts bounds reload-and-reapply cycles on version conflicts.
const maxUpdateAttempts = 3

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	comments    repository.TicketCommentRepository
	agents      repository.AgentRepository
	activities  *activity.Log
	identifiers *identifier.Generator
	machine     *lifecycle.Machine
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.TicketCommentRepository
	AgentRepo   repository.AgentRepository
	Activities  *activity.Log
	Identifiers *identifier.Generator
	Machine     *lifecycle.Machine
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title        string
	Description  string
	Priority     domain.TicketPriority
	Source       domain.TicketSource
	AssignedTo   *string
	ContactName  string
	ContactEmail string
}

// TicketUpdateInput is a declarative patch. Nil fields are untouched.
type TicketUpdateInput struct {
	Title       *string
	Description *string
	Status      *domain.TicketStatus
	Priority    *domain.TicketPriority
	Assignee    *lifecycle.AssigneeChange
}

// CommentInput describes a new comment.
type CommentInput struct {
	Body       string
	IsInternal bool
	IsCustomer bool
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	AssignedTo  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Overdue     *bool
	Limit       int
	Offset      int
}

// TicketSLA pairs a ticket with its evaluated SLA status.
type TicketSLA struct {
	Ticket domain.Ticket
	Status sla.Status
}

// RecalculateResult summarises a tenant-wide recalculation.
type RecalculateResult struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		agents:      deps.AgentRepo,
		activities:  deps.Activities,
		identifiers: deps.Identifiers,
		machine:     deps.Machine,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
	}
}

// CreateTicket creates a ticket, allocating its identifier and SLA deadlines.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.Agent, tenantID int64, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}
	source := input.Source
	if source == "" {
		source = domain.TicketSourceAPI
	}
	if !source.Valid() {
		return nil, apperrors.NewValidationError("invalid source", map[string]any{"source": source})
	}
	contactEmail := strings.TrimSpace(input.ContactEmail)
	if contactEmail != "" {
		if _, err := mail.ParseAddress(contactEmail); err != nil {
			return nil, apperrors.NewValidationError("invalid contact email", map[string]any{"contact_email": contactEmail})
		}
	}
	if input.AssignedTo != nil {
		if err := s.ensureAssignable(ctx, tenantID, *input.AssignedTo); err != nil {
			return nil, err
		}
	}

	actorID := agentID(actor)
	ticket := &domain.Ticket{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		Status:       domain.TicketStatusOpen,
		Priority:     priority,
		Source:       source,
		AssignedTo:   input.AssignedTo,
		CreatedBy:    actorID,
		ContactName:  strings.TrimSpace(input.ContactName),
		ContactEmail: contactEmail,
	}

	entries, err := s.machine.Start(ctx, ticket, actorID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	_, err = s.identifiers.Allocate(ctx, tenantID, func(ctx context.Context, ident string) error {
		ticket.Identifier = ident
		return s.tickets.Create(ctx, ticket)
	})
	if err != nil {
		return nil, s.identifierError(tenantID, err)
	}

	s.commit(ctx, ticket, entries)
	s.logger.Info("ticket created",
		zap.Int64("tenant_id", tenantID),
		zap.String("ticket_id", ticket.ID),
		zap.String("identifier", ticket.Identifier),
		zap.String("priority", string(ticket.Priority)))
	return ticket, nil
}

// GetTicket loads a ticket by internal id or display identifier. Refs that
// are not uuids are tried as identifiers first, then as ids.
func (s *TicketService) GetTicket(ctx context.Context, tenantID int64, ref string) (*domain.Ticket, error) {
	var (
		ticket *domain.Ticket
		err    error
	)
	if _, parseErr := uuid.Parse(ref); parseErr == nil {
		ticket, err = s.tickets.GetByID(ctx, tenantID, ref)
	} else {
		ticket, err = s.tickets.GetByIdentifier(ctx, tenantID, ref)
		if errors.Is(err, pgx.ErrNoRows) {
			// imported rows may carry non-uuid ids
			ticket, err = s.tickets.GetByID(ctx, tenantID, ref)
		}
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket": ref})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// UpdateTicket applies a declarative patch through the lifecycle machine.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.Agent, tenantID int64, ref string, input TicketUpdateInput) (*domain.Ticket, error) {
	if input.Assignee != nil && input.Assignee.AgentID != nil {
		if err := s.ensureAssignable(ctx, tenantID, *input.Assignee.AgentID); err != nil {
			return nil, err
		}
	}
	var title *string
	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		if trimmed == "" {
			return nil, apperrors.NewValidationError("title cannot be empty", map[string]any{"field": "title"})
		}
		title = &trimmed
	}

	current, err := s.GetTicket(ctx, tenantID, ref)
	if err != nil {
		return nil, err
	}
	changes := lifecycle.Changes{Status: input.Status, Priority: input.Priority, Assignee: input.Assignee}
	actorID := agentID(actor)

	return s.mutate(ctx, tenantID, current.ID, func(ticket *domain.Ticket) ([]domain.TicketActivity, bool, error) {
		edited := false
		if title != nil && *title != ticket.Title {
			ticket.Title = *title
			edited = true
		}
		if input.Description != nil {
			description := strings.TrimSpace(*input.Description)
			if description != ticket.Description {
				ticket.Description = description
				edited = true
			}
		}
		entries, err := s.machine.Apply(ctx, ticket, changes, actorID)
		if err != nil {
			return nil, false, err
		}
		if edited {
			ticket.UpdatedAt = s.machine.Now()
		}
		return entries, edited || len(entries) > 0, nil
	})
}

// AddComment stores a comment and lets the lifecycle machine react to it.
// The comment is durable before the ticket is mutated, so when the mutation
// fails the stored comment is still returned alongside the error.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.Agent, tenantID int64, ref string, input CommentInput) (*domain.TicketComment, *domain.Ticket, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, nil, apperrors.NewValidationError("comment body is required", map[string]any{"field": "body"})
	}
	if input.IsInternal && input.IsCustomer {
		return nil, nil, apperrors.NewValidationError("a customer comment cannot be internal", nil)
	}
	ticket, err := s.GetTicket(ctx, tenantID, ref)
	if err != nil {
		return nil, nil, err
	}

	comment := &domain.TicketComment{
		ID:         uuid.NewString(),
		TicketID:   ticket.ID,
		Body:       body,
		IsInternal: input.IsInternal,
		IsCustomer: input.IsCustomer,
		CreatedAt:  s.machine.Now(),
	}
	staff := actor != nil && !input.IsCustomer
	if staff {
		comment.AuthorID = agentID(actor)
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	updated, err := s.mutate(ctx, tenantID, ticket.ID, func(ticket *domain.Ticket) ([]domain.TicketActivity, bool, error) {
		entries, err := s.machine.RecordComment(ctx, ticket, comment, staff)
		return entries, true, err
	})
	if err != nil {
		return comment, nil, err
	}
	return comment, updated, nil
}

// ListComments returns comments newest first. Internal notes are dropped
// unless includeInternal is set.
func (s *TicketService) ListComments(ctx context.Context, tenantID int64, ref string, includeInternal bool) ([]domain.TicketComment, error) {
	ticket, err := s.GetTicket(ctx, tenantID, ref)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if includeInternal {
		return comments, nil
	}
	visible := make([]domain.TicketComment, 0, len(comments))
	for _, comment := range comments {
		if !comment.IsInternal {
			visible = append(visible, comment)
		}
	}
	return visible, nil
}

// ListActivity returns the audit trail newest first.
func (s *TicketService) ListActivity(ctx context.Context, tenantID int64, ref string) ([]domain.TicketActivity, error) {
	ticket, err := s.GetTicket(ctx, tenantID, ref)
	if err != nil {
		return nil, err
	}
	entries, err := s.activities.List(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// GetSLAStatus evaluates the SLA of a ticket at the current instant,
// stamping missing due instants first.
func (s *TicketService) GetSLAStatus(ctx context.Context, tenantID int64, ref string) (*TicketSLA, error) {
	ticket, err := s.GetTicket(ctx, tenantID, ref)
	if err != nil {
		return nil, err
	}
	if !ticket.HasDueDates() {
		ticket, err = s.mutate(ctx, tenantID, ticket.ID, func(ticket *domain.Ticket) ([]domain.TicketActivity, bool, error) {
			entries, err := s.machine.EnsureDueDates(ctx, ticket)
			return entries, len(entries) > 0, err
		})
		if err != nil {
			return nil, err
		}
	}
	return &TicketSLA{Ticket: *ticket, Status: sla.Evaluate(ticket, s.machine.Now())}, nil
}

// ListTickets returns tickets newest first. The overdue filter is evaluated
// at read time.
func (s *TicketService) ListTickets(ctx context.Context, tenantID int64, filter TicketListFilter) ([]TicketSLA, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, apperrors.NewValidationError("invalid status filter", map[string]any{"status": status})
		}
	}
	for _, priority := range filter.Priorities {
		if !priority.Valid() {
			return nil, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": priority})
		}
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	repoFilter := repository.TicketFilter{
		TenantID:    tenantID,
		AssignedTo:  filter.AssignedTo,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       limit,
		Offset:      offset,
	}
	now := s.machine.Now()

	if filter.Overdue == nil {
		tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		return evaluateAll(tickets, now), nil
	}

	// overdue is computed, so page through candidates and slice afterwards
	const batch = 200
	var matched []TicketSLA
	repoFilter.Limit = batch
	for repoFilter.Offset = 0; ; repoFilter.Offset += batch {
		tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		for i := range tickets {
			if sla.IsOverdue(&tickets[i], now) == *filter.Overdue {
				matched = append(matched, TicketSLA{Ticket: tickets[i], Status: sla.Evaluate(&tickets[i], now)})
			}
		}
		if len(tickets) < batch || len(matched) >= offset+limit {
			break
		}
	}
	if offset >= len(matched) {
		return []TicketSLA{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

// BreachedTickets returns every ticket of the tenant with an overdue or
// missed SLA track.
func (s *TicketService) BreachedTickets(ctx context.Context, tenantID int64) ([]TicketSLA, error) {
	tickets, err := s.tickets.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	now := s.machine.Now()
	var breached []TicketSLA
	for i := range tickets {
		status := sla.Evaluate(&tickets[i], now)
		if status.Breached() {
			breached = append(breached, TicketSLA{Ticket: tickets[i], Status: status})
		}
	}
	return breached, nil
}

// RecalculateSLA fills missing due instants for every ticket of the tenant.
// With force, due instants are re-derived from the current policies.
func (s *TicketService) RecalculateSLA(ctx context.Context, tenantID int64, force bool) (RecalculateResult, error) {
	tickets, err := s.tickets.ListByTenant(ctx, tenantID)
	if err != nil {
		return RecalculateResult{}, apperrors.MapError(err)
	}
	result := RecalculateResult{Scanned: len(tickets)}
	for i := range tickets {
		if !force && tickets[i].HasDueDates() {
			continue
		}
		changed := false
		_, err := s.mutate(ctx, tenantID, tickets[i].ID, func(ticket *domain.Ticket) ([]domain.TicketActivity, bool, error) {
			entries, didChange, err := s.machine.Recalculate(ctx, ticket, force)
			changed = didChange
			return entries, didChange, err
		})
		if err != nil {
			return result, err
		}
		if changed {
			result.Updated++
		}
	}
	s.logger.Info("sla recalculated",
		zap.Int64("tenant_id", tenantID),
		zap.Bool("force", force),
		zap.Int("scanned", result.Scanned),
		zap.Int("updated", result.Updated))
	return result, nil
}

// mutate loads the ticket by internal id, applies fn and persists with
// optimistic concurrency, reapplying fn on a fresh copy when the version moved.
func (s *TicketService) mutate(ctx context.Context, tenantID int64, ticketID string, fn func(ticket *domain.Ticket) ([]domain.TicketActivity, bool, error)) (*domain.Ticket, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		ticket, err := s.tickets.GetByID(ctx, tenantID, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket": ticketID})
			}
			return nil, apperrors.MapError(err)
		}
		entries, changed, err := fn(ticket)
		if err != nil {
			return nil, mapLifecycleError(err)
		}
		if !changed {
			return ticket, nil
		}
		if err := s.tickets.Update(ctx, ticket); err != nil {
			if errors.Is(err, repository.ErrStaleTicket) {
				s.logger.Debug("ticket version conflict, retrying",
					zap.String("ticket_id", ticket.ID), zap.Int("attempt", attempt+1))
				continue
			}
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket": ticketID})
			}
			return nil, apperrors.MapError(err)
		}
		s.commit(ctx, ticket, entries)
		return ticket, nil
	}
	return nil, apperrors.NewConflict("ticket was modified concurrently, retry the request",
		map[string]any{"ticket": ticketID, "attempts": maxUpdateAttempts})
}

// commit records activity entries and publishes one event per entry. The
// ticket row is already durable, so failures here are logged.
func (s *TicketService) commit(ctx context.Context, ticket *domain.Ticket, entries []domain.TicketActivity) {
	if len(entries) == 0 {
		return
	}
	for i := range entries {
		entries[i].TicketID = ticket.ID
		entries[i].TenantID = ticket.TenantID
	}
	if err := s.activities.RecordAll(ctx, entries); err != nil {
		s.logger.Error("record activity failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return
	}
	for _, entry := range entries {
		s.publishEvent(ctx, events.FromActivity(ticket, entry))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *TicketService) ensureAssignable(ctx context.Context, tenantID int64, id string) error {
	agent, err := s.agents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("assignee not found", map[string]any{"assigned_to": id})
		}
		return apperrors.MapError(err)
	}
	if agent.TenantID != tenantID {
		return apperrors.NewValidationError("assignee not found", map[string]any{"assigned_to": id})
	}
	if !agent.Active {
		return apperrors.NewConflict("assignee inactive", map[string]any{"assigned_to": id})
	}
	return nil
}

func (s *TicketService) identifierError(tenantID int64, err error) error {
	switch {
	case errors.Is(err, identifier.ErrInvalidTenant):
		return apperrors.NewInvalidTenant(tenantID)
	case errors.Is(err, identifier.ErrExhausted):
		s.logger.Error("identifier allocation exhausted", zap.Int64("tenant_id", tenantID), zap.Error(err))
		return apperrors.NewIdentifierCollision(tenantID, s.identifiers.MaxAttempts(), err)
	default:
		return apperrors.MapError(err)
	}
}

func mapLifecycleError(err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidStatus):
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "status"})
	case errors.Is(err, lifecycle.ErrInvalidPriority):
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "priority"})
	default:
		return apperrors.MapError(err)
	}
}

func evaluateAll(tickets []domain.Ticket, now time.Time) []TicketSLA {
	out := make([]TicketSLA, len(tickets))
	for i := range tickets {
		out[i] = TicketSLA{Ticket: tickets[i], Status: sla.Evaluate(&tickets[i], now)}
	}
	return out
}

func agentID(agent *domain.Agent) *string {
	if agent == nil {
		return nil
	}
	id := agent.ID
	return &id
}
