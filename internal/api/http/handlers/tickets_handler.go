package handlers

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/lifecycle"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// TicketsHandler manages agent ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		return err
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), principal.Agent, principal.TenantID, service.TicketCreateInput{
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		Source:       req.Source,
		AssignedTo:   req.AssignedTo,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, nil)})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), principal.TenantID, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		status := dto.NewSLAStatusResponse(tickets[i].Status)
		items = append(items, dto.NewTicketResponse(&tickets[i].Ticket, &status))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ExportTickets GET /api/tickets/export.csv.
func (h *TicketsHandler) ExportTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := h.service.ExportCSV(c.UserContext(), principal.TenantID, &buf); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="tickets-%d.csv"`, principal.TenantID))
	return c.Send(buf.Bytes())
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	result, err := h.service.GetSLAStatus(c.UserContext(), principal.TenantID, c.Params("id"))
	if err != nil {
		return err
	}
	status := dto.NewSLAStatusResponse(result.Status)
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(&result.Ticket, &status)})
}

// UpdateTicket PATCH /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		return err
	}
	input := service.TicketUpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
	}
	if req.AssignedTo.Set {
		input.Assignee = &lifecycle.AssigneeChange{AgentID: req.AssignedTo.Value}
	}

	ticket, err := h.service.UpdateTicket(c.UserContext(), principal.Agent, principal.TenantID, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, nil)})
}

// AddComment POST /api/tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		return err
	}
	comment, ticket, err := h.service.AddComment(c.UserContext(), principal.Agent, principal.TenantID, c.Params("id"), service.CommentInput{
		Body:       req.Body,
		IsInternal: req.IsInternal,
		IsCustomer: req.IsCustomer,
	})
	if err != nil {
		if comment == nil {
			return err
		}
		// the comment is stored; let the client avoid posting it twice
		domainErr := apperrors.ToDomainError(err)
		details := make(map[string]any, len(domainErr.Details)+1)
		for k, v := range domainErr.Details {
			details[k] = v
		}
		details["comment_id"] = comment.ID
		return &apperrors.DomainError{
			Code:       domainErr.Code,
			Message:    domainErr.Message,
			HTTPStatus: domainErr.HTTPStatus,
			Details:    details,
			Err:        domainErr.Err,
		}
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"comment": dto.NewCommentResponse(comment),
		"ticket":  dto.NewTicketResponse(ticket, nil),
	}})
}

// ListComments GET /api/tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	comments, err := h.service.ListComments(c.UserContext(), principal.TenantID, c.Params("id"), c.QueryBool("include_internal", true))
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, dto.NewCommentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListActivity GET /api/tickets/:id/activity.
func (h *TicketsHandler) ListActivity(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	entries, err := h.service.ListActivity(c.UserContext(), principal.TenantID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewActivityResponses(entries)})
}

// GetSLA GET /api/tickets/:id/sla.
func (h *TicketsHandler) GetSLA(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	result, err := h.service.GetSLAStatus(c.UserContext(), principal.TenantID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"ticket_id":  result.Ticket.ID,
		"identifier": result.Ticket.Identifier,
		"status":     result.Ticket.Status,
		"priority":   result.Ticket.Priority,
		"sla":        dto.NewSLAStatusResponse(result.Status),
	}})
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{}
	for _, part := range splitList(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(part))
	}
	for _, part := range splitList(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.TicketPriority(part))
	}
	if assignee := strings.TrimSpace(c.Query("assigned_to")); assignee != "" {
		filter.AssignedTo = &assignee
	}
	if raw := c.Query("overdue"); raw != "" {
		overdue, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.NewValidationError("overdue must be a boolean", map[string]any{"overdue": raw})
		}
		filter.Overdue = &overdue
	}
	var err error
	if filter.CreatedFrom, err = parseTime("created_from", c.Query("created_from")); err != nil {
		return filter, err
	}
	if filter.CreatedTo, err = parseTime("created_to", c.Query("created_to")); err != nil {
		return filter, err
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseTime(field, val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, apperrors.NewValidationError("timestamps must be RFC3339", map[string]any{field: val})
	}
	return &t, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
