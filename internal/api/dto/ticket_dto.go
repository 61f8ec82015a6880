package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title        string                `json:"title" validate:"required,max=200"`
	Description  string                `json:"description" validate:"max=10000"`
	Priority     domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Source       domain.TicketSource   `json:"source" validate:"omitempty,oneof=portal email chat api"`
	AssignedTo   *string               `json:"assigned_to" validate:"omitempty,uuid"`
	ContactName  string                `json:"contact_name" validate:"max=120"`
	ContactEmail string                `json:"contact_email" validate:"omitempty,email"`
}

// NullableString distinguishes an absent field from an explicit null.
type NullableString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON records that the field was present.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// UpdateTicketRequest is a partial update. "assigned_to": null unassigns.
type UpdateTicketRequest struct {
	Title       *string                `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string                `json:"description" validate:"omitempty,max=10000"`
	Status      *domain.TicketStatus   `json:"status" validate:"omitempty,oneof=open in_progress on_hold resolved closed"`
	Priority    *domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	AssignedTo  NullableString         `json:"assigned_to"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body       string `json:"body" validate:"required,max=20000"`
	IsInternal bool   `json:"is_internal"`
	IsCustomer bool   `json:"is_customer"`
}

// TicketResponse is the full ticket with its evaluated SLA.
type TicketResponse struct {
	ID                 string                `json:"id"`
	Identifier         string                `json:"identifier"`
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	Status             domain.TicketStatus   `json:"status"`
	Priority           domain.TicketPriority `json:"priority"`
	Source             domain.TicketSource   `json:"source"`
	AssignedTo         *string               `json:"assigned_to"`
	CreatedBy          *string               `json:"created_by"`
	ContactName        string                `json:"contact_name,omitempty"`
	ContactEmail       string                `json:"contact_email,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
	FirstResponseAt    *time.Time            `json:"first_response_at"`
	ResolvedAt         *time.Time            `json:"resolved_at"`
	SLAResponseDueAt   *time.Time            `json:"sla_response_due_at"`
	SLAResolutionDueAt *time.Time            `json:"sla_resolution_due_at"`
	SLAResponseMet     *bool                 `json:"sla_response_met"`
	SLAResolutionMet   *bool                 `json:"sla_resolution_met"`
	Version            int                   `json:"version"`
	SLA                *SLAStatusResponse    `json:"sla,omitempty"`
}

// CommentResponse represents a comment.
type CommentResponse struct {
	ID         string    `json:"id"`
	AuthorID   *string   `json:"author_id"`
	Body       string    `json:"body"`
	IsInternal bool      `json:"is_internal"`
	IsCustomer bool      `json:"is_customer"`
	CreatedAt  time.Time `json:"created_at"`
}

// ActivityResponse represents an audit entry.
type ActivityResponse struct {
	ID          int64               `json:"id"`
	Kind        domain.ActivityKind `json:"kind"`
	Description string              `json:"description"`
	ActorID     *string             `json:"actor_id"`
	OldValue    *string             `json:"old_value"`
	NewValue    *string             `json:"new_value"`
	System      bool                `json:"system"`
	CreatedAt   time.Time           `json:"created_at"`
}

// NewTicketResponse maps a ticket; sla may be nil.
func NewTicketResponse(ticket *domain.Ticket, sla *SLAStatusResponse) TicketResponse {
	return TicketResponse{
		ID:                 ticket.ID,
		Identifier:         ticket.Identifier,
		Title:              ticket.Title,
		Description:        ticket.Description,
		Status:             ticket.Status,
		Priority:           ticket.Priority,
		Source:             ticket.Source,
		AssignedTo:         ticket.AssignedTo,
		CreatedBy:          ticket.CreatedBy,
		ContactName:        ticket.ContactName,
		ContactEmail:       ticket.ContactEmail,
		CreatedAt:          ticket.CreatedAt,
		UpdatedAt:          ticket.UpdatedAt,
		FirstResponseAt:    ticket.FirstResponseAt,
		ResolvedAt:         ticket.ResolvedAt,
		SLAResponseDueAt:   ticket.SLAResponseDueAt,
		SLAResolutionDueAt: ticket.SLAResolutionDueAt,
		SLAResponseMet:     ticket.SLAResponseMet,
		SLAResolutionMet:   ticket.SLAResolutionMet,
		Version:            ticket.Version,
		SLA:                sla,
	}
}

// NewCommentResponse maps a comment.
func NewCommentResponse(comment *domain.TicketComment) CommentResponse {
	return CommentResponse{
		ID:         comment.ID,
		AuthorID:   comment.AuthorID,
		Body:       comment.Body,
		IsInternal: comment.IsInternal,
		IsCustomer: comment.IsCustomer,
		CreatedAt:  comment.CreatedAt,
	}
}

// NewActivityResponses maps audit entries in order.
func NewActivityResponses(entries []domain.TicketActivity) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ActivityResponse{
			ID:          entry.ID,
			Kind:        entry.Kind,
			Description: entry.Description,
			ActorID:     entry.ActorID,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			System:      entry.SystemGenerated(),
			CreatedAt:   entry.CreatedAt,
		})
	}
	return out
}
