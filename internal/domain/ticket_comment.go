package domain

import "time"

// TicketComment captures a message in a ticket thread.
type TicketComment struct {
	ID         string
	TicketID   string
	AuthorID   *string
	Body       string
	IsInternal bool
	IsCustomer bool
	CreatedAt  time.Time
}
