package domain

import "time"

// ActivityKind tags what an activity entry records.
type ActivityKind string

const (
	ActivityCreated         ActivityKind = "created"
	ActivityStatusChanged   ActivityKind = "status_changed"
	ActivityPriorityChanged ActivityKind = "priority_changed"
	ActivityAssigned        ActivityKind = "assigned"
	ActivitySLAStarted      ActivityKind = "sla_started"
	ActivityCommentAdded    ActivityKind = "comment_added"
	ActivityFirstResponse   ActivityKind = "first_response"
	ActivityResolved        ActivityKind = "resolved"
	ActivityReopened        ActivityKind = "reopened"
	ActivitySLARecalculated ActivityKind = "sla_recalculated"
)

// TicketActivity is an immutable audit trail entry.
type TicketActivity struct {
	ID          int64
	TicketID    string
	TenantID    int64
	ActorID     *string
	Kind        ActivityKind
	Description string
	OldValue    *string
	NewValue    *string
	CreatedAt   time.Time
}

// SystemGenerated is true when no human actor caused the entry.
func (a TicketActivity) SystemGenerated() bool {
	return a.ActorID == nil
}
