package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/sla"
)

// UpsertPolicyRequest sets the budgets of one priority.
type UpsertPolicyRequest struct {
	ResponseMinutes   int `json:"response_minutes" validate:"required,gt=0,lte=525600"`
	ResolutionMinutes int `json:"resolution_minutes" validate:"required,gt=0,lte=525600"`
}

// SLATrackResponse is one SLA clock.
type SLATrackResponse struct {
	Status      sla.State  `json:"status"`
	Overdue     bool       `json:"overdue"`
	DueAt       *time.Time `json:"due_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// SLAStatusResponse pairs both clocks.
type SLAStatusResponse struct {
	Response   SLATrackResponse `json:"response"`
	Resolution SLATrackResponse `json:"resolution"`
	Breached   bool             `json:"breached"`
}

// NewSLAStatusResponse maps an evaluated status.
func NewSLAStatusResponse(status sla.Status) SLAStatusResponse {
	return SLAStatusResponse{
		Response:   trackResponse(status.Response),
		Resolution: trackResponse(status.Resolution),
		Breached:   status.Breached(),
	}
}

func trackResponse(track sla.Track) SLATrackResponse {
	return SLATrackResponse{
		Status:      track.State,
		Overdue:     track.Overdue,
		DueAt:       track.DueAt,
		CompletedAt: track.CompletedAt,
	}
}
