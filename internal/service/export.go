package service

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/spec-kit/helpdesk/internal/sla"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

var exportHeader = []string{
	"identifier",
	"title",
	"status",
	"priority",
	"source",
	"assigned_to",
	"contact_name",
	"contact_email",
	"created_at",
	"first_response_at",
	"resolved_at",
	"sla_response_due_at",
	"sla_resolution_due_at",
	"sla_response_status",
	"sla_resolution_status",
	"response_overdue",
	"resolution_overdue",
}

// ExportCSV writes every ticket of the tenant, oldest first, with its SLA
// evaluation at the current instant.
func (s *TicketService) ExportCSV(ctx context.Context, tenantID int64, w io.Writer) error {
	tickets, err := s.tickets.ListByTenant(ctx, tenantID)
	if err != nil {
		return apperrors.MapError(err)
	}
	now := s.machine.Now()

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for i := range tickets {
		t := &tickets[i]
		status := sla.Evaluate(t, now)
		assigned := ""
		if t.AssignedTo != nil {
			assigned = *t.AssignedTo
		}
		record := []string{
			t.Identifier,
			t.Title,
			string(t.Status),
			string(t.Priority),
			string(t.Source),
			assigned,
			t.ContactName,
			t.ContactEmail,
			formatTime(&t.CreatedAt),
			formatTime(t.FirstResponseAt),
			formatTime(t.ResolvedAt),
			formatTime(t.SLAResponseDueAt),
			formatTime(t.SLAResolutionDueAt),
			string(status.Response.State),
			string(status.Resolution.State),
			strconv.FormatBool(status.Response.Overdue),
			strconv.FormatBool(status.Resolution.Overdue),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(v *time.Time) string {
	if v == nil || v.IsZero() {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
