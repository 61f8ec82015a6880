package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
)

// SLAHandler exposes SLA policy management and recalculation.
type SLAHandler struct {
	policies *service.SLAPolicyService
	tickets  *service.TicketService
}

// NewSLAHandler constructs handler.
func NewSLAHandler(policies *service.SLAPolicyService, tickets *service.TicketService) *SLAHandler {
	return &SLAHandler{policies: policies, tickets: tickets}
}

// ListPolicies handles GET /api/sla-policies.
func (h *SLAHandler) ListPolicies(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	policies, err := h.policies.List(c.UserContext(), principal.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": policies})
}

// UpsertPolicy handles PUT /api/sla-policies/:priority.
func (h *SLAHandler) UpsertPolicy(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpsertPolicyRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		return err
	}
	policy, err := h.policies.Upsert(c.UserContext(), principal.TenantID, service.PolicyInput{
		Priority:          domain.TicketPriority(utils.CopyString(c.Params("priority"))),
		ResponseMinutes:   req.ResponseMinutes,
		ResolutionMinutes: req.ResolutionMinutes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.EffectivePolicy{
		Priority:          policy.Priority,
		ResponseMinutes:   policy.ResponseMinutes,
		ResolutionMinutes: policy.ResolutionMinutes,
		Custom:            true,
	}})
}

// Recalculate handles POST /api/sla-policies/recalculate?force=bool.
func (h *SLAHandler) Recalculate(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	result, err := h.tickets.RecalculateSLA(c.UserContext(), principal.TenantID, c.QueryBool("force", false))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
