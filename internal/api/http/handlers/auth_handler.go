package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// AuthHandler exposes login and tenant onboarding.
type AuthHandler struct {
	authService   *service.AuthService
	tenantService *service.TenantService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, tenantService *service.TenantService) *AuthHandler {
	return &AuthHandler{authService: authService, tenantService: tenantService}
}

// Login handles POST /auth/agents/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.AgentLoginRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		return err
	}

	agent, token, exp, err := h.authService.LoginAgent(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"agent": dto.NewAgentResponse(agent),
			"auth":  dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Onboard handles POST /tenants.
func (h *AuthHandler) Onboard(c *fiber.Ctx) error {
	var req dto.OnboardTenantRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		return err
	}

	tenant, admin, err := h.tenantService.Onboard(c.UserContext(), service.OnboardInput{
		TenantName:    req.TenantName,
		AdminName:     req.AdminName,
		AdminEmail:    req.AdminEmail,
		AdminPassword: req.AdminPassword,
	})
	if err != nil {
		return err
	}
	token, exp, err := h.authService.IssueToken(admin)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"tenant": dto.NewTenantResponse(tenant),
			"agent":  dto.NewAgentResponse(admin),
			"auth":   dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// DeleteTenant handles DELETE /api/tenant.
func (h *AuthHandler) DeleteTenant(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	if err := h.tenantService.Delete(c.UserContext(), principal.Agent, principal.TenantID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Me handles GET /api/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tenant, err := h.tenantService.Get(c.UserContext(), principal.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"agent":  dto.NewAgentResponse(principal.Agent),
		"tenant": dto.NewTenantResponse(tenant),
	}})
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Agent == nil {
		return nil, apperrors.NewUnauthorized("agent required")
	}
	return principal, nil
}
