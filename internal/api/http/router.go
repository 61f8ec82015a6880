package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Auth           *handlers.AuthHandler
	Agents         *handlers.AgentsHandler
	SLA            *handlers.SLAHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Get)

	app.Post("/tenants", cfg.Auth.Onboard)
	app.Post("/auth/agents/login", cfg.Auth.Login)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireRole())
	admin := auth.RequireAdmin()

	api.Get("/me", cfg.Auth.Me)
	api.Delete("/tenant", admin, cfg.Auth.DeleteTenant)

	api.Get("/agents", cfg.Agents.List)
	api.Post("/agents", admin, cfg.Agents.Create)

	api.Get("/sla-policies", cfg.SLA.ListPolicies)
	api.Post("/sla-policies/recalculate", admin, cfg.SLA.Recalculate)
	api.Put("/sla-policies/:priority", admin, cfg.SLA.UpsertPolicy)

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/export.csv", cfg.Tickets.ExportTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Get("/:id/activity", cfg.Tickets.ListActivity)
	tickets.Get("/:id/sla", cfg.Tickets.GetSLA)
}
