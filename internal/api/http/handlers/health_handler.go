package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/persistence"
)

const readinessTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name string
	ping pinger
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName  string
	version      string
	dependencies []dependency
}

// NewHealthHandler returns a new handler instance. A nil postgres or redis
// is reported as disabled rather than failing readiness.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis) *HealthHandler {
	h := &HealthHandler{serviceName: serviceName, version: version}
	var pg, rd pinger
	if postgres != nil {
		pg = postgres
	}
	if redis != nil {
		rd = redis
	}
	h.dependencies = []dependency{{name: "postgres", ping: pg}, {name: "redis", ping: rd}}
	return h
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready pings every configured backend.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	statuses := make(fiber.Map, len(h.dependencies))
	ready := true
	for _, dep := range h.dependencies {
		if dep.ping == nil {
			statuses[dep.name] = "disabled"
			continue
		}
		if err := dep.ping.Ping(ctx); err != nil {
			statuses[dep.name] = err.Error()
			ready = false
			continue
		}
		statuses[dep.name] = "ok"
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "one or more dependencies unavailable",
				"details": statuses,
			},
		})
	}
	return c.JSON(fiber.Map{
		"status":       "ready",
		"service":      h.serviceName,
		"dependencies": statuses,
	})
}
