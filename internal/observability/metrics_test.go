package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/tickets", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/api/tickets", "GET", 200, 30*time.Millisecond)
	m.RecordRequest("/api/tickets", "POST", 201, time.Millisecond)
	m.RecordError("/api/tickets", "POST", "VALIDATION_FAILED")

	snap := m.Snapshot()
	require.Len(t, snap.Requests, 2)
	assert.Equal(t, Counter{Path: "/api/tickets", Method: "GET", Label: "200", Count: 2, AvgMillis: 20}, snap.Requests[0])
	assert.Equal(t, "POST", snap.Requests[1].Method)
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, "VALIDATION_FAILED", snap.Errors[0].Label)

	var nilMetrics *Metrics
	nilMetrics.RecordRequest("/", "GET", 200, 0)
	assert.Empty(t, nilMetrics.Snapshot().Requests)
}

func TestRequestLoggerUsesRoutePattern(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Get("/api/tickets/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	for _, id := range []string{"FR5-001", "FR5-002"} {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/tickets/"+id, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}

	snap := m.Snapshot()
	require.Len(t, snap.Requests, 1)
	assert.Equal(t, "/api/tickets/:id", snap.Requests[0].Path)
	assert.Equal(t, int64(2), snap.Requests[0].Count)
}
