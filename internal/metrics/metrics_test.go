package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMiddlewareRecordsRequest(t *testing.T) {
	m := New()
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/metrics", m.Handler())
	app.Get("/teapot/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusTeapot) })

	_, err := app.Test(httptest.NewRequest("GET", "/teapot/9", nil))
	require.NoError(t, err)

	body := scrape(t, app)
	assert.Contains(t, body, `http_requests_total{code="418",method="GET",route="/teapot/:id"} 1`)
	assert.Contains(t, body, `http_request_duration_seconds_bucket{method="GET",route="/teapot/:id"`)
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.OrderPlaced()
	m.OrderPlaced()
	m.TokenRevoked()
	m.JobRun("purge", nil)
	m.JobRun("purge", errors.New("x"))

	app := fiber.New()
	app.Get("/metrics", m.Handler())
	body := scrape(t, app)
	assert.Contains(t, body, "orders_placed_total 2")
	assert.Contains(t, body, "tokens_revoked_total 1")
	assert.Contains(t, body, `job_runs_total{job="purge",result="error"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.OrderPlaced()
	m.TokenRevoked()
	m.JobRun("x", nil)

	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/metrics", m.Handler())
	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
