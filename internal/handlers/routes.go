package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// SetupRoutes registers the operational endpoints.
func SetupRoutes(app *fiber.App, health *HealthHandler, registry *prometheus.Registry) {
	app.Get("/health", health.HealthCheck)
	app.Get("/metrics", Metrics(registry))
}
