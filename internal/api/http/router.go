package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-assistant/internal/api/http/handlers"
	"github.com/spec-kit/support-assistant/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health            *handlers.HealthHandler
	Activities        *handlers.ActivityHandler
	WebhookMiddleware *auth.WebhookMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api", cfg.WebhookMiddleware.Handle)
	api.Post("/messages", cfg.Activities.Receive)
}
