package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-queue/internal/api/http/handlers"
	"github.com/spec-kit/clinic-queue/internal/auth"
)

// RouteConfig bundles handlers for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Queue           *handlers.QueueHandler
	Webhook         *handlers.WebhookHandler
	Admin           *handlers.AdminHandler
	AdminMiddleware *auth.AdminMiddleware
}

// RegisterRoutes wires all route groups onto the app.
func RegisterRoutes(app *fiber.App, rc RouteConfig) {
	app.Get("/health/live", rc.Health.Live)
	app.Get("/health/ready", rc.Health.Ready)

	webhooks := app.Group("/webhooks")
	webhooks.Post("/sms", rc.Webhook.SMS)
	webhooks.Post("/whatsapp", rc.Webhook.WhatsApp)
	webhooks.Post("/whatsapp/status", rc.Webhook.DeliveryStatus)

	queue := app.Group("/queue")
	queue.Post("/join", rc.Queue.Join)
	queue.Get("/status/:contact", rc.Queue.Status)
	queue.Post("/leave", rc.Queue.Leave)

	admin := app.Group("/admin")
	admin.Post("/login", rc.Admin.Login)

	protected := admin.Group("", rc.AdminMiddleware.Handle)
	protected.Get("/board", rc.Admin.Board)
	protected.Post("/action", rc.Admin.Action)
	protected.Get("/events", rc.Admin.Events)
}
