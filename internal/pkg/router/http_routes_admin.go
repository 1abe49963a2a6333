package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nimbushost/nimbushost/app/controllers"
	"github.com/nimbushost/nimbushost/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.RequireAdmin)

	// Page management
	adminGroup.Get("/pages", controllers.HandleAdminPages)
	adminGroup.Get("/pages/create", controllers.HandleAdminPageCreate)
	adminGroup.Post("/pages/store", controllers.HandleAdminPageStore)
	adminGroup.Get("/pages/edit/:id", controllers.HandleAdminPageEdit)
	adminGroup.Post("/pages/update/:id", controllers.HandleAdminPageUpdate)
	adminGroup.Post("/pages/delete/:id", controllers.HandleAdminPageDelete)

	// News management
	adminGroup.Get("/news", controllers.HandleAdminNews)
	adminGroup.Get("/news/create", controllers.HandleAdminNewsCreate)
	adminGroup.Post("/news/store", controllers.HandleAdminNewsStore)
	adminGroup.Get("/news/edit/:id", controllers.HandleAdminNewsEdit)
	adminGroup.Post("/news/update/:id", controllers.HandleAdminNewsUpdate)
	adminGroup.Post("/news/delete/:id", controllers.HandleAdminNewsDelete)

	// Billing visibility
	adminGroup.Get("/billing/subscriptions", controllers.HandleAdminSubscriptions)
	adminGroup.Get("/billing/webhook-events", controllers.HandleAdminWebhookEvents)
	adminGroup.Get("/billing/provisioning-logs", controllers.HandleAdminProvisioningLogs)
}
