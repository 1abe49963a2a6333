package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nimbushost/nimbushost/app/controllers"
	"github.com/nimbushost/nimbushost/internal/pkg/constants"
	"github.com/nimbushost/nimbushost/internal/pkg/middleware"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Marketing pages
	app.Get(constants.HomeRoute, controllers.HandleStart)
	app.Get(constants.PricingRoute, controllers.HandlePricing)
	app.Get("/contact", controllers.HandleContact)

	// News
	app.Get("/news", controllers.HandleNewsList)
	app.Get("/news/:slug", controllers.HandleNewsShow)

	// CMS page display
	app.Get("/page/:slug", controllers.HandlePage)

	// Auth
	app.Get(constants.LoginRoute, controllers.HandleAuthLogin)
	app.Post(constants.LoginRoute, controllers.HandleAuthLoginPost)
	app.Get(constants.RegisterRoute, controllers.HandleAuthRegister)
	app.Post(constants.RegisterRoute, controllers.HandleAuthRegisterPost)
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Cart and checkout
	app.Get(constants.CartRoute, controllers.HandleCartView)
	app.Post("/cart/add", controllers.HandleCartAdd)
	app.Post("/cart/remove", controllers.HandleCartRemove)
	app.Post("/cart/checkout", controllers.HandleCartCheckout)
	app.Get(constants.CheckoutSuccessRoute, controllers.HandleCheckoutSuccess)
	app.Get(constants.CheckoutCancelRoute, controllers.HandleCheckoutCancel)

	// Account billing overview
	app.Get(constants.UserBillingRoute, middleware.RequireAuth, controllers.HandleUserBilling)

	// Payment provider webhooks (no CSRF, signature-verified in the service)
	app.Post(constants.BillingWebhookRoute, controllers.HandleBillingWebhook)
}
