package constants

// Shared route paths used by the router and controller redirects.
const (
	HomeRoute            = "/"
	PricingRoute         = "/pricing"
	LoginRoute           = "/login"
	RegisterRoute        = "/register"
	CartRoute            = "/cart"
	CheckoutSuccessRoute = "/checkout/success"
	CheckoutCancelRoute  = "/checkout/cancel"
	UserBillingRoute     = "/user/billing"
	BillingWebhookRoute  = "/webhooks/billing"
)
