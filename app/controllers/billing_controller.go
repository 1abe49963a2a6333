package controllers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/nimbushost/nimbushost/internal/pkg/billing"
	"github.com/nimbushost/nimbushost/internal/pkg/usercontext"
	"github.com/nimbushost/nimbushost/internal/pkg/utils"
)

// HandleBillingWebhook receives payment processor deliveries. The raw body is
// verified and reconciled by the billing service; the response code tells the
// processor whether to redeliver. 2xx acknowledges (including duplicates),
// 400 drops the delivery for good, 5xx requests a redelivery.
func HandleBillingWebhook(c *fiber.Ctx) error {
	result, err := billingService.ProcessWebhook(c.Context(), c.Body(), c.Get(billing.SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrSignatureMissing),
			errors.Is(err, billing.ErrSignatureInvalid),
			errors.Is(err, billing.ErrSignatureExpired):
			log.Printf("billing webhook: rejected signature: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid signature"})
		case errors.Is(err, billing.ErrMalformedEvent):
			log.Printf("billing webhook: malformed payload: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed event"})
		default:
			// The event row is stored without processed_at, so the processor's
			// redelivery will run reconciliation again.
			log.Printf("billing webhook: processing failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing failed"})
		}
	}

	return c.JSON(fiber.Map{
		"received":  true,
		"event_id":  result.EventID,
		"type":      result.EventType,
		"duplicate": result.Duplicate,
	})
}

// checkoutAPIRequest is the storefront-facing checkout payload. Callers either
// name a catalog plan or pass explicit price ids.
type checkoutAPIRequest struct {
	Plan     string `json:"plan"`
	Interval string `json:"interval"`
	billing.CheckoutRequest
}

// HandleAPICheckoutCreate creates a hosted checkout session and returns its
// id and redirect URL. Nothing is written locally; the mirrored subscription
// appears once the completed webhook arrives.
func HandleAPICheckoutCreate(c *fiber.Ctx) error {
	var req checkoutAPIRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if req.Plan != "" && req.PriceID == "" && len(req.LineItems) == 0 {
		priceID, ok := planRegistry.PriceIDFor(req.Plan, req.Interval)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown plan or interval"})
		}
		req.PriceID = priceID
	}
	if strings.TrimSpace(req.SuccessURL) == "" {
		req.SuccessURL = baseURL() + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"
	}
	if strings.TrimSpace(req.CancelURL) == "" {
		req.CancelURL = baseURL() + "/checkout/cancel"
	}

	sess, err := checkoutBuilder.Create(c.Context(), req.CheckoutRequest)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidCheckoutRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("checkout: session create failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "checkout unavailable, please retry"})
	}

	return c.JSON(fiber.Map{"id": sess.ID, "url": sess.URL})
}

// HandleCheckoutSuccess renders the post-payment landing page. The page only
// confirms the redirect; the authoritative subscription state arrives via
// webhook and may lag by a few seconds.
func HandleCheckoutSuccess(c *fiber.Ctx) error {
	return render(c, "checkout/success", fiber.Map{
		"Title":     "Payment received",
		"SessionID": c.Query("session_id"),
	})
}

// HandleCheckoutCancel renders the page shown when the user backs out of the
// hosted checkout.
func HandleCheckoutCancel(c *fiber.Ctx) error {
	return render(c, "checkout/cancel", fiber.Map{
		"Title": "Checkout canceled",
	})
}

// HandleUserBilling shows the logged-in user's mirrored subscriptions and
// invoices. Users without a linked billing customer simply see an empty
// overview.
func HandleUserBilling(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	customer, err := billingRepo.GetCustomerByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return render(c, "user/billing", fiber.Map{
				"Title":         "Billing",
				"Subscriptions": nil,
				"Invoices":      nil,
			})
		}
		log.Printf("billing overview: customer lookup failed for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).SendString("billing overview unavailable")
	}

	subs, err := billingRepo.ListSubscriptionsByCustomer(customer.ID)
	if err != nil {
		log.Printf("billing overview: subscription list failed for customer %d: %v", customer.ID, err)
		return c.Status(fiber.StatusInternalServerError).SendString("billing overview unavailable")
	}
	invoices, err := billingRepo.ListInvoicesByCustomer(customer.ID)
	if err != nil {
		log.Printf("billing overview: invoice list failed for customer %d: %v", customer.ID, err)
		return c.Status(fiber.StatusInternalServerError).SendString("billing overview unavailable")
	}

	return render(c, "user/billing", fiber.Map{
		"Title":         "Billing",
		"Customer":      customer,
		"AvatarURL":     utils.GetGravatarURL(customer.Email, 96),
		"Subscriptions": subs,
		"Invoices":      invoices,
	})
}
