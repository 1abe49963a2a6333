package controllers

import (
	"encoding/json"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/nimbushost/nimbushost/internal/pkg/billing"
	"github.com/nimbushost/nimbushost/internal/pkg/constants"
	"github.com/nimbushost/nimbushost/internal/pkg/env"
	"github.com/nimbushost/nimbushost/internal/pkg/session"
)

const cartSessionKey = "cart"

// cartItem is one plan variant in the session cart.
type cartItem struct {
	Plan     string `json:"plan"`
	Interval string `json:"interval"`
	Quantity int64  `json:"quantity"`
}

// HandleCartView renders the cart with resolved price ids.
func HandleCartView(c *fiber.Ctx) error {
	return render(c, "cart/index", fiber.Map{
		"Title": "Cart",
		"Items": loadCart(c),
	})
}

// HandleCartAdd puts a plan variant into the cart. Duplicate plan/interval
// pairs bump the quantity instead of adding a second line.
func HandleCartAdd(c *fiber.Ctx) error {
	plan := c.FormValue("plan")
	interval := c.FormValue("interval")

	if _, ok := planRegistry.PriceIDFor(plan, interval); !ok {
		return flash.WithError(c, fiber.Map{
			"error": "This plan is not available.",
		}).Redirect(constants.PricingRoute, fiber.StatusSeeOther)
	}

	qty, err := strconv.ParseInt(c.FormValue("quantity", "1"), 10, 64)
	if err != nil || qty < 1 {
		qty = 1
	}

	items := loadCart(c)
	merged := false
	for i := range items {
		if items[i].Plan == plan && items[i].Interval == interval {
			items[i].Quantity += qty
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, cartItem{Plan: plan, Interval: interval, Quantity: qty})
	}
	saveCart(c, items)

	return c.Redirect(constants.CartRoute, fiber.StatusSeeOther)
}

// HandleCartRemove drops one plan variant from the cart.
func HandleCartRemove(c *fiber.Ctx) error {
	plan := c.FormValue("plan")
	interval := c.FormValue("interval")

	items := loadCart(c)
	kept := items[:0]
	for _, item := range items {
		if item.Plan == plan && item.Interval == interval {
			continue
		}
		kept = append(kept, item)
	}
	saveCart(c, kept)

	return c.Redirect(constants.CartRoute, fiber.StatusSeeOther)
}

// HandleCartCheckout turns the cart into one hosted checkout session and
// redirects the browser to it. The cart is cleared once the session exists;
// local billing state appears later through the webhook.
func HandleCartCheckout(c *fiber.Ctx) error {
	items := loadCart(c)
	if len(items) == 0 {
		return c.Redirect(constants.PricingRoute, fiber.StatusSeeOther)
	}

	req := billing.CheckoutRequest{
		Mode:       billing.CheckoutModeSubscription,
		SuccessURL: baseURL() + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  baseURL() + constants.CartRoute,
	}
	for _, item := range items {
		priceID, ok := planRegistry.PriceIDFor(item.Plan, item.Interval)
		if !ok {
			continue
		}
		req.LineItems = append(req.LineItems, billing.CheckoutLineItem{
			Price:    priceID,
			Quantity: item.Quantity,
		})
	}
	if days, err := strconv.ParseInt(env.GetEnv("CHECKOUT_TRIAL_DAYS", "0"), 10, 64); err == nil && days > 0 {
		req.TrialPeriodDays = days
	}

	sess, err := checkoutBuilder.Create(c.Context(), req)
	if err != nil {
		log.Printf("cart checkout: session create failed: %v", err)
		return flash.WithError(c, fiber.Map{
			"error": "Checkout is temporarily unavailable, please try again.",
		}).Redirect(constants.CartRoute, fiber.StatusSeeOther)
	}

	saveCart(c, nil)
	return c.Redirect(sess.URL, fiber.StatusSeeOther)
}

func loadCart(c *fiber.Ctx) []cartItem {
	raw := session.GetSessionValue(c, cartSessionKey)
	if raw == "" {
		return nil
	}
	var items []cartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}

func saveCart(c *fiber.Ctx, items []cartItem) {
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := session.SetSessionValue(c, cartSessionKey, string(raw)); err != nil {
		log.Printf("cart: session save failed: %v", err)
	}
}
