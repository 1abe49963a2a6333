package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimbushost/nimbushost/internal/pkg/env"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
)

// Checkout billing modes accepted by the builder.
const (
	CheckoutModeSubscription = "subscription"
	CheckoutModePayment      = "payment"
)

const defaultCheckoutTimeout = 20 * time.Second

// ErrInvalidCheckoutRequest rejects a request before any network call is made.
var ErrInvalidCheckoutRequest = errors.New("invalid checkout request")

// checkoutLocales is the allow-list for the hosted checkout page language.
// Anything else falls back to auto-detection on the processor side.
var checkoutLocales = map[string]bool{
	"auto": true, "de": true, "en": true, "es": true, "fr": true,
	"it": true, "nl": true, "pl": true, "pt": true,
}

// CheckoutLineItem is one priced line of a checkout request.
type CheckoutLineItem struct {
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
}

// CheckoutRequest describes a hosted-checkout session to create. Either
// PriceID or a non-empty LineItems list must be supplied.
type CheckoutRequest struct {
	PriceID             string             `json:"price_id"`
	LineItems           []CheckoutLineItem `json:"line_items"`
	Mode                string             `json:"mode"`
	SuccessURL          string             `json:"success_url"`
	CancelURL           string             `json:"cancel_url"`
	Locale              string             `json:"locale"`
	TrialPeriodDays     int64              `json:"trial_period_days"`
	AllowPromotionCodes bool               `json:"allow_promotion_codes"`
}

// CheckoutSession is the processor-issued session the storefront redirects to.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// sessionCreator is the seam to the processor SDK so the builder can be
// exercised in tests without network access.
type sessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeSessionCreator struct{}

func (stripeSessionCreator) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return checkoutsession.New(params)
}

// CheckoutBuilder turns validated checkout requests into processor sessions.
// It writes nothing locally; local state materializes later through the
// checkout completed webhook.
type CheckoutBuilder struct {
	creator sessionCreator
	timeout time.Duration
}

// NewCheckoutBuilderFromEnv configures the processor SDK key and returns a
// builder backed by the real checkout API.
func NewCheckoutBuilderFromEnv() *CheckoutBuilder {
	stripe.Key = strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", ""))
	return &CheckoutBuilder{
		creator: stripeSessionCreator{},
		timeout: defaultCheckoutTimeout,
	}
}

// Create validates the request and performs one bounded call to the
// processor. Validation failures never reach the network; processor failures
// surface as a generic error without retry, the caller may retry the whole
// checkout attempt.
func (b *CheckoutBuilder) Create(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	lines, mode, err := b.normalize(&req)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(mode),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Locale:     stripe.String(checkoutLocale(req.Locale)),
	}
	for _, line := range lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(line.Price),
			Quantity: stripe.Int64(line.Quantity),
		})
	}
	if req.AllowPromotionCodes {
		params.AllowPromotionCodes = stripe.Bool(true)
	}
	if req.TrialPeriodDays > 0 && mode == CheckoutModeSubscription {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(req.TrialPeriodDays),
		}
	}

	timeout := b.timeout
	if timeout <= 0 {
		timeout = defaultCheckoutTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	params.Context = ctx

	sess, err := b.creator.New(params)
	if err != nil {
		return nil, fmt.Errorf("checkout session create failed: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// normalize resolves the effective line items and mode, rejecting requests
// that carry neither a single price nor line items.
func (b *CheckoutBuilder) normalize(req *CheckoutRequest) ([]CheckoutLineItem, string, error) {
	var lines []CheckoutLineItem
	for _, line := range req.LineItems {
		price := strings.TrimSpace(line.Price)
		if price == "" {
			continue
		}
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		lines = append(lines, CheckoutLineItem{Price: price, Quantity: qty})
	}
	if len(lines) == 0 {
		if price := strings.TrimSpace(req.PriceID); price != "" {
			lines = append(lines, CheckoutLineItem{Price: price, Quantity: 1})
		}
	}
	if len(lines) == 0 {
		return nil, "", fmt.Errorf("%w: price_id or line_items required", ErrInvalidCheckoutRequest)
	}

	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	switch mode {
	case "":
		mode = CheckoutModeSubscription
	case CheckoutModeSubscription, CheckoutModePayment:
	default:
		return nil, "", fmt.Errorf("%w: unsupported mode %q", ErrInvalidCheckoutRequest, req.Mode)
	}

	if strings.TrimSpace(req.SuccessURL) == "" || strings.TrimSpace(req.CancelURL) == "" {
		return nil, "", fmt.Errorf("%w: success_url and cancel_url required", ErrInvalidCheckoutRequest)
	}
	return lines, mode, nil
}

func checkoutLocale(locale string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if checkoutLocales[l] {
		return l
	}
	return "auto"
}
