package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event types emitted by the payment processor that the reconciler interprets.
// Anything else is recorded and acknowledged without side effects.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventSubscriptionCreated   = "customer.subscription.created"
	EventSubscriptionUpdated   = "customer.subscription.updated"
	EventSubscriptionDeleted   = "customer.subscription.deleted"
	EventInvoicePaid           = "invoice.paid"
	EventInvoiceUpdated        = "invoice.updated"
	EventPaymentMethodAttached = "payment_method.attached"
	EventPaymentMethodUpdated  = "payment_method.updated"
)

// ErrMalformedEvent marks payloads that fail schema validation at the
// boundary; they never reach the deduplicator or reconciler.
var ErrMalformedEvent = errors.New("malformed webhook event payload")

// Event is the verified, schema-checked form of one webhook delivery. Created
// is the processor-side creation time of the event and drives the
// out-of-order guard; exactly one of the typed payload fields is non-nil,
// matching Type.
type Event struct {
	ID      string
	Type    string
	Created time.Time
	Raw     []byte

	Checkout      *CheckoutCompletedPayload
	Subscription  *SubscriptionPayload
	Invoice       *InvoicePayload
	PaymentMethod *PaymentMethodPayload
}

// PricePayload describes a priced product reference inside event payloads.
type PricePayload struct {
	ID          string `json:"id"`
	Product     string `json:"product"`
	ProductName string `json:"product_name"`
	UnitAmount  int64  `json:"unit_amount"`
	Currency    string `json:"currency"`
}

// LineItemPayload is one purchased line inside a checkout or subscription.
type LineItemPayload struct {
	ID       string       `json:"id"`
	Price    PricePayload `json:"price"`
	Quantity int64        `json:"quantity"`
}

// CheckoutCompletedPayload announces a finished hosted-checkout session.
type CheckoutCompletedPayload struct {
	SessionID     string            `json:"id"`
	CustomerID    string            `json:"customer"`
	CustomerEmail string            `json:"customer_email"`
	CustomerName  string            `json:"customer_name"`
	Subscription  string            `json:"subscription"`
	Mode          string            `json:"mode"`
	Status        string            `json:"status"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	LineItems     []LineItemPayload `json:"line_items"`
	Metadata      map[string]string `json:"metadata"`
}

// SubscriptionPayload mirrors a subscription create/update/delete event.
type SubscriptionPayload struct {
	SubscriptionID     string            `json:"id"`
	CustomerID         string            `json:"customer"`
	Status             string            `json:"status"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Currency           string            `json:"currency"`
	Items              []LineItemPayload `json:"items"`
	Metadata           map[string]string `json:"metadata"`
}

// InvoicePayload mirrors an invoice event. Amounts are minor currency units;
// amount_remaining is advisory and recomputed locally.
type InvoicePayload struct {
	InvoiceID       string `json:"id"`
	CustomerID      string `json:"customer"`
	Subscription    string `json:"subscription"`
	Status          string `json:"status"`
	AmountDue       int64  `json:"amount_due"`
	AmountPaid      int64  `json:"amount_paid"`
	AmountRemaining int64  `json:"amount_remaining"`
	Currency        string `json:"currency"`
	Paid            bool   `json:"paid"`
	Created         int64  `json:"created"`
}

// PaymentMethodPayload mirrors a payment method attach/update event.
type PaymentMethodPayload struct {
	PaymentMethodID string `json:"id"`
	CustomerID      string `json:"customer"`
	Type            string `json:"type"`
	Card            struct {
		Brand string `json:"brand"`
		Last4 string `json:"last4"`
	} `json:"card"`
	IsDefault bool `json:"is_default"`
}

type eventEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    json.RawMessage `json:"data"`
}

type eventData struct {
	Object json.RawMessage `json:"object"`
}

// ParseEvent validates the envelope and decodes the payload into the typed
// schema for its event type. Unknown event types keep all payload fields nil;
// the caller records and acknowledges them without reconciling.
func ParseEvent(raw []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if strings.TrimSpace(env.ID) == "" || strings.TrimSpace(env.Type) == "" {
		return nil, fmt.Errorf("%w: missing event id or type", ErrMalformedEvent)
	}

	evt := &Event{
		ID:      strings.TrimSpace(env.ID),
		Type:    strings.TrimSpace(env.Type),
		Created: time.Unix(env.Created, 0).UTC(),
		Raw:     raw,
	}
	if env.Created <= 0 {
		return nil, fmt.Errorf("%w: missing event creation timestamp", ErrMalformedEvent)
	}

	object, err := eventObject(env.Data)
	if err != nil {
		return nil, err
	}

	switch evt.Type {
	case EventCheckoutCompleted:
		var p CheckoutCompletedPayload
		if err := json.Unmarshal(object, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if p.SessionID == "" || p.CustomerID == "" {
			return nil, fmt.Errorf("%w: checkout payload missing session or customer id", ErrMalformedEvent)
		}
		evt.Checkout = &p
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var p SubscriptionPayload
		if err := json.Unmarshal(object, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if p.SubscriptionID == "" || p.CustomerID == "" {
			return nil, fmt.Errorf("%w: subscription payload missing subscription or customer id", ErrMalformedEvent)
		}
		evt.Subscription = &p
	case EventInvoicePaid, EventInvoiceUpdated:
		var p InvoicePayload
		if err := json.Unmarshal(object, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if p.InvoiceID == "" {
			return nil, fmt.Errorf("%w: invoice payload missing invoice id", ErrMalformedEvent)
		}
		evt.Invoice = &p
	case EventPaymentMethodAttached, EventPaymentMethodUpdated:
		var p PaymentMethodPayload
		if err := json.Unmarshal(object, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if p.PaymentMethodID == "" || p.CustomerID == "" {
			return nil, fmt.Errorf("%w: payment method payload missing ids", ErrMalformedEvent)
		}
		evt.PaymentMethod = &p
	}
	return evt, nil
}

func eventObject(data json.RawMessage) (json.RawMessage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedEvent)
	}
	var d eventData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if len(d.Object) == 0 {
		return nil, fmt.Errorf("%w: missing data.object", ErrMalformedEvent)
	}
	return d.Object, nil
}
