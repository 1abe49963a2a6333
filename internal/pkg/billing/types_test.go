package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventCheckoutCompleted(t *testing.T) {
	raw := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": 1700000000,
		"data": {"object": {
			"id": "cs_1",
			"customer": "cus_1",
			"customer_email": "alice@example.com",
			"subscription": "sub_1",
			"mode": "subscription",
			"amount_total": 999,
			"currency": "eur",
			"line_items": [{"id": "li_1", "quantity": 2, "price": {"id": "price_1", "unit_amount": 999}}]
		}}
	}`)

	evt, err := ParseEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, EventCheckoutCompleted, evt.Type)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), evt.Created)
	require.NotNil(t, evt.Checkout)
	assert.Equal(t, "cs_1", evt.Checkout.SessionID)
	assert.Equal(t, "sub_1", evt.Checkout.Subscription)
	require.Len(t, evt.Checkout.LineItems, 1)
	assert.Equal(t, int64(2), evt.Checkout.LineItems[0].Quantity)
	assert.Nil(t, evt.Subscription)
	assert.Nil(t, evt.Invoice)
}

func TestParseEventSubscription(t *testing.T) {
	raw := []byte(`{
		"id": "evt_2",
		"type": "customer.subscription.updated",
		"created": 1700000100,
		"data": {"object": {
			"id": "sub_1",
			"customer": "cus_1",
			"status": "active",
			"current_period_start": 1700000000,
			"current_period_end": 1702592000,
			"items": [{"id": "si_1", "quantity": 1, "price": {"id": "price_1"}}]
		}}
	}`)

	evt, err := ParseEvent(raw)
	require.NoError(t, err)
	require.NotNil(t, evt.Subscription)
	assert.Equal(t, "sub_1", evt.Subscription.SubscriptionID)
	assert.Equal(t, "active", evt.Subscription.Status)
}

func TestParseEventUnknownTypeKeepsPayloadsNil(t *testing.T) {
	raw := []byte(`{"id":"evt_3","type":"charge.refunded","created":1700000000,"data":{"object":{"id":"ch_1"}}}`)

	evt, err := ParseEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "charge.refunded", evt.Type)
	assert.Nil(t, evt.Checkout)
	assert.Nil(t, evt.Subscription)
	assert.Nil(t, evt.Invoice)
	assert.Nil(t, evt.PaymentMethod)
}

func TestParseEventMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{`},
		{"missing id", `{"type":"invoice.paid","created":1,"data":{"object":{"id":"in_1"}}}`},
		{"missing type", `{"id":"evt_1","created":1,"data":{"object":{"id":"in_1"}}}`},
		{"missing created", `{"id":"evt_1","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`},
		{"missing data", `{"id":"evt_1","type":"invoice.paid","created":1}`},
		{"missing object", `{"id":"evt_1","type":"invoice.paid","created":1,"data":{}}`},
		{"checkout without customer", `{"id":"evt_1","type":"checkout.session.completed","created":1,"data":{"object":{"id":"cs_1"}}}`},
		{"subscription without ids", `{"id":"evt_1","type":"customer.subscription.created","created":1,"data":{"object":{"status":"active"}}}`},
		{"payment method without ids", `{"id":"evt_1","type":"payment_method.attached","created":1,"data":{"object":{"type":"card"}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseEvent([]byte(tc.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}
