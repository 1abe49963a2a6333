package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

// fakeCreator captures the params handed to the processor SDK.
type fakeCreator struct {
	params *stripe.CheckoutSessionParams
	called int
}

func (f *fakeCreator) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.called++
	f.params = params
	return &stripe.CheckoutSession{ID: "cs_test", URL: "https://checkout.example/cs_test"}, nil
}

func newTestBuilder() (*CheckoutBuilder, *fakeCreator) {
	creator := &fakeCreator{}
	return &CheckoutBuilder{creator: creator, timeout: time.Second}, creator
}

func TestCheckoutCreateRejectsInvalidRequests(t *testing.T) {
	cases := []struct {
		name string
		req  CheckoutRequest
	}{
		{
			"no price and no line items",
			CheckoutRequest{SuccessURL: "https://x/s", CancelURL: "https://x/c"},
		},
		{
			"blank line items only",
			CheckoutRequest{LineItems: []CheckoutLineItem{{Price: "  "}}, SuccessURL: "https://x/s", CancelURL: "https://x/c"},
		},
		{
			"unsupported mode",
			CheckoutRequest{PriceID: "price_1", Mode: "setup", SuccessURL: "https://x/s", CancelURL: "https://x/c"},
		},
		{
			"missing success url",
			CheckoutRequest{PriceID: "price_1", CancelURL: "https://x/c"},
		},
		{
			"missing cancel url",
			CheckoutRequest{PriceID: "price_1", SuccessURL: "https://x/s"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			builder, creator := newTestBuilder()
			_, err := builder.Create(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCheckoutRequest)
			// Validation failures never reach the processor.
			assert.Zero(t, creator.called)
		})
	}
}

func TestCheckoutCreateSinglePrice(t *testing.T) {
	builder, creator := newTestBuilder()

	sess, err := builder.Create(context.Background(), CheckoutRequest{
		PriceID:    "price_basic_m",
		SuccessURL: "https://x/s",
		CancelURL:  "https://x/c",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test", sess.ID)
	assert.Equal(t, "https://checkout.example/cs_test", sess.URL)

	require.Equal(t, 1, creator.called)
	params := creator.params
	assert.Equal(t, CheckoutModeSubscription, *params.Mode)
	require.Len(t, params.LineItems, 1)
	assert.Equal(t, "price_basic_m", *params.LineItems[0].Price)
	assert.Equal(t, int64(1), *params.LineItems[0].Quantity)
	assert.Equal(t, "auto", *params.Locale)
	assert.Nil(t, params.SubscriptionData)
}

func TestCheckoutCreateMultiLineWithTrial(t *testing.T) {
	builder, creator := newTestBuilder()

	_, err := builder.Create(context.Background(), CheckoutRequest{
		LineItems: []CheckoutLineItem{
			{Price: "price_basic_m", Quantity: 2},
			{Price: "price_pro_m", Quantity: 0}, // quantity floors to 1
		},
		Mode:                CheckoutModeSubscription,
		SuccessURL:          "https://x/s",
		CancelURL:           "https://x/c",
		Locale:              "de",
		TrialPeriodDays:     14,
		AllowPromotionCodes: true,
	})
	require.NoError(t, err)

	params := creator.params
	require.Len(t, params.LineItems, 2)
	assert.Equal(t, int64(2), *params.LineItems[0].Quantity)
	assert.Equal(t, int64(1), *params.LineItems[1].Quantity)
	assert.Equal(t, "de", *params.Locale)
	assert.True(t, *params.AllowPromotionCodes)
	require.NotNil(t, params.SubscriptionData)
	assert.Equal(t, int64(14), *params.SubscriptionData.TrialPeriodDays)
}

func TestCheckoutCreateTrialIgnoredInPaymentMode(t *testing.T) {
	builder, creator := newTestBuilder()

	_, err := builder.Create(context.Background(), CheckoutRequest{
		PriceID:         "price_oneoff",
		Mode:            CheckoutModePayment,
		SuccessURL:      "https://x/s",
		CancelURL:       "https://x/c",
		TrialPeriodDays: 14,
	})
	require.NoError(t, err)

	params := creator.params
	assert.Equal(t, CheckoutModePayment, *params.Mode)
	assert.Nil(t, params.SubscriptionData)
}

func TestCheckoutLocaleFallback(t *testing.T) {
	builder, creator := newTestBuilder()

	_, err := builder.Create(context.Background(), CheckoutRequest{
		PriceID:    "price_basic_m",
		SuccessURL: "https://x/s",
		CancelURL:  "https://x/c",
		Locale:     "zz",
	})
	require.NoError(t, err)
	assert.Equal(t, "auto", *creator.params.Locale)
}
