package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nimbushost/nimbushost/app/models"
)

// fakeRepo is an in-memory Repository used to exercise the reconciler and the
// webhook service without a database. Upserts follow the same external-id
// keying as the GORM implementation.
type fakeRepo struct {
	customers       map[string]*models.Customer
	subscriptions   map[string]*models.Subscription
	items           map[uint][]models.SubscriptionItem
	invoices        map[string]*models.Invoice
	paymentMethods  map[string]*models.PaymentMethod
	webhookEvents   map[string]*models.WebhookEvent
	provisioning    []models.ProvisioningLog
	nextID          uint
	failUpsertSub   error
	failCreatePLogs error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		customers:      map[string]*models.Customer{},
		subscriptions:  map[string]*models.Subscription{},
		items:          map[uint][]models.SubscriptionItem{},
		invoices:       map[string]*models.Invoice{},
		paymentMethods: map[string]*models.PaymentMethod{},
		webhookEvents:  map[string]*models.WebhookEvent{},
	}
}

func (f *fakeRepo) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeRepo) GetCustomerByProviderID(providerCustomerID string) (*models.Customer, error) {
	if c, ok := f.customers[providerCustomerID]; ok {
		out := *c
		return &out, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetCustomerByUserID(userID uint) (*models.Customer, error) {
	for _, c := range f.customers {
		if c.UserID != nil && *c.UserID == userID {
			out := *c
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) UpsertCustomer(customer *models.Customer) error {
	if existing, ok := f.customers[customer.ProviderCustomerID]; ok {
		if customer.Email != "" {
			existing.Email = customer.Email
		}
		if customer.Name != "" {
			existing.Name = customer.Name
		}
		if customer.LastEventAt != nil {
			existing.LastEventAt = customer.LastEventAt
		}
		*customer = *existing
		return nil
	}
	customer.ID = f.id()
	stored := *customer
	f.customers[customer.ProviderCustomerID] = &stored
	return nil
}

func (f *fakeRepo) GetSubscriptionByProviderID(providerSubscriptionID string) (*models.Subscription, error) {
	if s, ok := f.subscriptions[providerSubscriptionID]; ok {
		out := *s
		return &out, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) UpsertSubscription(sub *models.Subscription) error {
	if f.failUpsertSub != nil {
		return f.failUpsertSub
	}
	if existing, ok := f.subscriptions[sub.ProviderSubscriptionID]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.ID = f.id()
	}
	stored := *sub
	f.subscriptions[sub.ProviderSubscriptionID] = &stored
	return nil
}

func (f *fakeRepo) ReplaceSubscriptionItems(subscriptionID uint, items []models.SubscriptionItem) error {
	for i := range items {
		items[i].SubscriptionID = subscriptionID
	}
	f.items[subscriptionID] = items
	return nil
}

func (f *fakeRepo) UpdateSubscriptionProvisioningStatus(subscriptionID uint, status string) error {
	for _, s := range f.subscriptions {
		if s.ID == subscriptionID {
			s.ProvisioningStatus = status
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) ListSubscriptionsByCustomer(customerID uint) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, s := range f.subscriptions {
		if s.CustomerID == customerID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetInvoiceByProviderID(providerInvoiceID string) (*models.Invoice, error) {
	if inv, ok := f.invoices[providerInvoiceID]; ok {
		out := *inv
		return &out, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) UpsertInvoice(inv *models.Invoice) error {
	if existing, ok := f.invoices[inv.ProviderInvoiceID]; ok {
		inv.ID = existing.ID
	} else {
		inv.ID = f.id()
	}
	stored := *inv
	f.invoices[inv.ProviderInvoiceID] = &stored
	return nil
}

func (f *fakeRepo) ListInvoicesByCustomer(customerID uint) ([]models.Invoice, error) {
	var out []models.Invoice
	for _, inv := range f.invoices {
		if inv.CustomerID != nil && *inv.CustomerID == customerID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetPaymentMethodByProviderID(providerPaymentMethodID string) (*models.PaymentMethod, error) {
	if pm, ok := f.paymentMethods[providerPaymentMethodID]; ok {
		out := *pm
		return &out, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) UpsertPaymentMethod(pm *models.PaymentMethod) error {
	if existing, ok := f.paymentMethods[pm.ProviderPaymentMethodID]; ok {
		pm.ID = existing.ID
	} else {
		pm.ID = f.id()
	}
	stored := *pm
	f.paymentMethods[pm.ProviderPaymentMethodID] = &stored
	if pm.IsDefault {
		for key, other := range f.paymentMethods {
			if key != pm.ProviderPaymentMethodID && other.CustomerID == pm.CustomerID {
				other.IsDefault = false
			}
		}
	}
	return nil
}

func (f *fakeRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	if existing, ok := f.webhookEvents[event.ProviderEventID]; ok {
		out := *existing
		return false, &out, nil
	}
	event.ID = f.id()
	stored := *event
	f.webhookEvents[event.ProviderEventID] = &stored
	out := stored
	return true, &out, nil
}

func (f *fakeRepo) MarkWebhookProcessed(id uint) error {
	for _, e := range f.webhookEvents {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = ""
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) RecordWebhookFailure(id uint, message string) error {
	for _, e := range f.webhookEvents {
		if e.ID == id {
			e.ProcessingError = message
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) ListWebhookEvents(offset, limit int) ([]models.WebhookEvent, error) {
	var out []models.WebhookEvent
	for _, e := range f.webhookEvents {
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeRepo) CreateProvisioningLog(entry *models.ProvisioningLog) error {
	if f.failCreatePLogs != nil {
		return f.failCreatePLogs
	}
	entry.ID = f.id()
	f.provisioning = append(f.provisioning, *entry)
	return nil
}

func (f *fakeRepo) ListProvisioningLogs(offset, limit int) ([]models.ProvisioningLog, error) {
	return append([]models.ProvisioningLog(nil), f.provisioning...), nil
}

// fakeTarget records provisioning calls and can be told to fail.
type fakeTarget struct {
	calls []string
	err   error
}

func (t *fakeTarget) Apply(_ context.Context, providerSubscriptionID string, _ PlanMetadata) (*ProvisioningResult, error) {
	t.calls = append(t.calls, providerSubscriptionID)
	if t.err != nil {
		return nil, t.err
	}
	return &ProvisioningResult{Status: "applied"}, nil
}

func testRegistry(t *testing.T) *PlanRegistry {
	t.Helper()
	registry, err := NewPlanRegistry([]PlanEntry{
		{PlanName: "web_basic", Interval: "month", PriceID: "price_basic_m"},
		{PlanName: "web_basic", Interval: "year", PriceID: "price_basic_y"},
		{PlanName: "web_pro", Interval: "month", PriceID: "price_pro_m"},
	})
	require.NoError(t, err)
	return registry
}

func subscriptionEvent(t *testing.T, eventType, subID, custID, status string, created time.Time, priceID string) *Event {
	t.Helper()
	evt := &Event{
		ID:      fmt.Sprintf("evt_%s_%d", eventType, created.Unix()),
		Type:    eventType,
		Created: created,
		Subscription: &SubscriptionPayload{
			SubscriptionID:     subID,
			CustomerID:         custID,
			Status:             status,
			CurrentPeriodStart: created.Unix(),
			CurrentPeriodEnd:   created.Add(30 * 24 * time.Hour).Unix(),
			Currency:           "eur",
			Items: []LineItemPayload{
				{
					ID:       "si_1",
					Quantity: 1,
					Price:    PricePayload{ID: priceID, UnitAmount: 999, Currency: "eur"},
				},
			},
		},
	}
	return evt
}

func TestReconcilerCheckoutCompletedMirrorsSubscription(t *testing.T) {
	repo := newFakeRepo()
	target := &fakeTarget{}
	rec := NewReconciler(repo, testRegistry(t), target)

	evt := &Event{
		ID:      "evt_checkout_1",
		Type:    EventCheckoutCompleted,
		Created: time.Now().UTC(),
		Checkout: &CheckoutCompletedPayload{
			SessionID:     "cs_123",
			CustomerID:    "cus_1",
			CustomerEmail: "alice@example.com",
			CustomerName:  "Alice",
			Subscription:  "sub_1",
			Mode:          "subscription",
			AmountTotal:   999,
			Currency:      "EUR",
			LineItems: []LineItemPayload{
				{ID: "li_1", Quantity: 1, Price: PricePayload{ID: "price_basic_m", UnitAmount: 999, Currency: "eur"}},
			},
		},
	}
	require.NoError(t, rec.Apply(context.Background(), evt))

	customer, err := repo.GetCustomerByProviderID("cus_1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", customer.Email)

	sub, err := repo.GetSubscriptionByProviderID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.BillingStatusActive, sub.Status)
	assert.Equal(t, "web_basic", sub.PlanName)
	assert.Equal(t, models.BillingIntervalMonth, sub.BillingInterval)
	assert.Equal(t, models.ProvisioningStatusPending, sub.ProvisioningStatus)
	require.NotNil(t, sub.CheckoutSessionID)
	assert.Equal(t, "cs_123", *sub.CheckoutSessionID)

	assert.Len(t, repo.items[sub.ID], 1)

	// Checkout never calls the panel; it only records the request.
	assert.Empty(t, target.calls)
	require.Len(t, repo.provisioning, 1)
	assert.Equal(t, "provision_request", repo.provisioning[0].Action)
	assert.Equal(t, models.ProvisioningLogStatusPending, repo.provisioning[0].Status)
}

func TestReconcilerCheckoutWithoutSubscriptionIsNoop(t *testing.T) {
	repo := newFakeRepo()
	rec := NewReconciler(repo, testRegistry(t), &fakeTarget{})

	evt := &Event{
		ID:      "evt_checkout_pay",
		Type:    EventCheckoutCompleted,
		Created: time.Now().UTC(),
		Checkout: &CheckoutCompletedPayload{
			SessionID:  "cs_pay",
			CustomerID: "cus_1",
			Mode:       "payment",
		},
	}
	require.NoError(t, rec.Apply(context.Background(), evt))

	assert.Empty(t, repo.subscriptions)
	assert.Empty(t, repo.provisioning)
	_, err := repo.GetCustomerByProviderID("cus_1")
	assert.NoError(t, err)
}

func TestReconcilerProvisionsOnActivation(t *testing.T) {
	repo := newFakeRepo()
	target := &fakeTarget{}
	rec := NewReconciler(repo, testRegistry(t), target)
	base := time.Now().UTC()

	created := subscriptionEvent(t, EventSubscriptionCreated, "sub_1", "cus_1", "trialing", base, "price_basic_m")
	require.NoError(t, rec.Apply(context.Background(), created))
	assert.Empty(t, target.calls)

	activated := subscriptionEvent(t, EventSubscriptionUpdated, "sub_1", "cus_1", "active", base.Add(time.Minute), "price_basic_m")
	require.NoError(t, rec.Apply(context.Background(), activated))

	require.Len(t, target.calls, 1)
	assert.Equal(t, "sub_1", target.calls[0])

	sub, err := repo.GetSubscriptionByProviderID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.ProvisioningStatusApplied, sub.ProvisioningStatus)

	require.Len(t, repo.provisioning, 1)
	assert.Equal(t, "provision_apply", repo.provisioning[0].Action)
	assert.Equal(t, models.ProvisioningLogStatusSuccess, repo.provisioning[0].Status)

	// A repeated active update must not provision again.
	repeat := subscriptionEvent(t, EventSubscriptionUpdated, "sub_1", "cus_1", "active", base.Add(2*time.Minute), "price_basic_m")
	require.NoError(t, rec.Apply(context.Background(), repeat))
	assert.Len(t, target.calls, 1)
}

func TestReconcilerProvisioningFailureDoesNotFailWebhook(t *testing.T) {
	repo := newFakeRepo()
	target := &fakeTarget{err: errors.New("panel down")}
	rec := NewReconciler(repo, testRegistry(t), target)

	evt := subscriptionEvent(t, EventSubscriptionCreated, "sub_1", "cus_1", "active", time.Now().UTC(), "price_basic_m")
	require.NoError(t, rec.Apply(context.Background(), evt))

	sub, err := repo.GetSubscriptionByProviderID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.ProvisioningStatusFailed, sub.ProvisioningStatus)

	require.Len(t, repo.provisioning, 1)
	assert.Equal(t, models.ProvisioningLogStatusFailure, repo.provisioning[0].Status)
	assert.Contains(t, repo.provisioning[0].ErrorMessage, "panel down")
}

func TestReconcilerIgnoresStaleEvents(t *testing.T) {
	repo := newFakeRepo()
	rec := NewReconciler(repo, testRegistry(t), &fakeTarget{})
	base := time.Now().UTC()

	newer := subscriptionEvent(t, EventSubscriptionUpdated, "sub_1", "cus_1", "past_due", base.Add(time.Hour), "price_basic_m")
	require.NoError(t, rec.Apply(context.Background(), newer))

	older := subscriptionEvent(t, EventSubscriptionUpdated, "sub_1", "cus_1", "active", base, "price_basic_m")
	require.NoError(t, rec.Apply(context.Background(), older))

	sub, err := repo.GetSubscriptionByProviderID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.BillingStatusPastDue, sub.Status)
}

func TestReconcilerKeepsFieldsOnSparseUpdate(t *testing.T) {
	repo := newFakeRepo()
	rec := NewReconciler(repo, testRegistry(t), &fakeTarget{})
	base := time.Now().UTC()

	created := subscriptionEvent(t, EventSubscriptionCreated, "sub_1", "cus_1", "trialing", base, "price_basic_m")
	require.NoError(t, rec.Apply(context.Background(), created))

	before, err := repo.GetSubscriptionByProviderID("sub_1")
	require.NoError(t, err)
	require.NotNil(t, before.CurrentPeriodStart)
	require.NotNil(t, before.CurrentPeriodEnd)

	// A newer update that omits period bounds, status, currency and items must
	// not wipe the values the earlier full event established.
	sparse := &Event{
		ID:      "evt_sparse",
		Type:    EventSubscriptionUpdated,
		Created: base.Add(time.Minute),
		Subscription: &SubscriptionPayload{
			SubscriptionID: "sub_1",
			CustomerID:     "cus_1",
		},
	}
	require.NoError(t, rec.Apply(context.Background(), sparse))

	after, err := repo.GetSubscriptionByProviderID("sub_1")
	require.NoError(t, err)
	require.NotNil(t, after.CurrentPeriodStart)
	require.NotNil(t, after.CurrentPeriodEnd)
	assert.True(t, before.CurrentPeriodStart.Equal(*after.CurrentPeriodStart))
	assert.True(t, before.CurrentPeriodEnd.Equal(*after.CurrentPeriodEnd))
	assert.Equal(t, models.BillingStatusTrialing, after.Status)
	assert.Equal(t, "eur", after.Currency)
	assert.Equal(t, "price_basic_m", after.ProviderPriceRef)
	assert.Equal(t, "web_basic", after.PlanName)
	assert.Equal(t, models.BillingIntervalMonth, after.BillingInterval)
	require.NotNil(t, after.LastEventAt)
	assert.True(t, after.LastEventAt.After(base))
}

func TestReconcilerStaleEventKeepsCustomerContact(t *testing.T) {
	repo := newFakeRepo()
	rec := NewReconciler(repo, testRegistry(t), &fakeTarget{})
	base := time.Now().UTC()

	newer := &Event{
		ID:      "evt_co_new",
		Type:    EventCheckoutCompleted,
		Created: base.Add(time.Hour),
		Checkout: &CheckoutCompletedPayload{
			SessionID:     "cs_new",
			CustomerID:    "cus_1",
			CustomerEmail: "alice@example.com",
			CustomerName:  "Alice",
			Subscription:  "sub_1",
			LineItems: []LineItemPayload{
				{ID: "li_1", Quantity: 1, Price: PricePayload{ID: "price_basic_m", UnitAmount: 999, Currency: "eur"}},
			},
		},
	}
	require.NoError(t, rec.Apply(context.Background(), newer))

	// A delayed older checkout with outdated contact data arrives afterwards.
	older := &Event{
		ID:      "evt_co_old",
		Type:    EventCheckoutCompleted,
		Created: base,
		Checkout: &CheckoutCompletedPayload{
			SessionID:     "cs_old",
			CustomerID:    "cus_1",
			CustomerEmail: "old@example.com",
			CustomerName:  "Old Name",
			Subscription:  "sub_1",
		},
	}
	require.NoError(t, rec.Apply(context.Background(), older))

	customer, err := repo.GetCustomerByProviderID("cus_1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", customer.Email)
	assert.Equal(t, "Alice", customer.Name)
}

func TestReconcilerCanceledIsTerminal(t *testing.T) {
	repo := newFakeRepo()
	rec := NewReconciler(repo, testRegistry(t), &fakeTarget{})
	base := time.Now().UTC()

	deleted := subscriptionEvent(t, EventSubscriptionDeleted, "sub_1", "cus_1", "active", base, "price_basic_m")
	require.NoError(t, rec.Apply(context.Background(), deleted))

	sub, err := repo.GetSubscriptionByProviderID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.BillingStatusCanceled, sub.Status)

	revive := subscriptionEvent(t, EventSubscriptionUpdated, "sub_1", "cus_1", "active", base.Add(time.Minute), "price_basic_m")
	require.NoError(t, rec.Apply(context.Background(), revive))

	sub, err = repo.GetSubscriptionByProviderID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.BillingStatusCanceled, sub.Status)
}

func TestReconcilerUnknownPriceStoredRaw(t *testing.T) {
	repo := newFakeRepo()
	rec := NewReconciler(repo, testRegistry(t), &fakeTarget{})

	evt := subscriptionEvent(t, EventSubscriptionCreated, "sub_1", "cus_1", "active", time.Now().UTC(), "price_handmade")
	require.NoError(t, rec.Apply(context.Background(), evt))

	sub, err := repo.GetSubscriptionByProviderID("sub_1")
	require.NoError(t, err)
	assert.Equal(t, "price_handmade", sub.ProviderPriceRef)
	assert.Empty(t, sub.PlanName)
	assert.Equal(t, models.BillingIntervalUnknown, sub.BillingInterval)
}

func TestReconcilerInvoiceAmountsNormalized(t *testing.T) {
	repo := newFakeRepo()
	rec := NewReconciler(repo, testRegistry(t), &fakeTarget{})

	evt := &Event{
		ID:      "evt_inv_1",
		Type:    EventInvoicePaid,
		Created: time.Now().UTC(),
		Invoice: &InvoicePayload{
			InvoiceID:  "in_1",
			CustomerID: "cus_1",
			Status:     "open",
			AmountDue:  2000,
			AmountPaid: 2000,
			// Deliberately wrong advisory value; must be recomputed.
			AmountRemaining: 500,
			Currency:        "eur",
		},
	}
	require.NoError(t, rec.Apply(context.Background(), evt))

	inv, err := repo.GetInvoiceByProviderID("in_1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), inv.AmountRemaining)
	assert.True(t, inv.Paid)
	assert.Equal(t, models.InvoiceStatusPaid, inv.Status)
	assert.Equal(t, inv.AmountDue, inv.AmountPaid+inv.AmountRemaining)
}

func TestReconcilerSingleDefaultPaymentMethod(t *testing.T) {
	repo := newFakeRepo()
	rec := NewReconciler(repo, testRegistry(t), &fakeTarget{})
	base := time.Now().UTC()

	first := &Event{
		ID: "evt_pm_1", Type: EventPaymentMethodAttached, Created: base,
		PaymentMethod: &PaymentMethodPayload{PaymentMethodID: "pm_1", CustomerID: "cus_1", Type: "card", IsDefault: true},
	}
	require.NoError(t, rec.Apply(context.Background(), first))

	second := &Event{
		ID: "evt_pm_2", Type: EventPaymentMethodAttached, Created: base.Add(time.Minute),
		PaymentMethod: &PaymentMethodPayload{PaymentMethodID: "pm_2", CustomerID: "cus_1", Type: "card", IsDefault: true},
	}
	require.NoError(t, rec.Apply(context.Background(), second))

	pm1, err := repo.GetPaymentMethodByProviderID("pm_1")
	require.NoError(t, err)
	pm2, err := repo.GetPaymentMethodByProviderID("pm_2")
	require.NoError(t, err)
	assert.False(t, pm1.IsDefault)
	assert.True(t, pm2.IsDefault)
}

func TestReconcilerUnknownEventTypeIsAcknowledged(t *testing.T) {
	repo := newFakeRepo()
	rec := NewReconciler(repo, testRegistry(t), &fakeTarget{})

	evt := &Event{ID: "evt_x", Type: "charge.refunded", Created: time.Now().UTC()}
	assert.NoError(t, rec.Apply(context.Background(), evt))
}

func TestExpectedTransitionTable(t *testing.T) {
	cases := []struct {
		prev, next string
		ok         bool
	}{
		{"", "active", true},
		{"trialing", "active", true},
		{"active", "past_due", true},
		{"past_due", "active", true},
		{"active", "canceled", true},
		{"incomplete", "canceled", true},
		{"past_due", "trialing", false},
		{"active", "trialing", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, expectedTransition(tc.prev, tc.next), "%s -> %s", tc.prev, tc.next)
	}
}
