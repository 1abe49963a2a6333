package billing

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/nimbushost/nimbushost/app/models"
	"gorm.io/gorm"
)

// Reconciler interprets one verified, first-seen event at a time and applies
// the matching idempotent upsert to the mirrored billing entities. Handlers
// are safe to run twice: every write is keyed by a provider external id, and
// the event creation timestamp guards against out-of-order deliveries
// regressing newer state.
type Reconciler struct {
	repo   Repository
	plans  *PlanRegistry
	target ProvisioningTarget
}

// NewReconciler wires the reconciler from its collaborators.
func NewReconciler(repo Repository, plans *PlanRegistry, target ProvisioningTarget) *Reconciler {
	return &Reconciler{repo: repo, plans: plans, target: target}
}

// Apply dispatches the event to its type handler. Unknown event types are
// tolerated: they were already recorded by the deduplicator, so Apply just
// acknowledges them. Storage failures come back wrapped as retryable.
func (r *Reconciler) Apply(ctx context.Context, evt *Event) error {
	switch {
	case evt.Checkout != nil:
		return r.applyCheckoutCompleted(ctx, evt)
	case evt.Subscription != nil:
		return r.applySubscription(ctx, evt)
	case evt.Invoice != nil:
		return r.applyInvoice(ctx, evt)
	case evt.PaymentMethod != nil:
		return r.applyPaymentMethod(ctx, evt)
	default:
		log.Printf("billing: ignoring unhandled event type %s (id=%s)", evt.Type, evt.ID)
		return nil
	}
}

func (r *Reconciler) applyCheckoutCompleted(ctx context.Context, evt *Event) error {
	p := evt.Checkout

	customer, err := r.ensureCustomer(evt, p.CustomerID, p.CustomerEmail, p.CustomerName)
	if err != nil {
		return retryable(err)
	}

	// One-time payments have no subscription to mirror; the invoice events
	// carry the rest.
	if strings.TrimSpace(p.Subscription) == "" {
		return nil
	}

	existing, err := r.loadSubscription(p.Subscription)
	if err != nil {
		return retryable(err)
	}
	if staleFor(evt, subscriptionEventTime(existing)) {
		log.Printf("billing: stale checkout event %s for subscription %s, keeping newer state", evt.ID, p.Subscription)
		return nil
	}

	status := normalizeStatus(p.Status)
	if status == "" {
		status = models.BillingStatusActive
	}

	sub := r.subscriptionFromCheckout(evt, p, customer, existing, status)
	if err := r.repo.UpsertSubscription(sub); err != nil {
		return retryable(err)
	}
	if err := r.repo.ReplaceSubscriptionItems(sub.ID, itemsFromPayload(p.LineItems)); err != nil {
		return retryable(err)
	}

	// The pending row is the provisioning request; activation events drive
	// the actual panel call.
	reqPayload, _ := json.Marshal(map[string]string{
		"provider_subscription_id": sub.ProviderSubscriptionID,
		"checkout_session_id":      p.SessionID,
		"plan_name":                sub.PlanName,
	})
	if err := r.repo.CreateProvisioningLog(&models.ProvisioningLog{
		SubscriptionID: sub.ID,
		Action:         "provision_request",
		Status:         models.ProvisioningLogStatusPending,
		RequestPayload: string(reqPayload),
	}); err != nil {
		return retryable(err)
	}
	return nil
}

func (r *Reconciler) applySubscription(ctx context.Context, evt *Event) error {
	p := evt.Subscription

	customer, err := r.ensureCustomer(evt, p.CustomerID, "", "")
	if err != nil {
		return retryable(err)
	}

	existing, err := r.loadSubscription(p.SubscriptionID)
	if err != nil {
		return retryable(err)
	}
	if staleFor(evt, subscriptionEventTime(existing)) {
		log.Printf("billing: stale event %s for subscription %s, keeping newer state", evt.ID, p.SubscriptionID)
		return nil
	}

	prevStatus := ""
	if existing != nil {
		prevStatus = existing.Status
	}
	status := normalizeStatus(p.Status)
	if evt.Type == EventSubscriptionDeleted {
		status = models.BillingStatusCanceled
	}
	if status == "" {
		// A payload without a status must not regress a known lifecycle state.
		if prevStatus != "" {
			status = prevStatus
		} else {
			status = models.BillingStatusIncomplete
		}
	}
	if prevStatus == models.BillingStatusCanceled && status != models.BillingStatusCanceled {
		// Canceled is terminal; the event stays recorded but status does not
		// move backward.
		log.Printf("billing: event %s would revive canceled subscription %s, keeping canceled", evt.ID, p.SubscriptionID)
		status = models.BillingStatusCanceled
	} else if !expectedTransition(prevStatus, status) {
		log.Printf("billing: unexpected subscription status transition %q -> %q (subscription=%s event=%s)", prevStatus, status, p.SubscriptionID, evt.ID)
	}

	sub := r.subscriptionFromEvent(evt, p, customer, existing, status)
	if err := r.repo.UpsertSubscription(sub); err != nil {
		return retryable(err)
	}
	if len(p.Items) > 0 {
		if err := r.repo.ReplaceSubscriptionItems(sub.ID, itemsFromPayload(p.Items)); err != nil {
			return retryable(err)
		}
	}

	if prevStatus != models.BillingStatusActive && status == models.BillingStatusActive {
		return r.provision(ctx, sub)
	}
	return nil
}

func (r *Reconciler) applyInvoice(ctx context.Context, evt *Event) error {
	p := evt.Invoice

	existing, err := r.loadInvoice(p.InvoiceID)
	if err != nil {
		return retryable(err)
	}
	if staleFor(evt, invoiceEventTime(existing)) {
		log.Printf("billing: stale event %s for invoice %s, keeping newer state", evt.ID, p.InvoiceID)
		return nil
	}

	inv := &models.Invoice{
		ProviderInvoiceID: p.InvoiceID,
		Status:            strings.ToLower(strings.TrimSpace(p.Status)),
		AmountDue:         p.AmountDue,
		AmountPaid:        p.AmountPaid,
		Currency:          strings.ToLower(strings.TrimSpace(p.Currency)),
		Paid:              p.Paid,
	}
	if inv.Status == "" {
		inv.Status = models.InvoiceStatusOpen
	}
	if p.Created > 0 {
		t := time.Unix(p.Created, 0).UTC()
		inv.IssuedAt = &t
	}
	created := evt.Created
	inv.LastEventAt = &created

	if cid := strings.TrimSpace(p.CustomerID); cid != "" {
		customer, err := r.ensureCustomer(evt, cid, "", "")
		if err != nil {
			return retryable(err)
		}
		inv.CustomerID = &customer.ID
	}
	if sid := strings.TrimSpace(p.Subscription); sid != "" {
		sub, err := r.loadSubscription(sid)
		if err != nil {
			return retryable(err)
		}
		if sub != nil {
			inv.SubscriptionID = &sub.ID
		}
	}

	// Recompute instead of trusting a possibly-stale amount_remaining.
	inv.Normalize()
	if err := r.repo.UpsertInvoice(inv); err != nil {
		return retryable(err)
	}
	return nil
}

func (r *Reconciler) applyPaymentMethod(ctx context.Context, evt *Event) error {
	p := evt.PaymentMethod

	customer, err := r.ensureCustomer(evt, p.CustomerID, "", "")
	if err != nil {
		return retryable(err)
	}

	existing, err := r.loadPaymentMethod(p.PaymentMethodID)
	if err != nil {
		return retryable(err)
	}
	if staleFor(evt, paymentMethodEventTime(existing)) {
		log.Printf("billing: stale event %s for payment method %s, keeping newer state", evt.ID, p.PaymentMethodID)
		return nil
	}

	created := evt.Created
	pm := &models.PaymentMethod{
		CustomerID:              customer.ID,
		ProviderPaymentMethodID: p.PaymentMethodID,
		Type:                    strings.ToLower(strings.TrimSpace(p.Type)),
		CardBrand:               strings.ToLower(strings.TrimSpace(p.Card.Brand)),
		CardLast4:               strings.TrimSpace(p.Card.Last4),
		IsDefault:               p.IsDefault,
		LastEventAt:             &created,
	}
	if pm.Type == "" {
		pm.Type = "card"
	}
	if err := r.repo.UpsertPaymentMethod(pm); err != nil {
		return retryable(err)
	}
	return nil
}

// provision performs the single-attempt control panel call on the
// not-active -> active transition and appends exactly one outcome row. A
// failed attempt is an operator signal, not a webhook error.
func (r *Reconciler) provision(ctx context.Context, sub *models.Subscription) error {
	meta := PlanMetadata{
		PlanName: sub.PlanName,
		Interval: sub.BillingInterval,
		PriceID:  sub.ProviderPriceRef,
	}
	reqPayload, _ := json.Marshal(map[string]interface{}{
		"provider_subscription_id": sub.ProviderSubscriptionID,
		"plan":                     meta,
	})

	entry := &models.ProvisioningLog{
		SubscriptionID: sub.ID,
		Action:         "provision_apply",
		RequestPayload: string(reqPayload),
	}

	result, err := r.target.Apply(ctx, sub.ProviderSubscriptionID, meta)
	if err != nil {
		entry.Status = models.ProvisioningLogStatusFailure
		entry.ErrorMessage = err.Error()
		if logErr := r.repo.CreateProvisioningLog(entry); logErr != nil {
			return retryable(logErr)
		}
		if err := r.repo.UpdateSubscriptionProvisioningStatus(sub.ID, models.ProvisioningStatusFailed); err != nil {
			return retryable(err)
		}
		log.Printf("billing: provisioning failed for subscription %s: %v", sub.ProviderSubscriptionID, err)
		return nil
	}

	respPayload, _ := json.Marshal(result)
	entry.Status = models.ProvisioningLogStatusSuccess
	entry.ResponsePayload = string(respPayload)
	if err := r.repo.CreateProvisioningLog(entry); err != nil {
		return retryable(err)
	}
	if err := r.repo.UpdateSubscriptionProvisioningStatus(sub.ID, models.ProvisioningStatusApplied); err != nil {
		return retryable(err)
	}
	return nil
}

func (r *Reconciler) ensureCustomer(evt *Event, providerCustomerID, email, name string) (*models.Customer, error) {
	id := strings.TrimSpace(providerCustomerID)
	if id == "" {
		return nil, errors.New("provider customer id is required")
	}

	existing, err := r.repo.GetCustomerByProviderID(id)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if existing != nil {
		// A delayed delivery or a payload without contact data must not
		// clobber newer customer state.
		if staleFor(evt, existing.LastEventAt) || (email == "" && name == "") {
			return existing, nil
		}
	}

	created := evt.Created
	customer := &models.Customer{
		ProviderCustomerID: id,
		Email:              email,
		Name:               name,
		LastEventAt:        &created,
	}
	if existing != nil {
		if customer.Email == "" {
			customer.Email = existing.Email
		}
		if customer.Name == "" {
			customer.Name = existing.Name
		}
	}
	if err := r.repo.UpsertCustomer(customer); err != nil {
		return nil, err
	}
	return customer, nil
}

func (r *Reconciler) loadSubscription(providerSubscriptionID string) (*models.Subscription, error) {
	sub, err := r.repo.GetSubscriptionByProviderID(providerSubscriptionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return sub, err
}

func (r *Reconciler) loadInvoice(providerInvoiceID string) (*models.Invoice, error) {
	inv, err := r.repo.GetInvoiceByProviderID(providerInvoiceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return inv, err
}

func (r *Reconciler) loadPaymentMethod(providerPaymentMethodID string) (*models.PaymentMethod, error) {
	pm, err := r.repo.GetPaymentMethodByProviderID(providerPaymentMethodID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return pm, err
}

func (r *Reconciler) subscriptionFromCheckout(evt *Event, p *CheckoutCompletedPayload, customer *models.Customer, existing *models.Subscription, status string) *models.Subscription {
	created := evt.Created
	sessionID := p.SessionID
	sub := &models.Subscription{
		CustomerID:             customer.ID,
		ProviderSubscriptionID: strings.TrimSpace(p.Subscription),
		CheckoutSessionID:      &sessionID,
		Status:                 status,
		AmountTotal:            p.AmountTotal,
		Currency:               strings.ToLower(strings.TrimSpace(p.Currency)),
		ProvisioningStatus:     models.ProvisioningStatusPending,
		LastEventAt:            &created,
	}
	if existing != nil {
		sub.CurrentPeriodStart = existing.CurrentPeriodStart
		sub.CurrentPeriodEnd = existing.CurrentPeriodEnd
		sub.ProvisioningStatus = existing.ProvisioningStatus
	}
	if len(p.Metadata) > 0 {
		if raw, err := json.Marshal(p.Metadata); err == nil {
			sub.MetadataJSON = string(raw)
		}
	}
	r.resolvePlan(sub, firstPriceID(p.LineItems))
	return sub
}

func (r *Reconciler) subscriptionFromEvent(evt *Event, p *SubscriptionPayload, customer *models.Customer, existing *models.Subscription, status string) *models.Subscription {
	created := evt.Created
	sub := &models.Subscription{
		CustomerID:             customer.ID,
		ProviderSubscriptionID: strings.TrimSpace(p.SubscriptionID),
		Status:                 status,
		Currency:               strings.ToLower(strings.TrimSpace(p.Currency)),
		ProvisioningStatus:     models.ProvisioningStatusPending,
		LastEventAt:            &created,
	}
	if p.CurrentPeriodStart > 0 {
		t := time.Unix(p.CurrentPeriodStart, 0).UTC()
		sub.CurrentPeriodStart = &t
	}
	if p.CurrentPeriodEnd > 0 {
		t := time.Unix(p.CurrentPeriodEnd, 0).UTC()
		sub.CurrentPeriodEnd = &t
	}
	if total := lineItemTotal(p.Items); total > 0 {
		sub.AmountTotal = total
	}
	if len(p.Metadata) > 0 {
		if raw, err := json.Marshal(p.Metadata); err == nil {
			sub.MetadataJSON = string(raw)
		}
	}
	r.resolvePlan(sub, firstPriceID(p.Items))

	// Update payloads are sparse: fields absent from the event carry forward
	// from the stored row, since the upsert overwrites every column.
	if existing != nil {
		sub.CheckoutSessionID = existing.CheckoutSessionID
		sub.ProvisioningStatus = existing.ProvisioningStatus
		if sub.AmountTotal == 0 {
			sub.AmountTotal = existing.AmountTotal
		}
		if sub.Currency == "" {
			sub.Currency = existing.Currency
		}
		if sub.CurrentPeriodStart == nil {
			sub.CurrentPeriodStart = existing.CurrentPeriodStart
		}
		if sub.CurrentPeriodEnd == nil {
			sub.CurrentPeriodEnd = existing.CurrentPeriodEnd
		}
		if sub.ProviderPriceRef == "" {
			sub.ProviderPriceRef = existing.ProviderPriceRef
			sub.PlanName = existing.PlanName
			sub.BillingInterval = existing.BillingInterval
		}
		if sub.MetadataJSON == "" {
			sub.MetadataJSON = existing.MetadataJSON
		}
	}
	return sub
}

// resolvePlan maps the price reference through the plan registry. A price id
// the registry does not know (e.g. created manually on the processor side) is
// stored raw with empty plan metadata rather than rejected.
func (r *Reconciler) resolvePlan(sub *models.Subscription, priceID string) {
	sub.ProviderPriceRef = strings.TrimSpace(priceID)
	if sub.ProviderPriceRef == "" {
		return
	}
	info, ok := r.plans.PlanFor(sub.ProviderPriceRef)
	if !ok {
		log.Printf("billing: price %s not in plan registry, storing raw reference", sub.ProviderPriceRef)
		sub.PlanName = ""
		sub.BillingInterval = models.BillingIntervalUnknown
		return
	}
	sub.PlanName = info.PlanName
	sub.BillingInterval = info.Interval
}

// staleFor reports whether the event predates the stored row's newest applied
// event. Arrival order is meaningless with at-least-once delivery; only the
// processor-side creation time counts.
func staleFor(evt *Event, lastEventAt *time.Time) bool {
	return lastEventAt != nil && !evt.Created.After(*lastEventAt)
}

func subscriptionEventTime(sub *models.Subscription) *time.Time {
	if sub == nil {
		return nil
	}
	return sub.LastEventAt
}

func invoiceEventTime(inv *models.Invoice) *time.Time {
	if inv == nil {
		return nil
	}
	return inv.LastEventAt
}

func paymentMethodEventTime(pm *models.PaymentMethod) *time.Time {
	if pm == nil {
		return nil
	}
	return pm.LastEventAt
}

var statusTransitions = map[string][]string{
	models.BillingStatusTrialing: {models.BillingStatusActive, models.BillingStatusCanceled},
	models.BillingStatusActive:   {models.BillingStatusPastDue, models.BillingStatusCanceled},
	models.BillingStatusPastDue:  {models.BillingStatusActive, models.BillingStatusCanceled},
}

// expectedTransition reports whether prev -> next is in the known lifecycle
// table. Unexpected transitions are tolerated and logged, never rejected,
// since the processor owns its lifecycle policy.
func expectedTransition(prev, next string) bool {
	if prev == "" || prev == next {
		return true
	}
	if next == models.BillingStatusCanceled {
		return true
	}
	for _, allowed := range statusTransitions[prev] {
		if allowed == next {
			return true
		}
	}
	return false
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func itemsFromPayload(items []LineItemPayload) []models.SubscriptionItem {
	out := make([]models.SubscriptionItem, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.ID) == "" {
			continue
		}
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		out = append(out, models.SubscriptionItem{
			ProviderItemID:    strings.TrimSpace(it.ID),
			ProviderPriceID:   strings.TrimSpace(it.Price.ID),
			ProviderProductID: strings.TrimSpace(it.Price.Product),
			ProductName:       strings.TrimSpace(it.Price.ProductName),
			Quantity:          qty,
			UnitAmount:        it.Price.UnitAmount,
			Currency:          strings.ToLower(strings.TrimSpace(it.Price.Currency)),
		})
	}
	return out
}

func firstPriceID(items []LineItemPayload) string {
	for _, it := range items {
		if id := strings.TrimSpace(it.Price.ID); id != "" {
			return id
		}
	}
	return ""
}

func lineItemTotal(items []LineItemPayload) int64 {
	var total int64
	for _, it := range items {
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		total += it.Price.UnitAmount * qty
	}
	return total
}
