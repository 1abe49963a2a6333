package billing

import (
	"fmt"
	"strings"

	"github.com/nimbushost/nimbushost/app/models"
	"github.com/nimbushost/nimbushost/internal/pkg/env"
)

// PlanEntry registers one purchasable plan variant with its provider price id.
type PlanEntry struct {
	PlanName string
	Interval string
	PriceID  string
}

// PlanInfo is the reverse-lookup result for a provider price id.
type PlanInfo struct {
	PlanName string
	Interval string
}

type planKey struct {
	plan     string
	interval string
}

// PlanRegistry is the immutable mapping between (plan name, interval) and the
// provider price id, with a reverse index for interpreting price references
// found in webhook payloads. It is constructed once at startup and injected;
// lookups are safe for concurrent use without locking.
type PlanRegistry struct {
	forward map[planKey]string
	reverse map[string]PlanInfo
}

// NewPlanRegistry builds a registry from the given entries. Plan names are
// case-insensitive and intervals must normalize to month or year. Both
// directions must stay inverses of each other, so duplicate keys or price ids
// are construction errors.
func NewPlanRegistry(entries []PlanEntry) (*PlanRegistry, error) {
	r := &PlanRegistry{
		forward: make(map[planKey]string, len(entries)),
		reverse: make(map[string]PlanInfo, len(entries)),
	}
	for _, e := range entries {
		plan := normalizePlanName(e.PlanName)
		interval := normalizeInterval(e.Interval)
		priceID := strings.TrimSpace(e.PriceID)
		if plan == "" || priceID == "" {
			return nil, fmt.Errorf("plan registry entry needs plan name and price id: %+v", e)
		}
		if interval == models.BillingIntervalUnknown {
			return nil, fmt.Errorf("plan registry entry %q has unsupported interval %q", e.PlanName, e.Interval)
		}
		key := planKey{plan: plan, interval: interval}
		if _, ok := r.forward[key]; ok {
			return nil, fmt.Errorf("duplicate plan registry entry for %s/%s", plan, interval)
		}
		if _, ok := r.reverse[priceID]; ok {
			return nil, fmt.Errorf("price id %s registered twice", priceID)
		}
		r.forward[key] = priceID
		r.reverse[priceID] = PlanInfo{PlanName: plan, Interval: interval}
	}
	return r, nil
}

// PriceIDFor returns the provider price id for a plan name and interval.
func (r *PlanRegistry) PriceIDFor(planName, interval string) (string, bool) {
	key := planKey{plan: normalizePlanName(planName), interval: normalizeInterval(interval)}
	priceID, ok := r.forward[key]
	return priceID, ok
}

// PlanFor resolves a provider price id back to its plan name and interval.
func (r *PlanRegistry) PlanFor(priceID string) (PlanInfo, bool) {
	info, ok := r.reverse[strings.TrimSpace(priceID)]
	return info, ok
}

// Entries returns the registered entries sorted nowhere in particular; the
// pricing page uses it to render purchasable plans.
func (r *PlanRegistry) Entries() []PlanEntry {
	out := make([]PlanEntry, 0, len(r.forward))
	for key, priceID := range r.forward {
		out = append(out, PlanEntry{PlanName: key.plan, Interval: key.interval, PriceID: priceID})
	}
	return out
}

// NewPlanRegistryFromEnv reads the price ids for the fixed NimbusHost plan
// catalog from the environment. Plans without a configured price id are left
// unregistered so dev setups can run with a partial catalog.
func NewPlanRegistryFromEnv() (*PlanRegistry, error) {
	catalog := []struct {
		plan   string
		envKey string
	}{
		{"web_basic", "STRIPE_PRICE_WEB_BASIC"},
		{"web_pro", "STRIPE_PRICE_WEB_PRO"},
		{"web_business", "STRIPE_PRICE_WEB_BUSINESS"},
	}

	var entries []PlanEntry
	for _, c := range catalog {
		if id := strings.TrimSpace(env.GetEnv(c.envKey+"_MONTH", "")); id != "" {
			entries = append(entries, PlanEntry{PlanName: c.plan, Interval: models.BillingIntervalMonth, PriceID: id})
		}
		if id := strings.TrimSpace(env.GetEnv(c.envKey+"_YEAR", "")); id != "" {
			entries = append(entries, PlanEntry{PlanName: c.plan, Interval: models.BillingIntervalYear, PriceID: id})
		}
	}
	return NewPlanRegistry(entries)
}

func normalizePlanName(plan string) string {
	return strings.ToLower(strings.TrimSpace(plan))
}

func normalizeInterval(interval string) string {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case models.BillingIntervalMonth, "monthly":
		return models.BillingIntervalMonth
	case models.BillingIntervalYear, "yearly", "annual":
		return models.BillingIntervalYear
	default:
		return models.BillingIntervalUnknown
	}
}
