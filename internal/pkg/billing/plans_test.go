package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbushost/nimbushost/app/models"
)

func TestPlanRegistryForwardAndReverse(t *testing.T) {
	registry, err := NewPlanRegistry([]PlanEntry{
		{PlanName: "web_basic", Interval: "month", PriceID: "price_basic_m"},
		{PlanName: "web_basic", Interval: "year", PriceID: "price_basic_y"},
		{PlanName: "web_pro", Interval: "monthly", PriceID: "price_pro_m"},
	})
	require.NoError(t, err)

	// Forward and reverse stay inverses for every registered entry.
	for _, e := range registry.Entries() {
		priceID, ok := registry.PriceIDFor(e.PlanName, e.Interval)
		require.True(t, ok)
		info, ok := registry.PlanFor(priceID)
		require.True(t, ok)
		assert.Equal(t, e.PlanName, info.PlanName)
		assert.Equal(t, e.Interval, info.Interval)
	}

	// Lookups are case-insensitive and accept interval aliases.
	priceID, ok := registry.PriceIDFor("Web_Basic", "MONTHLY")
	require.True(t, ok)
	assert.Equal(t, "price_basic_m", priceID)

	priceID, ok = registry.PriceIDFor("web_basic", "annual")
	require.True(t, ok)
	assert.Equal(t, "price_basic_y", priceID)
}

func TestPlanRegistryUnknownLookups(t *testing.T) {
	registry, err := NewPlanRegistry([]PlanEntry{
		{PlanName: "web_basic", Interval: "month", PriceID: "price_basic_m"},
	})
	require.NoError(t, err)

	_, ok := registry.PriceIDFor("web_basic", "year")
	assert.False(t, ok)

	_, ok = registry.PriceIDFor("enterprise", "month")
	assert.False(t, ok)

	_, ok = registry.PlanFor("price_unknown")
	assert.False(t, ok)
}

func TestPlanRegistryConstructionErrors(t *testing.T) {
	cases := []struct {
		name    string
		entries []PlanEntry
	}{
		{
			"duplicate plan and interval",
			[]PlanEntry{
				{PlanName: "web_basic", Interval: "month", PriceID: "price_a"},
				{PlanName: "web_basic", Interval: "monthly", PriceID: "price_b"},
			},
		},
		{
			"duplicate price id",
			[]PlanEntry{
				{PlanName: "web_basic", Interval: "month", PriceID: "price_a"},
				{PlanName: "web_pro", Interval: "month", PriceID: "price_a"},
			},
		},
		{
			"unsupported interval",
			[]PlanEntry{{PlanName: "web_basic", Interval: "weekly", PriceID: "price_a"}},
		},
		{
			"missing price id",
			[]PlanEntry{{PlanName: "web_basic", Interval: "month", PriceID: " "}},
		},
		{
			"missing plan name",
			[]PlanEntry{{PlanName: "", Interval: "month", PriceID: "price_a"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPlanRegistry(tc.entries)
			assert.Error(t, err)
		})
	}
}

func TestNormalizeInterval(t *testing.T) {
	assert.Equal(t, models.BillingIntervalMonth, normalizeInterval(" Month "))
	assert.Equal(t, models.BillingIntervalMonth, normalizeInterval("monthly"))
	assert.Equal(t, models.BillingIntervalYear, normalizeInterval("YEARLY"))
	assert.Equal(t, models.BillingIntervalYear, normalizeInterval("annual"))
	assert.Equal(t, models.BillingIntervalUnknown, normalizeInterval("weekly"))
	assert.Equal(t, models.BillingIntervalUnknown, normalizeInterval(""))
}
