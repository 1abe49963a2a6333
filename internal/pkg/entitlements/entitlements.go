package entitlements

import "strings"

// Entitlements are the resource limits a hosting plan grants. They feed the
// pricing page feature lists and the metadata handed to the control panel.
type Entitlements struct {
	Sites       int
	StorageGB   int
	BandwidthGB int
	Mailboxes   int
	DailyBackup bool
}

var planEntitlements = map[string]Entitlements{
	"web_basic":    {Sites: 1, StorageGB: 10, BandwidthGB: 100, Mailboxes: 5, DailyBackup: false},
	"web_pro":      {Sites: 10, StorageGB: 50, BandwidthGB: 500, Mailboxes: 25, DailyBackup: true},
	"web_business": {Sites: 50, StorageGB: 200, BandwidthGB: 2000, Mailboxes: 100, DailyBackup: true},
}

// ForPlan returns the entitlements of a plan name. Unknown plans get the
// smallest tier so a misconfigured catalog never over-provisions.
func ForPlan(plan string) Entitlements {
	if e, ok := planEntitlements[strings.ToLower(strings.TrimSpace(plan))]; ok {
		return e
	}
	return planEntitlements["web_basic"]
}

// Known reports whether the plan name is part of the catalog.
func Known(plan string) bool {
	_, ok := planEntitlements[strings.ToLower(strings.TrimSpace(plan))]
	return ok
}
