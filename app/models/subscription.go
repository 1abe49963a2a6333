package models

import "time"

const (
	BillingIntervalMonth   = "month"
	BillingIntervalYear    = "year"
	BillingIntervalUnknown = "unknown"
)

const (
	BillingStatusActive     = "active"
	BillingStatusTrialing   = "trialing"
	BillingStatusPastDue    = "past_due"
	BillingStatusCanceled   = "canceled"
	BillingStatusIncomplete = "incomplete"
)

const (
	ProvisioningStatusPending = "pending"
	ProvisioningStatusApplied = "applied"
	ProvisioningStatusFailed  = "failed"
)

// Subscription mirrors a provider subscription. All monetary amounts are in
// minor currency units. LastEventAt carries the creation timestamp of the
// newest event applied to this row and guards against out-of-order webhook
// deliveries regressing status or period fields.
type Subscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	CustomerID             uint       `gorm:"not null;index" json:"customer_id"`
	Customer               Customer   `gorm:"foreignKey:CustomerID" json:"-"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_subscriptions_provider_sub" json:"provider_subscription_id"`
	CheckoutSessionID      *string    `gorm:"type:varchar(191);default:null" json:"checkout_session_id,omitempty"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'incomplete';index" json:"status"`
	PlanName               string     `gorm:"type:varchar(100);default:''" json:"plan_name"`
	BillingInterval        string     `gorm:"type:varchar(16);not null;default:'unknown'" json:"billing_interval"`
	ProviderPriceRef       string     `gorm:"type:varchar(191);default:''" json:"provider_price_ref"`
	AmountTotal            int64      `gorm:"not null;default:0" json:"amount_total"`
	Currency               string     `gorm:"type:varchar(8);default:''" json:"currency"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	MetadataJSON           string     `gorm:"type:text" json:"metadata_json"`
	ProvisioningStatus     string     `gorm:"type:varchar(16);not null;default:'pending'" json:"provisioning_status"`
	LastEventAt            *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsCanceled reports whether the subscription reached its terminal status.
func (s *Subscription) IsCanceled() bool {
	return s.Status == BillingStatusCanceled
}
