package models

import "time"

// PaymentMethod mirrors a provider payment method. At most one row per
// customer carries IsDefault=true; the repository clears competing defaults
// in the same transaction as the upsert.
type PaymentMethod struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	CustomerID              uint       `gorm:"not null;index" json:"customer_id"`
	ProviderPaymentMethodID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_payment_methods_provider_pm" json:"provider_payment_method_id"`
	Type                    string     `gorm:"type:varchar(32);not null;default:'card'" json:"type"`
	CardBrand               string     `gorm:"type:varchar(32);default:''" json:"card_brand"`
	CardLast4               string     `gorm:"type:varchar(4);default:''" json:"card_last4"`
	IsDefault               bool       `gorm:"default:false;index" json:"is_default"`
	LastEventAt             *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	CreatedAt               time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
