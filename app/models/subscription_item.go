package models

import "time"

// SubscriptionItem mirrors one priced line of a provider subscription.
type SubscriptionItem struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	SubscriptionID    uint      `gorm:"not null;index" json:"subscription_id"`
	ProviderItemID    string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_subscription_items_provider_item" json:"provider_item_id"`
	ProviderPriceID   string    `gorm:"type:varchar(191);not null;index" json:"provider_price_id"`
	ProviderProductID string    `gorm:"type:varchar(191);default:''" json:"provider_product_id"`
	ProductName       string    `gorm:"type:varchar(200);default:''" json:"product_name"`
	Quantity          int64     `gorm:"not null;default:1" json:"quantity"`
	UnitAmount        int64     `gorm:"not null;default:0" json:"unit_amount"`
	Currency          string    `gorm:"type:varchar(8);default:''" json:"currency"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
