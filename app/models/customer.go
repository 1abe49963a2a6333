package models

import "time"

// Customer mirrors a payment-processor customer object. Rows are created
// lazily on the first webhook or signup that references the external id and
// are never deleted by the sync engine.
type Customer struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	ProviderCustomerID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_customers_provider_customer" json:"provider_customer_id"`
	Email              string     `gorm:"type:varchar(200);default:''" json:"email"`
	Name               string     `gorm:"type:varchar(200);default:''" json:"name"`
	UserID             *uint      `gorm:"index" json:"user_id,omitempty"`
	LastEventAt        *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
