package models

import "time"

const (
	ProvisioningLogStatusPending = "pending"
	ProvisioningLogStatusSuccess = "success"
	ProvisioningLogStatusFailure = "failure"
)

// ProvisioningLog is the append-only audit trail of provisioning requests
// against the hosting control panel. Rows are never mutated after insert; a
// retry creates a new row.
type ProvisioningLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SubscriptionID  uint      `gorm:"not null;index" json:"subscription_id"`
	Action          string    `gorm:"type:varchar(64);not null" json:"action"`
	Status          string    `gorm:"type:varchar(16);not null;index" json:"status"`
	RequestPayload  string    `gorm:"type:text" json:"request_payload"`
	ResponsePayload string    `gorm:"type:text" json:"response_payload"`
	ErrorMessage    string    `gorm:"type:text" json:"error_message"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
