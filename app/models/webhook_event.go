package models

import "time"

// WebhookEvent stores one row per unique provider event id. The row is the
// dedup key for at-most-once side effects: ProcessedAt is only set after the
// reconciler finished without a retryable error, so a redelivery of a
// seen-but-unprocessed event is treated as first-seen again.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_provider_event" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	ReceivedAt      time.Time  `gorm:"type:timestamp;not null" json:"received_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Processed reports whether the event completed a successful reconciler pass.
func (e *WebhookEvent) Processed() bool {
	return e.ProcessedAt != nil
}
