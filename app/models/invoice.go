package models

import "time"

const (
	InvoiceStatusDraft = "draft"
	InvoiceStatusOpen  = "open"
	InvoiceStatusPaid  = "paid"
	InvoiceStatusVoid  = "void"
)

// Invoice mirrors a provider invoice. Amounts are minor currency units and
// satisfy AmountDue == AmountPaid + AmountRemaining at rest (overpayments
// excepted, see Normalize); Normalize recomputes the derived fields instead
// of trusting possibly-stale input.
type Invoice struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	SubscriptionID    *uint      `gorm:"index" json:"subscription_id,omitempty"`
	CustomerID        *uint      `gorm:"index" json:"customer_id,omitempty"`
	ProviderInvoiceID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_invoices_provider_invoice" json:"provider_invoice_id"`
	Status            string     `gorm:"type:varchar(32);not null;default:'open'" json:"status"`
	AmountDue         int64      `gorm:"not null;default:0" json:"amount_due"`
	AmountPaid        int64      `gorm:"not null;default:0" json:"amount_paid"`
	AmountRemaining   int64      `gorm:"not null;default:0" json:"amount_remaining"`
	Currency          string     `gorm:"type:varchar(8);default:''" json:"currency"`
	Paid              bool       `gorm:"default:false" json:"paid"`
	IssuedAt          *time.Time `gorm:"type:timestamp;default:null" json:"issued_at,omitempty"`
	LastEventAt       *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Normalize recomputes AmountRemaining and the Paid flag from AmountDue and
// AmountPaid so the stored row satisfies the amount invariant. An overpayment
// (credits, proration) floors AmountRemaining at zero while AmountPaid keeps
// the raw value, so due == paid + remaining does not hold for that one case.
// Zero-amount invoices keep the provider's paid flag: the amounts alone
// cannot decide whether a 0-due invoice settled.
func (i *Invoice) Normalize() {
	i.AmountRemaining = i.AmountDue - i.AmountPaid
	if i.AmountRemaining < 0 {
		i.AmountRemaining = 0
	}
	if i.AmountDue > 0 {
		i.Paid = i.AmountRemaining == 0
	}
	if i.Paid {
		i.Status = InvoiceStatusPaid
	}
}
