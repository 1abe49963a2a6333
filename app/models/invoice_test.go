package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvoiceNormalize(t *testing.T) {
	cases := []struct {
		name          string
		invoice       Invoice
		wantRemaining int64
		wantPaid      bool
		wantStatus    string
	}{
		{
			name:          "fully paid",
			invoice:       Invoice{Status: InvoiceStatusOpen, AmountDue: 2000, AmountPaid: 2000},
			wantRemaining: 0,
			wantPaid:      true,
			wantStatus:    InvoiceStatusPaid,
		},
		{
			name:          "partially paid",
			invoice:       Invoice{Status: InvoiceStatusOpen, AmountDue: 2000, AmountPaid: 500},
			wantRemaining: 1500,
			wantPaid:      false,
			wantStatus:    InvoiceStatusOpen,
		},
		{
			name:          "overpaid floors remaining at zero",
			invoice:       Invoice{Status: InvoiceStatusOpen, AmountDue: 2000, AmountPaid: 2500},
			wantRemaining: 0,
			wantPaid:      true,
			wantStatus:    InvoiceStatusPaid,
		},
		{
			name:          "zero due keeps provider paid flag when settled",
			invoice:       Invoice{Status: InvoiceStatusOpen, AmountDue: 0, AmountPaid: 0, Paid: true},
			wantRemaining: 0,
			wantPaid:      true,
			wantStatus:    InvoiceStatusPaid,
		},
		{
			name:          "zero due keeps provider paid flag when unsettled",
			invoice:       Invoice{Status: InvoiceStatusDraft, AmountDue: 0, AmountPaid: 0, Paid: false},
			wantRemaining: 0,
			wantPaid:      false,
			wantStatus:    InvoiceStatusDraft,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := tc.invoice
			inv.Normalize()
			assert.Equal(t, tc.wantRemaining, inv.AmountRemaining)
			assert.Equal(t, tc.wantPaid, inv.Paid)
			assert.Equal(t, tc.wantStatus, inv.Status)
		})
	}
}
