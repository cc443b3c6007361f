package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceSnapshot is a read-only copy of a fully computed invoice, handed to
// PDF rendering and email composition. Consumers format its values and never recompute them.
type InvoiceSnapshot struct {
	Number      string
	InvoiceDate time.Time
	DueDate     time.Time
	Status      PaymentStatus
	Client      Client
	Items       []LineItemSnapshot
	TaxRate     decimal.Decimal
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	Total       decimal.Decimal
	Notes       string
	Terms       string
}

type LineItemSnapshot struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

// Snapshot recalculates the invoice and copies it into an immutable view.
func (inv *Invoice) Snapshot() InvoiceSnapshot {
	inv.Recalculate()
	s := InvoiceSnapshot{
		Number:      inv.Number,
		InvoiceDate: inv.InvoiceDate,
		DueDate:     inv.DueDate,
		Status:      inv.Status,
		TaxRate:     inv.TaxRate,
		Subtotal:    inv.Subtotal,
		TaxAmount:   inv.TaxAmount,
		Total:       inv.Total,
		Notes:       inv.Notes,
		Terms:       inv.Terms,
		Items:       make([]LineItemSnapshot, len(inv.Items)),
	}
	if inv.Client != nil {
		s.Client = *inv.Client
	}
	for i, it := range inv.Items {
		s.Items[i] = LineItemSnapshot{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Total:       it.Total,
		}
	}
	return s
}
