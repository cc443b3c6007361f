package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/diewo77/invoicing/internal/apperr"
	"github.com/diewo77/invoicing/internal/money"
	"github.com/diewo77/invoicing/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var maxTaxRate = decimal.NewFromInt(100)

// Invoice is the billing aggregate: it owns its line items and derives
// Subtotal, TaxAmount and Total from them. The derived fields are refreshed
// by every mutating method and again right before the row is saved.
type Invoice struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"<-:create" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Number is assigned once at creation and never rewritten.
	Number string `gorm:"size:50;not null;uniqueIndex" json:"number"`

	// Client relationship
	ClientID uint    `gorm:"index;not null" json:"client_id"`
	Client   *Client `gorm:"foreignKey:ClientID;constraint:OnDelete:RESTRICT" json:"client,omitempty"`

	// Invoice dates
	InvoiceDate time.Time `gorm:"not null;index" json:"invoice_date"`
	DueDate     time.Time `gorm:"not null;index" json:"due_date"`

	// Invoice items
	Items []LineItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items"`

	// Amounts
	TaxRate   decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_rate"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	TaxAmount decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"tax_amount"`
	Total     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total"`

	// Status
	Status PaymentStatus `gorm:"size:20;not null;default:'PENDING';index" json:"status"`

	// Notes and terms
	Notes string `gorm:"type:text" json:"notes,omitempty"`
	Terms string `gorm:"type:text" json:"terms,omitempty"`
}

// MarshalJSON renders the amounts as fixed two-decimal strings.
func (inv Invoice) MarshalJSON() ([]byte, error) {
	type plain Invoice
	return json.Marshal(struct {
		plain
		TaxRate   money.Fixed `json:"tax_rate"`
		Subtotal  money.Fixed `json:"subtotal"`
		TaxAmount money.Fixed `json:"tax_amount"`
		Total     money.Fixed `json:"total"`
	}{
		plain:     plain(inv),
		TaxRate:   money.Fixed(inv.TaxRate),
		Subtotal:  money.Fixed(inv.Subtotal),
		TaxAmount: money.Fixed(inv.TaxAmount),
		Total:     money.Fixed(inv.Total),
	})
}

// Totals groups the derived amounts of an invoice.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// ComputeTotals derives invoice amounts from items and a percentage tax rate.
// Each line is rounded to cents first; the subtotal is the exact sum of line totals.
func ComputeTotals(items []LineItem, taxRate decimal.Decimal) Totals {
	lines := make([]decimal.Decimal, len(items))
	for i := range items {
		lines[i] = items[i].LineTotal()
	}
	subtotal := money.Sum(lines...)
	tax := money.Percent(subtotal, taxRate)
	return Totals{Subtotal: subtotal, TaxAmount: tax, Total: subtotal.Add(tax)}
}

// Totals returns freshly derived amounts without mutating the invoice.
func (inv *Invoice) Totals() Totals {
	return ComputeTotals(inv.Items, inv.TaxRate)
}

// Recalculate re-derives every line total and the invoice amounts.
func (inv *Invoice) Recalculate() {
	for i := range inv.Items {
		inv.Items[i].recompute()
		inv.Items[i].Position = i
	}
	t := inv.Totals()
	inv.Subtotal = t.Subtotal
	inv.TaxAmount = t.TaxAmount
	inv.Total = t.Total
}

// SetItems replaces the whole item list. Items are copied, detached from any
// previous invoice, and validated; on error the invoice is left unchanged.
func (inv *Invoice) SetItems(items []LineItem) error {
	fresh := make([]LineItem, len(items))
	v := validation.Violations{}
	for i, it := range items {
		it.ID = 0
		it.InvoiceID = inv.ID
		if err := it.Validate(); err != nil {
			for field, c := range err.(*apperr.ValidationError).Violations {
				v[fmt.Sprintf("items[%d].%s", i, field)] = c
			}
		}
		fresh[i] = it
	}
	if err := v.Err(); err != nil {
		return err
	}
	inv.Items = fresh
	inv.Recalculate()
	return nil
}

// AddItem appends one validated item at the end of the list.
func (inv *Invoice) AddItem(item LineItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	item.ID = 0
	item.InvoiceID = inv.ID
	inv.Items = append(inv.Items, item)
	inv.Recalculate()
	return nil
}

// SetTaxRate sets a percentage in [0, 100] and re-derives amounts.
func (inv *Invoice) SetTaxRate(rate decimal.Decimal) error {
	v := validation.Violations{}
	validation.RangeDecimal("tax_rate", rate, decimal.Zero, maxTaxRate, v)
	validation.MaxPlaces("tax_rate", rate, money.Places, v)
	if err := v.Err(); err != nil {
		return err
	}
	inv.TaxRate = rate
	inv.Recalculate()
	return nil
}

// Validate checks the aggregate before it is persisted. The number is
// assigned separately and guarded by the unique index.
func (inv *Invoice) Validate() error {
	v := validation.Violations{}
	if inv.ClientID == 0 {
		v["client_id"] = "required"
	}
	validation.RequiredDate("invoice_date", inv.InvoiceDate, v)
	validation.RequiredDate("due_date", inv.DueDate, v)
	validation.NotBefore("due_date", inv.DueDate, inv.InvoiceDate, v)
	validation.RangeDecimal("tax_rate", inv.TaxRate, decimal.Zero, maxTaxRate, v)
	validation.MaxPlaces("tax_rate", inv.TaxRate, money.Places, v)
	if !inv.Status.Valid() {
		v["status"] = "unknown_status"
	}
	for i := range inv.Items {
		if err := inv.Items[i].Validate(); err != nil {
			for field, c := range err.(*apperr.ValidationError).Violations {
				v[fmt.Sprintf("items[%d].%s", i, field)] = c
			}
		}
	}
	return v.Err()
}

// IsOverdue reports whether a pending invoice is past its due date on asOf.
// It never changes the stored status.
func (inv *Invoice) IsOverdue(asOf time.Time) bool {
	if inv.Status == StatusOverdue {
		return true
	}
	return inv.Status == StatusPending && inv.DueDate.Before(Day(asOf))
}

// BeforeSave refreshes the derived amounts so stale totals are never written.
func (inv *Invoice) BeforeSave(tx *gorm.DB) error {
	if inv.Status == "" {
		inv.Status = StatusPending
	}
	inv.InvoiceDate = Day(inv.InvoiceDate)
	inv.DueDate = Day(inv.DueDate)
	inv.Recalculate()
	return nil
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
