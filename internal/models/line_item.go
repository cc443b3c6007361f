package models

import (
	"encoding/json"
	"strings"

	"github.com/diewo77/invoicing/internal/apperr"
	"github.com/diewo77/invoicing/internal/money"
	"github.com/diewo77/invoicing/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LineItem is one billable line of an invoice. It belongs to exactly one invoice,
// identified by InvoiceID, which is set on insert and never changed afterwards.
type LineItem struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	InvoiceID uint `gorm:"index;not null" json:"invoice_id"`

	// Position keeps the display order of the invoice's item list.
	Position int `gorm:"not null;default:0" json:"position"`

	Description string          `gorm:"size:500;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`

	// Total is quantity * unit price, rounded to cents. Always derived.
	Total decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total"`
}

func (li LineItem) MarshalJSON() ([]byte, error) {
	type plain LineItem
	return json.Marshal(struct {
		plain
		Quantity  money.Fixed `json:"quantity"`
		UnitPrice money.Fixed `json:"unit_price"`
		Total     money.Fixed `json:"total"`
	}{
		plain:     plain(li),
		Quantity:  money.Fixed(li.Quantity),
		UnitPrice: money.Fixed(li.UnitPrice),
		Total:     money.Fixed(li.Total),
	})
}

// NewLineItem builds a validated line item with its total already derived.
func NewLineItem(description string, quantity, unitPrice decimal.Decimal) (LineItem, error) {
	item := LineItem{
		Description: strings.TrimSpace(description),
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	}
	item.recompute()
	if err := item.Validate(); err != nil {
		return LineItem{}, err
	}
	return item, nil
}

// SetQuantity replaces the quantity and re-derives the total.
func (li *LineItem) SetQuantity(q decimal.Decimal) error {
	if !q.IsPositive() {
		return apperr.Validation("quantity", "must_be_positive")
	}
	if err := checkPlaces("quantity", q); err != nil {
		return err
	}
	li.Quantity = q
	li.recompute()
	return nil
}

// SetUnitPrice replaces the unit price and re-derives the total.
func (li *LineItem) SetUnitPrice(p decimal.Decimal) error {
	if !p.IsPositive() {
		return apperr.Validation("unit_price", "must_be_positive")
	}
	if err := checkPlaces("unit_price", p); err != nil {
		return err
	}
	li.UnitPrice = p
	li.recompute()
	return nil
}

// LineTotal derives the total from quantity and unit price without touching the item.
func (li LineItem) LineTotal() decimal.Decimal {
	return money.Round(li.Quantity.Mul(li.UnitPrice))
}

func (li *LineItem) recompute() {
	li.Total = li.LineTotal()
}

// Validate checks description, quantity and unit price.
func (li *LineItem) Validate() error {
	v := validation.Violations{}
	validation.Required("description", li.Description, v)
	validation.PositiveDecimal("quantity", li.Quantity, v)
	validation.PositiveDecimal("unit_price", li.UnitPrice, v)
	validation.MaxPlaces("quantity", li.Quantity, money.Places, v)
	validation.MaxPlaces("unit_price", li.UnitPrice, money.Places, v)
	return v.Err()
}

// checkPlaces rejects values the decimal(12,2) columns would round on write.
func checkPlaces(field string, d decimal.Decimal) error {
	v := validation.Violations{}
	validation.MaxPlaces(field, d, money.Places, v)
	return v.Err()
}

// BeforeSave keeps the stored total equal to quantity * unit price.
func (li *LineItem) BeforeSave(tx *gorm.DB) error {
	li.recompute()
	return nil
}
