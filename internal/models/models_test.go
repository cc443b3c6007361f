package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/invoicing/internal/apperr"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(t *testing.T, desc, qty, price string) LineItem {
	t.Helper()
	li, err := NewLineItem(desc, dec(qty), dec(price))
	if err != nil {
		t.Fatalf("NewLineItem(%q): %v", desc, err)
	}
	return li
}

func TestNewLineItem(t *testing.T) {
	li := item(t, "Widget", "2", "10.00")
	if !li.Total.Equal(dec("20")) {
		t.Errorf("Total = %s, want 20", li.Total)
	}

	tests := []struct {
		name  string
		desc  string
		qty   string
		price string
		field string
	}{
		{"empty description", "  ", "1", "1", "description"},
		{"zero quantity", "x", "0", "1", "quantity"},
		{"negative quantity", "x", "-1", "1", "quantity"},
		{"zero price", "x", "1", "0", "unit_price"},
		{"sub-cent price", "x", "1", "0.125", "unit_price"},
		{"three-decimal quantity", "x", "1.005", "1", "quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLineItem(tt.desc, dec(tt.qty), dec(tt.price))
			ve, ok := err.(*apperr.ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Violations[tt.field] == "" {
				t.Errorf("expected violation on %s, got %v", tt.field, ve.Violations)
			}
		})
	}
}

func TestLineItem_SettersRecomputeTotal(t *testing.T) {
	li := item(t, "Widget", "2", "10.00")
	if err := li.SetQuantity(dec("3")); err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if !li.Total.Equal(dec("30")) {
		t.Errorf("after SetQuantity Total = %s, want 30", li.Total)
	}
	if err := li.SetUnitPrice(dec("1.35")); err != nil {
		t.Fatalf("SetUnitPrice: %v", err)
	}
	if !li.Total.Equal(dec("4.05")) {
		t.Errorf("after SetUnitPrice Total = %s, want 4.05", li.Total)
	}
	if err := li.SetQuantity(dec("0")); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for zero quantity, got %v", err)
	}
	if !li.Quantity.Equal(dec("3")) {
		t.Errorf("rejected quantity must not be applied, got %s", li.Quantity)
	}
	err := li.SetUnitPrice(dec("1.335"))
	ve, ok := err.(*apperr.ValidationError)
	if !ok || ve.Violations["unit_price"] != "too_many_decimals" {
		t.Errorf("expected too_many_decimals for 1.335, got %v", err)
	}
	if !li.UnitPrice.Equal(dec("1.35")) || !li.Total.Equal(dec("4.05")) {
		t.Errorf("rejected price must not be applied, got %s/%s", li.UnitPrice, li.Total)
	}
	if err := li.SetQuantity(dec("2.500")); err != nil {
		t.Errorf("trailing zeros must be accepted: %v", err)
	}
}

func TestLineItem_MarshalJSONFixedPlaces(t *testing.T) {
	li := item(t, "Widget", "2", "10")
	raw, err := json.Marshal(li)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"quantity":"2.00"`, `"unit_price":"10.00"`, `"total":"20.00"`, `"description":"Widget"`} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("%s missing %s", raw, want)
		}
	}
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name     string
		items    [][2]string
		rate     string
		subtotal string
		tax      string
		total    string
	}{
		{"widget at 10%", [][2]string{{"2", "10.00"}}, "10", "20.00", "2.00", "22.00"},
		{"empty list", nil, "20", "0", "0", "0"},
		{"zero rate", [][2]string{{"1", "99.99"}}, "0", "99.99", "0", "99.99"},
		{"full rate", [][2]string{{"1", "50"}}, "100", "50", "50", "100"},
		{"tax rounds half up", [][2]string{{"1", "0.25"}}, "50", "0.25", "0.13", "0.38"},
		{"several lines", [][2]string{{"2", "100"}, {"1", "50"}, {"3", "10"}}, "5.5", "280", "15.40", "295.40"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var items []LineItem
			for _, it := range tt.items {
				items = append(items, item(t, "line", it[0], it[1]))
			}
			got := ComputeTotals(items, dec(tt.rate))
			if !got.Subtotal.Equal(dec(tt.subtotal)) {
				t.Errorf("Subtotal = %s, want %s", got.Subtotal, tt.subtotal)
			}
			if !got.TaxAmount.Equal(dec(tt.tax)) {
				t.Errorf("TaxAmount = %s, want %s", got.TaxAmount, tt.tax)
			}
			if !got.Total.Equal(dec(tt.total)) {
				t.Errorf("Total = %s, want %s", got.Total, tt.total)
			}
			if !got.Total.Equal(got.Subtotal.Add(got.TaxAmount)) {
				t.Errorf("Total != Subtotal + TaxAmount")
			}
		})
	}
}

func TestInvoice_MutationsRecalculate(t *testing.T) {
	inv := &Invoice{TaxRate: dec("10")}
	if err := inv.SetItems([]LineItem{item(t, "Widget", "2", "10")}); err != nil {
		t.Fatalf("SetItems: %v", err)
	}
	if !inv.Total.Equal(dec("22")) {
		t.Fatalf("Total = %s, want 22", inv.Total)
	}
	if err := inv.AddItem(item(t, "Gadget", "1", "5")); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if !inv.Subtotal.Equal(dec("25")) || !inv.Total.Equal(dec("27.5")) {
		t.Fatalf("after AddItem subtotal=%s total=%s", inv.Subtotal, inv.Total)
	}
	if inv.Items[1].Position != 1 {
		t.Errorf("Position = %d, want 1", inv.Items[1].Position)
	}
	if err := inv.SetTaxRate(dec("0")); err != nil {
		t.Fatalf("SetTaxRate: %v", err)
	}
	if !inv.Total.Equal(dec("25")) {
		t.Errorf("after SetTaxRate Total = %s, want 25", inv.Total)
	}
	if err := inv.SetTaxRate(dec("100.01")); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for rate > 100, got %v", err)
	}
	err := inv.SetTaxRate(dec("10.125"))
	if ve, ok := err.(*apperr.ValidationError); !ok || ve.Violations["tax_rate"] != "too_many_decimals" {
		t.Errorf("expected too_many_decimals for 10.125, got %v", err)
	}
	if !inv.TaxRate.IsZero() {
		t.Errorf("rejected rate must not be applied, got %s", inv.TaxRate)
	}
	if err := inv.SetItems(nil); err != nil {
		t.Fatalf("SetItems(nil): %v", err)
	}
	if !inv.Subtotal.IsZero() || !inv.TaxAmount.IsZero() || !inv.Total.IsZero() {
		t.Errorf("cleared invoice totals = %s/%s/%s", inv.Subtotal, inv.TaxAmount, inv.Total)
	}
}

func TestInvoice_SetItemsRejectsInvalidAndKeepsState(t *testing.T) {
	inv := &Invoice{ID: 3}
	if err := inv.SetItems([]LineItem{item(t, "Widget", "1", "10")}); err != nil {
		t.Fatalf("SetItems: %v", err)
	}
	if inv.Items[0].InvoiceID != 3 {
		t.Errorf("InvoiceID = %d, want 3", inv.Items[0].InvoiceID)
	}
	err := inv.SetItems([]LineItem{{Description: "bad", Quantity: dec("0"), UnitPrice: dec("1")}})
	ve, ok := err.(*apperr.ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Violations["items[0].quantity"] != "must_be_positive" {
		t.Errorf("unexpected violations %v", ve.Violations)
	}
	if len(inv.Items) != 1 || !inv.Total.Equal(dec("10")) {
		t.Errorf("invoice changed after rejected SetItems")
	}
}

func TestInvoice_Validate(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	valid := Invoice{
		Number:      "INV-0001",
		ClientID:    1,
		InvoiceDate: day,
		DueDate:     day,
		Status:      StatusPending,
		TaxRate:     dec("10"),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid invoice rejected: %v", err)
	}

	early := valid
	early.DueDate = day.AddDate(0, 0, -1)
	err := early.Validate()
	ve, ok := err.(*apperr.ValidationError)
	if !ok || ve.Violations["due_date"] != "before_invoice_date" {
		t.Errorf("expected due_date violation, got %v", err)
	}

	noClient := valid
	noClient.ClientID = 0
	if err := noClient.Validate(); !apperr.IsValidation(err) {
		t.Errorf("expected client_id violation, got %v", err)
	}

	badStatus := valid
	badStatus.Status = "LOST"
	if err := badStatus.Validate(); !apperr.IsValidation(err) {
		t.Errorf("expected status violation, got %v", err)
	}

	fineRate := valid
	fineRate.TaxRate = dec("7.125")
	err = fineRate.Validate()
	if ve, ok := err.(*apperr.ValidationError); !ok || ve.Violations["tax_rate"] != "too_many_decimals" {
		t.Errorf("expected tax_rate too_many_decimals, got %v", err)
	}
}

func TestInvoice_MarshalJSONFixedPlaces(t *testing.T) {
	inv := &Invoice{Number: "INV-0001", TaxRate: dec("10")}
	if err := inv.SetItems([]LineItem{item(t, "Widget", "2", "10")}); err != nil {
		t.Fatalf("SetItems: %v", err)
	}
	raw, err := json.Marshal(inv)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{
		`"tax_rate":"10.00"`, `"subtotal":"20.00"`, `"tax_amount":"2.00"`, `"total":"22.00"`,
		`"unit_price":"10.00"`, `"number":"INV-0001"`,
	} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("%s missing %s", raw, want)
		}
	}

	var back Invoice
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.Total.Equal(dec("22")) || len(back.Items) != 1 {
		t.Errorf("round trip lost amounts: total=%s items=%d", back.Total, len(back.Items))
	}
}

func TestInvoice_IsOverdue(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		status PaymentStatus
		asOf   time.Time
		want   bool
	}{
		{"pending before due", StatusPending, due.AddDate(0, 0, -1), false},
		{"pending on due date", StatusPending, due.Add(15 * time.Hour), false},
		{"pending after due", StatusPending, due.AddDate(0, 0, 1), true},
		{"paid after due", StatusPaid, due.AddDate(0, 0, 10), false},
		{"explicit overdue", StatusOverdue, due.AddDate(0, 0, -10), true},
		{"cancelled after due", StatusCancelled, due.AddDate(0, 0, 10), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &Invoice{Status: tt.status, DueDate: due}
			if got := inv.IsOverdue(tt.asOf); got != tt.want {
				t.Errorf("IsOverdue() = %v, want %v", got, tt.want)
			}
			if inv.Status != tt.status {
				t.Errorf("IsOverdue changed status to %s", inv.Status)
			}
		})
	}
}

func TestInvoice_Snapshot(t *testing.T) {
	inv := &Invoice{
		Number:  "INV-0007",
		TaxRate: dec("10"),
		Client:  &Client{Name: "Acme"},
		Items:   []LineItem{{Description: "Widget", Quantity: dec("2"), UnitPrice: dec("10")}},
	}
	s := inv.Snapshot()
	if !s.Total.Equal(dec("22")) || !s.Items[0].Total.Equal(dec("20")) {
		t.Fatalf("snapshot totals not derived: %+v", s)
	}
	if s.Client.Name != "Acme" {
		t.Errorf("Client.Name = %q", s.Client.Name)
	}
	inv.Items[0].Description = "changed"
	if s.Items[0].Description != "Widget" {
		t.Errorf("snapshot shares item storage with invoice")
	}
}

func TestParsePaymentStatus(t *testing.T) {
	for _, raw := range []string{"paid", "PAID", " Paid "} {
		got, err := ParsePaymentStatus(raw)
		if err != nil || got != StatusPaid {
			t.Errorf("ParsePaymentStatus(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := ParsePaymentStatus("refunded"); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestClient_FullAddress(t *testing.T) {
	tests := []struct {
		name   string
		client Client
		want   string
	}{
		{
			name: "full address",
			client: Client{
				Address:    "123 Main St",
				City:       "Springfield",
				State:      "IL",
				PostalCode: "62701",
				Country:    "USA",
			},
			want: "123 Main St\nSpringfield, IL, 62701\nUSA",
		},
		{"only city", Client{City: "Paris"}, "Paris"},
		{"empty", Client{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.client.FullAddress(); got != tt.want {
				t.Errorf("FullAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_Validate(t *testing.T) {
	c := Client{Name: " Acme ", Email: " Billing@Acme.COM "}
	c.Normalize()
	if c.Email != "billing@acme.com" || c.Name != "Acme" {
		t.Fatalf("Normalize() = %q/%q", c.Name, c.Email)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate(): %v", err)
	}
	if err := (&Client{Name: "x"}).Validate(); !apperr.IsValidation(err) {
		t.Errorf("expected missing email to fail, got %v", err)
	}
}
