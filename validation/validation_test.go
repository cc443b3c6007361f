package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/diewo77/invoicing/internal/apperr"
	"github.com/shopspring/decimal"
)

func TestValidators(t *testing.T) {
	v := Violations{}
	Required("name", "  ", v)
	Email("email", "not-an-email", v)
	PositiveDecimal("quantity", decimal.Zero, v)
	RangeDecimal("taxRate", decimal.NewFromInt(101), decimal.Zero, decimal.NewFromInt(100), v)
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	NotBefore("dueDate", day.AddDate(0, 0, -1), day, v)
	MaxPlaces("unitPrice", decimal.RequireFromString("0.125"), 2, v)
	MaxPlaces("quantity", decimal.RequireFromString("1.005"), 2, v)

	want := map[string]string{
		"name":      "required",
		"email":     "invalid_email",
		"quantity":  "must_be_positive",
		"taxRate":   "out_of_range",
		"dueDate":   "before_invoice_date",
		"unitPrice": "too_many_decimals",
	}
	for field, code := range want {
		if v[field] != code {
			t.Errorf("%s: got %q want %q", field, v[field], code)
		}
	}
}

func TestValidatorsAcceptBoundaries(t *testing.T) {
	v := Violations{}
	Email("email", "", v)
	Email("email2", "a@b.io", v)
	RangeDecimal("taxRate", decimal.Zero, decimal.Zero, decimal.NewFromInt(100), v)
	RangeDecimal("taxRate2", decimal.NewFromInt(100), decimal.Zero, decimal.NewFromInt(100), v)
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	NotBefore("dueDate", day, day, v)
	MaxPlaces("price", decimal.RequireFromString("10.50"), 2, v)
	MaxPlaces("price2", decimal.RequireFromString("2.500"), 2, v)
	MaxPlaces("price3", decimal.NewFromInt(7), 2, v)
	if !v.Empty() {
		t.Fatalf("expected no violations, got %v", v)
	}
	if v.Err() != nil {
		t.Fatalf("expected nil error for empty violations")
	}
}

func TestErrPicksFirstField(t *testing.T) {
	v := Violations{"b": "required", "a": "out_of_range"}
	err := v.Err()
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if ve.Field != "a" || ve.Constraint != "out_of_range" {
		t.Fatalf("unexpected first violation %s/%s", ve.Field, ve.Constraint)
	}
	if len(ve.Violations) != 2 {
		t.Fatalf("expected both violations, got %v", ve.Violations)
	}
}
