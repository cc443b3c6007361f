package validation

import (
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/diewo77/invoicing/internal/apperr"
	"github.com/shopspring/decimal"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Err converts the collected violations into a *apperr.ValidationError, or nil when empty.
// Field and Constraint carry the alphabetically first violation.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]string, len(v))
	for k, c := range v {
		out[k] = c
	}
	return &apperr.ValidationError{Field: keys[0], Constraint: v[keys[0]], Violations: out}
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func MaxLen(field, value string, max int, v Violations) {
	if len(value) > max {
		v[field] = "too_long"
	}
}

func Email(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		v[field] = "invalid_email"
	}
}

func PositiveDecimal(field string, val decimal.Decimal, v Violations) {
	if !val.IsPositive() {
		v[field] = "must_be_positive"
	}
}

func RangeDecimal(field string, val, minVal, maxVal decimal.Decimal, v Violations) {
	if val.LessThan(minVal) || val.GreaterThan(maxVal) {
		v[field] = "out_of_range"
	}
}

// MaxPlaces flags field when val carries more than places significant fraction digits.
// Trailing zeros are allowed, so 10.500 passes with places=2. An earlier violation
// on field is kept.
func MaxPlaces(field string, val decimal.Decimal, places int32, v Violations) {
	if _, set := v[field]; set {
		return
	}
	if !val.Truncate(places).Equal(val) {
		v[field] = "too_many_decimals"
	}
}

func RequiredDate(field string, val time.Time, v Violations) {
	if val.IsZero() {
		v[field] = "required"
	}
}

// NotBefore flags field when val is earlier than ref. Zero times are skipped.
func NotBefore(field string, val, ref time.Time, v Violations) {
	if val.IsZero() || ref.IsZero() {
		return
	}
	if val.Before(ref) {
		v[field] = "before_invoice_date"
	}
}
