package models

import (
	"strings"

	"github.com/diewo77/invoicing/internal/apperr"
)

// PaymentStatus is the payment state of an invoice.
// Any status may be replaced by any other through an explicit update.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusPaid      PaymentStatus = "PAID"
	StatusOverdue   PaymentStatus = "OVERDUE"
	StatusCancelled PaymentStatus = "CANCELLED"
)

// PaymentStatuses lists every known status in display order.
var PaymentStatuses = []PaymentStatus{StatusPending, StatusPaid, StatusOverdue, StatusCancelled}

// Valid reports whether s is one of the known statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

func (s PaymentStatus) String() string { return string(s) }

// ParsePaymentStatus accepts any casing, e.g. "paid" or "Paid".
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	s := PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", apperr.Validation("status", "unknown_status")
	}
	return s, nil
}
