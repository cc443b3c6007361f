// Package numbering formats invoice numbers and reserves their sequence values.
//
// A number is a prefix followed by a zero-padded decimal sequence, e.g. INV-0001.
// Sequences beyond 9999 simply grow wider (INV-10000), which still parses back.
package numbering

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "INV-"

// Format renders seq under prefix with at least four digits.
func Format(prefix string, seq int64) string {
	return fmt.Sprintf("%s%04d", prefix, seq)
}

// ParseSuffix extracts the numeric sequence from number. It reports false when
// number does not carry prefix or its suffix is not a positive integer.
func ParseSuffix(prefix, number string) (int64, bool) {
	if !strings.HasPrefix(number, prefix) {
		return 0, false
	}
	suffix := number[len(prefix):]
	if suffix == "" {
		return 0, false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Sequencer reserves the next sequence value for a prefix.
// Implementations must never hand out the same value twice for a prefix,
// but may skip values.
type Sequencer interface {
	Next(ctx context.Context, prefix string) (int64, error)
}

// MaxFinder reports the greatest sequence already used under a prefix.
type MaxFinder interface {
	MaxSequenceSuffix(ctx context.Context, prefix string) (int64, error)
}

// Counter is an atomically incremented, storage-owned sequence.
type Counter interface {
	NextSequence(ctx context.Context, prefix string) (int64, error)
}

// StoreCounter delegates to the storage layer's atomic counter.
type StoreCounter struct {
	Store Counter
}

func (s StoreCounter) Next(ctx context.Context, prefix string) (int64, error) {
	return s.Store.NextSequence(ctx, prefix)
}

// MaxScan derives the next value from the highest issued suffix. It is not
// atomic on its own; callers rely on the unique number constraint plus retry.
type MaxScan struct {
	Store MaxFinder
}

func (m MaxScan) Next(ctx context.Context, prefix string) (int64, error) {
	max, err := m.Store.MaxSequenceSuffix(ctx, prefix)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}
