// Package overdue derives unpaid bills past their due date and ages them.
package overdue

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"dairyflow/internal/core/types"
	"dairyflow/internal/domain/billing"
)

// Bucket is an aging class used for prioritization.
type Bucket string

const (
	BucketMedium   Bucket = "medium"
	BucketHigh     Bucket = "high"
	BucketCritical Bucket = "critical"
)

// Aging thresholds in days overdue.
const (
	MediumMaxDays = 15
	HighMaxDays   = 30
)

// Buckets lists buckets from least to most urgent.
var Buckets = []Bucket{BucketMedium, BucketHigh, BucketCritical}

// BucketFor classifies days overdue.
func BucketFor(days int) Bucket {
	switch {
	case days <= MediumMaxDays:
		return BucketMedium
	case days <= HighMaxDays:
		return BucketHigh
	default:
		return BucketCritical
	}
}

// Entry is one overdue bill.
type Entry struct {
	Bill        *billing.Bill `json:"bill"`
	DaysOverdue int           `json:"daysOverdue"`
	Bucket      Bucket        `json:"bucket"`
}

// Reader is the part of the bill store the monitor needs.
type Reader interface {
	ListUnpaidDueBefore(ctx context.Context, before time.Time) ([]*billing.Bill, error)
}

// Monitor lists overdue bills. It never writes.
type Monitor struct {
	bills Reader
}

func NewMonitor(bills Reader) *Monitor {
	return &Monitor{bills: bills}
}

// ListOverdue returns unpaid bills with a due date before the calendar day of
// asOf, most overdue first, ties ordered by bill number.
func (m *Monitor) ListOverdue(ctx context.Context, asOf time.Time) ([]Entry, error) {
	day := types.DateOf(asOf)

	bills, err := m.bills.ListUnpaidDueBefore(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("list unpaid bills: %w", err)
	}

	entries := lo.FilterMap(bills, func(b *billing.Bill, _ int) (Entry, bool) {
		days := types.DaysBetween(b.DueDate, day)
		if b.IsPaid || days < 1 {
			return Entry{}, false
		}
		return Entry{Bill: b, DaysOverdue: days, Bucket: BucketFor(days)}, true
	})

	slices.SortFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(b.DaysOverdue, a.DaysOverdue); c != 0 {
			return c
		}
		return cmp.Compare(a.Bill.Number, b.Bill.Number)
	})
	return entries, nil
}

// BucketSummary aggregates one bucket.
type BucketSummary struct {
	Count       int             `json:"count"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// Summary aggregates a list of entries.
type Summary struct {
	Count       int                      `json:"count"`
	Outstanding decimal.Decimal          `json:"outstanding"`
	Buckets     map[Bucket]BucketSummary `json:"buckets"`
}

// Summarize counts entries and outstanding amounts per bucket. Every bucket is
// present in the result, empty ones with zero values.
func Summarize(entries []Entry) Summary {
	grouped := lo.GroupBy(entries, func(e Entry) Bucket { return e.Bucket })

	s := Summary{
		Count:       len(entries),
		Outstanding: decimal.Zero,
		Buckets:     make(map[Bucket]BucketSummary, len(Buckets)),
	}
	for _, b := range Buckets {
		group := grouped[b]
		amount := lo.Reduce(group, func(acc decimal.Decimal, e Entry, _ int) decimal.Decimal {
			return acc.Add(e.Bill.TotalAmount)
		}, decimal.Zero)
		s.Buckets[b] = BucketSummary{Count: len(group), Outstanding: amount}
		s.Outstanding = s.Outstanding.Add(amount)
	}
	return s
}
