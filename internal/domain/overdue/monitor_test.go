package overdue_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairyflow/internal/core/id"
	"dairyflow/internal/core/tenant"
	"dairyflow/internal/core/types"
	"dairyflow/internal/domain/billing"
	"dairyflow/internal/domain/overdue"
	"dairyflow/internal/infrastructure/storage/memory"
)

func seedBill(t *testing.T, ctx context.Context, store *memory.Store, number string, period types.Period, amount int64) *billing.Bill {
	t.Helper()
	b := billing.NewBill(id.New(), period, decimal.NewFromInt(amount), decimal.NewFromInt(1), billing.SourceManual, time.Now())
	b.Number = number
	require.NoError(t, store.Bills().Create(ctx, b))
	return b
}

func newCtx() context.Context {
	return tenant.WithTenant(context.Background(), &tenant.Tenant{ID: "t-1"})
}

func TestListOverdue_DaysOverdue(t *testing.T) {
	ctx := newCtx()
	store := memory.NewStore()
	bill := seedBill(t, ctx, store, "MLK-2024-03-00001", types.Period{Month: 3, Year: 2024}, 100)

	entries, err := overdue.NewMonitor(store.Bills()).ListOverdue(ctx, time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, bill.ID, entries[0].Bill.ID)
	assert.Equal(t, 15, entries[0].DaysOverdue)
	assert.Equal(t, overdue.BucketMedium, entries[0].Bucket)
}

func TestListOverdue_FiveDaysAndPaidExcluded(t *testing.T) {
	ctx := newCtx()
	store := memory.NewStore()
	unpaid := seedBill(t, ctx, store, "A", types.Period{Month: 3, Year: 2024}, 100)
	paid := seedBill(t, ctx, store, "B", types.Period{Month: 3, Year: 2024}, 100)
	_, err := store.Bills().MarkPaid(ctx, paid.ID, time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC), nil, time.Now())
	require.NoError(t, err)

	asOf := unpaid.DueDate.AddDate(0, 0, 5)
	entries, err := overdue.NewMonitor(store.Bills()).ListOverdue(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, unpaid.ID, entries[0].Bill.ID)
	assert.Equal(t, 5, entries[0].DaysOverdue)
}

func TestListOverdue_DueTodayIsNotOverdue(t *testing.T) {
	ctx := newCtx()
	store := memory.NewStore()
	b := seedBill(t, ctx, store, "A", types.Period{Month: 3, Year: 2024}, 100)

	entries, err := overdue.NewMonitor(store.Bills()).ListOverdue(ctx, b.DueDate.Add(18*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListOverdue_OrderAndBuckets(t *testing.T) {
	ctx := newCtx()
	store := memory.NewStore()
	seedBill(t, ctx, store, "C-feb", types.Period{Month: 2, Year: 2024}, 10) // due 2024-03-10
	seedBill(t, ctx, store, "B-mar", types.Period{Month: 3, Year: 2024}, 20) // due 2024-04-10
	seedBill(t, ctx, store, "A-mar", types.Period{Month: 3, Year: 2024}, 30) // due 2024-04-10
	seedBill(t, ctx, store, "D-jan", types.Period{Month: 1, Year: 2024}, 40) // due 2024-02-10

	asOf := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
	entries, err := overdue.NewMonitor(store.Bills()).ListOverdue(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	numbers := []string{entries[0].Bill.Number, entries[1].Bill.Number, entries[2].Bill.Number, entries[3].Bill.Number}
	assert.Equal(t, []string{"D-jan", "C-feb", "A-mar", "B-mar"}, numbers)
	assert.Equal(t, 80, entries[0].DaysOverdue)
	assert.Equal(t, 51, entries[1].DaysOverdue)
	assert.Equal(t, 20, entries[2].DaysOverdue)
	assert.Equal(t, overdue.BucketCritical, entries[0].Bucket)
	assert.Equal(t, overdue.BucketHigh, entries[2].Bucket)

	s := overdue.Summarize(entries)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, "100", s.Outstanding.String())
	assert.Equal(t, 2, s.Buckets[overdue.BucketCritical].Count)
	assert.Equal(t, "50", s.Buckets[overdue.BucketCritical].Outstanding.String())
	assert.Equal(t, 2, s.Buckets[overdue.BucketHigh].Count)
	assert.Equal(t, 0, s.Buckets[overdue.BucketMedium].Count)
	assert.True(t, s.Buckets[overdue.BucketMedium].Outstanding.IsZero())
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		days int
		want overdue.Bucket
	}{
		{1, overdue.BucketMedium},
		{15, overdue.BucketMedium},
		{16, overdue.BucketHigh},
		{30, overdue.BucketHigh},
		{31, overdue.BucketCritical},
		{365, overdue.BucketCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, overdue.BucketFor(tt.days), "days=%d", tt.days)
	}
}

func TestListOverdue_IsPureRead(t *testing.T) {
	ctx := newCtx()
	store := memory.NewStore()
	b := seedBill(t, ctx, store, "A", types.Period{Month: 1, Year: 2024}, 100)

	m := overdue.NewMonitor(store.Bills())
	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	first, err := m.ListOverdue(ctx, asOf)
	require.NoError(t, err)
	second, err := m.ListOverdue(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stored, err := store.Bills().GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
}
