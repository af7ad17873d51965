package delivery_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairyflow/internal/core/apperror"
	"dairyflow/internal/core/id"
	"dairyflow/internal/core/tenant"
	"dairyflow/internal/core/types"
	"dairyflow/internal/domain/client"
	"dairyflow/internal/domain/delivery"
	"dairyflow/internal/infrastructure/storage/memory"
)

func setup(t *testing.T) (context.Context, *delivery.Service, client.Client) {
	t.Helper()
	store := memory.NewStore()
	ctx := tenant.WithTenant(context.Background(), &tenant.Tenant{ID: "t-1"})

	c := client.Client{
		ID:                   id.New(),
		Name:                 "Asha",
		DefaultDailyQuantity: decimal.NewFromInt(2),
		RatePerLiter:         decimal.NewFromInt(45),
		IsActive:             true,
	}
	store.PutClient(ctx, c)

	svc := delivery.NewService(delivery.Config{
		Repo:      store.Deliveries(),
		Clients:   store.Clients(),
		Bills:     store.Bills(),
		TxManager: memory.NewTxManager(store),
	})
	return ctx, svc, c
}

func TestRecord_LastWriteForDayWins(t *testing.T) {
	ctx, svc, c := setup(t)
	day := time.Date(2024, 3, 5, 7, 30, 0, 0, time.UTC)

	_, err := svc.Record(ctx, delivery.Record{ClientID: c.ID, Day: day, Quantity: decimal.NewFromInt(2), Delivered: true})
	require.NoError(t, err)
	_, err = svc.Record(ctx, delivery.Record{ClientID: c.ID, Day: day.Add(10 * time.Hour), Quantity: decimal.NewFromInt(3), Delivered: false})
	require.NoError(t, err)

	recs, err := svc.ForClientInMonth(ctx, c.ID, types.Period{Month: 3, Year: 2024})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), recs[0].Day)
	assert.Equal(t, "3", recs[0].Quantity.String())
	assert.False(t, recs[0].Delivered)
}

func TestForClientInMonth_OrderedAndBounded(t *testing.T) {
	ctx, svc, c := setup(t)
	for _, d := range []time.Time{
		time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	} {
		_, err := svc.Record(ctx, delivery.Record{ClientID: c.ID, Day: d, Quantity: decimal.NewFromInt(1), Delivered: true})
		require.NoError(t, err)
	}

	recs, err := svc.ForClientInMonth(ctx, c.ID, types.Period{Month: 3, Year: 2024})
	require.NoError(t, err)

	var days []int
	for r := range recs.All() {
		days = append(days, r.Day.Day())
	}
	assert.Equal(t, []int{1, 20, 31}, days)
	assert.Equal(t, "3", recs.DeliveredQuantity().String())
}

func TestRecord_Validation(t *testing.T) {
	ctx, svc, c := setup(t)
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		rec   delivery.Record
		check func(error) bool
	}{
		{"negative quantity", delivery.Record{ClientID: c.ID, Day: day, Quantity: decimal.NewFromInt(-1)}, apperror.IsValidation},
		{"quantity beyond liter scale", delivery.Record{ClientID: c.ID, Day: day, Quantity: decimal.RequireFromString("1.2345")}, apperror.IsValidation},
		{"missing day", delivery.Record{ClientID: c.ID, Quantity: decimal.NewFromInt(1)}, apperror.IsValidation},
		{"missing client", delivery.Record{Day: day, Quantity: decimal.NewFromInt(1)}, apperror.IsValidation},
		{"unknown client", delivery.Record{ClientID: id.New(), Day: day, Quantity: decimal.NewFromInt(1)}, apperror.IsInvalidClient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Record(ctx, tt.rec)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestForClientInMonth_InvalidPeriod(t *testing.T) {
	ctx, svc, c := setup(t)

	_, err := svc.ForClientInMonth(ctx, c.ID, types.Period{Month: 0, Year: 2024})
	assert.True(t, apperror.IsInvalidPeriod(err))
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, delivery.DaysInMonth(types.Period{Month: 2, Year: 2024}))
	assert.Equal(t, 28, delivery.DaysInMonth(types.Period{Month: 2, Year: 2023}))
	assert.Equal(t, 31, delivery.DaysInMonth(types.Period{Month: 3, Year: 2024}))
}

func TestRecords_AllIsRestartable(t *testing.T) {
	recs := delivery.Records{{Quantity: decimal.NewFromInt(1)}, {Quantity: decimal.NewFromInt(2)}}

	count := func() int {
		n := 0
		for range recs.All() {
			n++
		}
		return n
	}
	assert.Equal(t, 2, count())
	assert.Equal(t, 2, count())
}
