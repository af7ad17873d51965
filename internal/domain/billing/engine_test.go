package billing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairyflow/internal/core/apperror"
	"dairyflow/internal/core/id"
	"dairyflow/internal/core/tenant"
	"dairyflow/internal/core/types"
	"dairyflow/internal/domain"
	"dairyflow/internal/domain/billing"
	"dairyflow/internal/domain/client"
	"dairyflow/internal/domain/delivery"
	"dairyflow/internal/infrastructure/storage/memory"
)

var (
	march2024 = types.Period{Month: 3, Year: 2024}
	fixedNow  = time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
)

type fixture struct {
	ctx    context.Context
	store  *memory.Store
	ledger *delivery.Service
	engine *billing.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	txm := memory.NewTxManager(store)
	ctx := tenant.WithTenant(context.Background(), &tenant.Tenant{ID: "t-1", BillPrefix: "MLK"})

	ledger := delivery.NewService(delivery.Config{
		Repo:      store.Deliveries(),
		Clients:   store.Clients(),
		Bills:     store.Bills(),
		TxManager: txm,
		Now:       func() time.Time { return fixedNow },
	})
	engine := billing.NewEngine(billing.EngineConfig{
		Bills:     store.Bills(),
		Clients:   store.Clients(),
		Ledger:    ledger,
		Numbers:   store.Numbers("MLK"),
		Events:    store.Outbox(),
		TxManager: txm,
		Now:       func() time.Time { return fixedNow },
	})
	return &fixture{ctx: ctx, store: store, ledger: ledger, engine: engine}
}

func (f *fixture) addClient(name, daily, rate string, active bool) client.Client {
	c := client.Client{
		ID:                   id.New(),
		Name:                 name,
		DefaultDailyQuantity: decimal.RequireFromString(daily),
		RatePerLiter:         decimal.RequireFromString(rate),
		IsActive:             active,
	}
	f.store.PutClient(f.ctx, c)
	return c
}

func ptr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestGenerateMonthlyBills_ProjectedWhenNoDeliveries(t *testing.T) {
	f := newFixture(t)
	c := f.addClient("Asha", "2", "45", true)

	res, err := f.engine.GenerateMonthlyBills(f.ctx, march2024)
	require.NoError(t, err)
	require.Equal(t, 1, res.GeneratedCount)

	bill := res.Generated[0]
	assert.Equal(t, c.ID, bill.ClientID)
	assert.Equal(t, "62", bill.TotalQuantity.String())
	assert.Equal(t, "2790", bill.TotalAmount.String())
	assert.Equal(t, billing.SourceProjected, bill.QuantitySource)
	assert.Equal(t, time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC), bill.DueDate)
	assert.False(t, bill.IsPaid)
	assert.Nil(t, bill.PaidDate)
	assert.Equal(t, "MLK-2024-03-00001", bill.Number)
}

func TestGenerateMonthlyBills_TrackedDeliveries(t *testing.T) {
	f := newFixture(t)
	c := f.addClient("Asha", "2", "45", true)

	// 31 delivered days: 27 days of 2L and 4 days of 1L.
	for day := 1; day <= 31; day++ {
		qty := "2"
		if day%7 == 0 {
			qty = "1"
		}
		_, err := f.ledger.Record(f.ctx, delivery.Record{
			ClientID:  c.ID,
			Day:       time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
			Quantity:  decimal.RequireFromString(qty),
			Delivered: true,
		})
		require.NoError(t, err)
	}

	res, err := f.engine.GenerateMonthlyBills(f.ctx, march2024)
	require.NoError(t, err)
	require.Equal(t, 1, res.GeneratedCount)

	bill := res.Generated[0]
	assert.Equal(t, "58", bill.TotalQuantity.String())
	assert.Equal(t, "2610", bill.TotalAmount.String())
	assert.Equal(t, billing.SourceTracked, bill.QuantitySource)
}

func TestGenerateMonthlyBills_UndeliveredDaysDoNotCount(t *testing.T) {
	f := newFixture(t)
	c := f.addClient("Ravi", "3", "50", true)

	for _, rec := range []delivery.Record{
		{ClientID: c.ID, Day: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Quantity: decimal.NewFromInt(3), Delivered: true},
		{ClientID: c.ID, Day: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), Quantity: decimal.NewFromInt(3), Delivered: false},
	} {
		_, err := f.ledger.Record(f.ctx, rec)
		require.NoError(t, err)
	}

	res, err := f.engine.GenerateMonthlyBills(f.ctx, march2024)
	require.NoError(t, err)
	require.Len(t, res.Generated, 1)
	assert.Equal(t, "3", res.Generated[0].TotalQuantity.String())
	assert.Equal(t, billing.SourceTracked, res.Generated[0].QuantitySource)
}

func TestGenerateMonthlyBills_Idempotent(t *testing.T) {
	f := newFixture(t)
	a := f.addClient("A", "1", "40", true)
	b := f.addClient("B", "2", "40", true)
	f.addClient("Inactive", "2", "40", false)

	first, err := f.engine.GenerateMonthlyBills(f.ctx, march2024)
	require.NoError(t, err)
	assert.Equal(t, 2, first.GeneratedCount)

	second, err := f.engine.GenerateMonthlyBills(f.ctx, march2024)
	require.NoError(t, err)
	assert.Equal(t, 0, second.GeneratedCount)
	assert.ElementsMatch(t, []id.ID{a.ID, b.ID}, second.SkippedClientIDs)
	assert.Empty(t, second.Failures)

	bills, err := f.engine.GetBillsForPeriod(f.ctx, march2024)
	require.NoError(t, err)
	assert.Len(t, bills, 2)
}

func TestGenerateMonthlyBills_ConcurrentRunsCreateOneBillPerClient(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.addClient(string(rune('a'+i)), "1", "40", true)
	}

	const runs = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.engine.GenerateMonthlyBills(f.ctx, march2024)
			assert.NoError(t, err)
			if res != nil {
				assert.Empty(t, res.Failures)
				mu.Lock()
				total += res.GeneratedCount
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	bills, err := f.engine.GetBillsForPeriod(f.ctx, march2024)
	require.NoError(t, err)
	assert.Len(t, bills, 5)
	assert.Equal(t, 5, total)
}

func TestGenerateMonthlyBills_InvalidClientDataIsAFailure(t *testing.T) {
	f := newFixture(t)
	good := f.addClient("Good", "1", "40", true)
	bad := f.addClient("Bad", "1", "0", true)

	res, err := f.engine.GenerateMonthlyBills(f.ctx, march2024)
	require.NoError(t, err)
	require.Len(t, res.Generated, 1)
	assert.Equal(t, good.ID, res.Generated[0].ClientID)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, bad.ID, res.Failures[0].ClientID)
	assert.True(t, apperror.IsValidation(res.Failures[0].Err))
}

func TestGenerateMonthlyBills_InvalidPeriod(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.GenerateMonthlyBills(f.ctx, types.Period{Month: 13, Year: 2024})
	assert.True(t, apperror.IsInvalidPeriod(err))
}

func TestGenerateMonthlyBills_DecemberDueInJanuary(t *testing.T) {
	f := newFixture(t)
	f.addClient("A", "1", "40", true)

	res, err := f.engine.GenerateMonthlyBills(f.ctx, types.Period{Month: 12, Year: 2024})
	require.NoError(t, err)
	require.Len(t, res.Generated, 1)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), res.Generated[0].DueDate)
}

func TestGenerateMonthlyBills_PublishesEvents(t *testing.T) {
	f := newFixture(t)
	f.addClient("A", "1", "40", true)

	_, err := f.engine.GenerateMonthlyBills(f.ctx, march2024)
	require.NoError(t, err)

	events := f.store.Events(f.ctx)
	require.Len(t, events, 1)
	assert.Equal(t, billing.EventBillGenerated, events[0].Type)
}

func TestGenerateMonthlyBills_TenantsAreIsolated(t *testing.T) {
	f := newFixture(t)
	f.addClient("A", "1", "40", true)

	other := tenant.WithTenant(context.Background(), &tenant.Tenant{ID: "t-2"})
	res, err := f.engine.GenerateMonthlyBills(other, march2024)
	require.NoError(t, err)
	assert.Equal(t, 0, res.GeneratedCount)
	assert.Empty(t, res.SkippedClientIDs)
}

func TestCreateBill(t *testing.T) {
	tests := []struct {
		name       string
		quantity   *decimal.Decimal
		rate       *decimal.Decimal
		wantQty    string
		wantAmount string
		wantSource billing.QuantitySource
	}{
		{"no overrides", nil, nil, "62", "2790", billing.SourceProjected},
		{"quantity override", ptr("50"), nil, "50", "2250", billing.SourceManual},
		{"rate override", nil, ptr("40.5"), "62", "2511", billing.SourceManual},
		{"both overrides", ptr("10.5"), ptr("48"), "10.5", "504", billing.SourceManual},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.addClient("Asha", "2", "45", true)

			bill, err := f.engine.CreateBill(f.ctx, billing.CreateBillInput{
				ClientID:         c.ID,
				Period:           march2024,
				QuantityOverride: tt.quantity,
				RateOverride:     tt.rate,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantQty, bill.TotalQuantity.String())
			assert.Equal(t, tt.wantAmount, bill.TotalAmount.String())
			assert.Equal(t, tt.wantSource, bill.QuantitySource)
			assert.True(t, bill.TotalAmount.Equal(types.Amount(bill.TotalQuantity, bill.Rate)))
		})
	}
}

func TestCreateBill_DuplicateRegardlessOfOverrides(t *testing.T) {
	f := newFixture(t)
	c := f.addClient("Asha", "2", "45", true)

	_, err := f.engine.CreateBill(f.ctx, billing.CreateBillInput{ClientID: c.ID, Period: march2024})
	require.NoError(t, err)

	for _, in := range []billing.CreateBillInput{
		{ClientID: c.ID, Period: march2024},
		{ClientID: c.ID, Period: march2024, QuantityOverride: ptr("99")},
		{ClientID: c.ID, Period: march2024, QuantityOverride: ptr("-1"), RateOverride: ptr("0")},
	} {
		_, err := f.engine.CreateBill(f.ctx, in)
		assert.True(t, apperror.IsDuplicateBill(err), "got %v", err)
	}
}

func TestCreateBill_Errors(t *testing.T) {
	f := newFixture(t)
	active := f.addClient("Active", "2", "45", true)
	inactive := f.addClient("Inactive", "2", "45", false)

	tests := []struct {
		name  string
		in    billing.CreateBillInput
		check func(error) bool
	}{
		{"invalid month", billing.CreateBillInput{ClientID: active.ID, Period: types.Period{Month: 0, Year: 2024}}, apperror.IsInvalidPeriod},
		{"unknown client", billing.CreateBillInput{ClientID: id.New(), Period: march2024}, apperror.IsInvalidClient},
		{"inactive client", billing.CreateBillInput{ClientID: inactive.ID, Period: march2024}, apperror.IsInvalidClient},
		{"zero quantity", billing.CreateBillInput{ClientID: active.ID, Period: march2024, QuantityOverride: ptr("0")}, apperror.IsValidation},
		{"negative rate", billing.CreateBillInput{ClientID: active.ID, Period: march2024, RateOverride: ptr("-3")}, apperror.IsValidation},
		{"year before 2000", billing.CreateBillInput{ClientID: active.ID, Period: types.Period{Month: 5, Year: 1950}}, apperror.IsInvalidPeriod},
		{"quantity beyond liter scale", billing.CreateBillInput{ClientID: active.ID, Period: march2024, QuantityOverride: ptr("10.12345")}, apperror.IsValidation},
		{"rate beyond money scale", billing.CreateBillInput{ClientID: active.ID, Period: march2024, RateOverride: ptr("1.333")}, apperror.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateBill(f.ctx, tt.in)
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestGetBillsForClient_NewestFirst(t *testing.T) {
	f := newFixture(t)
	c := f.addClient("Asha", "2", "45", true)

	for _, p := range []types.Period{{Month: 1, Year: 2024}, {Month: 3, Year: 2024}, {Month: 12, Year: 2023}} {
		_, err := f.engine.CreateBill(f.ctx, billing.CreateBillInput{ClientID: c.ID, Period: p})
		require.NoError(t, err)
	}

	bills, err := f.engine.GetBillsForClient(f.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, bills, 3)
	assert.Equal(t, types.Period{Month: 3, Year: 2024}, bills[0].Period())
	assert.Equal(t, types.Period{Month: 12, Year: 2023}, bills[2].Period())
}

func TestGetBill_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.GetBill(f.ctx, id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestDeliveryRecord_BilledPeriodIsClosed(t *testing.T) {
	f := newFixture(t)
	c := f.addClient("Asha", "2", "45", true)

	_, err := f.engine.CreateBill(f.ctx, billing.CreateBillInput{ClientID: c.ID, Period: march2024})
	require.NoError(t, err)

	_, err = f.ledger.Record(f.ctx, delivery.Record{
		ClientID:  c.ID,
		Day:       time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Quantity:  decimal.NewFromInt(2),
		Delivered: true,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodePeriodClosed), "got %v", err)
}

func TestHookFailureRollsBackBill(t *testing.T) {
	f := newFixture(t)
	c := f.addClient("Asha", "2", "45", true)

	f.engine.Hooks().On(domain.AfterBillCreated, func(context.Context, *billing.Bill) error {
		return apperror.NewValidation("rejected by hook")
	})

	_, err := f.engine.CreateBill(f.ctx, billing.CreateBillInput{ClientID: c.ID, Period: march2024})
	require.Error(t, err)

	bills, err := f.engine.GetBillsForClient(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, bills)
	assert.Empty(t, f.store.Events(f.ctx))
}
