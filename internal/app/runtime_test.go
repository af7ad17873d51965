package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairyflow/internal/config"
	"dairyflow/internal/core/types"
	"dairyflow/internal/infrastructure/storage/postgres"
	"dairyflow/pkg/logger"
)

func memoryConfig() *config.Configuration {
	return &config.Configuration{
		Storage: config.StorageConfig{Driver: config.DriverMemory},
		Billing: config.BillingConfig{BillPrefix: "MLK"},
		Worker:  config.WorkerConfig{OutboxBatch: 10},
		Demo: config.DemoConfig{
			TenantID: "demo",
			Clients: []config.DemoClient{
				{Name: "Sharma", DailyQuantity: "2", Rate: "60"},
				{Name: "Iyer", DailyQuantity: "1.5", Rate: "58"},
			},
		},
	}
}

func TestNewRuntime_Memory(t *testing.T) {
	ctx := context.Background()
	rt, err := NewRuntime(ctx, memoryConfig(), logger.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.Manager)
	tenants, err := rt.Tenants.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	assert.Equal(t, "demo", tenants[0].ID)

	bound, release, err := rt.Tenants.Bind(ctx, "demo")
	require.NoError(t, err)
	defer release()

	res, err := rt.Services.Billing.GenerateMonthlyBills(bound, types.Period{Month: 2, Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, 2, res.GeneratedCount)

	n, err := rt.RelayOutbox(bound, postgres.OutboxHandlerFunc(func(context.Context, *postgres.OutboxMessage) error {
		t.Fatal("memory runtime has no relay")
		return nil
	}))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSeedDemo_RejectsBadClient(t *testing.T) {
	cfg := memoryConfig()
	cfg.Demo.Clients[1].Rate = "0"

	_, err := NewRuntime(context.Background(), cfg, logger.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Iyer")
}
