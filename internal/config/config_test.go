package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MemoryDriverWithDemoClients(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
auth:
  jwt_secret: 0123456789abcdef0123
demo:
  clients:
    - name: Sharma
      daily_quantity: "2"
      rate: "60"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "MLK", cfg.Billing.BillPrefix)
	assert.Equal(t, 24*time.Hour, cfg.Billing.IdempotencyTTL)
	assert.Equal(t, 1, cfg.Worker.GenerateDay)
	assert.Equal(t, "demo", cfg.Demo.TenantID)
	require.Len(t, cfg.Demo.Clients, 1)
	assert.Equal(t, "Sharma", cfg.Demo.Clients[0].Name)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
auth:
  jwt_secret: 0123456789abcdef0123
`)
	t.Setenv("DAIRYFLOW_BILLING_BILL_PREFIX", "DUD")
	t.Setenv("DAIRYFLOW_WORKER_GENERATE_DAY", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DUD", cfg.Billing.BillPrefix)
	assert.Equal(t, 3, cfg.Worker.GenerateDay)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "short jwt secret",
			body: "storage:\n  driver: memory\nauth:\n  jwt_secret: short\n",
		},
		{
			name: "postgres without meta url",
			body: "storage:\n  driver: postgres\nauth:\n  jwt_secret: 0123456789abcdef0123\ntenants:\n  db_user: app\n",
		},
		{
			name: "unknown driver",
			body: "storage:\n  driver: sqlite\nauth:\n  jwt_secret: 0123456789abcdef0123\n",
		},
		{
			name: "generate day past 28",
			body: "storage:\n  driver: memory\nauth:\n  jwt_secret: 0123456789abcdef0123\nworker:\n  generate_day: 31\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestTenantManager_AppliesOverrides(t *testing.T) {
	cfg := Configuration{Tenants: TenantsConfig{
		DBUser:          "app",
		DBPassword:      "secret",
		SSLMode:         "require",
		MaxPools:        5,
		MaxConnsPerPool: 3,
	}}

	mc := cfg.TenantManager()

	assert.Equal(t, "app", mc.DBUser)
	assert.Equal(t, "require", mc.SSLMode)
	assert.Equal(t, 5, mc.MaxTotalPools)
	assert.Equal(t, int32(3), mc.MaxConnsPerTenant)
	assert.Equal(t, 30*time.Minute, mc.PoolIdleTimeout)
}
