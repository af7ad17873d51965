package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"dairyflow/internal/config"
	"dairyflow/internal/core/id"
	"dairyflow/internal/core/tenant"
	"dairyflow/internal/domain/client"
	"dairyflow/internal/infrastructure/storage/memory"
	"dairyflow/internal/infrastructure/storage/postgres"
	"dairyflow/pkg/logger"
)

// KeyStore is the idempotency store used by HTTP middleware and the worker.
type KeyStore interface {
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	ReleaseKey(ctx context.Context, key string) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// Runtime is everything a process needs for one storage driver.
type Runtime struct {
	Tenants     TenantSource
	Services    *Services
	Idempotency KeyStore

	// Meta and Manager are nil for the memory driver.
	Meta    *pgxpool.Pool
	Manager *tenant.Manager

	outboxBatch int
	closers     []func()
}

// NewRuntime connects the configured storage and assembles the services.
func NewRuntime(ctx context.Context, cfg *config.Configuration, log *logger.Logger) (*Runtime, error) {
	opts := Options{AuditPaid: cfg.Billing.AuditPaid}
	rt := &Runtime{outboxBatch: cfg.Worker.OutboxBatch}

	if cfg.Storage.Driver == config.DriverMemory {
		store := memory.NewStore()
		if err := SeedDemo(ctx, store, cfg); err != nil {
			return nil, err
		}
		rt.Tenants = store
		rt.Services = NewServices(MemoryStores(store, cfg.Billing.BillPrefix), opts)
		rt.Idempotency = store.Idempotency(cfg.Billing.IdempotencyTTL)
		log.Infow("using in-memory storage", "demo_tenant", cfg.Demo.TenantID, "clients", len(cfg.Demo.Clients))
		return rt, nil
	}

	meta, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Meta.URL))
	if err != nil {
		return nil, fmt.Errorf("connect meta database: %w", err)
	}
	rt.Meta = meta
	rt.closers = append(rt.closers, meta.Close)

	mc := cfg.TenantManager()
	rt.Manager = tenant.NewManager(mc, tenant.NewPostgresRegistry(meta), log)
	rt.closers = append(rt.closers, rt.Manager.Close)
	log.Infow("tenant manager initialized",
		"max_pools", mc.MaxTotalPools,
		"max_conns_per_tenant", mc.MaxConnsPerTenant,
		"idle_timeout", mc.PoolIdleTimeout,
	)

	stores, err := PostgresStores(cfg.Billing.BillPrefix)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Tenants = NewPoolTenants(rt.Manager)
	rt.Services = NewServices(stores, opts)
	rt.Idempotency = postgres.NewIdempotencyStore(cfg.Billing.IdempotencyTTL)
	return rt, nil
}

// RelayOutbox publishes pending outbox messages of the tenant bound to ctx.
// The memory driver has no relay and reports zero.
func (r *Runtime) RelayOutbox(ctx context.Context, handler postgres.OutboxHandler) (int, error) {
	if r.Manager == nil {
		return 0, nil
	}
	pool, err := tenant.GetPool(ctx)
	if err != nil {
		return 0, err
	}
	return postgres.NewOutboxRelay(pool, r.outboxBatch, handler).ProcessBatch(ctx)
}

// Close releases pools in reverse order of creation.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// SeedDemo registers the demo tenant and its clients in store.
func SeedDemo(ctx context.Context, store *memory.Store, cfg *config.Configuration) error {
	store.AddTenant(tenant.Tenant{
		ID:          cfg.Demo.TenantID,
		Slug:        cfg.Demo.TenantID,
		DisplayName: "Demo dairy",
		BillPrefix:  cfg.Billing.BillPrefix,
	})

	ctx, release, err := store.Bind(ctx, cfg.Demo.TenantID)
	if err != nil {
		return fmt.Errorf("bind demo tenant: %w", err)
	}
	defer release()

	for _, dc := range cfg.Demo.Clients {
		qty, err := decimal.NewFromString(dc.DailyQuantity)
		if err != nil {
			return fmt.Errorf("demo client %q: daily quantity: %w", dc.Name, err)
		}
		rate, err := decimal.NewFromString(dc.Rate)
		if err != nil {
			return fmt.Errorf("demo client %q: rate: %w", dc.Name, err)
		}
		c := client.Client{
			ID:                   id.New(),
			Name:                 dc.Name,
			DefaultDailyQuantity: qty,
			RatePerLiter:         rate,
			IsActive:             true,
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("demo client %q: %w", dc.Name, err)
		}
		store.PutClient(ctx, c)
	}
	return nil
}
