package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dairyflow/pkg/logger"
)

// ManagerConfig controls per-tenant pools.
type ManagerConfig struct {
	DBUser     string
	DBPassword string
	SSLMode    string

	MaxConnsPerTenant int32
	MinConnsPerTenant int32
	ConnectTimeout    time.Duration

	MaxTotalPools     int           // 0 = unlimited
	PoolIdleTimeout   time.Duration // 0 = never evict
	HealthCheckPeriod time.Duration // 0 = no health checks
}

// DefaultManagerConfig returns production defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxConnsPerTenant: 8,
		MinConnsPerTenant: 1,
		ConnectTimeout:    10 * time.Second,
		MaxTotalPools:     100,
		PoolIdleTimeout:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

// ManagedPool is a tenant pool with usage tracking.
type ManagedPool struct {
	pool     *pgxpool.Pool
	tenant   *Tenant
	lastUsed atomic.Int64
	refs     atomic.Int32
	failing  atomic.Bool
}

func (mp *ManagedPool) Pool() *pgxpool.Pool { return mp.pool }
func (mp *ManagedPool) Tenant() *Tenant     { return mp.tenant }

// AcquireRef marks the pool as used by an in-flight request.
func (mp *ManagedPool) AcquireRef() {
	mp.refs.Add(1)
	mp.lastUsed.Store(time.Now().Unix())
}

// ReleaseRef undoes AcquireRef.
func (mp *ManagedPool) ReleaseRef() {
	mp.refs.Add(-1)
}

// Manager opens tenant pools lazily and closes idle or failing ones.
type Manager struct {
	config   ManagerConfig
	registry Registry

	mu    sync.Mutex // serializes pool creation
	pools sync.Map   // tenantID -> *ManagedPool
	count atomic.Int32

	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logger.Logger
}

// NewManager starts the maintenance loop when eviction or health checks are enabled.
func NewManager(cfg ManagerConfig, registry Registry, log *logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:   cfg,
		registry: registry,
		cancel:   cancel,
		log:      log.WithComponent("tenant-manager"),
	}

	if interval := m.maintenanceInterval(); interval > 0 {
		m.wg.Add(1)
		go m.maintain(ctx, interval)
	}

	m.log.Infow("tenant manager started",
		"max_pools", cfg.MaxTotalPools,
		"idle_timeout", cfg.PoolIdleTimeout,
	)
	return m
}

// Registry exposes the tenant registry.
func (m *Manager) Registry() Registry {
	return m.registry
}

// ActiveTenants lists tenants that may be served.
func (m *Manager) ActiveTenants(ctx context.Context) ([]*Tenant, error) {
	return m.registry.ListActive(ctx)
}

// GetPool returns the tenant pool, opening it on first use.
func (m *Manager) GetPool(ctx context.Context, tenantID string) (*ManagedPool, error) {
	if v, ok := m.pools.Load(tenantID); ok {
		mp := v.(*ManagedPool)
		mp.lastUsed.Store(time.Now().Unix())
		return mp, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.pools.Load(tenantID); ok {
		return v.(*ManagedPool), nil
	}
	return m.open(ctx, tenantID)
}

func (m *Manager) open(ctx context.Context, tenantID string) (*ManagedPool, error) {
	if m.config.MaxTotalPools > 0 && int(m.count.Load()) >= m.config.MaxTotalPools {
		return nil, fmt.Errorf("%w (%d)", ErrMaxPoolLimit, m.config.MaxTotalPools)
	}

	t, err := m.registry.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("tenant lookup: %w", err)
	}
	if !t.IsActive() {
		return nil, fmt.Errorf("%w: status=%s", ErrTenantNotActive, t.Status)
	}

	poolCfg, err := pgxpool.ParseConfig(t.DSN(m.config.DBUser, m.config.DBPassword, m.config.SSLMode))
	if err != nil {
		return nil, fmt.Errorf("parse dsn for tenant %s: %w", tenantID, err)
	}
	poolCfg.MaxConns = m.config.MaxConnsPerTenant
	poolCfg.MinConns = m.config.MinConnsPerTenant
	poolCfg.ConnConfig.ConnectTimeout = m.config.ConnectTimeout
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET application_name = 'dairyflow'")
		return err
	}

	openCtx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(openCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pool for tenant %s: %w", tenantID, err)
	}
	if err := pool.Ping(openCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping tenant %s: %w", tenantID, err)
	}

	mp := &ManagedPool{pool: pool, tenant: t}
	mp.lastUsed.Store(time.Now().Unix())
	m.pools.Store(tenantID, mp)
	m.count.Add(1)

	m.log.Infow("opened tenant pool",
		"tenant_id", tenantID,
		"db_name", t.DBName,
		"total_pools", m.count.Load(),
	)
	return mp, nil
}

func (m *Manager) maintenanceInterval() time.Duration {
	interval := m.config.HealthCheckPeriod
	if idle := m.config.PoolIdleTimeout / 2; idle > 0 && (interval == 0 || idle < interval) {
		interval = idle
	}
	return interval
}

func (m *Manager) maintain(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// sweep pings pools and closes those that are idle or failing. Pools with
// in-flight requests are never closed.
func (m *Manager) sweep(ctx context.Context) {
	var idleBefore int64
	if m.config.PoolIdleTimeout > 0 {
		idleBefore = time.Now().Add(-m.config.PoolIdleTimeout).Unix()
	}

	m.pools.Range(func(key, value any) bool {
		tenantID := key.(string)
		mp := value.(*ManagedPool)

		if m.config.HealthCheckPeriod > 0 {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := mp.pool.Ping(pingCtx)
			cancel()
			if err != nil {
				m.log.Warnw("tenant pool health check failed", "tenant_id", tenantID, "error", err)
			}
			mp.failing.Store(err != nil)
		}

		if mp.refs.Load() > 0 {
			return true
		}
		switch {
		case mp.failing.Load():
			m.close(tenantID, mp, "health check failed")
		case idleBefore > 0 && mp.lastUsed.Load() < idleBefore:
			m.close(tenantID, mp, "idle timeout")
		}
		return true
	})
}

func (m *Manager) close(tenantID string, mp *ManagedPool, reason string) {
	m.pools.Delete(tenantID)
	mp.pool.Close()
	m.count.Add(-1)
	m.log.Infow("closed tenant pool", "tenant_id", tenantID, "reason", reason, "total_pools", m.count.Load())
}

// Close stops maintenance and closes all pools.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()

	closed := 0
	m.pools.Range(func(key, value any) bool {
		value.(*ManagedPool).pool.Close()
		m.pools.Delete(key)
		closed++
		return true
	})
	m.log.Infow("tenant manager closed", "pools_closed", closed)
}

// Stats summarizes open pools.
type Stats struct {
	TotalPools    int `json:"totalPools"`
	TotalConns    int `json:"totalConns"`
	AcquiredConns int `json:"acquiredConns"`
	ActiveRefs    int `json:"activeRefs"`
}

func (m *Manager) Stats() Stats {
	s := Stats{TotalPools: int(m.count.Load())}
	m.pools.Range(func(_, value any) bool {
		mp := value.(*ManagedPool)
		st := mp.pool.Stat()
		s.TotalConns += int(st.TotalConns())
		s.AcquiredConns += int(st.AcquiredConns())
		s.ActiveRefs += int(mp.refs.Load())
		return true
	})
	return s
}
