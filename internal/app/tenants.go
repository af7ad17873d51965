package app

import (
	"context"

	"dairyflow/internal/core/tenant"
	"dairyflow/internal/infrastructure/storage/postgres"
)

// PoolTenants serves tenants from their own Postgres databases.
type PoolTenants struct {
	manager *tenant.Manager
}

var _ TenantSource = (*PoolTenants)(nil)

func NewPoolTenants(manager *tenant.Manager) *PoolTenants {
	return &PoolTenants{manager: manager}
}

func (p *PoolTenants) ListActive(ctx context.Context) ([]*tenant.Tenant, error) {
	return p.manager.ActiveTenants(ctx)
}

// Bind installs the tenant pool and a TxManager over it. The pool is
// referenced until release is called so idle eviction skips it.
func (p *PoolTenants) Bind(ctx context.Context, tenantID string) (context.Context, func(), error) {
	mp, err := p.manager.GetPool(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	mp.AcquireRef()

	ctx = tenant.WithPool(ctx, mp.Pool())
	ctx = tenant.WithTxManager(ctx, postgres.NewTxManager(mp.Pool()))
	ctx = tenant.WithTenant(ctx, mp.Tenant())
	return ctx, mp.ReleaseRef, nil
}
