package memory

import (
	"cmp"
	"context"
	"slices"

	"dairyflow/internal/core/tenant"
)

// AddTenant registers t so requests can bind to it.
func (s *Store) AddTenant(t tenant.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Status == "" {
		t.Status = tenant.StatusActive
	}
	s.registry[t.ID] = &t
}

// ListActive returns registered active tenants ordered by id.
func (s *Store) ListActive(ctx context.Context) ([]*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*tenant.Tenant
	for _, t := range s.registry {
		if t.IsActive() {
			cp := *t
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *tenant.Tenant) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// WithTenant returns ctx bound to t and the memory tx manager.
func (s *Store) WithTenant(ctx context.Context, t *tenant.Tenant) context.Context {
	ctx = tenant.WithTenant(ctx, t)
	return tenant.WithTxManager(ctx, NewTxManager(s))
}

// Bind resolves a registered tenant for a request.
func (s *Store) Bind(ctx context.Context, tenantID string) (context.Context, func(), error) {
	s.mu.RLock()
	t, ok := s.registry[tenantID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, tenant.ErrTenantNotFound
	}
	if !t.IsActive() {
		return nil, nil, tenant.ErrTenantNotActive
	}
	cp := *t
	return s.WithTenant(ctx, &cp), func() {}, nil
}
