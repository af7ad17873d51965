// Package memory is an in-process implementation of the billing stores,
// partitioned by the tenant found in the request context. It backs tests and
// the server's demo mode.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"dairyflow/internal/core/id"
	"dairyflow/internal/core/tenant"
	"dairyflow/internal/domain/audit"
	"dairyflow/internal/domain/billing"
	"dairyflow/internal/domain/client"
	"dairyflow/internal/domain/delivery"
)

type deliveryKey struct {
	clientID id.ID
	day      time.Time
}

type billKey struct {
	clientID    id.ID
	month, year int
}

// partition holds one tenant's data.
type partition struct {
	clients    map[id.ID]*client.Client
	deliveries map[deliveryKey]delivery.Record
	bills      map[id.ID]*billing.Bill
	billKeys   map[billKey]id.ID
	sequences  map[string]int64
	events     []billing.Event
	audit      []audit.Entry
}

func newPartition() *partition {
	return &partition{
		clients:    make(map[id.ID]*client.Client),
		deliveries: make(map[deliveryKey]delivery.Record),
		bills:      make(map[id.ID]*billing.Bill),
		billKeys:   make(map[billKey]id.ID),
		sequences:  make(map[string]int64),
	}
}

func (p *partition) clone() *partition {
	c := &partition{
		clients:    maps.Clone(p.clients),
		deliveries: maps.Clone(p.deliveries),
		bills:      make(map[id.ID]*billing.Bill, len(p.bills)),
		billKeys:   maps.Clone(p.billKeys),
		sequences:  maps.Clone(p.sequences),
		events:     append([]billing.Event(nil), p.events...),
		audit:      append([]audit.Entry(nil), p.audit...),
	}
	for k, b := range p.bills {
		c.bills[k] = b.Clone()
	}
	return c
}

// Store keeps every tenant's clients, deliveries and bills in maps.
type Store struct {
	mu      sync.RWMutex
	tenants map[string]*partition
	txLocks map[string]*sync.Mutex

	registry    map[string]*tenant.Tenant
	idempotency *idempotencyKeys
}

func NewStore() *Store {
	return &Store{
		tenants:     make(map[string]*partition),
		txLocks:     make(map[string]*sync.Mutex),
		registry:    make(map[string]*tenant.Tenant),
		idempotency: newIdempotencyKeys(),
	}
}

// read runs fn against the tenant partition under the read lock.
func (s *Store) read(ctx context.Context, fn func(p *partition)) {
	key := tenant.GetTenantID(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.tenants[key]
	if p == nil {
		p = newPartition()
	}
	fn(p)
}

// write runs fn against the tenant partition under the write lock.
func (s *Store) write(ctx context.Context, fn func(p *partition) error) error {
	key := tenant.GetTenantID(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.tenants[key]
	if p == nil {
		p = newPartition()
		s.tenants[key] = p
	}
	return fn(p)
}

// PutClient adds or replaces a client of the tenant in ctx.
func (s *Store) PutClient(ctx context.Context, c client.Client) {
	_ = s.write(ctx, func(p *partition) error {
		p.clients[c.ID] = &c
		return nil
	})
}

// DeleteBill removes a bill, freeing its period for regeneration.
func (s *Store) DeleteBill(ctx context.Context, billID id.ID) {
	_ = s.write(ctx, func(p *partition) error {
		if b, ok := p.bills[billID]; ok {
			delete(p.billKeys, billKey{b.ClientID, b.Month, b.Year})
			delete(p.bills, billID)
		}
		return nil
	})
}

// AuditEntries returns audit entries recorded for the tenant in ctx.
func (s *Store) AuditEntries(ctx context.Context) []audit.Entry {
	var out []audit.Entry
	s.read(ctx, func(p *partition) {
		out = append(out, p.audit...)
	})
	return out
}

// Events returns events published for the tenant in ctx.
func (s *Store) Events(ctx context.Context) []billing.Event {
	var out []billing.Event
	s.read(ctx, func(p *partition) {
		out = append(out, p.events...)
	})
	return out
}

func (s *Store) txLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.txLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.txLocks[key] = l
	}
	return l
}

func (s *Store) snapshot(key string) *partition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p := s.tenants[key]; p != nil {
		return p.clone()
	}
	return nil
}

func (s *Store) restore(key string, snap *partition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap == nil {
		delete(s.tenants, key)
		return
	}
	s.tenants[key] = snap
}
