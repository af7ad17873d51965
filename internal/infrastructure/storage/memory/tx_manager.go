package memory

import (
	"context"

	"dairyflow/internal/core/tenant"
	"dairyflow/internal/core/tx"
)

var _ tx.Manager = (*TxManager)(nil)

type txKey struct{}

// TxManager serializes transactions per tenant and restores the partition
// snapshot taken at BEGIN when fn fails or panics.
type TxManager struct {
	store *Store
}

func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	key := tenant.GetTenantID(ctx)
	lock := m.store.txLock(key)
	lock.Lock()
	defer lock.Unlock()

	snap := m.store.snapshot(key)
	defer func() {
		if p := recover(); p != nil {
			m.store.restore(key, snap)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.store.restore(key, snap)
		return err
	}
	return nil
}
