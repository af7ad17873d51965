package postgres

import (
	"context"
	"fmt"

	"dairyflow/internal/core/tenant"
)

// TxManagerFrom returns the *TxManager installed by the tenant middleware.
// Domain code depends on tx.Manager only; repositories use this to reach the querier.
func TxManagerFrom(ctx context.Context) (*TxManager, error) {
	txm, err := tenant.GetTxManager(ctx)
	if err != nil {
		return nil, err
	}
	pg, ok := txm.(*TxManager)
	if !ok || pg == nil {
		return nil, fmt.Errorf("tx manager in context has unexpected type %T", txm)
	}
	return pg, nil
}

// QuerierFrom returns the tenant querier for ctx.
func QuerierFrom(ctx context.Context) (Querier, error) {
	txm, err := TxManagerFrom(ctx)
	if err != nil {
		return nil, err
	}
	return txm.GetQuerier(ctx), nil
}
