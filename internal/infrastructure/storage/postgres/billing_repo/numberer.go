package billing_repo

import (
	"context"
	"errors"

	"dairyflow/internal/core/tenant"
	"dairyflow/internal/core/types"
	"dairyflow/internal/domain/billing"
	"dairyflow/internal/infrastructure/storage/postgres"
	"dairyflow/pkg/numerator"
)

var errNoPrefix = errors.New("bill number prefix is empty")

// Numberer issues bill numbers from sys_sequences inside the current
// transaction, so a rolled back bill gives its number back.
type Numberer struct {
	prefix string
	seq    *numerator.Service
}

var _ billing.Numberer = (*Numberer)(nil)

// NewNumberer uses prefix unless the tenant in context carries its own.
func NewNumberer(prefix string) *Numberer {
	return &Numberer{
		prefix: prefix,
		seq: numerator.NewWithResolver(func(ctx context.Context) numerator.Querier {
			q, err := postgres.QuerierFrom(ctx)
			if err != nil {
				return nil
			}
			return q
		}),
	}
}

func (n *Numberer) NextBillNumber(ctx context.Context, period types.Period) (string, error) {
	if _, err := postgres.QuerierFrom(ctx); err != nil {
		return "", err
	}
	prefix := n.prefix
	if t := tenant.GetTenant(ctx); t != nil && t.BillPrefix != "" {
		prefix = t.BillPrefix
	}
	if prefix == "" {
		return "", errNoPrefix
	}
	return n.seq.Next(ctx, numerator.BillConfig(prefix), period.Start())
}
