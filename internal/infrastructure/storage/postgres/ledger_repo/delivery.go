// Package ledger_repo stores daily delivery records in the tenant database.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"dairyflow/internal/core/id"
	"dairyflow/internal/domain/delivery"
	"dairyflow/internal/infrastructure/storage/postgres"
)

const tableDeliveries = "deliveries"

var deliveryColumns = postgres.Columns[delivery.Record]()

// DeliveryRepo implements delivery.Repository.
type DeliveryRepo struct{}

var _ delivery.Repository = (*DeliveryRepo)(nil)

func NewDeliveryRepo() *DeliveryRepo { return &DeliveryRepo{} }

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func upsert(rec *delivery.Record) squirrel.InsertBuilder {
	return builder().
		Insert(tableDeliveries).
		Columns(deliveryColumns...).
		Values(rec.ClientID, rec.Day, rec.Quantity, rec.Delivered, rec.UpdatedAt.UTC()).
		Suffix(`ON CONFLICT (client_id, day) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			delivered = EXCLUDED.delivered,
			updated_at = EXCLUDED.updated_at`)
}

// Upsert keeps one row per (client_id, day); a second write for a day replaces the first.
func (r *DeliveryRepo) Upsert(ctx context.Context, rec *delivery.Record) error {
	q, err := postgres.QuerierFrom(ctx)
	if err != nil {
		return err
	}
	sql, args, err := upsert(rec).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert delivery: %w", err)
	}
	return nil
}

func forClient(clientID id.ID, from, to time.Time) squirrel.SelectBuilder {
	return builder().
		Select(deliveryColumns...).
		From(tableDeliveries).
		Where(squirrel.Eq{"client_id": clientID}).
		Where(squirrel.GtOrEq{"day": from}).
		Where(squirrel.Lt{"day": to}).
		OrderBy("day")
}

func (r *DeliveryRepo) ListForClient(ctx context.Context, clientID id.ID, from, to time.Time) (delivery.Records, error) {
	q, err := postgres.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}
	sql, args, err := forClient(clientID, from, to).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var recs delivery.Records
	if err := pgxscan.Select(ctx, q, &recs, sql, args...); err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	for i := range recs {
		recs[i].Normalize()
	}
	return recs, nil
}
