package delivery

import (
	"context"
	"time"

	"dairyflow/internal/core/id"
	"dairyflow/internal/core/types"
)

// Repository persists delivery records.
type Repository interface {
	// Upsert replaces the record stored for (ClientID, Day) or inserts a new one.
	Upsert(ctx context.Context, rec *Record) error

	// ListForClient returns records with from <= Day < to ordered by Day.
	ListForClient(ctx context.Context, clientID id.ID, from, to time.Time) (Records, error)
}

// BillLookup reports whether a period has already been billed for a client.
type BillLookup interface {
	ExistsForClientPeriod(ctx context.Context, clientID id.ID, period types.Period) (bool, error)
}
