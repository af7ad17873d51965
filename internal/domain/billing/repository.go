package billing

import (
	"context"
	"errors"
	"time"

	"dairyflow/internal/core/id"
	"dairyflow/internal/core/types"
)

// ErrNoTransition is returned by conditional payment writes when no row matched
// the expected state. Callers re-read the bill to tell NotFound from a state conflict.
var ErrNoTransition = errors.New("bill not in expected payment state")

// Repository stores bills. Implementations enforce uniqueness of
// (ClientID, Month, Year) themselves.
type Repository interface {
	// Create inserts b, returning apperror DUPLICATE_BILL when the client is
	// already billed for the period.
	Create(ctx context.Context, b *Bill) error

	// GetByID returns apperror NotFound for unknown ids.
	GetByID(ctx context.Context, billID id.ID) (*Bill, error)

	ExistsForClientPeriod(ctx context.Context, clientID id.ID, period types.Period) (bool, error)

	// ListByPeriod is ordered by bill number.
	ListByPeriod(ctx context.Context, period types.Period) ([]*Bill, error)

	// ListByClient is ordered newest period first.
	ListByClient(ctx context.Context, clientID id.ID) ([]*Bill, error)

	// ListUnpaidDueBefore returns unpaid bills with DueDate < before.
	ListUnpaidDueBefore(ctx context.Context, before time.Time) ([]*Bill, error)

	// MarkPaid flips an unpaid bill to paid, or returns ErrNoTransition.
	MarkPaid(ctx context.Context, billID id.ID, paidAt time.Time, reference *string, now time.Time) (*Bill, error)

	// MarkUnpaid flips a paid bill to unpaid clearing payment data, or returns ErrNoTransition.
	MarkUnpaid(ctx context.Context, billID id.ID, now time.Time) (*Bill, error)
}

// Numberer issues human-readable bill numbers.
type Numberer interface {
	NextBillNumber(ctx context.Context, period types.Period) (string, error)
}
