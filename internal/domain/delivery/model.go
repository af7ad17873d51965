// Package delivery is the per-client, per-day ledger of milk deliveries.
package delivery

import (
	"iter"
	"time"

	"github.com/shopspring/decimal"

	"dairyflow/internal/core/apperror"
	"dairyflow/internal/core/id"
	"dairyflow/internal/core/types"
)

// Record is one day's delivery outcome for one client. The ledger keeps at
// most one record per (ClientID, Day).
type Record struct {
	ClientID  id.ID           `db:"client_id" json:"clientId"`
	Day       time.Time       `db:"day" json:"date"`
	Quantity  decimal.Decimal `db:"quantity" json:"quantity"`
	Delivered bool            `db:"delivered" json:"delivered"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// Normalize truncates Day to its UTC calendar day.
func (r *Record) Normalize() {
	r.Day = types.DateOf(r.Day)
}

// Validate checks record fields without touching storage.
func (r *Record) Validate() error {
	if id.IsNil(r.ClientID) {
		return apperror.NewValidation("client id is required")
	}
	if r.Day.IsZero() {
		return apperror.NewValidation("delivery date is required")
	}
	if r.Quantity.IsNegative() {
		return apperror.NewValidation("quantity must not be negative").
			WithDetail("quantity", r.Quantity.String())
	}
	if !types.FitsScale(r.Quantity, types.QuantityScale) {
		return apperror.NewValidation("quantity has more than 3 decimal places").
			WithDetail("quantity", r.Quantity.String())
	}
	return nil
}

// Records is a client's ordered deliveries for a period.
type Records []Record

// All yields records in date order. The sequence can be ranged over repeatedly.
func (rs Records) All() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, r := range rs {
			if !yield(r) {
				return
			}
		}
	}
}

// DeliveredQuantity sums quantities of records flagged as delivered.
func (rs Records) DeliveredQuantity() decimal.Decimal {
	total := decimal.Zero
	for r := range rs.All() {
		if r.Delivered {
			total = total.Add(r.Quantity)
		}
	}
	return total
}
