// Package billing turns delivery ledgers into monthly bills.
package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"dairyflow/internal/core/apperror"
	"dairyflow/internal/core/entity"
	"dairyflow/internal/core/id"
	"dairyflow/internal/core/types"
)

// QuantitySource tells how TotalQuantity was obtained.
type QuantitySource string

const (
	// SourceTracked sums delivered records of the ledger.
	SourceTracked QuantitySource = "tracked"
	// SourceProjected is days in month times the client's default daily quantity.
	SourceProjected QuantitySource = "projected"
	// SourceManual means an operator supplied quantity or rate.
	SourceManual QuantitySource = "manual"
)

// Bill is the monthly invoice of one client.
type Bill struct {
	entity.BaseEntity

	Number           string          `db:"number" json:"number"`
	ClientID         id.ID           `db:"client_id" json:"clientId"`
	Month            int             `db:"month" json:"month"`
	Year             int             `db:"year" json:"year"`
	TotalQuantity    decimal.Decimal `db:"total_quantity" json:"totalQuantity"`
	Rate             decimal.Decimal `db:"rate" json:"rate"`
	TotalAmount      decimal.Decimal `db:"total_amount" json:"totalAmount"`
	QuantitySource   QuantitySource  `db:"quantity_source" json:"quantitySource"`
	IsPaid           bool            `db:"is_paid" json:"isPaid"`
	DueDate          time.Time       `db:"due_date" json:"dueDate"`
	PaidDate         *time.Time      `db:"paid_date" json:"paidDate,omitempty"`
	PaymentReference *string         `db:"payment_reference" json:"paymentReference,omitempty"`
}

// NewBill builds an unpaid bill with the amount and due date derived from its inputs.
func NewBill(clientID id.ID, period types.Period, quantity, rate decimal.Decimal, source QuantitySource, now time.Time) *Bill {
	return &Bill{
		BaseEntity:     entity.NewBaseEntity(now),
		ClientID:       clientID,
		Month:          period.Month,
		Year:           period.Year,
		TotalQuantity:  quantity,
		Rate:           rate,
		TotalAmount:    types.Amount(quantity, rate),
		QuantitySource: source,
		DueDate:        period.DueDate(),
	}
}

// Period is the billed month.
func (b *Bill) Period() types.Period {
	return types.Period{Month: b.Month, Year: b.Year}
}

// Validate checks the bill invariants.
func (b *Bill) Validate() error {
	if !b.Period().Valid() {
		return apperror.NewInvalidPeriod(b.Month, b.Year)
	}
	if b.TotalQuantity.IsNegative() {
		return apperror.NewValidation("total quantity must not be negative")
	}
	if b.TotalAmount.IsNegative() {
		return apperror.NewValidation("total amount must not be negative")
	}
	if !b.TotalAmount.Equal(types.Amount(b.TotalQuantity, b.Rate)) {
		return apperror.NewValidation("total amount does not match quantity and rate").
			WithDetail("total_amount", b.TotalAmount.String())
	}
	if !b.DueDate.Equal(b.Period().DueDate()) {
		return apperror.NewValidation("due date does not follow the billing period")
	}
	if b.IsPaid != (b.PaidDate != nil) {
		return apperror.NewValidation("paid date must be set exactly when the bill is paid")
	}
	return nil
}

// Clone returns a deep copy.
func (b *Bill) Clone() *Bill {
	c := *b
	if b.PaidDate != nil {
		d := *b.PaidDate
		c.PaidDate = &d
	}
	if b.PaymentReference != nil {
		r := *b.PaymentReference
		c.PaymentReference = &r
	}
	return &c
}
