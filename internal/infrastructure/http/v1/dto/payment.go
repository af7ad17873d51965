package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"dairyflow/internal/core/apperror"
	"dairyflow/internal/core/id"
	"dairyflow/internal/core/types"
	"dairyflow/internal/domain/payment"
)

// MarkPaidRequest confirms payment of a bill. PaidDate is YYYY-MM-DD or
// RFC 3339; empty means now.
type MarkPaidRequest struct {
	PaidDate          string `json:"paidDate"`
	ExternalReference string `json:"externalReference" binding:"max=128"`
}

func (r MarkPaidRequest) PaidAt() (time.Time, error) {
	return parseInstant("paidDate", r.PaidDate)
}

// MarkUnpaidRequest reverts a payment.
type MarkUnpaidRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// PaymentCallbackRequest is the gateway's payment confirmation.
type PaymentCallbackRequest struct {
	BillID            string          `json:"billId" binding:"required"`
	ExternalReference string          `json:"externalReference" binding:"required,max=128"`
	Amount            decimal.Decimal `json:"amount"`
	ConfirmedAt       string          `json:"confirmedAt" binding:"required"`
}

func (r PaymentCallbackRequest) ToEvent() (payment.Event, error) {
	billID, err := id.Parse(r.BillID)
	if err != nil {
		return payment.Event{}, apperror.NewValidation("invalid bill id").WithDetail("billId", r.BillID)
	}
	at, err := parseInstant("confirmedAt", r.ConfirmedAt)
	if err != nil {
		return payment.Event{}, err
	}
	return payment.Event{
		BillID:            billID,
		ExternalReference: r.ExternalReference,
		Amount:            r.Amount,
		ConfirmedAt:       at,
	}, nil
}

func parseInstant(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := types.ParseDate(s)
	if err != nil {
		return time.Time{}, apperror.NewValidation("invalid date").WithDetail(field, s)
	}
	return t, nil
}
