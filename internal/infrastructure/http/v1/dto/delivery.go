package dto

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"dairyflow/internal/core/apperror"
	"dairyflow/internal/core/id"
	"dairyflow/internal/core/types"
	"dairyflow/internal/domain/delivery"
)

// RecordDeliveryRequest upserts one day of a client's ledger.
type RecordDeliveryRequest struct {
	ClientID  string          `json:"clientId" binding:"required"`
	Date      string          `json:"date" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Delivered *bool           `json:"delivered"`
}

// ToRecord defaults Delivered to true.
func (r RecordDeliveryRequest) ToRecord() (delivery.Record, error) {
	clientID, err := id.Parse(r.ClientID)
	if err != nil {
		return delivery.Record{}, apperror.NewValidation("invalid client id").WithDetail("clientId", r.ClientID)
	}
	day, err := types.ParseDate(r.Date)
	if err != nil {
		return delivery.Record{}, apperror.NewValidation("invalid date").WithDetail("date", r.Date)
	}
	return delivery.Record{
		ClientID:  clientID,
		Day:       day,
		Quantity:  r.Quantity,
		Delivered: lo.FromPtrOr(r.Delivered, true),
	}, nil
}

type DeliveryResponse struct {
	ClientID  string          `json:"clientId"`
	Date      string          `json:"date"`
	Quantity  decimal.Decimal `json:"quantity"`
	Delivered bool            `json:"delivered"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func FromRecord(r delivery.Record) DeliveryResponse {
	return DeliveryResponse{
		ClientID:  r.ClientID.String(),
		Date:      r.Day.Format(types.DateLayout),
		Quantity:  r.Quantity,
		Delivered: r.Delivered,
		UpdatedAt: r.UpdatedAt,
	}
}

// DeliveryMonthResponse is a client's ledger for one period.
type DeliveryMonthResponse struct {
	ClientID          string             `json:"clientId"`
	Period            string             `json:"period"`
	DaysInMonth       int                `json:"daysInMonth"`
	DeliveredQuantity decimal.Decimal    `json:"deliveredQuantity"`
	Items             []DeliveryResponse `json:"items"`
}

func FromRecords(clientID id.ID, period types.Period, recs delivery.Records) DeliveryMonthResponse {
	return DeliveryMonthResponse{
		ClientID:          clientID.String(),
		Period:            period.String(),
		DaysInMonth:       delivery.DaysInMonth(period),
		DeliveredQuantity: recs.DeliveredQuantity(),
		Items:             lo.Map(recs, func(r delivery.Record, _ int) DeliveryResponse { return FromRecord(r) }),
	}
}
