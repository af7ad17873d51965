package dto

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"dairyflow/internal/core/apperror"
	"dairyflow/internal/core/id"
	"dairyflow/internal/core/types"
	"dairyflow/internal/domain/billing"
)

// --- Request DTOs ---

// GenerateBillsRequest starts monthly generation for a period.
type GenerateBillsRequest struct {
	Month int `json:"month" binding:"required"`
	Year  int `json:"year" binding:"required"`
}

func (r GenerateBillsRequest) Period() types.Period {
	return types.Period{Month: r.Month, Year: r.Year}
}

// CreateBillRequest creates one bill, optionally overriding quantity or rate.
type CreateBillRequest struct {
	ClientID string           `json:"clientId" binding:"required"`
	Month    int              `json:"month" binding:"required"`
	Year     int              `json:"year" binding:"required"`
	Quantity *decimal.Decimal `json:"quantity"`
	Rate     *decimal.Decimal `json:"rate"`
}

func (r CreateBillRequest) ToInput() (billing.CreateBillInput, error) {
	clientID, err := id.Parse(r.ClientID)
	if err != nil {
		return billing.CreateBillInput{}, apperror.NewValidation("invalid client id").
			WithDetail("clientId", r.ClientID)
	}
	return billing.CreateBillInput{
		ClientID:         clientID,
		Period:           types.Period{Month: r.Month, Year: r.Year},
		QuantityOverride: r.Quantity,
		RateOverride:     r.Rate,
	}, nil
}

// --- Response DTOs ---

// BillResponse is the wire form of a bill.
type BillResponse struct {
	ID               string          `json:"id"`
	Number           string          `json:"number"`
	ClientID         string          `json:"clientId"`
	Month            int             `json:"month"`
	Year             int             `json:"year"`
	Period           string          `json:"period"`
	TotalQuantity    decimal.Decimal `json:"totalQuantity"`
	Rate             decimal.Decimal `json:"rate"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	QuantitySource   string          `json:"quantitySource"`
	IsPaid           bool            `json:"isPaid"`
	DueDate          string          `json:"dueDate"`
	PaidDate         *time.Time      `json:"paidDate"`
	PaymentReference *string         `json:"paymentReference"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func FromBill(b *billing.Bill) BillResponse {
	return BillResponse{
		ID:               b.ID.String(),
		Number:           b.Number,
		ClientID:         b.ClientID.String(),
		Month:            b.Month,
		Year:             b.Year,
		Period:           b.Period().String(),
		TotalQuantity:    b.TotalQuantity,
		Rate:             b.Rate,
		TotalAmount:      b.TotalAmount,
		QuantitySource:   string(b.QuantitySource),
		IsPaid:           b.IsPaid,
		DueDate:          b.DueDate.Format(types.DateLayout),
		PaidDate:         b.PaidDate,
		PaymentReference: b.PaymentReference,
		Version:          b.Version,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func FromBills(bills []*billing.Bill) []BillResponse {
	return lo.Map(bills, func(b *billing.Bill, _ int) BillResponse { return FromBill(b) })
}

// FailureResponse reports a client that could not be billed.
type FailureResponse struct {
	ClientID string `json:"clientId"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// GenerationResponse summarizes a generation run.
type GenerationResponse struct {
	Period           string            `json:"period"`
	GeneratedCount   int               `json:"generatedCount"`
	Generated        []BillResponse    `json:"generated"`
	SkippedClientIDs []string          `json:"skippedClientIds"`
	Failures         []FailureResponse `json:"failures"`
}

func FromGeneration(r *billing.GenerationResult) GenerationResponse {
	return GenerationResponse{
		Period:           r.Period.String(),
		GeneratedCount:   r.GeneratedCount,
		Generated:        FromBills(r.Generated),
		SkippedClientIDs: lo.Map(r.SkippedClientIDs, func(v id.ID, _ int) string { return v.String() }),
		Failures: lo.Map(r.Failures, func(f billing.Failure, _ int) FailureResponse {
			code := apperror.CodeInternal
			msg := "internal error"
			if appErr, ok := apperror.AsAppError(f.Err); ok {
				code, msg = appErr.Code, appErr.Message
			}
			return FailureResponse{ClientID: f.ClientID.String(), Code: code, Message: msg}
		}),
	}
}
