package handlers

import (
	"github.com/gin-gonic/gin"

	"dairyflow/internal/domain/payment"
	"dairyflow/internal/infrastructure/http/v1/dto"
	"dairyflow/internal/observability/metrics"
)

// PaymentHandler serves payment confirmations and reversals.
type PaymentHandler struct {
	*BaseHandler
	payments *payment.Reconciler
}

func NewPaymentHandler(base *BaseHandler, payments *payment.Reconciler) *PaymentHandler {
	return &PaymentHandler{BaseHandler: base, payments: payments}
}

// MarkPaid handles POST /bills/:id/pay.
func (h *PaymentHandler) MarkPaid(c *gin.Context) {
	billID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.MarkPaidRequest
	if !h.BindJSON(c, &req) {
		return
	}
	paidAt, err := req.PaidAt()
	if err != nil {
		h.Error(c, err)
		return
	}

	bill, err := h.payments.MarkPaid(c.Request.Context(), billID, paidAt, req.ExternalReference)
	metrics.IncPaymentTransition(string(payment.KindPaid), err)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBill(bill))
}

// MarkUnpaid handles POST /bills/:id/unpay.
func (h *PaymentHandler) MarkUnpaid(c *gin.Context) {
	billID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.MarkUnpaidRequest
	if !h.BindJSON(c, &req) {
		return
	}

	bill, err := h.payments.MarkUnpaid(c.Request.Context(), billID, req.Reason)
	metrics.IncPaymentTransition(string(payment.KindUnpaid), err)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBill(bill))
}

// Callback handles POST /payments/callback from the payment gateway.
func (h *PaymentHandler) Callback(c *gin.Context) {
	var req dto.PaymentCallbackRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ev, err := req.ToEvent()
	if err != nil {
		h.Error(c, err)
		return
	}

	bill, err := h.payments.ApplyPayment(c.Request.Context(), ev)
	metrics.IncPaymentTransition(string(payment.KindPaid), err)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBill(bill))
}
