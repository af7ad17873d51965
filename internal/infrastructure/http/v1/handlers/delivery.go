package handlers

import (
	"github.com/gin-gonic/gin"

	"dairyflow/internal/domain/delivery"
	"dairyflow/internal/infrastructure/http/v1/dto"
)

// DeliveryHandler serves the delivery ledger.
type DeliveryHandler struct {
	*BaseHandler
	ledger *delivery.Service
}

func NewDeliveryHandler(base *BaseHandler, ledger *delivery.Service) *DeliveryHandler {
	return &DeliveryHandler{BaseHandler: base, ledger: ledger}
}

// Record handles PUT /deliveries.
func (h *DeliveryHandler) Record(c *gin.Context) {
	var req dto.RecordDeliveryRequest
	if !h.BindJSON(c, &req) {
		return
	}
	rec, err := req.ToRecord()
	if err != nil {
		h.Error(c, err)
		return
	}

	saved, err := h.ledger.Record(c.Request.Context(), rec)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRecord(*saved))
}

// ListForClient handles GET /clients/:id/deliveries?month=&year=.
func (h *DeliveryHandler) ListForClient(c *gin.Context) {
	clientID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var q dto.PeriodQuery
	if !h.BindQuery(c, &q) {
		return
	}

	recs, err := h.ledger.ForClientInMonth(c.Request.Context(), clientID, q.Period())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRecords(clientID, q.Period(), recs))
}
