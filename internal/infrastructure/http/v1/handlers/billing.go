package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"dairyflow/internal/domain/billing"
	"dairyflow/internal/infrastructure/http/v1/dto"
	"dairyflow/internal/observability/metrics"
)

// BillingHandler serves bill generation and listing.
type BillingHandler struct {
	*BaseHandler
	engine *billing.Engine
}

func NewBillingHandler(base *BaseHandler, engine *billing.Engine) *BillingHandler {
	return &BillingHandler{BaseHandler: base, engine: engine}
}

// Generate handles POST /billing/generate.
func (h *BillingHandler) Generate(c *gin.Context) {
	var req dto.GenerateBillsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	start := time.Now()
	res, err := h.engine.GenerateMonthlyBills(c.Request.Context(), req.Period())
	if err != nil {
		metrics.ObserveGeneration(0, 0, 0, time.Since(start), err)
		h.Error(c, err)
		return
	}
	metrics.ObserveGeneration(res.GeneratedCount, len(res.SkippedClientIDs), len(res.Failures), time.Since(start), nil)

	h.OK(c, dto.FromGeneration(res))
}

// Create handles POST /bills.
func (h *BillingHandler) Create(c *gin.Context) {
	var req dto.CreateBillRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	bill, err := h.engine.CreateBill(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromBill(bill))
}

// ListByPeriod handles GET /bills?month=&year=.
func (h *BillingHandler) ListByPeriod(c *gin.Context) {
	var q dto.PeriodQuery
	if !h.BindQuery(c, &q) {
		return
	}
	bills, err := h.engine.GetBillsForPeriod(c.Request.Context(), q.Period())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(dto.FromBills(bills)))
}

// Get handles GET /bills/:id.
func (h *BillingHandler) Get(c *gin.Context) {
	billID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	bill, err := h.engine.GetBill(c.Request.Context(), billID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBill(bill))
}

// ListByClient handles GET /clients/:id/bills.
func (h *BillingHandler) ListByClient(c *gin.Context) {
	clientID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	bills, err := h.engine.GetBillsForClient(c.Request.Context(), clientID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(dto.FromBills(bills)))
}
