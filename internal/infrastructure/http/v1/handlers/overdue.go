package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"dairyflow/internal/domain/overdue"
	"dairyflow/internal/infrastructure/http/v1/dto"
)

// OverdueHandler lists overdue bills.
type OverdueHandler struct {
	*BaseHandler
	monitor *overdue.Monitor
	now     func() time.Time
}

func NewOverdueHandler(base *BaseHandler, monitor *overdue.Monitor) *OverdueHandler {
	return &OverdueHandler{BaseHandler: base, monitor: monitor, now: time.Now}
}

// List handles GET /bills/overdue?asOf=YYYY-MM-DD.
func (h *OverdueHandler) List(c *gin.Context) {
	var q dto.OverdueQuery
	if !h.BindQuery(c, &q) {
		return
	}
	asOf, err := q.Instant(h.now())
	if err != nil {
		h.Error(c, err)
		return
	}

	entries, err := h.monitor.ListOverdue(c.Request.Context(), asOf)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOverdue(asOf, entries))
}
