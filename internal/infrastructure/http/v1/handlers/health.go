package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"dairyflow/internal/core/tenant"
)

// Pinger checks a database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolStats reports tenant pool usage.
type PoolStats interface {
	Stats() tenant.Stats
}

// HealthHandler provides health check endpoints. In memory mode meta and
// pools are nil.
type HealthHandler struct {
	version string
	meta    Pinger
	pools   PoolStats
}

func NewHealthHandler(version string, meta Pinger, pools PoolStats) *HealthHandler {
	return &HealthHandler{version: version, meta: meta, pools: pools}
}

// Live handles liveness probe.
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready checks the meta database.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.meta == nil {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"checks": map[string]string{"storage": "memory"},
		})
		return
	}

	if err := h.meta.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"meta_database": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{"meta_database": "healthy"},
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	info := gin.H{
		"app":     "dairyflow",
		"version": h.version,
		"mode":    "memory",
	}
	if h.pools != nil {
		st := h.pools.Stats()
		info["mode"] = "multi-tenant"
		info["tenants"] = map[string]any{
			"active_pools":   st.TotalPools,
			"total_conns":    st.TotalConns,
			"acquired_conns": st.AcquiredConns,
			"active_refs":    st.ActiveRefs,
		}
	}
	c.JSON(http.StatusOK, info)
}
