package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rcffuta/elib-api/internal/models"
	"github.com/rcffuta/elib-api/pkg/response"
)

type analyticsService interface {
	Snapshot(ctx context.Context) (*models.AnalyticsSnapshot, bool, error)
	AdminStats(ctx context.Context) (*models.AdminStats, error)
	SystemMetrics() models.SystemMetrics
}

// AnalyticsHandler exposes admin dashboard analytics.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Snapshot godoc
// @Summary Download analytics
// @Description Top materials, recent activity and a seven day histogram
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /admin/analytics [get]
func (h *AnalyticsHandler) Snapshot(c *gin.Context) {
	start := time.Now()
	snapshot, cacheHit, err := h.analytics.Snapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := withCacheMeta(c, cacheHit)
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, snapshot, nil, meta)
}

// Stats godoc
// @Summary Admin dashboard counters
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/stats [get]
func (h *AnalyticsHandler) Stats(c *gin.Context) {
	stats, err := h.analytics.AdminStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// System returns instrumentation metrics snapshots.
func (h *AnalyticsHandler) System(c *gin.Context) {
	response.OK(c, h.analytics.SystemMetrics())
}
