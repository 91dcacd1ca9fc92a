package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ritmo-academy/academy-api/internal/service"
	"github.com/ritmo-academy/academy-api/pkg/response"
)

// MetricsHandler exposes the runtime metrics snapshot for admins.
type MetricsHandler struct {
	metrics *service.MetricsService
}

// NewMetricsHandler constructs the handler.
func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Snapshot godoc
// @Summary Runtime metrics snapshot
// @Description Point-in-time request, cache and check-in counters
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/metrics [get]
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
