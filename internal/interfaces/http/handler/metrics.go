package handler

import (
	"context"
	"time"

	appreceiving "github.com/erp/reconciliation/internal/application/receiving"
	"github.com/erp/reconciliation/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// MetricsService computes reconciliation rollups
type MetricsService interface {
	ComputeMetrics(ctx context.Context, filter appreceiving.MetricsFilter) (*appreceiving.MetricsResponse, error)
}

// MetricsHandler serves reconciliation metrics
type MetricsHandler struct {
	BaseHandler
	service MetricsService
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(service MetricsService) *MetricsHandler {
	return &MetricsHandler{service: service}
}

// MetricsQuery bounds the metrics window. Dates are RFC3339 timestamps or
// plain YYYY-MM-DD days.
type MetricsQuery struct {
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
}

const dateOnly = "2006-01-02"

// Get returns metrics for receptions created inside the requested window
func (h *MetricsHandler) Get(c *gin.Context) {
	var q MetricsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	from, err := parseBound(q.DateFrom, false)
	if err != nil {
		h.BadRequest(c, "Invalid date_from, expected RFC3339 or YYYY-MM-DD")
		return
	}
	to, err := parseBound(q.DateTo, true)
	if err != nil {
		h.BadRequest(c, "Invalid date_to, expected RFC3339 or YYYY-MM-DD")
		return
	}

	metrics, err := h.service.ComputeMetrics(c.Request.Context(), appreceiving.MetricsFilter{DateFrom: from, DateTo: to})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, metrics)
}

// parseBound parses a window bound. A day-only upper bound covers that
// whole day.
func parseBound(raw string, upper bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(dateOnly, raw, time.UTC)
	if err != nil {
		return nil, err
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
