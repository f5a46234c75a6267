package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/bustrack/internal/apperr"
	"github.com/mamadbah2/bustrack/internal/domain/models"
	"github.com/mamadbah2/bustrack/internal/service/analytics"
	"github.com/mamadbah2/bustrack/internal/service/arrivals"
)

// ArrivalService is the arrival log as the HTTP layer uses it.
type ArrivalService interface {
	Record(ctx context.Context, sub models.ArrivalSubmission) (*models.ArrivalRecord, error)
	RecordBatch(ctx context.Context, subs []models.ArrivalSubmission) (arrivals.BatchResult, error)
	Update(ctx context.Context, id string, patch models.ArrivalPatch) (*models.ArrivalRecord, error)
	Delete(ctx context.Context, id string) error
	BulkDelete(ctx context.Context, ids []string, filter *arrivals.BulkFilter) (int64, error)
	Export(ctx context.Context, filter arrivals.BulkFilter) ([]models.ArrivalRecord, error)
	List(ctx context.Context, q arrivals.ListQuery) (arrivals.Page, error)
	RouteArrivals(ctx context.Context, routeID, date string, limit int) ([]models.ArrivalRecord, error)
	TodayArrivals(ctx context.Context, routeID string) ([]models.ArrivalRecord, error)
	RecentArrivals(ctx context.Context, routeID string, limit int) ([]models.ArrivalRecord, error)
}

// ArrivalStats computes statistics over the arrival log.
type ArrivalStats interface {
	Summary(ctx context.Context, startDate, endDate, groupBy string, scope analytics.Scope) ([]analytics.Bucket, error)
	RoutePerformance(ctx context.Context, startDate, endDate string, scope analytics.Scope) ([]analytics.RoutePerformance, error)
	StopPerformance(ctx context.Context, startDate, endDate string, scope analytics.Scope) ([]analytics.StopPerformance, error)
	RouteStats(ctx context.Context, routeID, date string) (analytics.RouteStats, error)
	RouteArrivalAnalytics(ctx context.Context, routeID string, days int) (analytics.ArrivalAnalytics, error)
}

// ArrivalHandler serves /api/arrivals.
type ArrivalHandler struct {
	svc    ArrivalService
	stats  ArrivalStats
	logger *zap.Logger
}

// NewArrivalHandler constructs the arrival HTTP adapter.
func NewArrivalHandler(svc ArrivalService, stats ArrivalStats, logger *zap.Logger) *ArrivalHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArrivalHandler{svc: svc, stats: stats, logger: logger}
}

// Record logs one arrival.
func (h *ArrivalHandler) Record(c *gin.Context) {
	var sub models.ArrivalSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		badBody(c, h.logger, err)
		return
	}

	record, err := h.svc.Record(c.Request.Context(), sub)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusCreated, record)
}

type batchRequest struct {
	Arrivals []models.ArrivalSubmission `json:"arrivals"`
}

// RecordBatch logs several arrivals, reporting per-item failures.
func (h *ArrivalHandler) RecordBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, h.logger, err)
		return
	}

	result, err := h.svc.RecordBatch(c.Request.Context(), req.Arrivals)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	status := http.StatusCreated
	if result.FailureCount > 0 {
		status = http.StatusMultiStatus
	}
	respondData(c, status, result)
}

// List returns a filtered page of arrivals.
func (h *ArrivalHandler) List(c *gin.Context) {
	var q arrivals.ListQuery
	if err := c.ShouldBindQuery(&q.BulkFilter); err != nil {
		badBody(c, h.logger, err)
		return
	}

	var err error
	if q.Page, err = intQuery(c, "page", 1); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if q.Limit, err = intQuery(c, "limit", 20); err != nil {
		respondError(c, h.logger, err)
		return
	}
	today, err := boolQuery(c, "today")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	q.Today = today == nil || *today

	page, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    page.Items,
		"pagination": gin.H{
			"currentPage":  page.CurrentPage,
			"totalPages":   page.TotalPages,
			"totalItems":   page.TotalItems,
			"itemsPerPage": page.ItemsPerPage,
		},
	})
}

// RouteArrivals lists one day of a route's arrivals.
func (h *ArrivalHandler) RouteArrivals(c *gin.Context) {
	limit, err := intQuery(c, "limit", 50)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	records, err := h.svc.RouteArrivals(c.Request.Context(), c.Param("routeId"), c.Query("date"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, records)
}

// TodayArrivals lists today's arrivals on a route, oldest first.
func (h *ArrivalHandler) TodayArrivals(c *gin.Context) {
	records, err := h.svc.TodayArrivals(c.Request.Context(), c.Param("routeId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, records)
}

// RecentArrivals lists a route's latest arrivals.
func (h *ArrivalHandler) RecentArrivals(c *gin.Context) {
	limit, err := intQuery(c, "limit", 10)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	records, err := h.svc.RecentArrivals(c.Request.Context(), c.Param("routeId"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, records)
}

// RouteStats breaks a route's day down by stop.
func (h *ArrivalHandler) RouteStats(c *gin.Context) {
	stats, err := h.stats.RouteStats(c.Request.Context(), c.Param("routeId"), c.Query("date"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusOK, stats)
}

// RouteAnalytics reports a route's trailing days of arrivals.
func (h *ArrivalHandler) RouteAnalytics(c *gin.Context) {
	days, err := intQuery(c, "days", 7)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	report, err := h.stats.RouteArrivalAnalytics(c.Request.Context(), c.Param("routeId"), days)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusOK, report)
}

// Update patches an arrival's fields.
func (h *ArrivalHandler) Update(c *gin.Context) {
	var patch models.ArrivalPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badBody(c, h.logger, err)
		return
	}

	record, err := h.svc.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusOK, record)
}

// Delete removes one arrival.
func (h *ArrivalHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "arrival deleted"})
}

type bulkDeleteRequest struct {
	IDs     []string             `json:"ids"`
	Filters *arrivals.BulkFilter `json:"filters"`
}

// BulkDelete removes arrivals by id list or filter.
func (h *ArrivalHandler) BulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, h.logger, err)
		return
	}

	deleted, err := h.svc.BulkDelete(c.Request.Context(), req.IDs, req.Filters)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deletedCount": deleted})
}

// Export returns the matching arrivals as JSON or as a CSV attachment.
func (h *ArrivalHandler) Export(c *gin.Context) {
	var filter arrivals.BulkFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badBody(c, h.logger, err)
		return
	}

	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "csv" {
		respondError(c, h.logger, apperr.Validation("format must be json or csv"))
		return
	}

	records, err := h.svc.Export(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if format == "csv" {
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", "attachment; filename=arrivals_export.csv")
		c.Status(http.StatusOK)
		if err := arrivals.WriteCSV(c.Writer, records); err != nil {
			h.logger.Error("failed writing csv export", zap.Error(err))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"count":      len(records),
		"data":       records,
		"exportDate": time.Now().UTC().Format(time.RFC3339),
	})
}

// Summary groups arrivals by day, week or month.
func (h *ArrivalHandler) Summary(c *gin.Context) {
	buckets, err := h.stats.Summary(c.Request.Context(), c.Query("startDate"), c.Query("endDate"), c.Query("groupBy"), scopeOf(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, buckets)
}

// RoutePerformance ranks routes by punctuality.
func (h *ArrivalHandler) RoutePerformance(c *gin.Context) {
	routes, err := h.stats.RoutePerformance(c.Request.Context(), c.Query("startDate"), c.Query("endDate"), scopeOf(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, routes)
}

// StopPerformance ranks stops by average delay.
func (h *ArrivalHandler) StopPerformance(c *gin.Context) {
	stops, err := h.stats.StopPerformance(c.Request.Context(), c.Query("startDate"), c.Query("endDate"), scopeOf(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, stops)
}

func scopeOf(c *gin.Context) analytics.Scope {
	return analytics.Scope{RouteID: c.Query("routeId"), StopName: c.Query("stopName")}
}
