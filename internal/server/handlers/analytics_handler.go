package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/bustrack/internal/domain/models"
	"github.com/mamadbah2/bustrack/internal/service/analytics"
)

// DailyAnalyticsService manages the per-route daily documents.
type DailyAnalyticsService interface {
	UpsertDaily(ctx context.Context, u models.DailyUpdate) (*models.DailyAnalytics, error)
	RouteAnalytics(ctx context.Context, routeID, startDate, endDate string, days int) ([]models.DailyAnalytics, error)
	PerformanceComparison(ctx context.Context, routeID string, period int) (analytics.Performance, error)
	DashboardSummary(ctx context.Context, date string) (analytics.Dashboard, error)
	IssueReports(ctx context.Context, q analytics.IssueQuery) ([]models.IssueReport, error)
	ResolveIssue(ctx context.Context, analyticsID, issueID, resolvedBy string) (*models.Issue, error)
}

// AnalyticsHandler serves /api/analytics.
type AnalyticsHandler struct {
	svc    DailyAnalyticsService
	logger *zap.Logger
}

// NewAnalyticsHandler constructs the analytics HTTP adapter.
func NewAnalyticsHandler(svc DailyAnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsHandler{svc: svc, logger: logger}
}

// Update merges a submission into today's document of the route.
func (h *AnalyticsHandler) Update(c *gin.Context) {
	var u models.DailyUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		badBody(c, h.logger, err)
		return
	}

	doc, err := h.svc.UpsertDaily(c.Request.Context(), u)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusOK, doc)
}

// RouteAnalytics lists a route's daily documents.
func (h *AnalyticsHandler) RouteAnalytics(c *gin.Context) {
	days, err := intQuery(c, "days", 7)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	docs, err := h.svc.RouteAnalytics(c.Request.Context(), c.Param("routeId"), c.Query("startDate"), c.Query("endDate"), days)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, docs)
}

// Performance compares a route's trailing period.
func (h *AnalyticsHandler) Performance(c *gin.Context) {
	period, err := intQuery(c, "period", 7)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	perf, err := h.svc.PerformanceComparison(c.Request.Context(), c.Param("routeId"), period)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusOK, perf)
}

// Dashboard summarises the fleet for one day.
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	summary, err := h.svc.DashboardSummary(c.Request.Context(), c.Query("date"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusOK, summary)
}

// Issues lists reported issues, newest first.
func (h *AnalyticsHandler) Issues(c *gin.Context) {
	days, err := intQuery(c, "days", 30)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	resolved, err := boolQuery(c, "resolved")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	reports, err := h.svc.IssueReports(c.Request.Context(), analytics.IssueQuery{
		RouteID:  c.Query("routeId"),
		Severity: c.Query("severity"),
		Resolved: resolved,
		Days:     days,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, reports)
}

type resolveRequest struct {
	ResolvedBy string `json:"resolvedBy"`
}

// ResolveIssue marks an issue resolved.
func (h *AnalyticsHandler) ResolveIssue(c *gin.Context) {
	var req resolveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badBody(c, h.logger, err)
			return
		}
	}

	issue, err := h.svc.ResolveIssue(c.Request.Context(), c.Param("analyticsId"), c.Param("issueId"), req.ResolvedBy)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusOK, issue)
}
