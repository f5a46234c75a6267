package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/bustrack/internal/domain/models"
	"github.com/mamadbah2/bustrack/internal/service/trackers"
)

// TrackerService maintains live tracker state.
type TrackerService interface {
	UpdateLocation(ctx context.Context, ping models.TrackerPing) (*models.TrackerState, error)
	List(ctx context.Context, filter models.TrackerFilter) ([]models.TrackerState, error)
	Get(ctx context.Context, trackerID string) (*models.TrackerState, error)
	ByRoute(ctx context.Context, routeID string) (*models.TrackerState, error)
	UpdateStatus(ctx context.Context, trackerID string, update trackers.StatusUpdate) (*models.TrackerState, error)
	Summary(ctx context.Context) (models.TrackerSummary, error)
	Delete(ctx context.Context, trackerID string) error
}

// TrackerHandler serves /api/trackers.
type TrackerHandler struct {
	svc    TrackerService
	logger *zap.Logger
}

// NewTrackerHandler constructs the tracker HTTP adapter.
func NewTrackerHandler(svc TrackerService, logger *zap.Logger) *TrackerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackerHandler{svc: svc, logger: logger}
}

// UpdateLocation ingests a position report.
func (h *TrackerHandler) UpdateLocation(c *gin.Context) {
	var ping models.TrackerPing
	if err := c.ShouldBindJSON(&ping); err != nil {
		badBody(c, h.logger, err)
		return
	}

	state, err := h.svc.UpdateLocation(c.Request.Context(), ping)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusOK, state)
}

// List returns trackers matching the query filters.
func (h *TrackerHandler) List(c *gin.Context) {
	onlineOnly, err := boolQuery(c, "onlineOnly")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	filter := models.TrackerFilter{
		RouteID:   c.Query("routeId"),
		BusNumber: c.Query("busNumber"),
		Status:    models.TrackerStatus(c.Query("status")),
	}
	if onlineOnly != nil && *onlineOnly {
		filter.Online = onlineOnly
	}

	states, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, states)
}

// Get returns one tracker.
func (h *TrackerHandler) Get(c *gin.Context) {
	state, err := h.svc.Get(c.Request.Context(), c.Param("trackerId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusOK, state)
}

// ByRoute returns the most recently updated online tracker of a route.
func (h *TrackerHandler) ByRoute(c *gin.Context) {
	state, err := h.svc.ByRoute(c.Request.Context(), c.Param("routeId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusOK, state)
}

// UpdateStatus changes a tracker's status or online flag.
func (h *TrackerHandler) UpdateStatus(c *gin.Context) {
	var update trackers.StatusUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		badBody(c, h.logger, err)
		return
	}

	state, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("trackerId"), update)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusOK, state)
}

// Summary returns fleet-wide tracker counters.
func (h *TrackerHandler) Summary(c *gin.Context) {
	summary, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusOK, summary)
}

// Delete removes a tracker.
func (h *TrackerHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("trackerId")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "tracker deleted"})
}
