package trackers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/bustrack/internal/apperr"
	"github.com/mamadbah2/bustrack/internal/domain/models"
	"github.com/mamadbah2/bustrack/internal/validation"
)

const (
	// EventTrackerUpdated is published after every accepted location report.
	EventTrackerUpdated = "tracker.updated"
	// EventTrackerStatus is published when a tracker's status or online flag changes.
	EventTrackerStatus = "tracker.status"

	defaultBatteryLevel   = 100
	defaultSignalStrength = 100
	recentActivityWindow  = 24 * time.Hour
)

// Repository persists tracker snapshots, one document per trackerId.
type Repository interface {
	UpsertTracker(ctx context.Context, state *models.TrackerState) error
	FindTracker(ctx context.Context, trackerID string) (*models.TrackerState, error)
	FindTrackers(ctx context.Context, filter models.TrackerFilter) ([]models.TrackerState, error)
	LatestOnlineTracker(ctx context.Context, routeID string) (*models.TrackerState, error)
	ReplaceTracker(ctx context.Context, state *models.TrackerState) error
	DeleteTracker(ctx context.Context, trackerID string) error
	CountTrackers(ctx context.Context, filter models.TrackerFilter) (int64, error)
	CountUpdatedSince(ctx context.Context, since time.Time) (int64, error)
	CountByRoute(ctx context.Context) ([]models.RouteCount, error)
	MarkOffline(ctx context.Context, staleBefore time.Time) ([]models.TrackerState, error)
}

// Publisher receives tracker changes for the live feed.
type Publisher interface {
	Publish(eventType, routeID string, data any)
}

// StatusUpdate changes a tracker's status and/or online flag.
type StatusUpdate struct {
	Status   string `json:"status" validate:"omitempty,oneof=active inactive maintenance"`
	IsOnline *bool  `json:"isOnline"`
}

// Service maintains the current position of every tracking device.
type Service struct {
	repo      Repository
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires the tracker service. publisher may be nil.
func NewService(repository Repository, publisher Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repository,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// UpdateLocation overwrites the tracker's snapshot with the ping, creating it
// on first contact, and marks it online.
func (s *Service) UpdateLocation(ctx context.Context, ping models.TrackerPing) (*models.TrackerState, error) {
	if err := validation.Struct(ping); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindTracker(ctx, ping.TrackerID)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	now := s.now()
	state := existing
	if state == nil {
		state = &models.TrackerState{
			TrackerID: ping.TrackerID,
			Status:    models.TrackerActive,
			CreatedAt: now,
		}
	}

	state.TrackerName = ping.TrackerName
	state.RouteID = ping.RouteID
	state.BusNumber = ping.BusNumber
	state.CurrentLocation = models.GeoPoint{Lat: *ping.Lat, Lng: *ping.Lng}
	state.CurrentArea = ping.Area
	state.CurrentTime = now
	state.LastUpdateTime = now
	state.Speed = valueOr(ping.Speed, 0)
	state.Heading = valueOr(ping.Heading, 0)
	state.BatteryLevel = valueOr(ping.BatteryLevel, defaultBatteryLevel)
	state.SignalStrength = valueOr(ping.SignalStrength, defaultSignalStrength)
	state.IsOnline = true
	state.UpdatedAt = now

	if err := s.repo.UpsertTracker(ctx, state); err != nil {
		return nil, err
	}

	s.publish(EventTrackerUpdated, state)
	s.logger.Debug("tracker location updated",
		zap.String("tracker_id", state.TrackerID),
		zap.String("route_id", state.RouteID),
		zap.Float64("lat", state.CurrentLocation.Lat),
		zap.Float64("lng", state.CurrentLocation.Lng))

	return state, nil
}

// List returns trackers matching the filter, most recently updated first.
func (s *Service) List(ctx context.Context, filter models.TrackerFilter) ([]models.TrackerState, error) {
	if err := validation.Var("status", string(filter.Status), "omitempty,oneof=active inactive maintenance"); err != nil {
		return nil, err
	}
	return s.repo.FindTrackers(ctx, filter)
}

// Get returns one tracker.
func (s *Service) Get(ctx context.Context, trackerID string) (*models.TrackerState, error) {
	return s.repo.FindTracker(ctx, trackerID)
}

// ByRoute returns the most recently updated online tracker of a route.
func (s *Service) ByRoute(ctx context.Context, routeID string) (*models.TrackerState, error) {
	return s.repo.LatestOnlineTracker(ctx, routeID)
}

// UpdateStatus applies a status change.
func (s *Service) UpdateStatus(ctx context.Context, trackerID string, update StatusUpdate) (*models.TrackerState, error) {
	if err := validation.Struct(update); err != nil {
		return nil, err
	}

	state, err := s.repo.FindTracker(ctx, trackerID)
	if err != nil {
		return nil, err
	}

	if update.Status != "" {
		state.Status = models.TrackerStatus(update.Status)
	}
	if update.IsOnline != nil {
		state.IsOnline = *update.IsOnline
	}
	now := s.now()
	state.LastUpdateTime = now
	state.UpdatedAt = now

	if err := s.repo.ReplaceTracker(ctx, state); err != nil {
		return nil, err
	}

	s.publish(EventTrackerStatus, state)
	s.logger.Info("tracker status updated",
		zap.String("tracker_id", trackerID),
		zap.String("status", string(state.Status)),
		zap.Bool("online", state.IsOnline))

	return state, nil
}

// Summary counts trackers for the dashboard.
func (s *Service) Summary(ctx context.Context) (models.TrackerSummary, error) {
	var (
		summary models.TrackerSummary
		err     error
		online  = true
		offline = false
	)

	if summary.TotalTrackers, err = s.repo.CountTrackers(ctx, models.TrackerFilter{}); err != nil {
		return summary, err
	}
	if summary.ActiveTrackers, err = s.countOnline(ctx, online); err != nil {
		return summary, err
	}
	if summary.InactiveTrackers, err = s.countOnline(ctx, offline); err != nil {
		return summary, err
	}
	if summary.MaintenanceTrackers, err = s.repo.CountTrackers(ctx, models.TrackerFilter{Status: models.TrackerMaintenance}); err != nil {
		return summary, err
	}
	if summary.RecentActivity, err = s.repo.CountUpdatedSince(ctx, s.now().Add(-recentActivityWindow)); err != nil {
		return summary, err
	}
	if summary.TrackersByRoute, err = s.repo.CountByRoute(ctx); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *Service) countOnline(ctx context.Context, online bool) (int64, error) {
	return s.repo.CountTrackers(ctx, models.TrackerFilter{Online: &online})
}

// Delete removes a tracker.
func (s *Service) Delete(ctx context.Context, trackerID string) error {
	if err := s.repo.DeleteTracker(ctx, trackerID); err != nil {
		return err
	}
	s.logger.Info("tracker deleted", zap.String("tracker_id", trackerID))
	return nil
}

// MarkStale flags trackers silent for longer than staleAfter as offline and
// publishes a status event for each of them.
func (s *Service) MarkStale(ctx context.Context, staleAfter time.Duration) (int64, error) {
	if staleAfter <= 0 {
		return 0, apperr.Validation("stale threshold must be positive")
	}
	stale, err := s.repo.MarkOffline(ctx, s.now().Add(-staleAfter))
	for i := range stale {
		s.publish(EventTrackerStatus, &stale[i])
	}
	if err != nil {
		return int64(len(stale)), err
	}
	if len(stale) > 0 {
		s.logger.Info("stale trackers marked offline", zap.Int("count", len(stale)))
	}
	return int64(len(stale)), nil
}

func (s *Service) publish(eventType string, state *models.TrackerState) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(eventType, state.RouteID, state)
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
