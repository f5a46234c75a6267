package arrivals

import (
	"context"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/bustrack/internal/apperr"
	"github.com/mamadbah2/bustrack/internal/domain/models"
	"github.com/mamadbah2/bustrack/internal/timeutil"
	"github.com/mamadbah2/bustrack/internal/validation"
)

const (
	defaultOccupancy        = "medium"
	defaultWeather          = "clear"
	defaultTrafficCondition = "moderate"
)

// Repository is the document-store surface the arrival service needs.
type Repository interface {
	InsertArrival(ctx context.Context, record *models.ArrivalRecord) error
	FindArrival(ctx context.Context, filter models.ArrivalFilter) (*models.ArrivalRecord, error)
	FindArrivals(ctx context.Context, filter models.ArrivalFilter, opts models.ListOptions) ([]models.ArrivalRecord, error)
	CountArrivals(ctx context.Context, filter models.ArrivalFilter) (int64, error)
	GetArrival(ctx context.Context, id primitive.ObjectID) (*models.ArrivalRecord, error)
	ReplaceArrival(ctx context.Context, record *models.ArrivalRecord) error
	DeleteArrival(ctx context.Context, id primitive.ObjectID) error
	DeleteArrivals(ctx context.Context, filter models.ArrivalFilter) (int64, error)
}

// Service records arrivals and serves their listings.
type Service struct {
	repo     Repository
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires a new arrival service. Calendar days are evaluated in loc.
func NewService(repository Repository, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repository,
		location: loc,
		logger:   logger,
		now:      time.Now,
	}
}

// Record validates a submission, rejects a second arrival for the same
// bus and stop on the same day, derives delay and status, and persists it.
func (s *Service) Record(ctx context.Context, sub models.ArrivalSubmission) (*models.ArrivalRecord, error) {
	if err := validation.Struct(sub); err != nil {
		return nil, err
	}

	now := s.now().In(s.location)
	dayStart, dayEnd := timeutil.DayBounds(now, s.location)

	existing, err := s.repo.FindArrival(ctx, models.ArrivalFilter{
		RouteID:     sub.RouteID,
		BusNumber:   sub.BusNumber,
		StopName:    sub.StopName,
		From:        &dayStart,
		To:          &dayEnd,
		ToExclusive: true,
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("arrival already recorded for bus %s at %s today", sub.BusNumber, sub.StopName)
	}

	scheduled, err := timeutil.ParseClock(sub.ScheduledTime)
	if err != nil {
		return nil, err
	}
	actual, err := timeutil.ParseClock(sub.ActualTime)
	if err != nil {
		return nil, err
	}
	delay := actual - scheduled

	record := &models.ArrivalRecord{
		RouteID:          sub.RouteID,
		BusNumber:        sub.BusNumber,
		StopName:         sub.StopName,
		ScheduledTime:    sub.ScheduledTime,
		ActualTime:       sub.ActualTime,
		ArrivalTimestamp: now,
		ArrivalDate:      dayStart.Format(timeutil.DateLayout),
		Delay:            delay,
		Status:           models.ClassifyDelay(delay),
		Location:         models.GeoPoint{Lat: *sub.Location.Lat, Lng: *sub.Location.Lng},
		Occupancy:        withDefault(sub.Occupancy, defaultOccupancy),
		Weather:          withDefault(sub.Weather, defaultWeather),
		TrafficCondition: withDefault(sub.TrafficCondition, defaultTrafficCondition),
		DriverNotes:      sub.DriverNotes,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if sub.PassengerCount != nil {
		record.PassengerCount = *sub.PassengerCount
	}

	if err := s.repo.InsertArrival(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Debug("arrival recorded",
		zap.String("route_id", record.RouteID),
		zap.String("bus", record.BusNumber),
		zap.String("stop", record.StopName),
		zap.Int("delay", record.Delay),
		zap.String("status", string(record.Status)))

	return record, nil
}

// BatchFailure describes one rejected item of a bulk submission.
type BatchFailure struct {
	Index   int         `json:"index"`
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// BatchResult summarises a bulk submission.
type BatchResult struct {
	SuccessCount int                    `json:"successCount"`
	FailureCount int                    `json:"failureCount"`
	Records      []models.ArrivalRecord `json:"records"`
	Errors       []BatchFailure         `json:"errors"`
}

// RecordBatch records every submission independently. A failing item is
// reported and the remaining items are still processed.
func (s *Service) RecordBatch(ctx context.Context, subs []models.ArrivalSubmission) (BatchResult, error) {
	if len(subs) == 0 {
		return BatchResult{}, apperr.Validation("at least one arrival is required")
	}

	result := BatchResult{Records: []models.ArrivalRecord{}, Errors: []BatchFailure{}}
	for i, sub := range subs {
		record, err := s.Record(ctx, sub)
		if err != nil {
			kind := apperr.KindOf(err)
			if kind == apperr.KindStore {
				s.logger.Error("bulk arrival item failed", zap.Int("index", i), zap.Error(err))
			}
			result.Errors = append(result.Errors, BatchFailure{Index: i, Kind: kind, Message: apperr.MessageOf(err)})
			result.FailureCount++
			continue
		}
		result.Records = append(result.Records, *record)
		result.SuccessCount++
	}

	s.logger.Info("bulk arrivals processed", zap.Int("succeeded", result.SuccessCount), zap.Int("failed", result.FailureCount))
	return result, nil
}

// Update applies a field patch. Identity, timestamps, delay and status are left untouched.
func (s *Service) Update(ctx context.Context, id string, patch models.ArrivalPatch) (*models.ArrivalRecord, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	record, err := s.repo.GetArrival(ctx, oid)
	if err != nil {
		return nil, err
	}

	record.ApplyPatch(patch)
	record.UpdatedAt = s.now().In(s.location)

	if err := s.repo.ReplaceArrival(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Delete removes one arrival.
func (s *Service) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	return s.repo.DeleteArrival(ctx, oid)
}

// BulkFilter selects arrivals for bulk deletion and export.
type BulkFilter struct {
	RouteID   string `json:"routeId" form:"routeId"`
	BusNumber string `json:"busNumber" form:"busNumber"`
	StopName  string `json:"stopName" form:"stopName"`
	Status    string `json:"status" form:"status"`
	StartDate string `json:"startDate" form:"startDate"`
	EndDate   string `json:"endDate" form:"endDate"`
}

// BulkDelete removes arrivals by id set, or by filter when no ids are given.
func (s *Service) BulkDelete(ctx context.Context, ids []string, filter *BulkFilter) (int64, error) {
	var query models.ArrivalFilter

	switch {
	case len(ids) > 0:
		for _, id := range ids {
			oid, err := parseID(id)
			if err != nil {
				return 0, err
			}
			query.IDs = append(query.IDs, oid)
		}
	case filter != nil:
		built, err := s.buildFilter(*filter)
		if err != nil {
			return 0, err
		}
		if built.IsEmpty() {
			return 0, apperr.Validation("filters must narrow the deletion")
		}
		query = built
	default:
		return 0, apperr.Validation("either ids array or filters object must be provided")
	}

	deleted, err := s.repo.DeleteArrivals(ctx, query)
	if err != nil {
		return 0, err
	}

	s.logger.Info("arrivals bulk deleted", zap.Int64("deleted", deleted))
	return deleted, nil
}

// Export returns every arrival matching the filter, newest first.
func (s *Service) Export(ctx context.Context, filter BulkFilter) ([]models.ArrivalRecord, error) {
	query, err := s.buildFilter(filter)
	if err != nil {
		return nil, err
	}
	return s.repo.FindArrivals(ctx, query, models.ListOptions{Sort: models.SortNewestFirst})
}

// ListQuery carries the listing filters and pagination.
type ListQuery struct {
	BulkFilter
	// Today restricts the listing to the current day when no dates are given.
	Today bool
	Page  int
	Limit int
}

// Page is one page of arrivals.
type Page struct {
	Items        []models.ArrivalRecord `json:"data"`
	CurrentPage  int                    `json:"currentPage"`
	TotalPages   int                    `json:"totalPages"`
	TotalItems   int64                  `json:"totalItems"`
	ItemsPerPage int                    `json:"itemsPerPage"`
}

// List returns a page of arrivals, newest first.
func (s *Service) List(ctx context.Context, q ListQuery) (Page, error) {
	if q.Page <= 0 || q.Limit <= 0 {
		return Page{}, apperr.Validation("page and limit must be positive integers")
	}

	filter, err := s.buildFilter(q.BulkFilter)
	if err != nil {
		return Page{}, err
	}
	if q.StartDate == "" && q.EndDate == "" && q.Today {
		from, to := timeutil.DayBounds(s.now(), s.location)
		filter.From, filter.To, filter.ToExclusive = &from, &to, true
	}

	items, err := s.repo.FindArrivals(ctx, filter, models.ListOptions{
		Sort:  models.SortNewestFirst,
		Skip:  int64((q.Page - 1) * q.Limit),
		Limit: int64(q.Limit),
	})
	if err != nil {
		return Page{}, err
	}
	total, err := s.repo.CountArrivals(ctx, filter)
	if err != nil {
		return Page{}, err
	}

	return Page{
		Items:        items,
		CurrentPage:  q.Page,
		TotalPages:   int(math.Ceil(float64(total) / float64(q.Limit))),
		TotalItems:   total,
		ItemsPerPage: q.Limit,
	}, nil
}

// RouteArrivals lists a route's arrivals for one date (today when empty), newest first.
func (s *Service) RouteArrivals(ctx context.Context, routeID, date string, limit int) ([]models.ArrivalRecord, error) {
	if limit <= 0 {
		return nil, apperr.Validation("limit must be a positive integer")
	}

	day := s.now()
	if date != "" {
		parsed, err := timeutil.ParseDate(date, s.location)
		if err != nil {
			return nil, err
		}
		day = parsed
	}
	from, to := timeutil.DayBounds(day, s.location)

	return s.repo.FindArrivals(ctx,
		models.ArrivalFilter{RouteID: routeID, From: &from, To: &to, ToExclusive: true},
		models.ListOptions{Sort: models.SortNewestFirst, Limit: int64(limit)})
}

// TodayArrivals lists the current day's arrivals of a route in arrival order.
func (s *Service) TodayArrivals(ctx context.Context, routeID string) ([]models.ArrivalRecord, error) {
	from, to := timeutil.DayBounds(s.now(), s.location)
	return s.repo.FindArrivals(ctx,
		models.ArrivalFilter{RouteID: routeID, From: &from, To: &to, ToExclusive: true},
		models.ListOptions{Sort: models.SortOldestFirst})
}

// RecentArrivals lists the latest arrivals of a route regardless of day.
func (s *Service) RecentArrivals(ctx context.Context, routeID string, limit int) ([]models.ArrivalRecord, error) {
	if limit <= 0 {
		return nil, apperr.Validation("limit must be a positive integer")
	}
	return s.repo.FindArrivals(ctx, models.ArrivalFilter{RouteID: routeID},
		models.ListOptions{Sort: models.SortNewestFirst, Limit: int64(limit)})
}

func (s *Service) buildFilter(f BulkFilter) (models.ArrivalFilter, error) {
	filter := models.ArrivalFilter{
		RouteID:   f.RouteID,
		BusNumber: f.BusNumber,
		StopName:  f.StopName,
	}

	if f.Status != "" {
		if err := validation.Var("status", f.Status, "oneof=on_time delayed early"); err != nil {
			return filter, err
		}
		filter.Status = models.ArrivalStatus(f.Status)
	}

	if f.StartDate != "" {
		start, err := timeutil.ParseDate(f.StartDate, s.location)
		if err != nil {
			return filter, err
		}
		from := timeutil.StartOfDay(start, s.location)
		filter.From = &from
	}
	if f.EndDate != "" {
		end, err := timeutil.ParseDate(f.EndDate, s.location)
		if err != nil {
			return filter, err
		}
		_, next := timeutil.DayBounds(end, s.location)
		filter.To = &next
		filter.ToExclusive = true
	}

	return filter, nil
}

func validatePatch(p models.ArrivalPatch) error {
	if p.ScheduledTime != nil {
		if _, err := timeutil.ParseClock(*p.ScheduledTime); err != nil {
			return err
		}
	}
	if p.ActualTime != nil {
		if _, err := timeutil.ParseClock(*p.ActualTime); err != nil {
			return err
		}
	}
	return validation.Struct(p)
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid arrival id %q", id)
	}
	return oid, nil
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
