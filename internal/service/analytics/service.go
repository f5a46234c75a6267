package analytics

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/bustrack/internal/domain/models"
)

const routeCountTTL = time.Minute

// ArrivalReader is the read side of the arrival store.
type ArrivalReader interface {
	FindArrivals(ctx context.Context, filter models.ArrivalFilter, opts models.ListOptions) ([]models.ArrivalRecord, error)
}

// DailyRepository persists daily analytics documents.
type DailyRepository interface {
	// FindDaily returns the document of (routeID, date) or nil when there is none.
	FindDaily(ctx context.Context, routeID string, date time.Time) (*models.DailyAnalytics, error)
	SaveDaily(ctx context.Context, doc *models.DailyAnalytics) error
	FindDailies(ctx context.Context, filter models.DailyFilter) ([]models.DailyAnalytics, error)
	GetDaily(ctx context.Context, id primitive.ObjectID) (*models.DailyAnalytics, error)
	// MarkIssueResolved flips one unresolved issue to resolved and reports whether it changed.
	MarkIssueResolved(ctx context.Context, docID, issueID primitive.ObjectID, resolvedBy string, at time.Time) (bool, error)
}

// RouteCounter counts configured bus routes.
type RouteCounter interface {
	CountRoutes(ctx context.Context, activeOnly bool) (int64, error)
}

// Service computes arrival statistics and manages daily analytics documents.
type Service struct {
	arrivals ArrivalReader
	daily    DailyRepository
	routes   RouteCounter
	cache    *gocache.Cache
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires the analytics service. Day boundaries and bucket keys use loc.
func NewService(arrivals ArrivalReader, daily DailyRepository, routes RouteCounter, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		arrivals: arrivals,
		daily:    daily,
		routes:   routes,
		cache:    gocache.New(routeCountTTL, 2*routeCountTTL),
		location: loc,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) countRoutes(ctx context.Context, activeOnly bool) (int64, error) {
	key := "routes:all"
	if activeOnly {
		key = "routes:active"
	}
	if cached, ok := s.cache.Get(key); ok {
		return cached.(int64), nil
	}

	count, err := s.routes.CountRoutes(ctx, activeOnly)
	if err != nil {
		return 0, err
	}
	s.cache.SetDefault(key, count)
	return count, nil
}
