package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/bustrack/internal/apperr"
	"github.com/mamadbah2/bustrack/internal/domain/models"
	"github.com/mamadbah2/bustrack/internal/timeutil"
	"github.com/mamadbah2/bustrack/internal/validation"
)

// DailyStat is one day of a performance comparison.
type DailyStat struct {
	Date       time.Time `json:"date"`
	Trips      int       `json:"trips"`
	Passengers int       `json:"passengers"`
	Delay      float64   `json:"delay"`
	OnTime     float64   `json:"onTime"`
}

// Performance compares a route's daily documents over a trailing period.
type Performance struct {
	RouteID          string      `json:"routeId"`
	Period           string      `json:"period"`
	TotalTrips       int         `json:"totalTrips"`
	TotalPassengers  int         `json:"totalPassengers"`
	AverageDelay     float64     `json:"averageDelay"`
	OnTimePercentage float64     `json:"onTimePercentage"`
	DailyStats       []DailyStat `json:"dailyStats"`
}

// Dashboard is the fleet-wide view of one day.
type Dashboard struct {
	Date             string         `json:"date"`
	TotalRoutes      int64          `json:"totalRoutes"`
	ActiveRoutes     int64          `json:"activeRoutes"`
	ReportingRoutes  int            `json:"reportingRoutes"`
	TotalTrips       int            `json:"totalTrips"`
	TotalPassengers  int            `json:"totalPassengers"`
	AverageDelay     float64        `json:"averageDelay"`
	OnTimePercentage float64        `json:"onTimePercentage"`
	Issues           IssueHistogram `json:"issues"`
}

// IssueQuery filters issue reports.
type IssueQuery struct {
	RouteID  string
	Severity string
	Resolved *bool
	Days     int
}

// UpsertDaily merges u into the route's document of the current day,
// creating it when absent. Metrics merge field by field, stops and issues append.
func (s *Service) UpsertDaily(ctx context.Context, u models.DailyUpdate) (*models.DailyAnalytics, error) {
	if err := validation.Struct(u); err != nil {
		return nil, err
	}
	routeID := strings.ToUpper(strings.TrimSpace(u.RouteID))
	u.RouteID = routeID

	now := s.now().In(s.location)
	prepareIssues(u.Issues, now)

	day := timeutil.StartOfDay(now, s.location)
	doc, err := s.daily.FindDaily(ctx, routeID, day)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &models.DailyAnalytics{
			RouteID:   routeID,
			Date:      day,
			Stops:     []models.StopVisit{},
			Issues:    []models.Issue{},
			CreatedAt: now,
		}
	}

	doc.Merge(u)
	doc.UpdatedAt = now

	if err := s.daily.SaveDaily(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Debug("daily analytics updated",
		zap.String("route_id", routeID),
		zap.Int("stops", len(doc.Stops)),
		zap.Int("issues", len(doc.Issues)))

	return doc, nil
}

// RouteAnalytics lists a route's daily documents, oldest first, for the
// explicit range or the trailing days.
func (s *Service) RouteAnalytics(ctx context.Context, routeID, startDate, endDate string, days int) ([]models.DailyAnalytics, error) {
	window, err := timeutil.ResolveRange(startDate, endDate, days, s.now(), s.location)
	if err != nil {
		return nil, err
	}
	return s.daily.FindDailies(ctx, models.DailyFilter{
		RouteID: strings.ToUpper(routeID),
		From:    &window.From,
		To:      &window.To,
	})
}

// PerformanceComparison totals a route's last period days and averages the
// stored daily means.
func (s *Service) PerformanceComparison(ctx context.Context, routeID string, period int) (Performance, error) {
	routeID = strings.ToUpper(routeID)
	docs, err := s.RouteAnalytics(ctx, routeID, "", "", period)
	if err != nil {
		return Performance{}, err
	}

	total := Total(DailySamples(docs)).Rounded()
	perf := Performance{
		RouteID:          routeID,
		Period:           fmt.Sprintf("%d days", period),
		TotalTrips:       total.TotalTrips,
		TotalPassengers:  total.TotalPassengers,
		AverageDelay:     total.AvgDelay,
		OnTimePercentage: total.OnTimePercentage,
		DailyStats:       make([]DailyStat, 0, len(docs)),
	}
	for _, d := range docs {
		perf.DailyStats = append(perf.DailyStats, DailyStat{
			Date:       d.Date,
			Trips:      d.Metrics.TotalTrips,
			Passengers: d.Metrics.TotalPassengers,
			Delay:      d.Metrics.AverageDelay,
			OnTime:     d.Metrics.OnTimePercentage,
		})
	}
	return perf, nil
}

// DashboardSummary aggregates every route's document of one day. An empty
// date means today.
func (s *Service) DashboardSummary(ctx context.Context, date string) (Dashboard, error) {
	day := s.now()
	if date != "" {
		parsed, err := timeutil.ParseDate(date, s.location)
		if err != nil {
			return Dashboard{}, err
		}
		day = parsed
	}
	day = timeutil.StartOfDay(day, s.location)

	docs, err := s.daily.FindDailies(ctx, models.DailyFilter{Date: &day})
	if err != nil {
		return Dashboard{}, err
	}

	totalRoutes, err := s.countRoutes(ctx, false)
	if err != nil {
		return Dashboard{}, err
	}
	activeRoutes, err := s.countRoutes(ctx, true)
	if err != nil {
		return Dashboard{}, err
	}

	total := Total(DailySamples(docs)).Rounded()
	return Dashboard{
		Date:             day.Format(timeutil.DateLayout),
		TotalRoutes:      totalRoutes,
		ActiveRoutes:     activeRoutes,
		ReportingRoutes:  total.RouteCount(),
		TotalTrips:       total.TotalTrips,
		TotalPassengers:  total.TotalPassengers,
		AverageDelay:     total.AvgDelay,
		OnTimePercentage: total.OnTimePercentage,
		Issues:           UnresolvedIssues(docs),
	}, nil
}

// IssueReports flattens the issues of the trailing days, newest first.
func (s *Service) IssueReports(ctx context.Context, q IssueQuery) ([]models.IssueReport, error) {
	if err := validation.Var("severity", q.Severity, "omitempty,oneof=low medium high critical"); err != nil {
		return nil, err
	}

	window, err := timeutil.ResolveRange("", "", q.Days, s.now(), s.location)
	if err != nil {
		return nil, err
	}
	docs, err := s.daily.FindDailies(ctx, models.DailyFilter{
		RouteID: strings.ToUpper(q.RouteID),
		From:    &window.From,
		To:      &window.To,
	})
	if err != nil {
		return nil, err
	}

	reports := make([]models.IssueReport, 0)
	for _, d := range docs {
		for _, issue := range d.Issues {
			if q.Severity != "" && string(issue.Severity) != q.Severity {
				continue
			}
			if q.Resolved != nil && issue.Resolved != *q.Resolved {
				continue
			}
			reports = append(reports, models.IssueReport{
				Issue:       issue,
				AnalyticsID: d.ID,
				RouteID:     d.RouteID,
				Date:        d.Date,
			})
		}
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Timestamp.After(reports[j].Timestamp)
	})
	return reports, nil
}

// ResolveIssue marks an issue resolved. Resolving an already resolved issue
// changes nothing and returns it as stored.
func (s *Service) ResolveIssue(ctx context.Context, analyticsID, issueID, resolvedBy string) (*models.Issue, error) {
	docID, err := primitive.ObjectIDFromHex(analyticsID)
	if err != nil {
		return nil, apperr.Validation("invalid analytics id %q", analyticsID)
	}
	iid, err := primitive.ObjectIDFromHex(issueID)
	if err != nil {
		return nil, apperr.Validation("invalid issue id %q", issueID)
	}

	changed, err := s.daily.MarkIssueResolved(ctx, docID, iid, strings.TrimSpace(resolvedBy), s.now().In(s.location))
	if err != nil {
		return nil, err
	}

	doc, err := s.daily.GetDaily(ctx, docID)
	if err != nil {
		return nil, err
	}
	issue := doc.FindIssue(iid)
	if issue == nil {
		return nil, apperr.NotFound("issue %s not found", issueID)
	}

	if changed {
		s.logger.Info("issue resolved",
			zap.String("route_id", doc.RouteID),
			zap.String("issue_id", issueID),
			zap.String("severity", string(issue.Severity)))
	} else {
		s.logger.Debug("issue already resolved", zap.String("issue_id", issueID))
	}
	return issue, nil
}

// prepareIssues stamps new issues with an id and an open state.
func prepareIssues(issues []models.Issue, now time.Time) {
	for i := range issues {
		issue := &issues[i]
		issue.ID = primitive.NewObjectID()
		if issue.Timestamp.IsZero() {
			issue.Timestamp = now
		}
		issue.Resolved = false
		issue.ResolvedBy = ""
		issue.ResolvedAt = nil
	}
}
