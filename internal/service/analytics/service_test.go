package analytics

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/bustrack/internal/apperr"
	"github.com/mamadbah2/bustrack/internal/domain/models"
)

type fakeArrivals struct {
	records []models.ArrivalRecord
}

func (f *fakeArrivals) FindArrivals(_ context.Context, filter models.ArrivalFilter, _ models.ListOptions) ([]models.ArrivalRecord, error) {
	var out []models.ArrivalRecord
	for _, r := range f.records {
		if filter.RouteID != "" && r.RouteID != filter.RouteID {
			continue
		}
		if filter.StopName != "" && r.StopName != filter.StopName {
			continue
		}
		if filter.From != nil && r.ArrivalTimestamp.Before(*filter.From) {
			continue
		}
		if filter.To != nil {
			if filter.ToExclusive && !r.ArrivalTimestamp.Before(*filter.To) {
				continue
			}
			if r.ArrivalTimestamp.After(*filter.To) {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

type fakeDaily struct {
	docs map[primitive.ObjectID]*models.DailyAnalytics
}

func newFakeDaily() *fakeDaily {
	return &fakeDaily{docs: make(map[primitive.ObjectID]*models.DailyAnalytics)}
}

func (f *fakeDaily) FindDaily(_ context.Context, routeID string, date time.Time) (*models.DailyAnalytics, error) {
	for _, d := range f.docs {
		if d.RouteID == routeID && d.Date.Equal(date) {
			cp := clone(*d)
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeDaily) SaveDaily(_ context.Context, doc *models.DailyAnalytics) error {
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	cp := clone(*doc)
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDaily) FindDailies(_ context.Context, filter models.DailyFilter) ([]models.DailyAnalytics, error) {
	var out []models.DailyAnalytics
	for _, d := range f.docs {
		if filter.RouteID != "" && d.RouteID != filter.RouteID {
			continue
		}
		if filter.Date != nil && !d.Date.Equal(*filter.Date) {
			continue
		}
		if filter.From != nil && d.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && d.Date.After(*filter.To) {
			continue
		}
		out = append(out, clone(*d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (f *fakeDaily) GetDaily(_ context.Context, id primitive.ObjectID) (*models.DailyAnalytics, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, apperr.NotFound("analytics %s not found", id.Hex())
	}
	cp := clone(*d)
	return &cp, nil
}

func (f *fakeDaily) MarkIssueResolved(_ context.Context, docID, issueID primitive.ObjectID, by string, at time.Time) (bool, error) {
	d, ok := f.docs[docID]
	if !ok {
		return false, nil
	}
	issue := d.FindIssue(issueID)
	if issue == nil || issue.Resolved {
		return false, nil
	}
	issue.Resolved = true
	issue.ResolvedBy = by
	issue.ResolvedAt = &at
	return true, nil
}

func clone(d models.DailyAnalytics) models.DailyAnalytics {
	d.Stops = append([]models.StopVisit(nil), d.Stops...)
	d.Issues = append([]models.Issue(nil), d.Issues...)
	return d
}

type fakeRoutes struct {
	total, active int64
	calls         int
}

func (f *fakeRoutes) CountRoutes(_ context.Context, activeOnly bool) (int64, error) {
	f.calls++
	if activeOnly {
		return f.active, nil
	}
	return f.total, nil
}

func newTestService(now time.Time) (*Service, *fakeArrivals, *fakeDaily, *fakeRoutes) {
	arrivals := &fakeArrivals{}
	daily := newFakeDaily()
	routes := &fakeRoutes{total: 4, active: 3}
	svc := NewService(arrivals, daily, routes, time.UTC, nil)
	svc.now = func() time.Time { return now }
	return svc, arrivals, daily, routes
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestUpsertDailyTwiceKeepsOneMergedDocument(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	svc, _, daily, _ := newTestService(now)
	ctx := context.Background()

	first, err := svc.UpsertDaily(ctx, models.DailyUpdate{
		RouteID: "vv1",
		Metrics: &models.MetricsPatch{TotalTrips: intPtr(4), AverageDelay: floatPtr(3.5)},
		Issues:  []models.Issue{{Type: "delay", Severity: models.SeverityMedium, Description: "jam"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "VV1", first.RouteID)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), first.Date)

	svc.now = func() time.Time { return now.Add(time.Hour) }
	second, err := svc.UpsertDaily(ctx, models.DailyUpdate{
		RouteID: "VV1",
		Metrics: &models.MetricsPatch{TotalTrips: intPtr(6)},
		Stops: []models.StopVisit{{
			StopID: "s1", StopName: "Main Gate", ScheduledTime: now,
		}},
		Issues: []models.Issue{{Type: "breakdown", Severity: models.SeverityCritical, Description: "engine"}},
	})
	require.NoError(t, err)

	require.Len(t, daily.docs, 1)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 6, second.Metrics.TotalTrips)
	assert.Equal(t, 3.5, second.Metrics.AverageDelay)
	assert.Len(t, second.Stops, 1)
	assert.Len(t, second.Issues, 2)
	assert.Equal(t, now, second.CreatedAt)
	assert.False(t, second.Issues[0].ID.IsZero())
}

func TestUpsertDailyValidation(t *testing.T) {
	svc, _, daily, _ := newTestService(time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := svc.UpsertDaily(ctx, models.DailyUpdate{RouteID: " "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.UpsertDaily(ctx, models.DailyUpdate{
		RouteID: "VV1",
		Issues:  []models.Issue{{Type: "delay", Severity: "urgent", Description: "x"}},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.UpsertDaily(ctx, models.DailyUpdate{
		RouteID: "VV1",
		Stops:   []models.StopVisit{{StopName: "Main Gate"}},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, daily.docs)
}

func TestResolveIssueIsIdempotent(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	svc, _, _, _ := newTestService(now)
	ctx := context.Background()

	doc, err := svc.UpsertDaily(ctx, models.DailyUpdate{
		RouteID: "VV1",
		Issues:  []models.Issue{{Type: "safety", Severity: models.SeverityHigh, Description: "door"}},
	})
	require.NoError(t, err)
	issueID := doc.Issues[0].ID.Hex()

	resolved, err := svc.ResolveIssue(ctx, doc.ID.Hex(), issueID, "dispatcher")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, "dispatcher", resolved.ResolvedBy)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, now, *resolved.ResolvedAt)

	svc.now = func() time.Time { return now.Add(time.Hour) }
	again, err := svc.ResolveIssue(ctx, doc.ID.Hex(), issueID, "someone else")
	require.NoError(t, err)
	assert.True(t, again.Resolved)
	assert.Equal(t, "dispatcher", again.ResolvedBy)
	assert.Equal(t, now, *again.ResolvedAt)

	_, err = svc.ResolveIssue(ctx, doc.ID.Hex(), primitive.NewObjectID().Hex(), "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = svc.ResolveIssue(ctx, primitive.NewObjectID().Hex(), issueID, "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = svc.ResolveIssue(ctx, "zzz", issueID, "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestDashboardSummary(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	svc, _, _, routes := newTestService(now)
	ctx := context.Background()

	empty, err := svc.DashboardSummary(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.AverageDelay)
	assert.Equal(t, IssueHistogram{}, empty.Issues)
	assert.EqualValues(t, 4, empty.TotalRoutes)
	assert.EqualValues(t, 3, empty.ActiveRoutes)

	for _, u := range []models.DailyUpdate{
		{RouteID: "VV1", Metrics: &models.MetricsPatch{TotalTrips: intPtr(10), TotalPassengers: intPtr(200), AverageDelay: floatPtr(2), OnTimePercentage: floatPtr(90)},
			Issues: []models.Issue{{Type: "crowding", Severity: models.SeverityLow, Description: "full"}}},
		{RouteID: "VV2", Metrics: &models.MetricsPatch{TotalTrips: intPtr(5), TotalPassengers: intPtr(50), AverageDelay: floatPtr(5), OnTimePercentage: floatPtr(60)},
			Issues: []models.Issue{{Type: "breakdown", Severity: models.SeverityCritical, Description: "tyre"}}},
	} {
		_, err := svc.UpsertDaily(ctx, u)
		require.NoError(t, err)
	}

	summary, err := svc.DashboardSummary(ctx, "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", summary.Date)
	assert.Equal(t, 2, summary.ReportingRoutes)
	assert.Equal(t, 15, summary.TotalTrips)
	assert.Equal(t, 250, summary.TotalPassengers)
	assert.Equal(t, 3.5, summary.AverageDelay)
	assert.Equal(t, 75.0, summary.OnTimePercentage)
	assert.Equal(t, IssueHistogram{Low: 1, Critical: 1}, summary.Issues)

	// route counts come from the cache after the first call
	assert.Equal(t, 2, routes.calls)

	_, err = svc.DashboardSummary(ctx, "10/03/2025")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestPerformanceComparisonAndRouteAnalytics(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	svc, _, _, _ := newTestService(now)
	ctx := context.Background()

	for i, delay := range []float64{2, 6} {
		svc.now = func() time.Time { return now.AddDate(0, 0, i-1) }
		_, err := svc.UpsertDaily(ctx, models.DailyUpdate{RouteID: "VV1", Metrics: &models.MetricsPatch{
			TotalTrips: intPtr(3), AverageDelay: floatPtr(delay), OnTimePercentage: floatPtr(50 + delay),
		}})
		require.NoError(t, err)
	}
	svc.now = func() time.Time { return now }

	perf, err := svc.PerformanceComparison(ctx, "vv1", 7)
	require.NoError(t, err)
	assert.Equal(t, "VV1", perf.RouteID)
	assert.Equal(t, "7 days", perf.Period)
	assert.Equal(t, 6, perf.TotalTrips)
	assert.Equal(t, 4.0, perf.AverageDelay)
	assert.Equal(t, 54.0, perf.OnTimePercentage)
	require.Len(t, perf.DailyStats, 2)
	assert.True(t, perf.DailyStats[0].Date.Before(perf.DailyStats[1].Date))

	docs, err := svc.RouteAnalytics(ctx, "VV1", "2025-03-10", "2025-03-10", 0)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	_, err = svc.RouteAnalytics(ctx, "VV1", "2025-03-10", "", 7)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	empty, err := svc.PerformanceComparison(ctx, "VV9", 7)
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.AverageDelay)
	assert.Empty(t, empty.DailyStats)
}

func TestIssueReportsFilterAndOrder(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	svc, _, _, _ := newTestService(now)
	ctx := context.Background()

	doc, err := svc.UpsertDaily(ctx, models.DailyUpdate{RouteID: "VV1", Issues: []models.Issue{
		{Type: "delay", Severity: models.SeverityLow, Description: "old", Timestamp: now.Add(-2 * time.Hour)},
		{Type: "delay", Severity: models.SeverityHigh, Description: "new", Timestamp: now.Add(-time.Hour)},
	}})
	require.NoError(t, err)
	_, err = svc.ResolveIssue(ctx, doc.ID.Hex(), doc.Issues[0].ID.Hex(), "ops")
	require.NoError(t, err)

	all, err := svc.IssueReports(ctx, IssueQuery{Days: 30})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "new", all[0].Description)
	assert.Equal(t, "VV1", all[0].RouteID)
	assert.Equal(t, doc.ID, all[0].AnalyticsID)

	open := false
	unresolved, err := svc.IssueReports(ctx, IssueQuery{Days: 30, Resolved: &open})
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, models.SeverityHigh, unresolved[0].Severity)

	low, err := svc.IssueReports(ctx, IssueQuery{Days: 30, Severity: "low"})
	require.NoError(t, err)
	assert.Len(t, low, 1)

	_, err = svc.IssueReports(ctx, IssueQuery{Days: 30, Severity: "urgent"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestArrivalViews(t *testing.T) {
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	svc, arrivals, _, _ := newTestService(now)
	ctx := context.Background()

	day := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	arrivals.records = []models.ArrivalRecord{
		arrival("VV1", "Main Gate", 3, day, 10),
		arrival("VV1", "Library", 20, day.Add(time.Minute), 30),
		arrival("VV2", "Main Gate", 1, day.AddDate(0, 0, -1), 5),
		arrival("VV2", "Main Gate", 30, day.AddDate(0, 0, -40), 5),
	}

	summary, err := svc.Summary(ctx, "2025-03-01", "2025-03-10", "", Scope{})
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "2025-03-09", summary[0].Key)
	assert.Equal(t, "2025-03-10", summary[1].Key)
	assert.Equal(t, 11.5, summary[1].AvgDelay)

	_, err = svc.Summary(ctx, "2025-03-01", "2025-03-10", "year", Scope{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.Summary(ctx, "2025-03-01", "", "day", Scope{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	routes, err := svc.RoutePerformance(ctx, "2025-03-01", "2025-03-10", Scope{})
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "VV2", routes[0].Key)
	assert.Equal(t, 100.0, routes[0].OnTimePercentage)
	assert.Equal(t, 50.0, routes[1].OnTimePercentage)
	assert.Equal(t, 2, routes[1].StopCount)

	stops, err := svc.StopPerformance(ctx, "2025-03-01", "2025-03-10", Scope{RouteID: "VV1"})
	require.NoError(t, err)
	require.Len(t, stops, 2)
	assert.Equal(t, "Library", stops[0].Key)
	assert.Equal(t, 1, stops[0].RouteCount)

	gate, err := svc.Summary(ctx, "2025-03-01", "2025-03-10", "day", Scope{StopName: "Main Gate"})
	require.NoError(t, err)
	require.Len(t, gate, 2)
	assert.Equal(t, 1, gate[1].TotalArrivals)
	assert.Equal(t, 3.0, gate[1].AvgDelay)

	vv1, err := svc.RoutePerformance(ctx, "2025-03-01", "2025-03-10", Scope{RouteID: "VV1"})
	require.NoError(t, err)
	require.Len(t, vv1, 1)
	assert.Equal(t, "VV1", vv1[0].Key)

	stats, err := svc.RouteStats(ctx, "VV1", "")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", stats.Date)
	assert.Equal(t, 2, stats.OverallStats.TotalArrivals)
	assert.Equal(t, 50.0, stats.OverallStats.OnTimePercentage)
	assert.Equal(t, 11.5, stats.OverallStats.AverageDelay)

	report, err := svc.RouteArrivalAnalytics(ctx, "VV2", 7)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.TotalArrivals)
	assert.Len(t, report.DailyStats, 1)

	_, err = svc.RouteArrivalAnalytics(ctx, "VV2", 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
