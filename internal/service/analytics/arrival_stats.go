package analytics

import (
	"context"
	"fmt"

	"github.com/mamadbah2/bustrack/internal/apperr"
	"github.com/mamadbah2/bustrack/internal/domain/models"
	"github.com/mamadbah2/bustrack/internal/timeutil"
)

// RoutePerformance is a route bucket with its distinct stop count.
type RoutePerformance struct {
	Bucket
	StopCount int `json:"stopCount"`
}

// StopPerformance is a stop bucket with its distinct route count.
type StopPerformance struct {
	Bucket
	RouteCount int `json:"routeCount"`
}

// Overall summarises a set of arrivals.
type Overall struct {
	TotalArrivals    int     `json:"totalArrivals"`
	TotalOnTime      int     `json:"totalOnTime"`
	TotalDelayed     int     `json:"totalDelayed"`
	OnTimePercentage float64 `json:"onTimePercentage"`
	AverageDelay     float64 `json:"averageDelay"`
}

// RouteStats is the per-stop breakdown of a route's day.
type RouteStats struct {
	RouteID      string   `json:"routeId"`
	Date         string   `json:"date"`
	OverallStats Overall  `json:"overallStats"`
	StopStats    []Bucket `json:"stopStats"`
}

// ArrivalAnalytics is a route's trailing-window report.
type ArrivalAnalytics struct {
	RouteID    string   `json:"routeId"`
	Period     string   `json:"period"`
	Summary    Overall  `json:"summary"`
	DailyStats []Bucket `json:"dailyStats"`
	StopStats  []Bucket `json:"stopStats"`
}

// Scope optionally narrows arrival statistics to one route and/or stop.
type Scope struct {
	RouteID  string
	StopName string
}

func (sc Scope) filter() models.ArrivalFilter {
	return models.ArrivalFilter{RouteID: sc.RouteID, StopName: sc.StopName}
}

// Summary groups the arrivals of [startDate, endDate] by day, week or month.
func (s *Service) Summary(ctx context.Context, startDate, endDate, groupBy string, scope Scope) ([]Bucket, error) {
	if groupBy == "" {
		groupBy = string(ByDay)
	}
	dim := Dimension(groupBy)
	if dim != ByDay && dim != ByWeek && dim != ByMonth {
		return nil, apperr.Validation("groupBy must be day, week or month")
	}

	samples, err := s.arrivalSamples(ctx, startDate, endDate, scope.filter())
	if err != nil {
		return nil, err
	}

	key, err := KeyFor(dim, s.location)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	buckets := Aggregate(samples, key)
	SortByKey(buckets)
	return buckets, nil
}

// RoutePerformance ranks routes by on-time percentage over [startDate, endDate].
func (s *Service) RoutePerformance(ctx context.Context, startDate, endDate string, scope Scope) ([]RoutePerformance, error) {
	samples, err := s.arrivalSamples(ctx, startDate, endDate, scope.filter())
	if err != nil {
		return nil, err
	}

	key, _ := KeyFor(ByRoute, s.location)
	buckets := Aggregate(samples, key)
	SortByOnTimeDesc(buckets)

	out := make([]RoutePerformance, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, RoutePerformance{Bucket: b, StopCount: b.StopCount()})
	}
	return out, nil
}

// StopPerformance ranks stops by average delay over [startDate, endDate].
func (s *Service) StopPerformance(ctx context.Context, startDate, endDate string, scope Scope) ([]StopPerformance, error) {
	samples, err := s.arrivalSamples(ctx, startDate, endDate, scope.filter())
	if err != nil {
		return nil, err
	}

	key, _ := KeyFor(ByStop, s.location)
	buckets := Aggregate(samples, key)
	SortByDelayDesc(buckets)

	out := make([]StopPerformance, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, StopPerformance{Bucket: b, RouteCount: b.RouteCount()})
	}
	return out, nil
}

// RouteStats breaks one day of a route down by stop. An empty date means today.
func (s *Service) RouteStats(ctx context.Context, routeID, date string) (RouteStats, error) {
	day := s.now()
	if date != "" {
		parsed, err := timeutil.ParseDate(date, s.location)
		if err != nil {
			return RouteStats{}, err
		}
		day = parsed
	}
	from, to := timeutil.DayBounds(day, s.location)

	records, err := s.arrivals.FindArrivals(ctx,
		models.ArrivalFilter{RouteID: routeID, From: &from, To: &to, ToExclusive: true},
		models.ListOptions{Sort: models.SortOldestFirst})
	if err != nil {
		return RouteStats{}, err
	}

	key, _ := KeyFor(ByStop, s.location)
	stops := Aggregate(ArrivalSamples(records), key)
	SortByKey(stops)

	// The overall delay is the mean of the per-stop means.
	overall := Overall{}
	var delaySum float64
	for _, b := range stops {
		overall.TotalArrivals += b.TotalArrivals
		overall.TotalOnTime += b.OnTimeCount
		overall.TotalDelayed += b.DelayedCount
		delaySum += b.AvgDelay
	}
	overall.OnTimePercentage = Percent(overall.TotalOnTime, overall.TotalArrivals)
	overall.AverageDelay = Round2(Ratio(delaySum, float64(len(stops))))

	return RouteStats{
		RouteID:      routeID,
		Date:         from.Format(timeutil.DateLayout),
		OverallStats: overall,
		StopStats:    stops,
	}, nil
}

// RouteArrivalAnalytics reports a route's last days of arrivals with daily
// and per-stop breakdowns.
func (s *Service) RouteArrivalAnalytics(ctx context.Context, routeID string, days int) (ArrivalAnalytics, error) {
	window, err := timeutil.ResolveRange("", "", days, s.now(), s.location)
	if err != nil {
		return ArrivalAnalytics{}, err
	}

	records, err := s.arrivals.FindArrivals(ctx,
		models.ArrivalFilter{RouteID: routeID, From: &window.From, To: &window.To},
		models.ListOptions{Sort: models.SortOldestFirst})
	if err != nil {
		return ArrivalAnalytics{}, err
	}
	samples := ArrivalSamples(records)

	total := Total(samples)
	dayKey, _ := KeyFor(ByDay, s.location)
	daily := Aggregate(samples, dayKey)
	SortByKey(daily)
	stopKey, _ := KeyFor(ByStop, s.location)
	stops := Aggregate(samples, stopKey)
	SortByDelayDesc(stops)

	return ArrivalAnalytics{
		RouteID: routeID,
		Period:  fmt.Sprintf("%d days", days),
		Summary: Overall{
			TotalArrivals:    total.TotalArrivals,
			TotalOnTime:      total.OnTimeCount,
			TotalDelayed:     total.DelayedCount,
			OnTimePercentage: total.OnTimePercentage,
			AverageDelay:     total.AvgDelay,
		},
		DailyStats: daily,
		StopStats:  stops,
	}, nil
}

// OnTimeRate summarises every arrival inside r.
func (s *Service) OnTimeRate(ctx context.Context, r timeutil.Range) (Overall, error) {
	records, err := s.arrivals.FindArrivals(ctx,
		models.ArrivalFilter{From: &r.From, To: &r.To},
		models.ListOptions{Sort: models.SortOldestFirst})
	if err != nil {
		return Overall{}, err
	}
	total := Total(ArrivalSamples(records))
	return Overall{
		TotalArrivals:    total.TotalArrivals,
		TotalOnTime:      total.OnTimeCount,
		TotalDelayed:     total.DelayedCount,
		OnTimePercentage: total.OnTimePercentage,
		AverageDelay:     total.AvgDelay,
	}, nil
}

func (s *Service) arrivalSamples(ctx context.Context, startDate, endDate string, filter models.ArrivalFilter) ([]Sample, error) {
	window, err := timeutil.ExplicitRange(startDate, endDate, s.location)
	if err != nil {
		return nil, err
	}
	filter.From, filter.To = &window.From, &window.To

	records, err := s.arrivals.FindArrivals(ctx, filter, models.ListOptions{Sort: models.SortOldestFirst})
	if err != nil {
		return nil, err
	}
	return ArrivalSamples(records), nil
}
