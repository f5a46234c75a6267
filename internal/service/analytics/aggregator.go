package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mamadbah2/bustrack/internal/domain/models"
	"github.com/mamadbah2/bustrack/internal/timeutil"
)

// Sample is one observation fed to the aggregator. Raw arrivals and daily
// documents are both reduced to samples by their source adapters.
type Sample struct {
	At       time.Time
	RouteID  string
	StopName string
	Status   models.ArrivalStatus
	Delay    float64
	// OnTime is in percentage points: 0 or 100 for a single arrival, the
	// stored percentage for a daily document.
	OnTime     float64
	Passengers int
	Trips      int
}

// Dimension names a grouping key.
type Dimension string

const (
	ByDay   Dimension = "day"
	ByWeek  Dimension = "week"
	ByMonth Dimension = "month"
	ByRoute Dimension = "route"
	ByStop  Dimension = "stop"
)

// KeyFunc returns the grouping key of a sample.
type KeyFunc func(Sample) string

// KeyFor returns the key function of d. Calendar keys are computed in loc.
func KeyFor(d Dimension, loc *time.Location) (KeyFunc, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch d {
	case ByDay:
		return func(s Sample) string { return s.At.In(loc).Format(timeutil.DateLayout) }, nil
	case ByWeek:
		return func(s Sample) string {
			year, week := s.At.In(loc).ISOWeek()
			return fmt.Sprintf("%d-W%02d", year, week)
		}, nil
	case ByMonth:
		return func(s Sample) string { return s.At.In(loc).Format("2006-01") }, nil
	case ByRoute:
		return func(s Sample) string { return s.RouteID }, nil
	case ByStop:
		return func(s Sample) string { return s.StopName }, nil
	}
	return nil, fmt.Errorf("unknown grouping %q", d)
}

// Bucket is the aggregate of one group.
type Bucket struct {
	Key               string  `json:"key"`
	TotalArrivals     int     `json:"totalArrivals"`
	OnTimeCount       int     `json:"onTimeCount"`
	DelayedCount      int     `json:"delayedCount"`
	EarlyCount        int     `json:"earlyCount"`
	AvgDelay          float64 `json:"avgDelay"`
	AvgPassengerCount float64 `json:"avgPassengerCount"`
	TotalPassengers   int     `json:"totalPassengers"`
	OnTimePercentage  float64 `json:"onTimePercentage"`
	TotalTrips        int     `json:"totalTrips"`

	routes map[string]struct{}
	stops  map[string]struct{}
}

// RouteCount is the number of distinct routes seen in the bucket.
func (b Bucket) RouteCount() int { return len(b.routes) }

// StopCount is the number of distinct stops seen in the bucket.
func (b Bucket) StopCount() int { return len(b.stops) }

type accumulator struct {
	bucket     Bucket
	delay      float64
	onTime     float64
	passengers float64
}

func newAccumulator(key string) *accumulator {
	return &accumulator{bucket: Bucket{
		Key:    key,
		routes: make(map[string]struct{}),
		stops:  make(map[string]struct{}),
	}}
}

func (a *accumulator) add(s Sample) {
	b := &a.bucket
	b.TotalArrivals++
	switch s.Status {
	case models.StatusOnTime:
		b.OnTimeCount++
	case models.StatusDelayed:
		b.DelayedCount++
	case models.StatusEarly:
		b.EarlyCount++
	}
	b.TotalPassengers += s.Passengers
	b.TotalTrips += s.Trips
	if s.RouteID != "" {
		b.routes[s.RouteID] = struct{}{}
	}
	if s.StopName != "" {
		b.stops[s.StopName] = struct{}{}
	}

	a.delay += s.Delay
	a.onTime += s.OnTime
	a.passengers += float64(s.Passengers)
}

func (a *accumulator) finish() Bucket {
	b := a.bucket
	n := float64(b.TotalArrivals)
	b.AvgDelay = Ratio(a.delay, n)
	b.AvgPassengerCount = Ratio(a.passengers, n)
	b.OnTimePercentage = Ratio(a.onTime, n)
	return b
}

// Rounded returns b with its means and percentage rounded to two decimals.
// Buckets built from arrivals keep the exact means.
func (b Bucket) Rounded() Bucket {
	b.AvgDelay = Round2(b.AvgDelay)
	b.AvgPassengerCount = Round2(b.AvgPassengerCount)
	b.OnTimePercentage = Round2(b.OnTimePercentage)
	return b
}

// Aggregate groups samples by key. The result is ordered by first
// appearance; callers apply the ordering their view needs.
func Aggregate(samples []Sample, key KeyFunc) []Bucket {
	index := make(map[string]*accumulator)
	order := make([]string, 0)

	for _, s := range samples {
		k := key(s)
		acc, ok := index[k]
		if !ok {
			acc = newAccumulator(k)
			index[k] = acc
			order = append(order, k)
		}
		acc.add(s)
	}

	buckets := make([]Bucket, 0, len(order))
	for _, k := range order {
		buckets = append(buckets, index[k].finish())
	}
	return buckets
}

// Total folds every sample into one bucket. No samples yields a zeroed bucket.
func Total(samples []Sample) Bucket {
	acc := newAccumulator("")
	for _, s := range samples {
		acc.add(s)
	}
	return acc.finish()
}

// SortByKey orders time buckets chronologically.
func SortByKey(buckets []Bucket) {
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
}

// SortByOnTimeDesc orders route buckets best first.
func SortByOnTimeDesc(buckets []Bucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].OnTimePercentage != buckets[j].OnTimePercentage {
			return buckets[i].OnTimePercentage > buckets[j].OnTimePercentage
		}
		return buckets[i].Key < buckets[j].Key
	})
}

// SortByDelayDesc orders stop buckets worst first.
func SortByDelayDesc(buckets []Bucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].AvgDelay != buckets[j].AvgDelay {
			return buckets[i].AvgDelay > buckets[j].AvgDelay
		}
		return buckets[i].Key < buckets[j].Key
	})
}

// Ratio divides n by d, returning 0 when d is 0.
func Ratio(n, d float64) float64 {
	if d == 0 {
		return 0
	}
	return n / d
}

// Percent returns part/whole as a percentage rounded to two decimals.
func Percent(part, whole int) float64 {
	return Round2(Ratio(float64(part)*100, float64(whole)))
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
