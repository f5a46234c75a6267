package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestClassifyDelay(t *testing.T) {
	tests := []struct {
		delay int
		want  ArrivalStatus
	}{
		{delay: -30, want: StatusOnTime},
		{delay: -1, want: StatusOnTime},
		{delay: 0, want: StatusOnTime},
		{delay: 5, want: StatusOnTime},
		{delay: 6, want: StatusDelayed},
		{delay: 90, want: StatusDelayed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyDelay(tt.delay), "delay %d", tt.delay)
	}
}

// Early arrivals are still classified on time; the early status is never derived.
func TestClassifyDelayNeverReturnsEarly(t *testing.T) {
	for delay := -720; delay <= 720; delay++ {
		assert.NotEqual(t, StatusEarly, ClassifyDelay(delay))
	}
}

func TestDailyAnalyticsMergeIsShallowAndAppends(t *testing.T) {
	trips, passengers, moreTrips := 5, 120, 7
	doc := DailyAnalytics{RouteID: "VV1"}

	doc.Merge(DailyUpdate{
		Metrics: &MetricsPatch{TotalTrips: &trips, TotalPassengers: &passengers},
		Issues:  []Issue{{ID: primitive.NewObjectID(), Severity: SeverityLow}},
	})
	doc.Merge(DailyUpdate{
		Metrics: &MetricsPatch{TotalTrips: &moreTrips},
		Stops:   []StopVisit{{StopID: "s1", StopName: "Main Gate"}},
		Issues:  []Issue{{ID: primitive.NewObjectID(), Severity: SeverityHigh}},
	})

	assert.Equal(t, 7, doc.Metrics.TotalTrips)
	assert.Equal(t, 120, doc.Metrics.TotalPassengers)
	assert.Len(t, doc.Stops, 1)
	assert.Len(t, doc.Issues, 2)
}

func TestApplyPatchLeavesDerivedFields(t *testing.T) {
	rec := ArrivalRecord{ScheduledTime: "10:00 AM", ActualTime: "10:20 AM", Delay: 20, Status: StatusDelayed}
	actual := "10:01 AM"
	notes := "traffic cleared"

	rec.ApplyPatch(ArrivalPatch{ActualTime: &actual, DriverNotes: &notes})

	assert.Equal(t, "10:01 AM", rec.ActualTime)
	assert.Equal(t, "traffic cleared", rec.DriverNotes)
	assert.Equal(t, 20, rec.Delay)
	assert.Equal(t, StatusDelayed, rec.Status)
}

func TestArrivalFilterIsEmpty(t *testing.T) {
	assert.True(t, ArrivalFilter{}.IsEmpty())
	assert.False(t, ArrivalFilter{RouteID: "VV1"}.IsEmpty())
}
