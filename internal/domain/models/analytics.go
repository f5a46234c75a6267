package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueSeverity ranks an incident report.
type IssueSeverity string

const (
	SeverityLow      IssueSeverity = "low"
	SeverityMedium   IssueSeverity = "medium"
	SeverityHigh     IssueSeverity = "high"
	SeverityCritical IssueSeverity = "critical"
)

// DailyMetrics holds the per-route-per-day counters.
type DailyMetrics struct {
	TotalTrips        int     `bson:"totalTrips" json:"totalTrips"`
	TotalPassengers   int     `bson:"totalPassengers" json:"totalPassengers"`
	AverageDelay      float64 `bson:"averageDelay" json:"averageDelay"`
	OnTimePercentage  float64 `bson:"onTimePercentage" json:"onTimePercentage"`
	TotalDistance     float64 `bson:"totalDistance" json:"totalDistance"`
	FuelConsumption   float64 `bson:"fuelConsumption" json:"fuelConsumption"`
	MaintenanceIssues int     `bson:"maintenanceIssues" json:"maintenanceIssues"`
}

// MetricsPatch is a shallow metrics update: only present fields overwrite.
type MetricsPatch struct {
	TotalTrips        *int     `json:"totalTrips,omitempty"`
	TotalPassengers   *int     `json:"totalPassengers,omitempty"`
	AverageDelay      *float64 `json:"averageDelay,omitempty"`
	OnTimePercentage  *float64 `json:"onTimePercentage,omitempty"`
	TotalDistance     *float64 `json:"totalDistance,omitempty"`
	FuelConsumption   *float64 `json:"fuelConsumption,omitempty"`
	MaintenanceIssues *int     `json:"maintenanceIssues,omitempty"`
}

// Apply overwrites the metrics present in p.
func (m *DailyMetrics) Apply(p *MetricsPatch) {
	if p == nil {
		return
	}
	if p.TotalTrips != nil {
		m.TotalTrips = *p.TotalTrips
	}
	if p.TotalPassengers != nil {
		m.TotalPassengers = *p.TotalPassengers
	}
	if p.AverageDelay != nil {
		m.AverageDelay = *p.AverageDelay
	}
	if p.OnTimePercentage != nil {
		m.OnTimePercentage = *p.OnTimePercentage
	}
	if p.TotalDistance != nil {
		m.TotalDistance = *p.TotalDistance
	}
	if p.FuelConsumption != nil {
		m.FuelConsumption = *p.FuelConsumption
	}
	if p.MaintenanceIssues != nil {
		m.MaintenanceIssues = *p.MaintenanceIssues
	}
}

// StopVisit is one stop sub-record of a daily analytics document.
type StopVisit struct {
	StopID        string     `bson:"stopId" json:"stopId" validate:"notblank"`
	StopName      string     `bson:"stopName" json:"stopName" validate:"notblank"`
	ScheduledTime time.Time  `bson:"scheduledTime" json:"scheduledTime" validate:"required"`
	ActualTime    *time.Time `bson:"actualTime,omitempty" json:"actualTime,omitempty"`
	Delay         float64    `bson:"delay" json:"delay"`
	Passengers    int        `bson:"passengers" json:"passengers"`
}

// Issue is an incident report attached to a daily analytics document.
type Issue struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Type        string             `bson:"type" json:"type" validate:"oneof=delay breakdown crowding safety other"`
	Severity    IssueSeverity      `bson:"severity" json:"severity" validate:"oneof=low medium high critical"`
	Description string             `bson:"description" json:"description" validate:"notblank"`
	Location    string             `bson:"location,omitempty" json:"location,omitempty"`
	Timestamp   time.Time          `bson:"timestamp" json:"timestamp"`
	Resolved    bool               `bson:"resolved" json:"resolved"`
	ResolvedBy  string             `bson:"resolvedBy,omitempty" json:"resolvedBy,omitempty"`
	ResolvedAt  *time.Time         `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
}

// DailyAnalytics aggregates one route's operations for one calendar day.
type DailyAnalytics struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RouteID   string             `bson:"routeId" json:"routeId"`
	Date      time.Time          `bson:"date" json:"date"`
	Metrics   DailyMetrics       `bson:"metrics" json:"metrics"`
	Stops     []StopVisit        `bson:"stops" json:"stops"`
	Issues    []Issue            `bson:"issues" json:"issues"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// DailyUpdate is the upsert payload for a route's document of the day.
type DailyUpdate struct {
	RouteID string        `json:"routeId" validate:"notblank"`
	Metrics *MetricsPatch `json:"metrics,omitempty"`
	Stops   []StopVisit   `json:"stops,omitempty" validate:"dive"`
	Issues  []Issue       `json:"issues,omitempty" validate:"dive"`
}

// Merge folds u into d: metrics merge shallowly, stops and issues append.
func (d *DailyAnalytics) Merge(u DailyUpdate) {
	d.Metrics.Apply(u.Metrics)
	d.Stops = append(d.Stops, u.Stops...)
	d.Issues = append(d.Issues, u.Issues...)
}

// FindIssue returns the issue with the given id, or nil.
func (d *DailyAnalytics) FindIssue(id primitive.ObjectID) *Issue {
	for i := range d.Issues {
		if d.Issues[i].ID == id {
			return &d.Issues[i]
		}
	}
	return nil
}

// DailyFilter narrows daily analytics queries.
type DailyFilter struct {
	RouteID string
	From    *time.Time
	To      *time.Time
	// Date matches documents of exactly this (midnight) date.
	Date *time.Time
}

// IssueReport is an issue flattened with the document it belongs to.
type IssueReport struct {
	Issue
	AnalyticsID primitive.ObjectID `json:"analyticsId"`
	RouteID     string             `json:"routeId"`
	Date        time.Time          `json:"date"`
}
