package models

import "time"

// DailyDigest is the end-of-day fleet report persisted to MongoDB and
// delivered to the configured channels.
type DailyDigest struct {
	Date             string    `bson:"date" json:"date"`
	TotalRoutes      int64     `bson:"totalRoutes" json:"totalRoutes"`
	ActiveRoutes     int64     `bson:"activeRoutes" json:"activeRoutes"`
	ReportingRoutes  int       `bson:"reportingRoutes" json:"reportingRoutes"`
	TotalTrips       int       `bson:"totalTrips" json:"totalTrips"`
	TotalPassengers  int       `bson:"totalPassengers" json:"totalPassengers"`
	AverageDelay     float64   `bson:"averageDelay" json:"averageDelay"`
	TotalArrivals    int       `bson:"totalArrivals" json:"totalArrivals"`
	OnTimeArrivals   int       `bson:"onTimeArrivals" json:"onTimeArrivals"`
	DelayedArrivals  int       `bson:"delayedArrivals" json:"delayedArrivals"`
	OnTimePercentage float64   `bson:"onTimePercentage" json:"onTimePercentage"`
	OpenIssues       int       `bson:"openIssues" json:"openIssues"`
	CriticalIssues   int       `bson:"criticalIssues" json:"criticalIssues"`
	Text             string    `bson:"text" json:"text"`
	CreatedAt        time.Time `bson:"createdAt" json:"createdAt"`
}
