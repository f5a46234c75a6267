package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ArrivalStatus classifies an arrival by its delay.
type ArrivalStatus string

const (
	StatusOnTime  ArrivalStatus = "on_time"
	StatusDelayed ArrivalStatus = "delayed"
	// StatusEarly is accepted by the schema and by filters but ClassifyDelay never returns it.
	StatusEarly ArrivalStatus = "early"
)

// OnTimeThresholdMinutes is the largest delay still counted as on time.
const OnTimeThresholdMinutes = 5

// ClassifyDelay maps a delay in minutes to a status. Negative delays are on time.
func ClassifyDelay(delay int) ArrivalStatus {
	if delay <= OnTimeThresholdMinutes {
		return StatusOnTime
	}
	return StatusDelayed
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// ArrivalRecord is one observed bus arrival at one stop. ArrivalDate is the
// calendar day of ArrivalTimestamp and backs the one-per-day unique index.
type ArrivalRecord struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RouteID          string             `bson:"routeId" json:"routeId"`
	BusNumber        string             `bson:"busNumber" json:"busNumber"`
	StopName         string             `bson:"stopName" json:"stopName"`
	ScheduledTime    string             `bson:"scheduledTime" json:"scheduledTime"`
	ActualTime       string             `bson:"actualTime" json:"actualTime"`
	ArrivalTimestamp time.Time          `bson:"arrivalTimestamp" json:"arrivalTimestamp"`
	ArrivalDate      string             `bson:"arrivalDate" json:"arrivalDate"`
	Delay            int                `bson:"delay" json:"delay"`
	Status           ArrivalStatus      `bson:"status" json:"status"`
	Location         GeoPoint           `bson:"location" json:"location"`
	Occupancy        string             `bson:"occupancy" json:"occupancy"`
	Weather          string             `bson:"weather" json:"weather"`
	TrafficCondition string             `bson:"trafficCondition" json:"trafficCondition"`
	DriverNotes      string             `bson:"driverNotes" json:"driverNotes"`
	PassengerCount   int                `bson:"passengerCount" json:"passengerCount"`
	IsActive         bool               `bson:"isActive" json:"isActive"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ArrivalSubmission is the raw payload accepted when recording an arrival.
// Pointer fields distinguish "absent" from zero values.
type ArrivalSubmission struct {
	RouteID          string         `json:"routeId" validate:"notblank"`
	BusNumber        string         `json:"busNumber" validate:"notblank"`
	StopName         string         `json:"stopName" validate:"notblank"`
	ScheduledTime    string         `json:"scheduledTime" validate:"notblank"`
	ActualTime       string         `json:"actualTime" validate:"notblank"`
	Location         *LocationInput `json:"location" validate:"required"`
	Occupancy        string         `json:"occupancy,omitempty" validate:"omitempty,oneof=low medium high"`
	PassengerCount   *int           `json:"passengerCount,omitempty" validate:"omitempty,gte=0"`
	DriverNotes      string         `json:"driverNotes,omitempty"`
	Weather          string         `json:"weather,omitempty"`
	TrafficCondition string         `json:"trafficCondition,omitempty" validate:"omitempty,oneof=light moderate heavy"`
}

// LocationInput is a coordinate pair where either side may be missing.
type LocationInput struct {
	Lat *float64 `json:"lat" validate:"required"`
	Lng *float64 `json:"lng" validate:"required"`
}

// ArrivalPatch lists the fields an update may change. Delay and status are
// derived at creation and are not recomputed by a patch.
type ArrivalPatch struct {
	RouteID          *string        `json:"routeId,omitempty" validate:"omitempty,notblank"`
	BusNumber        *string        `json:"busNumber,omitempty" validate:"omitempty,notblank"`
	StopName         *string        `json:"stopName,omitempty" validate:"omitempty,notblank"`
	ScheduledTime    *string        `json:"scheduledTime,omitempty"`
	ActualTime       *string        `json:"actualTime,omitempty"`
	Location         *LocationInput `json:"location,omitempty" validate:"omitempty"`
	Occupancy        *string        `json:"occupancy,omitempty" validate:"omitempty,oneof=low medium high"`
	PassengerCount   *int           `json:"passengerCount,omitempty" validate:"omitempty,gte=0"`
	DriverNotes      *string        `json:"driverNotes,omitempty"`
	Weather          *string        `json:"weather,omitempty"`
	TrafficCondition *string        `json:"trafficCondition,omitempty" validate:"omitempty,oneof=light moderate heavy"`
	IsActive         *bool          `json:"isActive,omitempty"`
}

// ArrivalFilter narrows arrival queries. Zero values mean "any".
type ArrivalFilter struct {
	IDs       []primitive.ObjectID
	RouteID   string
	BusNumber string
	StopName  string
	Status    ArrivalStatus
	From      *time.Time
	To        *time.Time
	// ToExclusive switches the upper bound from $lte to $lt.
	ToExclusive bool
}

// IsEmpty reports whether the filter would match every arrival.
func (f ArrivalFilter) IsEmpty() bool {
	return len(f.IDs) == 0 && f.RouteID == "" && f.BusNumber == "" && f.StopName == "" &&
		f.Status == "" && f.From == nil && f.To == nil
}

// SortOrder controls arrivalTimestamp ordering.
type SortOrder int

const (
	SortNewestFirst SortOrder = iota
	SortOldestFirst
)

// ListOptions carries sort and pagination for listings.
type ListOptions struct {
	Sort  SortOrder
	Limit int64
	Skip  int64
}
