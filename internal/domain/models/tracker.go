package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TrackerStatus is the operational state of a tracking device.
type TrackerStatus string

const (
	TrackerActive      TrackerStatus = "active"
	TrackerInactive    TrackerStatus = "inactive"
	TrackerMaintenance TrackerStatus = "maintenance"
)

// TrackerState is the current-position snapshot owned by one device.
type TrackerState struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrackerID       string             `bson:"trackerId" json:"trackerId"`
	TrackerName     string             `bson:"trackerName" json:"trackerName"`
	RouteID         string             `bson:"routeId" json:"routeId"`
	BusNumber       string             `bson:"busNumber" json:"busNumber"`
	CurrentLocation GeoPoint           `bson:"currentLocation" json:"currentLocation"`
	CurrentArea     string             `bson:"currentArea" json:"currentArea"`
	CurrentTime     time.Time          `bson:"currentTime" json:"currentTime"`
	LastUpdateTime  time.Time          `bson:"lastUpdateTime" json:"lastUpdateTime"`
	Status          TrackerStatus      `bson:"status" json:"status"`
	Speed           float64            `bson:"speed" json:"speed"`
	Heading         float64            `bson:"heading" json:"heading"`
	BatteryLevel    float64            `bson:"batteryLevel" json:"batteryLevel"`
	SignalStrength  float64            `bson:"signalStrength" json:"signalStrength"`
	IsOnline        bool               `bson:"isOnline" json:"isOnline"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// TrackerPing is a location report sent by a device.
type TrackerPing struct {
	TrackerID      string   `json:"trackerId" validate:"notblank"`
	TrackerName    string   `json:"trackerName" validate:"notblank"`
	RouteID        string   `json:"routeId" validate:"notblank"`
	BusNumber      string   `json:"busNumber" validate:"notblank"`
	Lat            *float64 `json:"lat" validate:"required"`
	Lng            *float64 `json:"lng" validate:"required"`
	Area           string   `json:"area" validate:"notblank"`
	Speed          *float64 `json:"speed,omitempty"`
	Heading        *float64 `json:"heading,omitempty"`
	BatteryLevel   *float64 `json:"batteryLevel,omitempty"`
	SignalStrength *float64 `json:"signalStrength,omitempty"`
}

// TrackerFilter narrows tracker listings.
type TrackerFilter struct {
	RouteID   string
	BusNumber string
	Status    TrackerStatus
	// Online restricts to online (true) or offline (false) trackers when set.
	Online *bool
}

// RouteCount is a group-by-route counter.
type RouteCount struct {
	RouteID string `bson:"_id" json:"routeId"`
	Count   int    `bson:"count" json:"count"`
}

// TrackerSummary backs the tracker dashboard.
type TrackerSummary struct {
	TotalTrackers       int64        `json:"totalTrackers"`
	ActiveTrackers      int64        `json:"activeTrackers"`
	InactiveTrackers    int64        `json:"inactiveTrackers"`
	MaintenanceTrackers int64        `json:"maintenanceTrackers"`
	RecentActivity      int64        `json:"recentActivity"`
	TrackersByRoute     []RouteCount `json:"trackersByRoute"`
}
