package models

import (
	"time"

	"tracker.transitlive.org/internal/utils"
)

// Vehicle status values reported on the live endpoints and the push channel.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Stop is a component of a Route: a stable identifier, a display name and a
// WGS84 coordinate. The order of stops within a route is the traversal order
// from origin to terminus.
type Stop struct {
	StopID    string  `json:"stopId" db:"stop_id"`
	Name      string  `json:"name" db:"name"`
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}

// Route owns an ordered list of stops. Routes are immutable once created by
// an admin; a route with fewer than two stops is invalid.
type Route struct {
	RouteID   string `json:"routeId" db:"route_id"`
	RouteName string `json:"routeName" db:"route_name"`
	Stops     []Stop `json:"stops"`
}

// Polyline is the stored drivable path through a route's stops, exactly one
// per route. Geometry is a precision-5 encoded polyline string produced once
// by the external router and stored verbatim.
type Polyline struct {
	RouteID   string  `json:"_id" db:"route_id"`
	RouteName string  `json:"routeName" db:"route_name"`
	Geometry  string  `json:"geometry" db:"geometry"`
	Distance  float64 `json:"distance" db:"distance"`
	Duration  float64 `json:"duration" db:"duration"`
}

// Vehicle binds an opaque vehicle identifier to exactly one route.
type Vehicle struct {
	VehicleID string `json:"vehicleId" db:"vehicle_id"`
	RouteID   string `json:"routeId" db:"route_id"`
	Name      string `json:"name" db:"name"`
}

// LocationReport is the transient ingest record sent by a vehicle's device.
// Lat and Lng are pointers so that missing fields can be rejected with a
// validation error rather than silently treated as zero. The server stamps
// the arrival time; devices do not supply timestamps.
type LocationReport struct {
	BusID string   `json:"busId"`
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
	Speed float64  `json:"speed"`
}

// VehicleLiveState is the per-vehicle hot record held in the cache. It is
// created on the first report, mutated on every report and never explicitly
// destroyed (aged out by cache policy). SpeedRing holds the most recent raw
// speeds, newest first, bounded by the configured ring size.
type VehicleLiveState struct {
	VehicleID   string
	RouteID     string
	LastLat     float64
	LastLng     float64
	LastUpdated time.Time
	SpeedRing   []float64
}

// Coordinate is a WGS84 point as serialized on the wire.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ETAStop carries the estimated minutes until the vehicle reaches one stop.
type ETAStop struct {
	StopID     string `json:"stopId"`
	Name       string `json:"name"`
	EtaMinutes int    `json:"etaMinutes"`
}

// VehicleUpdate is the composite payload returned from the live endpoints
// and emitted on the push channel. The same serialized form is used on both
// paths so that a broadcast payload is byte-equal to the corresponding HTTP
// response body.
type VehicleUpdate struct {
	Success         bool          `json:"success"`
	BusID           string        `json:"busId"`
	RouteID         string        `json:"routeId"`
	SnappedLocation *Coordinate   `json:"snappedLocation"`
	AvgSpeed        float64       `json:"avgSpeed"`
	LastUpdated     utils.ISOTime `json:"lastUpdated"`
	EtaStops        []ETAStop     `json:"etaStops"`
	Status          string        `json:"status"`
}
