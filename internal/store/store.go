// Package store is the durable side of the tracker: routes, stops, stored
// polylines and vehicle registrations. The live subsystem only reads these
// records; admin tooling owns the writes.
package store

import (
	"context"
	"errors"

	"tracker.transitlive.org/internal/models"
)

// ErrNotFound is returned when a requested record does not exist. Callers
// distinguish it from transient store failures with errors.Is.
var ErrNotFound = errors.New("record not found")

// Store is the read contract the live subsystem depends on.
type Store interface {
	// GetRoute returns the route and its ordered stop list.
	GetRoute(ctx context.Context, routeID string) (*models.Route, error)

	// GetPolyline returns the stored polyline document for the route, or
	// ErrNotFound when no polyline has been synthesized yet.
	GetPolyline(ctx context.Context, routeID string) (*models.Polyline, error)

	// GetPolylineByName looks the polyline up by the route's display name.
	GetPolylineByName(ctx context.Context, routeName string) (*models.Polyline, error)

	// GetVehicle resolves a vehicle registration by its opaque identifier.
	GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error)
}
