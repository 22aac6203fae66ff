package store

import (
	"context"
	"errors"
	"testing"

	"tracker.transitlive.org/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedDelhiRoute(t *testing.T, s *SQLiteStore) {
	t.Helper()

	route := models.Route{
		RouteID:   "R1",
		RouteName: "CP Express",
		Stops: []models.Stop{
			{StopID: "s1", Name: "Connaught Place", Latitude: 28.6328, Longitude: 77.2197},
			{StopID: "s2", Name: "Anand Vihar", Latitude: 28.6280, Longitude: 77.3649},
		},
	}
	polyline := &models.Polyline{
		RouteID:   "R1",
		RouteName: "CP Express",
		Geometry:  "encoded-polyline",
		Distance:  14183,
		Duration:  1500,
	}
	vehicles := []models.Vehicle{{VehicleID: "V1", RouteID: "R1", Name: "Bus 1"}}

	if err := s.SeedRoute(context.Background(), route, polyline, vehicles); err != nil {
		t.Fatalf("SeedRoute failed: %v", err)
	}
}

func TestSQLiteStoreRouteRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedDelhiRoute(t, s)

	route, err := s.GetRoute(context.Background(), "R1")
	if err != nil {
		t.Fatalf("GetRoute failed: %v", err)
	}
	if route.RouteName != "CP Express" {
		t.Errorf("route name = %q, want CP Express", route.RouteName)
	}
	if len(route.Stops) != 2 {
		t.Fatalf("got %d stops, want 2", len(route.Stops))
	}
	// Stops come back in traversal order.
	if route.Stops[0].StopID != "s1" || route.Stops[1].StopID != "s2" {
		t.Errorf("stop order wrong: %v", route.Stops)
	}
	if route.Stops[0].Latitude != 28.6328 {
		t.Errorf("stop latitude = %f, want 28.6328", route.Stops[0].Latitude)
	}
}

func TestSQLiteStorePolylineLookup(t *testing.T) {
	s := newTestStore(t)
	seedDelhiRoute(t, s)
	ctx := context.Background()

	byID, err := s.GetPolyline(ctx, "R1")
	if err != nil {
		t.Fatalf("GetPolyline failed: %v", err)
	}
	if byID.Geometry != "encoded-polyline" {
		t.Errorf("geometry = %q", byID.Geometry)
	}

	byName, err := s.GetPolylineByName(ctx, "CP Express")
	if err != nil {
		t.Fatalf("GetPolylineByName failed: %v", err)
	}
	if byName.RouteID != "R1" {
		t.Errorf("route id = %q, want R1", byName.RouteID)
	}
}

func TestSQLiteStoreVehicleLookup(t *testing.T) {
	s := newTestStore(t)
	seedDelhiRoute(t, s)

	v, err := s.GetVehicle(context.Background(), "V1")
	if err != nil {
		t.Fatalf("GetVehicle failed: %v", err)
	}
	if v.RouteID != "R1" {
		t.Errorf("vehicle bound to %q, want R1", v.RouteID)
	}
}

func TestSQLiteStoreNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetRoute(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRoute error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetPolyline(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPolyline error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetPolylineByName(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPolylineByName error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetVehicle(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetVehicle error = %v, want ErrNotFound", err)
	}
}
