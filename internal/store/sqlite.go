package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"tracker.transitlive.org/internal/models"
)

// schema holds the document layout flattened into relational tables. The
// live subsystem never writes these tables; admin tooling and test fixtures
// do.
const schema = `
CREATE TABLE IF NOT EXISTS routes (
	route_id   TEXT PRIMARY KEY,
	route_name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS stops (
	route_id  TEXT NOT NULL REFERENCES routes(route_id),
	seq       INTEGER NOT NULL,
	stop_id   TEXT NOT NULL,
	name      TEXT NOT NULL,
	latitude  REAL NOT NULL,
	longitude REAL NOT NULL,
	PRIMARY KEY (route_id, seq)
);

CREATE TABLE IF NOT EXISTS polylines (
	route_id   TEXT PRIMARY KEY REFERENCES routes(route_id),
	route_name TEXT NOT NULL,
	geometry   TEXT NOT NULL,
	distance   REAL NOT NULL DEFAULT 0,
	duration   REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS vehicles (
	vehicle_id TEXT PRIMARY KEY,
	route_id   TEXT NOT NULL REFERENCES routes(route_id),
	name       TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStore implements Store on an embedded SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLite opens (and if necessary initializes) the database at path.
// Use ":memory:" for an ephemeral store in tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database handle is still usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) GetRoute(ctx context.Context, routeID string) (*models.Route, error) {
	var route models.Route
	err := s.db.GetContext(ctx, &route,
		"SELECT route_id, route_name FROM routes WHERE route_id = ?", routeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query route %s: %w", routeID, err)
	}

	err = s.db.SelectContext(ctx, &route.Stops,
		"SELECT stop_id, name, latitude, longitude FROM stops WHERE route_id = ? ORDER BY seq", routeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stops for route %s: %w", routeID, err)
	}
	return &route, nil
}

func (s *SQLiteStore) GetPolyline(ctx context.Context, routeID string) (*models.Polyline, error) {
	var p models.Polyline
	err := s.db.GetContext(ctx, &p,
		"SELECT route_id, route_name, geometry, distance, duration FROM polylines WHERE route_id = ?", routeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query polyline for route %s: %w", routeID, err)
	}
	return &p, nil
}

func (s *SQLiteStore) GetPolylineByName(ctx context.Context, routeName string) (*models.Polyline, error) {
	var p models.Polyline
	err := s.db.GetContext(ctx, &p,
		"SELECT route_id, route_name, geometry, distance, duration FROM polylines WHERE route_name = ?", routeName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query polyline for route name %s: %w", routeName, err)
	}
	return &p, nil
}

func (s *SQLiteStore) GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	var v models.Vehicle
	err := s.db.GetContext(ctx, &v,
		"SELECT vehicle_id, route_id, name FROM vehicles WHERE vehicle_id = ?", vehicleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicle %s: %w", vehicleID, err)
	}
	return &v, nil
}

// SeedRoute inserts a route, its stops, its polyline and its vehicles in a
// single transaction. Used by admin import tooling and test fixtures.
func (s *SQLiteStore) SeedRoute(ctx context.Context, route models.Route, polyline *models.Polyline, vehicles []models.Vehicle) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO routes (route_id, route_name) VALUES (?, ?)",
		route.RouteID, route.RouteName); err != nil {
		return fmt.Errorf("failed to insert route %s: %w", route.RouteID, err)
	}
	for i, stop := range route.Stops {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO stops (route_id, seq, stop_id, name, latitude, longitude) VALUES (?, ?, ?, ?, ?, ?)",
			route.RouteID, i, stop.StopID, stop.Name, stop.Latitude, stop.Longitude); err != nil {
			return fmt.Errorf("failed to insert stop %s: %w", stop.StopID, err)
		}
	}
	if polyline != nil {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO polylines (route_id, route_name, geometry, distance, duration) VALUES (?, ?, ?, ?, ?)",
			polyline.RouteID, polyline.RouteName, polyline.Geometry, polyline.Distance, polyline.Duration); err != nil {
			return fmt.Errorf("failed to insert polyline for route %s: %w", polyline.RouteID, err)
		}
	}
	for _, v := range vehicles {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO vehicles (vehicle_id, route_id, name) VALUES (?, ?, ?)",
			v.VehicleID, v.RouteID, v.Name); err != nil {
			return fmt.Errorf("failed to insert vehicle %s: %w", v.VehicleID, err)
		}
	}

	return tx.Commit()
}
