package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tracker.transitlive.org/internal/eta"
	"tracker.transitlive.org/internal/geo"
	"tracker.transitlive.org/internal/metrics"
	"tracker.transitlive.org/internal/models"
	"tracker.transitlive.org/internal/store"
	"tracker.transitlive.org/internal/utils"
)

// ErrVehicleNotFound is returned when a report or query references a
// vehicle with no registration in the durable store.
var ErrVehicleNotFound = errors.New("unknown vehicle")

// Emitter is the capability the service needs from the push layer: deliver
// a payload to every current member of a room. The transport behind it is
// not the service's concern.
type Emitter interface {
	Emit(room, event string, payload []byte)
}

// Options carries the tunables of the live subsystem.
type Options struct {
	StalenessThreshold time.Duration
	MinSpeedFloorKmh   float64
}

// TrackerService orchestrates the live tracking flows: ingest of location
// reports and on-demand snapshots. Map-matching and ETA computation are
// pure CPU work; everything else goes through the injected stores.
type TrackerService struct {
	store    store.Store
	geometry *GeometryCache
	state    *VehicleStateStore
	emitter  Emitter
	logger   *slog.Logger
	opts     Options

	mu      sync.Mutex
	tracked map[string]struct{}
}

// NewTrackerService wires the live subsystem together. The emitter may be
// nil, in which case ingest skips the broadcast step.
func NewTrackerService(st store.Store, geometry *GeometryCache, state *VehicleStateStore, emitter Emitter, logger *slog.Logger, opts Options) *TrackerService {
	if opts.StalenessThreshold <= 0 {
		opts.StalenessThreshold = DefaultStalenessThreshold
	}
	if opts.MinSpeedFloorKmh <= 0 {
		opts.MinSpeedFloorKmh = eta.DefaultMinSpeedFloorKmh
	}
	return &TrackerService{
		store:    st,
		geometry: geometry,
		state:    state,
		emitter:  emitter,
		logger:   logger,
		opts:     opts,
		tracked:  make(map[string]struct{}),
	}
}

// Ingest processes one location report: resolves the vehicle, updates hot
// state, computes the composite update, broadcasts it to the route room and
// returns both the update and its serialized form. The returned payload is
// the exact byte sequence emitted on the push channel, so HTTP responses
// and push events stay byte-equal.
//
// An ingest response always reports status online: the report just
// happened.
func (s *TrackerService) Ingest(ctx context.Context, report models.LocationReport, now time.Time) (*models.VehicleUpdate, []byte, error) {
	vehicle, err := s.store.GetVehicle(ctx, report.BusID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrVehicleNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve vehicle %s: %w", report.BusID, err)
	}

	state, err := s.state.RecordReport(ctx, vehicle.VehicleID, vehicle.RouteID, *report.Lat, *report.Lng, report.Speed, now)
	if err != nil {
		return nil, nil, err
	}
	s.trackVehicle(vehicle.VehicleID)

	update := s.compose(ctx, vehicle.RouteID, state, models.StatusOnline)
	payload, err := json.Marshal(update)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal vehicle update: %w", err)
	}

	if s.emitter != nil {
		s.emitter.Emit("route:"+vehicle.RouteID, "bus:update", payload)
		metrics.BroadcastEmissionsTotal.WithLabelValues(vehicle.RouteID).Inc()
	}
	return update, payload, nil
}

// Snapshot serves the on-demand live view of a vehicle. A known vehicle
// that has never reported yields a composite with a null location and
// offline status; that is not an error.
func (s *TrackerService) Snapshot(ctx context.Context, vehicleID string, now time.Time) (*models.VehicleUpdate, error) {
	vehicle, err := s.store.GetVehicle(ctx, vehicleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrVehicleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vehicle %s: %w", vehicleID, err)
	}

	state, err := s.state.ReadState(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &models.VehicleUpdate{
			Success:  true,
			BusID:    vehicleID,
			RouteID:  vehicle.RouteID,
			EtaStops: []models.ETAStop{},
			Status:   models.StatusOffline,
		}, nil
	}

	status := Status(state.LastUpdated, now, s.opts.StalenessThreshold)
	return s.compose(ctx, vehicle.RouteID, state, status), nil
}

// compose builds the composite VehicleUpdate from hot state and route
// geometry. When geometry is unavailable the update degrades to the raw
// reported coordinate with an empty stop list; the caller still gets a
// fresh position.
func (s *TrackerService) compose(ctx context.Context, routeID string, state *models.VehicleLiveState, status string) *models.VehicleUpdate {
	update := &models.VehicleUpdate{
		Success:     true,
		BusID:       state.VehicleID,
		RouteID:     routeID,
		AvgSpeed:    eta.MeanSpeed(state.SpeedRing),
		LastUpdated: utils.ISOTime(state.LastUpdated),
		EtaStops:    []models.ETAStop{},
		Status:      status,
	}

	geom, err := s.geometry.Get(ctx, routeID)
	if err != nil {
		s.logger.Warn("serving degraded update without geometry",
			"vehicle_id", state.VehicleID, "route_id", routeID, "error", err)
		update.SnappedLocation = &models.Coordinate{Lat: state.LastLat, Lng: state.LastLng}
		return update
	}

	match, err := geo.SnapToPolyline(geom.Coords, state.LastLng, state.LastLat)
	if err != nil {
		s.logger.Warn("map matching failed",
			"vehicle_id", state.VehicleID, "route_id", routeID, "error", err)
		update.SnappedLocation = &models.Coordinate{Lat: state.LastLat, Lng: state.LastLng}
		return update
	}

	update.SnappedLocation = &models.Coordinate{Lat: match.SnappedLat, Lng: match.SnappedLng}

	stops := make([]eta.StopOffset, len(geom.Stops))
	for i, stop := range geom.Stops {
		stops[i] = eta.StopOffset{
			StopID:   stop.StopID,
			Name:     stop.Name,
			OffsetKm: geom.StopOffsetsKm[i],
		}
	}
	update.EtaStops = eta.Estimate(match.OffsetKm, stops, update.AvgSpeed, s.opts.MinSpeedFloorKmh)
	return update
}

// trackVehicle records that this process has seen the vehicle and updates
// the tracked-vehicles gauge.
func (s *TrackerService) trackVehicle(vehicleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracked[vehicleID]; !ok {
		s.tracked[vehicleID] = struct{}{}
		metrics.TrackedVehiclesGauge.Set(float64(len(s.tracked)))
	}
}
