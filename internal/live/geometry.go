package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tracker.transitlive.org/internal/cache"
	"tracker.transitlive.org/internal/geo"
	"tracker.transitlive.org/internal/metrics"
	"tracker.transitlive.org/internal/models"
	"tracker.transitlive.org/internal/store"
)

// ErrGeometryNotFound is returned when no polyline has been synthesized for
// the route yet. Callers decide whether to serve a degraded response.
var ErrGeometryNotFound = errors.New("no polyline stored for route")

// ErrGeometryInvariant marks stored geometry that violates its own
// invariants (undecodable polyline, or a stop too far off the path). It is
// logged and surfaced as a server error; no partial geometry is returned.
var ErrGeometryInvariant = errors.New("stored geometry violates invariants")

// maxStopDriftKm is the sanity threshold for how far a stop may sit from
// its projection onto the route polyline before the geometry is rejected.
const maxStopDriftKm = 0.5

// Geometry is the decoded hot view of a route: the polyline in (lng,lat)
// order, the ordered stop list, and each stop's arc-length offset along the
// polyline. Entries are effectively immutable after write; invalidation is
// the only mutator.
type Geometry struct {
	Coords        [][2]float64
	Stops         []models.Stop
	StopOffsetsKm []float64
}

// GeometryCache supplies decoded route geometry, reading the hot KV first
// and falling back to the durable store on a miss. Concurrent loads of the
// same missing route are coalesced.
type GeometryCache struct {
	kv     cache.KV
	store  store.Store
	ttl    time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[string]*geometryLoad
}

type geometryLoad struct {
	done chan struct{}
	geom *Geometry
	err  error
}

// NewGeometryCache creates a geometry cache. A zero ttl means entries live
// until explicitly invalidated.
func NewGeometryCache(kv cache.KV, st store.Store, ttl time.Duration, logger *slog.Logger) *GeometryCache {
	return &GeometryCache{
		kv:       kv,
		store:    st,
		ttl:      ttl,
		logger:   logger,
		inflight: make(map[string]*geometryLoad),
	}
}

func routeKey(routeID string) string {
	return "route:" + routeID
}

// Get returns the decoded geometry for the route, loading and caching it
// from the durable store on a cache miss.
func (gc *GeometryCache) Get(ctx context.Context, routeID string) (*Geometry, error) {
	if geom, ok := gc.readCached(ctx, routeID); ok {
		metrics.GeometryCacheLookups.WithLabelValues("hit").Inc()
		return geom, nil
	}
	metrics.GeometryCacheLookups.WithLabelValues("miss").Inc()

	// Coalesce concurrent loads of the same route. Duplicate loads are
	// correctness-preserving but wasteful.
	gc.mu.Lock()
	if load, ok := gc.inflight[routeID]; ok {
		gc.mu.Unlock()
		select {
		case <-load.done:
			return load.geom, load.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	load := &geometryLoad{done: make(chan struct{})}
	gc.inflight[routeID] = load
	gc.mu.Unlock()

	load.geom, load.err = gc.loadAndCache(ctx, routeID)
	close(load.done)

	gc.mu.Lock()
	delete(gc.inflight, routeID)
	gc.mu.Unlock()

	return load.geom, load.err
}

// Invalidate removes the cached entry for the route. Used when an admin
// action replaces a route's polyline.
func (gc *GeometryCache) Invalidate(ctx context.Context, routeID string) error {
	return gc.kv.Del(ctx, routeKey(routeID))
}

// readCached attempts to decode a cached entry. Any malformed cache content
// is treated as a miss and reloaded from the durable store.
func (gc *GeometryCache) readCached(ctx context.Context, routeID string) (*Geometry, bool) {
	fields, err := gc.kv.HGetAll(ctx, routeKey(routeID))
	if err != nil || len(fields) == 0 {
		return nil, false
	}
	encodedPolyline, ok1 := fields["polyline"]
	encodedStops, ok2 := fields["stops"]
	if !ok1 || !ok2 {
		return nil, false
	}

	var geom Geometry
	if err := json.Unmarshal([]byte(encodedPolyline), &geom.Coords); err != nil {
		gc.logger.Warn("discarding malformed cached polyline", "route_id", routeID, "error", err)
		return nil, false
	}
	if err := json.Unmarshal([]byte(encodedStops), &geom.Stops); err != nil {
		gc.logger.Warn("discarding malformed cached stops", "route_id", routeID, "error", err)
		return nil, false
	}
	if encodedOffsets, ok := fields["stopOffsetsKm"]; ok {
		if err := json.Unmarshal([]byte(encodedOffsets), &geom.StopOffsetsKm); err != nil {
			geom.StopOffsetsKm = nil
		}
	}
	if len(geom.StopOffsetsKm) != len(geom.Stops) {
		// Offsets are derivable; recompute rather than trusting a stale field.
		offsets, err := stopOffsets(geom.Coords, geom.Stops)
		if err != nil {
			return nil, false
		}
		geom.StopOffsetsKm = offsets
	}
	return &geom, true
}

// loadAndCache reads the polyline and route from the durable store, decodes
// and validates them, writes the cache entry best-effort, and returns the
// geometry.
func (gc *GeometryCache) loadAndCache(ctx context.Context, routeID string) (*Geometry, error) {
	polyline, err := gc.store.GetPolyline(ctx, routeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGeometryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load polyline for route %s: %w", routeID, err)
	}

	route, err := gc.store.GetRoute(ctx, routeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGeometryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load route %s: %w", routeID, err)
	}

	coords, err := geo.DecodePolyline(polyline.Geometry)
	if err != nil || len(coords) < 2 {
		gc.logger.Error("stored polyline is undecodable", "route_id", routeID, "error", err)
		return nil, ErrGeometryInvariant
	}

	offsets, err := stopOffsets(coords, route.Stops)
	if err != nil {
		gc.logger.Error("stop projection failed", "route_id", routeID, "error", err)
		return nil, ErrGeometryInvariant
	}

	geom := &Geometry{Coords: coords, Stops: route.Stops, StopOffsetsKm: offsets}
	gc.writeCached(ctx, routeID, geom)
	return geom, nil
}

// writeCached stores the decoded geometry in the hot KV. Failures are
// logged and swallowed: the computed geometry is still returned to the
// caller.
func (gc *GeometryCache) writeCached(ctx context.Context, routeID string, geom *Geometry) {
	encodedPolyline, err := json.Marshal(geom.Coords)
	if err != nil {
		return
	}
	encodedStops, err := json.Marshal(geom.Stops)
	if err != nil {
		return
	}
	encodedOffsets, err := json.Marshal(geom.StopOffsetsKm)
	if err != nil {
		return
	}

	key := routeKey(routeID)
	fields := map[string]string{
		"polyline":      string(encodedPolyline),
		"stops":         string(encodedStops),
		"stopOffsetsKm": string(encodedOffsets),
	}
	if err := gc.kv.HSet(ctx, key, fields); err != nil {
		gc.logger.Warn("failed to write geometry cache entry", "route_id", routeID, "error", err)
		return
	}
	if err := gc.kv.Expire(ctx, key, gc.ttl); err != nil {
		gc.logger.Warn("failed to set geometry cache TTL", "route_id", routeID, "error", err)
	}
}

// stopOffsets projects every stop onto the polyline and returns the
// arc-length offsets, rejecting stops that sit implausibly far off the
// path.
func stopOffsets(coords [][2]float64, stops []models.Stop) ([]float64, error) {
	offsets := make([]float64, len(stops))
	for i, stop := range stops {
		m, err := geo.SnapToPolyline(coords, stop.Longitude, stop.Latitude)
		if err != nil {
			return nil, err
		}
		if drift := geo.HaversineKm(stop.Latitude, stop.Longitude, m.SnappedLat, m.SnappedLng); drift > maxStopDriftKm {
			return nil, fmt.Errorf("stop %s is %.2f km off the polyline", stop.StopID, drift)
		}
		offsets[i] = m.OffsetKm
	}
	return offsets, nil
}
