package live

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"tracker.transitlive.org/internal/geo"
	"tracker.transitlive.org/internal/models"
	"tracker.transitlive.org/internal/store"
)

// delhiCoords is a single east-west segment in central Delhi, used as the
// route path in the live tests. Coordinates are (lng, lat).
var delhiCoords = [][2]float64{
	{77.2197, 28.6328},
	{77.3649, 28.6280},
}

// countingStore is an in-memory store.Store that counts polyline loads, so
// tests can assert whether the geometry cache went back to the durable
// store.
type countingStore struct {
	mu            sync.Mutex
	routes        map[string]*models.Route
	polylines     map[string]*models.Polyline
	vehicles      map[string]*models.Vehicle
	polylineLoads int

	// gate, when set, blocks polyline loads until closed. Lets tests hold
	// a load open while other readers pile up behind it.
	gate chan struct{}
}

func newCountingStore() *countingStore {
	return &countingStore{
		routes:    make(map[string]*models.Route),
		polylines: make(map[string]*models.Polyline),
		vehicles:  make(map[string]*models.Vehicle),
	}
}

func (cs *countingStore) GetRoute(ctx context.Context, routeID string) (*models.Route, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if r, ok := cs.routes[routeID]; ok {
		return r, nil
	}
	return nil, store.ErrNotFound
}

func (cs *countingStore) GetPolyline(ctx context.Context, routeID string) (*models.Polyline, error) {
	if cs.gate != nil {
		<-cs.gate
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.polylineLoads++
	if p, ok := cs.polylines[routeID]; ok {
		return p, nil
	}
	return nil, store.ErrNotFound
}

func (cs *countingStore) GetPolylineByName(ctx context.Context, routeName string) (*models.Polyline, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, p := range cs.polylines {
		if p.RouteName == routeName {
			return p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (cs *countingStore) GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if v, ok := cs.vehicles[vehicleID]; ok {
		return v, nil
	}
	return nil, store.ErrNotFound
}

func (cs *countingStore) loads() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.polylineLoads
}

// seedDelhiRoute registers route R1 with stops at both segment endpoints,
// its encoded polyline, and vehicle V1 bound to it.
func seedDelhiRoute(t *testing.T, cs *countingStore) {
	t.Helper()
	cs.routes["R1"] = &models.Route{
		RouteID:   "R1",
		RouteName: "CP Express",
		Stops: []models.Stop{
			{StopID: "s1", Name: "Connaught Place", Latitude: 28.6328, Longitude: 77.2197},
			{StopID: "s2", Name: "Laxmi Nagar", Latitude: 28.6280, Longitude: 77.3649},
		},
	}
	cs.polylines["R1"] = &models.Polyline{
		RouteID:   "R1",
		RouteName: "CP Express",
		Geometry:  geo.EncodePolyline(delhiCoords),
	}
	cs.vehicles["V1"] = &models.Vehicle{VehicleID: "V1", RouteID: "R1", Name: "DL-1PC-1234"}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEmitter records every emission for later assertions.
type fakeEmitter struct {
	mu       sync.Mutex
	rooms    []string
	events   []string
	payloads [][]byte
}

func (f *fakeEmitter) Emit(room, event string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = append(f.rooms, room)
	f.events = append(f.events, event)
	buf := make([]byte, len(payload))
	copy(buf, payload)
	f.payloads = append(f.payloads, buf)
}

func (f *fakeEmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeEmitter) last(t *testing.T) (string, string, []byte) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		t.Fatal("expected at least one emission")
	}
	i := len(f.payloads) - 1
	return f.rooms[i], f.events[i], f.payloads[i]
}
