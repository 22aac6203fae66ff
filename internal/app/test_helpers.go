package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"

	"tracker.transitlive.org/internal/cache"
	"tracker.transitlive.org/internal/config"
	"tracker.transitlive.org/internal/geo"
	"tracker.transitlive.org/internal/models"
	"tracker.transitlive.org/internal/store"
)

// testRouteCoords is the polyline used by the app-level tests: one segment
// across central Delhi, in (lng, lat) order.
var testRouteCoords = [][2]float64{
	{77.2197, 28.6328},
	{77.3649, 28.6280},
}

// newTestApplication builds a fully wired Application over an in-memory
// SQLite store and the in-memory KV, seeded with one route, one polyline
// and one vehicle.
func newTestApplication(t *testing.T) *Application {
	t.Helper()

	st, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	route := models.Route{
		RouteID:   "R1",
		RouteName: "CP Express",
		Stops: []models.Stop{
			{StopID: "s1", Name: "Connaught Place", Latitude: 28.6328, Longitude: 77.2197},
			{StopID: "s2", Name: "Laxmi Nagar", Latitude: 28.6280, Longitude: 77.3649},
		},
	}
	polyline := &models.Polyline{
		RouteID:   "R1",
		RouteName: "CP Express",
		Geometry:  geo.EncodePolyline(testRouteCoords),
	}
	vehicles := []models.Vehicle{{VehicleID: "V1", RouteID: "R1", Name: "DL-1PC-1234"}}
	if err := st.SeedRoute(context.Background(), route, polyline, vehicles); err != nil {
		t.Fatalf("failed to seed route: %v", err)
	}

	cfg := config.NewConfig(4000, "testing", config.DefaultSettings())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(cfg, logger, &http.Client{}, cache.NewMemoryKV(), st, "test-version")
}

// counterValue reads the current value of a labeled counter.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	var m dto.Metric
	if err := vec.WithLabelValues(labels...).Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
