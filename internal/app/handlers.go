package app

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"tracker.transitlive.org/internal/geo"
	"tracker.transitlive.org/internal/live"
	"tracker.transitlive.org/internal/metrics"
	"tracker.transitlive.org/internal/models"
	"tracker.transitlive.org/internal/push"
	"tracker.transitlive.org/internal/store"
)

// maxReportBody bounds the ingest request body. Location reports are tiny;
// anything larger is malformed or hostile.
const maxReportBody = 4 << 10

// errorResponse is the JSON error envelope shared by all endpoints.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Success: false, Error: message})
}

// updateLocationHandler ingests one vehicle location report. On success the
// response body is the composite vehicle update, byte-equal to the payload
// broadcast to the route's push room.
func (app *Application) updateLocationHandler(w http.ResponseWriter, r *http.Request) {
	var report models.LocationReport
	r.Body = http.MaxBytesReader(w, r.Body, maxReportBody)
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		metrics.IngestReportsTotal.WithLabelValues("validation_error").Inc()
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if report.BusID == "" {
		metrics.IngestReportsTotal.WithLabelValues("validation_error").Inc()
		writeError(w, http.StatusBadRequest, "busId is required")
		return
	}
	if report.Lat == nil || report.Lng == nil || !isFinite(*report.Lat) || !isFinite(*report.Lng) {
		metrics.IngestReportsTotal.WithLabelValues("validation_error").Inc()
		writeError(w, http.StatusBadRequest, "lat and lng must be finite numbers")
		return
	}
	if !geo.IsValidLatLng(*report.Lat, *report.Lng) {
		metrics.IngestReportsTotal.WithLabelValues("validation_error").Inc()
		writeError(w, http.StatusBadRequest, "lat and lng are outside valid coordinate bounds")
		return
	}

	_, payload, err := app.Tracker.Ingest(r.Context(), report, time.Now())
	if errors.Is(err, live.ErrVehicleNotFound) {
		metrics.IngestReportsTotal.WithLabelValues("not_found").Inc()
		writeError(w, http.StatusNotFound, "unknown vehicle")
		return
	}
	if err != nil {
		metrics.IngestReportsTotal.WithLabelValues("transient_error").Inc()
		app.Logger.Error("ingest failed", "bus_id", report.BusID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unable to process report")
		return
	}

	metrics.IngestReportsTotal.WithLabelValues("accepted").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

// busLiveHandler serves the on-demand live snapshot for one vehicle.
func (app *Application) busLiveHandler(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	vehicleID := params.ByName("id")

	update, err := app.Tracker.Snapshot(r.Context(), vehicleID, time.Now())
	if errors.Is(err, live.ErrVehicleNotFound) {
		metrics.LiveQueriesTotal.WithLabelValues("not_found").Inc()
		writeError(w, http.StatusNotFound, "unknown vehicle")
		return
	}
	if err != nil {
		metrics.LiveQueriesTotal.WithLabelValues("transient_error").Inc()
		app.Logger.Error("live snapshot failed", "vehicle_id", vehicleID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unable to read vehicle state")
		return
	}

	metrics.LiveQueriesTotal.WithLabelValues("served").Inc()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(update)
}

// routePolylineHandler returns the stored polyline document for the route
// with the given display name.
func (app *Application) routePolylineHandler(w http.ResponseWriter, r *http.Request) {
	routeName := r.URL.Query().Get("routeName")
	if routeName == "" {
		writeError(w, http.StatusBadRequest, "routeName query parameter is required")
		return
	}

	polyline, err := app.Store.GetPolylineByName(r.Context(), routeName)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no polyline stored for route")
		return
	}
	if err != nil {
		app.Logger.Error("polyline lookup failed", "route_name", routeName, "error", err)
		writeError(w, http.StatusServiceUnavailable, "temporarily unable to read route polyline")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(polyline)
}

// websocketHandler hands the connection to the push subsystem.
func (app *Application) websocketHandler(w http.ResponseWriter, r *http.Request) {
	push.ServeWS(app.Hub, app.Logger, w, r)
}

// HealthStatus is the JSON shape of the /v1/healthcheck response.
type HealthStatus struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	HotStore    bool   `json:"hotStore"`
	Durable     bool   `json:"durableStore"`
	Ready       bool   `json:"ready"`
}

// healthcheckHandler reports availability plus the reachability of both
// backing stores. The application is ready when both answer a ping; a
// not-ready state is signaled with HTTP 500 for load balancers.
func (app *Application) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	hotUp := app.KV.Ping(ctx) == nil
	durableUp := true
	if pinger, ok := app.Store.(interface{ Ping(context.Context) error }); ok {
		durableUp = pinger.Ping(ctx) == nil
	}
	ready := hotUp && durableUp

	status := HealthStatus{
		Status:      "available",
		Environment: app.ConfigService.Config.Env,
		Version:     app.Version,
		HotStore:    hotUp,
		Durable:     durableUp,
		Ready:       ready,
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(status)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
