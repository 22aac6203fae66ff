package app

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"

	"tracker.transitlive.org/internal/middleware"
)

// Routes sets up the HTTP routing configuration for the application and
// returns the final http.Handler.
//
// Registered routes:
//   - POST /api/bus/update-location: vehicle location report ingest.
//   - GET /api/bus/:id/live: on-demand live snapshot for one vehicle.
//   - GET /api/routes-with-polyline: stored polyline lookup by route name.
//   - GET /ws: WebSocket subscription endpoint for route rooms.
//   - GET /v1/healthcheck: JSON health and readiness snapshot.
//   - GET /metrics: Prometheus exposition, served from a periodic cache to
//     keep scrape cost flat.
//
// The whole router is wrapped with the Sentry middleware for panic capture
// and with the security-headers middleware.
func (app *Application) Routes(ctx context.Context) http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodPost, "/api/bus/update-location", app.updateLocationHandler)
	router.HandlerFunc(http.MethodGet, "/api/bus/:id/live", app.busLiveHandler)
	router.HandlerFunc(http.MethodGet, "/api/routes-with-polyline", app.routePolylineHandler)
	router.HandlerFunc(http.MethodGet, "/ws", app.websocketHandler)
	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)
	router.Handler(http.MethodGet, "/metrics", middleware.NewCachedPromHandler(ctx, prometheus.DefaultGatherer, 10*time.Second))

	handler := middleware.SentryMiddleware(router)
	return middleware.SecurityHeaders(handler)
}
