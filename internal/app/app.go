package app

import (
	"log/slog"
	"net/http"

	"tracker.transitlive.org/internal/cache"
	"tracker.transitlive.org/internal/config"
	"tracker.transitlive.org/internal/live"
	"tracker.transitlive.org/internal/push"
	"tracker.transitlive.org/internal/store"
)

// Application wires the tracker's subsystems together: the durable store,
// the hot cache behind the live services, the push hub and the config
// service. It is built once at startup and handed to the HTTP server.
type Application struct {
	ConfigService *config.Service
	Tracker       *live.TrackerService
	Geometry      *live.GeometryCache
	Store         store.Store
	KV            cache.KV
	Hub           *push.Hub
	Logger        *slog.Logger
	Version       string
}

// New creates and wires all dependencies for the Application.
func New(cfg *config.Config, logger *slog.Logger, client *http.Client, kv cache.KV, st store.Store, version string) *Application {
	settings := cfg.GetSettings()

	hub := push.NewHub()
	geometry := live.NewGeometryCache(kv, st, settings.GeometryCacheTTL(), logger)
	state := live.NewVehicleStateStore(kv, settings.SpeedRingSize)
	tracker := live.NewTrackerService(st, geometry, state, hub, logger, live.Options{
		StalenessThreshold: settings.StalenessThreshold(),
		MinSpeedFloorKmh:   settings.MinSpeedFloorKmh,
	})

	return &Application{
		ConfigService: config.NewService(logger, client, cfg),
		Tracker:       tracker,
		Geometry:      geometry,
		Store:         st,
		KV:            kv,
		Hub:           hub,
		Logger:        logger,
		Version:       version,
	}
}
