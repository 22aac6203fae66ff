package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"tracker.transitlive.org/internal/app"
	"tracker.transitlive.org/internal/cache"
	"tracker.transitlive.org/internal/config"
	"tracker.transitlive.org/internal/report"
	"tracker.transitlive.org/internal/store"
)

const version = "1.0.0"

func main() {
	var (
		port       = flag.Int("port", 4000, "API server port")
		env        = flag.String("env", "development", "Environment (development|staging|production)")
		redisAddr  = flag.String("redis-addr", "", "Redis address for the hot store (empty runs the in-memory store)")
		dbPath     = flag.String("db-path", "tracker.db", "Path to the SQLite database")
		configFile = flag.String("config-file", "", "Path to a local JSON settings file")
		configURL  = flag.String("config-url", "", "URL to a remote JSON settings file")
	)
	flag.Parse()

	configAuthUser := os.Getenv("CONFIG_AUTH_USER")
	configAuthPass := os.Getenv("CONFIG_AUTH_PASS")

	if err := config.ValidateConfigFlags(configFile, configURL); err != nil {
		fmt.Printf("Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	report.SetupSentry()
	defer report.FlushSentry()
	report.ConfigureScope(*env, version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := app.NewPooledClient()

	settings := config.DefaultSettings()
	var err error
	switch {
	case *configFile != "":
		settings, err = config.LoadSettingsFromFile(*configFile)
	case *configURL != "":
		settings, err = config.LoadSettingsFromURL(ctx, client, *configURL, configAuthUser, configAuthPass, 3)
	}
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	cfg := config.NewConfig(*port, *env, settings)
	cfg.RedisAddr = *redisAddr
	cfg.DatabasePath = *dbPath

	var kv cache.KV
	if *redisAddr != "" {
		redisKV, err := cache.NewRedisKV(ctx, *redisAddr)
		if err != nil {
			logger.Error("failed to connect to redis", "addr", *redisAddr, "error", err)
			os.Exit(1)
		}
		defer redisKV.Close()
		kv = redisKV
	} else {
		logger.Info("no redis address configured, using in-memory hot store")
		kv = cache.NewMemoryKV()
	}

	st, err := store.OpenSQLite(*dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	application := app.New(cfg, logger, client, kv, st, version)
	application.StartMetricsCollection(ctx, 30*time.Second)

	// If a remote URL is specified, refresh the settings every minute.
	if *configURL != "" {
		go application.ConfigService.RefreshSettings(ctx, *configURL, configAuthUser, configAuthPass, time.Minute, 3)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      application.Routes(ctx),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", "addr", srv.Addr, "env", cfg.Env)
	err = srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		report.ReportError(err, sentry.LevelFatal)
		report.FlushSentry()
		logger.Error(err.Error())
		os.Exit(1)
	}

	if err := <-shutdownErr; err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
