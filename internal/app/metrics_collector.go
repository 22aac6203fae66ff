package app

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"tracker.transitlive.org/internal/metrics"
	"tracker.transitlive.org/internal/report"
)

// StartMetricsCollection launches the background probe loop that keeps the
// store reachability gauges current. It stops when ctx is canceled.
func (app *Application) StartMetricsCollection(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				app.collectStoreHealth(ctx)
			}
		}
	}()
}

// collectStoreHealth pings both backing stores and records the results.
// Failures are logged and reported but never interrupt the loop.
func (app *Application) collectStoreHealth(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := app.KV.Ping(probeCtx); err != nil {
		metrics.HotStoreUp.Set(0)
		app.Logger.Error("hot store ping failed", "error", err)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  map[string]string{"store": "hot"},
			Level: sentry.LevelWarning,
		})
	} else {
		metrics.HotStoreUp.Set(1)
	}

	pinger, ok := app.Store.(interface{ Ping(context.Context) error })
	if !ok {
		return
	}
	if err := pinger.Ping(probeCtx); err != nil {
		metrics.DurableStoreUp.Set(0)
		app.Logger.Error("durable store ping failed", "error", err)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  map[string]string{"store": "durable"},
			Level: sentry.LevelWarning,
		})
	} else {
		metrics.DurableStoreUp.Set(1)
	}
}
