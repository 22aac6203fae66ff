package live

import (
	"time"

	"tracker.transitlive.org/internal/models"
)

// DefaultStalenessThreshold is the maximum age of a vehicle's last report
// before it is classified offline.
const DefaultStalenessThreshold = 90 * time.Second

// Status classifies a vehicle's last-report age as online or offline at the
// moment of observation. There is no background sweeper; the transition is
// observed implicitly on the next fetch or broadcast. An absent (zero)
// lastUpdated is always offline.
func Status(lastUpdated, now time.Time, threshold time.Duration) string {
	if lastUpdated.IsZero() {
		return models.StatusOffline
	}
	if now.Sub(lastUpdated) <= threshold {
		return models.StatusOnline
	}
	return models.StatusOffline
}
