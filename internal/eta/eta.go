// Package eta converts matched arc-length offsets and a smoothed speed into
// per-stop arrival estimates. All functions are pure; errors are impossible
// by construction given validated inputs.
package eta

import (
	"math"

	"tracker.transitlive.org/internal/models"
)

// DefaultMinSpeedFloorKmh prevents division by zero and unbounded ETAs when
// the vehicle is stationary.
const DefaultMinSpeedFloorKmh = 1.0

// StopOffset pairs a stop with its matched arc-length offset along the
// route polyline, in traversal order.
type StopOffset struct {
	StopID   string
	Name     string
	OffsetKm float64
}

// Estimate produces one ETAStop per input stop, in the same order. A stop
// whose offset is at or behind the vehicle's reports zero minutes (already
// passed or at). The effective speed never drops below minSpeedFloorKmh.
func Estimate(vehicleOffsetKm float64, stops []StopOffset, avgSpeedKmh, minSpeedFloorKmh float64) []models.ETAStop {
	if minSpeedFloorKmh <= 0 {
		minSpeedFloorKmh = DefaultMinSpeedFloorKmh
	}
	effectiveSpeed := math.Max(avgSpeedKmh, minSpeedFloorKmh)

	out := make([]models.ETAStop, 0, len(stops))
	for _, s := range stops {
		remainingKm := math.Max(s.OffsetKm-vehicleOffsetKm, 0)
		minutes := int(math.Round(remainingKm / effectiveSpeed * 60))
		out = append(out, models.ETAStop{
			StopID:     s.StopID,
			Name:       s.Name,
			EtaMinutes: minutes,
		})
	}
	return out
}

// MeanSpeed returns the arithmetic mean of the ring rounded to one decimal,
// or 0 for an empty ring. The ring holds raw km/h samples, newest first.
func MeanSpeed(ring []float64) float64 {
	if len(ring) == 0 {
		return 0
	}
	var sum float64
	for _, v := range ring {
		sum += v
	}
	return math.Round(sum/float64(len(ring))*10) / 10
}
