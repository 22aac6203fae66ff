package geo

import (
	"errors"
	"math"
)

// minSegmentKm is the segment length below which the planar projection is
// numerically degenerate. Such segments are collapsed to their first vertex
// for the projection step; their (near-zero) length still contributes to the
// cumulative arc length.
const minSegmentKm = 0.001

// ErrPolylineTooShort is returned when a polyline has fewer than two points.
var ErrPolylineTooShort = errors.New("polyline must contain at least two points")

// Match is the result of snapping a point to a polyline: the closest point
// on the polyline and its arc-length offset from the polyline origin.
type Match struct {
	SnappedLng float64
	SnappedLat float64
	OffsetKm   float64
}

// SnapToPolyline projects the query point (lng,lat) onto the polyline and
// returns the nearest point together with its cumulative arc-length offset
// in kilometers. Coords must be in (lng,lat) order.
//
// Each segment is examined with a planar approximation (longitude scaled by
// cos of the segment's mean latitude); the perpendicular foot is clamped to
// the segment endpoints and the candidate with the smallest great-circle
// distance to the query point wins. Ties go to the earliest segment.
//
// The function is pure: it does not cache and does not mutate its inputs.
func SnapToPolyline(coords [][2]float64, lng, lat float64) (Match, error) {
	if len(coords) < 2 {
		return Match{}, ErrPolylineTooShort
	}

	best := Match{SnappedLng: coords[0][0], SnappedLat: coords[0][1]}
	bestDist := math.MaxFloat64
	cumKm := 0.0

	for i := 0; i < len(coords)-1; i++ {
		aLng, aLat := coords[i][0], coords[i][1]
		bLng, bLat := coords[i+1][0], coords[i+1][1]
		segKm := HaversineKm(aLat, aLng, bLat, bLng)

		var footLng, footLat float64
		if segKm < minSegmentKm {
			// Degenerate segment: project onto the first vertex.
			footLng, footLat = aLng, aLat
		} else {
			// Planar projection with longitude scaled by cos(mean latitude).
			scale := math.Cos((aLat + bLat) / 2 * math.Pi / 180)
			sx := (bLng - aLng) * scale
			sy := bLat - aLat
			px := (lng - aLng) * scale
			py := lat - aLat

			t := (px*sx + py*sy) / (sx*sx + sy*sy)
			if t < 0 {
				t = 0
			} else if t > 1 {
				t = 1
			}
			footLng = aLng + t*(bLng-aLng)
			footLat = aLat + t*(bLat-aLat)
		}

		dist := HaversineKm(lat, lng, footLat, footLng)
		if dist < bestDist {
			bestDist = dist
			best = Match{
				SnappedLng: footLng,
				SnappedLat: footLat,
				OffsetKm:   cumKm + HaversineKm(aLat, aLng, footLat, footLng),
			}
		}

		cumKm += segKm
	}

	// Offsets stay within [0, total length] regardless of rounding in the
	// per-segment sums.
	if best.OffsetKm > cumKm {
		best.OffsetKm = cumKm
	}
	return best, nil
}

// PolylineLengthKm returns the total arc length of the polyline in
// kilometers. Coords must be in (lng,lat) order.
func PolylineLengthKm(coords [][2]float64) float64 {
	var total float64
	for i := 1; i < len(coords); i++ {
		total += HaversineKm(coords[i-1][1], coords[i-1][0], coords[i][1], coords[i][0])
	}
	return total
}
