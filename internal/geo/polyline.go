package geo

import (
	"fmt"

	gopolyline "github.com/twpayne/go-polyline"
)

// DecodePolyline decodes a standard precision-5 encoded polyline string into
// an ordered array of (lng,lat) points, the coordinate order used by the
// map-matcher and the geometry cache.
//
// The encoded string stores points in (lat,lng) order; the swap happens here
// so every consumer downstream sees a single convention.
func DecodePolyline(encoded string) ([][2]float64, error) {
	latLngs, rest, err := gopolyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("failed to decode polyline: %d trailing bytes", len(rest))
	}

	coords := make([][2]float64, len(latLngs))
	for i, ll := range latLngs {
		coords[i] = [2]float64{ll[1], ll[0]}
	}
	return coords, nil
}

// EncodePolyline encodes (lng,lat) points into the standard precision-5
// encoded polyline representation. The encoder is the exact inverse of
// DecodePolyline; the admin side uses the same encoding when storing route
// geometry.
func EncodePolyline(coords [][2]float64) string {
	latLngs := make([][]float64, len(coords))
	for i, c := range coords {
		latLngs[i] = []float64{c[1], c[0]}
	}
	return string(gopolyline.EncodeCoords(latLngs))
}
