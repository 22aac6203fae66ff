package geo

import "github.com/golang/geo/s2"

// earthRadiusKm is the mean Earth radius in kilometers, used for all
// great-circle distance computations.
//
// Reference: NASA Planetary Fact Sheet – Earth
// https://nssdc.gsfc.nasa.gov/planetary/factsheet/earthfact.html
const earthRadiusKm = 6371.0088

// HaversineKm returns the great-circle distance between two WGS84 points
// in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * earthRadiusKm
}

// IsValidLatLng returns true if the given latitude and longitude fall
// within the valid geographic coordinate bounds.
//
// Note: the coordinate (0,0) is treated as invalid even though it is a real
// location in the Gulf of Guinea. Devices commonly report (0,0) when the
// GPS fix is missing or uninitialized.
func IsValidLatLng(lat, lng float64) bool {
	if lat == 0 && lng == 0 {
		return false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return false
	}
	return true
}
