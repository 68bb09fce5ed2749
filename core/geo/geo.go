// Package geo provides great-circle distance helpers used by the
// matching engine.
package geo

import "math"

// earthRadiusMiles is the mean Earth radius used for Haversine.
const earthRadiusMiles = 3959.0

// Distance returns the great-circle distance in miles between two
// coordinates. It is symmetric and zero for identical points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	lat1R := radians(lat1)
	lat2R := radians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1R)*math.Cos(lat2R)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}

func radians(d float64) float64 {
	return d * math.Pi / 180
}
