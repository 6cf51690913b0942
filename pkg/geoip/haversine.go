package geoip

import "math"

const earthRadiusKm = 6371.0

// ProximityRadiusKm is the radius of the secondary "near the signup
// location" check used when precise browser coordinates are available.
const ProximityRadiusKm = 50.0

// HaversineDistanceKm computes the great-circle distance between two
// coordinates in kilometers.
func HaversineDistanceKm(a, b Coordinates) float64 {
	latA := a.Latitude * math.Pi / 180
	latB := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// WithinKm reports whether two coordinates lie within radiusKm of each
// other.
func WithinKm(a, b Coordinates, radiusKm float64) bool {
	return HaversineDistanceKm(a, b) <= radiusKm
}
