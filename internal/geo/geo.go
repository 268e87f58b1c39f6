// Package geo holds the pure distance and fee computations used when a
// delivery assignment is created. Same inputs always produce the same
// outputs; nothing here touches storage or transport.
package geo

import "math"

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceKm computes the great-circle distance between two coordinates.
func DistanceKm(a, b Coord) float64 {
	latA := radians(a.Lat)
	latB := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLon*sinLon

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// FeeSchedule maps a distance to a delivery fee: a base fee plus a per-started-
// kilometer rate. Values come from configuration, not constants.
type FeeSchedule struct {
	BaseCents  int64
	PerKmCents int64
}

// FeeFor returns the fee for the given distance. The result is monotonically
// non-decreasing in distance and equals BaseCents at zero.
func (s FeeSchedule) FeeFor(distanceKm float64) int64 {
	if distanceKm <= 0 {
		return s.BaseCents
	}

	return s.BaseCents + int64(math.Ceil(distanceKm))*s.PerKmCents
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
