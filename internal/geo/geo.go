package geo

import (
	"errors"
	"math"
	"math/rand"

	"github.com/example/ridehail-sim/internal/models"
)

const earthRadiusKm = 6371.0

// ErrOutsidePerimeter marks a sampled point that fell outside the service
// area. Callers resample rather than fail.
var ErrOutsidePerimeter = errors.New("geo: point outside service perimeter")

// HaversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// DistanceKm is HaversineKm over Location records.
func DistanceKm(a, b models.Location) float64 {
	return HaversineKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// BearingDeg returns the initial bearing from a to b in degrees [0, 360).
func BearingDeg(a, b models.Location) float64 {
	lat1 := toRad(a.Latitude)
	lat2 := toRad(b.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// RandomPointInDisc samples a point uniformly within radiusKm of center.
// The sqrt on the radial draw keeps density uniform over area.
func RandomPointInDisc(rng *rand.Rand, center models.Location, radiusKm float64) models.Location {
	r := radiusKm * math.Sqrt(rng.Float64())
	theta := rng.Float64() * 2 * math.Pi
	dLat := (r * math.Cos(theta)) / 111.0
	dLon := (r * math.Sin(theta)) / (111.0 * math.Cos(toRad(center.Latitude)))
	return models.Location{
		Latitude:  center.Latitude + dLat,
		Longitude: center.Longitude + dLon,
	}
}

// ValidateWithin returns ErrOutsidePerimeter if p lies outside the disc.
func ValidateWithin(p, center models.Location, radiusKm float64) error {
	if DistanceKm(p, center) > radiusKm {
		return ErrOutsidePerimeter
	}
	return nil
}

func toRad(deg float64) float64 { return deg * math.Pi / 180.0 }
