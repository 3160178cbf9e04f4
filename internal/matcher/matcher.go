package matcher

import (
	"log/slog"
	"time"

	"github.com/example/ridehail-sim/internal/geo"
	"github.com/example/ridehail-sim/internal/models"
	"github.com/example/ridehail-sim/internal/observability"
	"github.com/example/ridehail-sim/internal/population"
)

// Pool is the slice of the population registry the matcher depends on.
type Pool interface {
	AvailableDrivers(vt models.VehicleType) []*population.Driver
	Claim(driverID, requestID string) bool
}

// Service selects and claims a driver for a request. Selection reads an
// optimistic availability snapshot; the claim re-validates under the
// per-driver lock, so two concurrent matches can never commit the same
// driver.
type Service struct {
	Pool Pool
	Log  *slog.Logger

	// DispatchRadiusKm bounds driver-to-pickup distance; candidates beyond
	// it are never dispatched.
	DispatchRadiusKm float64

	// Fallback maps a requested vehicle type to substitute types, consulted
	// in order only when the requested type has zero available drivers.
	Fallback map[models.VehicleType][]models.VehicleType
}

// DefaultFallback allows an electric car to serve an economy request when no
// economy driver is on the road.
func DefaultFallback() map[models.VehicleType][]models.VehicleType {
	return map[models.VehicleType][]models.VehicleType{
		models.VehicleEconomy: {models.VehicleElectric},
	}
}

type candidate struct {
	driver *population.Driver
	distKm float64
}

// Match returns the claimed driver's id, or ok=false when no eligible driver
// exists. A miss is an expected outcome: the caller cancels the request with
// reason no_driver.
func (s *Service) Match(req *models.PassengerRequest) (string, bool) {
	start := time.Now()
	defer func() {
		observability.MatchLatency.Observe(time.Since(start).Seconds())
	}()

	for _, vt := range s.typesFor(req.VehicleType) {
		cands := s.rank(vt, req.PickupLocation)
		// Claim nearest-first; a candidate lost to a concurrent match just
		// moves us to the next one.
		for _, c := range cands {
			if s.Pool.Claim(c.driver.ID, req.RequestID) {
				observability.MatchesTotal.Inc()
				s.Log.Debug("driver matched",
					"request_id", req.RequestID,
					"driver_id", c.driver.ID,
					"vehicle_type", vt,
					"distance_km", c.distKm,
				)
				return c.driver.ID, true
			}
		}
		if len(cands) > 0 {
			// Candidates existed but all were claimed away; do not fall
			// back to substitute types for a transient race.
			break
		}
	}
	return "", false
}

// typesFor yields the requested type followed by its configured substitutes.
func (s *Service) typesFor(requested models.VehicleType) []models.VehicleType {
	types := []models.VehicleType{requested}
	if s.Fallback != nil {
		types = append(types, s.Fallback[requested]...)
	}
	return types
}

// rank returns in-radius candidates ordered nearest first. The pool lists
// drivers by ascending id, and the strict < comparison preserves that order
// on distance ties, which keeps matching deterministic.
func (s *Service) rank(vt models.VehicleType, pickup models.Location) []candidate {
	drivers := s.Pool.AvailableDrivers(vt)
	cands := make([]candidate, 0, len(drivers))
	for _, d := range drivers {
		dist := geo.DistanceKm(d.Location(), pickup)
		if s.DispatchRadiusKm > 0 && dist > s.DispatchRadiusKm {
			continue
		}
		cands = append(cands, candidate{driver: d, distKm: dist})
	}
	// insertion sort; candidate lists are small and the sort must be stable
	for i := 1; i < len(cands); i++ {
		key := cands[i]
		j := i - 1
		for j >= 0 && cands[j].distKm > key.distKm {
			cands[j+1] = cands[j]
			j--
		}
		cands[j+1] = key
	}
	return cands
}
