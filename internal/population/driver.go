package population

import (
	"sync"

	"github.com/example/ridehail-sim/internal/models"
)

// Driver is the authoritative record for one driver. Status and location are
// shared between the orchestrator's presence tick, the matcher's claim, and
// the owning ride session, so every access goes through the record's mutex.
// Contention is scoped per driver; there is no global driver lock.
type Driver struct {
	ID      string
	Vehicle models.VehicleType

	mu     sync.Mutex
	status models.DriverStatus
	loc    models.Location
}

// NewDriver assembles a driver record. The registry builds the fleet with
// it; tests use it for fixtures.
func NewDriver(id string, vehicle models.VehicleType, status models.DriverStatus, loc models.Location) *Driver {
	return &Driver{ID: id, Vehicle: vehicle, status: status, loc: loc}
}

func (d *Driver) Status() models.DriverStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *Driver) Location() models.Location {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loc
}

func (d *Driver) SetLocation(loc models.Location) {
	d.mu.Lock()
	d.loc = loc
	d.mu.Unlock()
}

// TryClaim atomically moves an AVAILABLE driver to ON_RIDE. The check and
// the transition are a single critical section; this is what makes the
// matcher's optimistic selection safe to commit.
func (d *Driver) TryClaim() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status != models.DriverAvailable {
		return false
	}
	d.status = models.DriverOnRide
	return true
}

// Release returns an ON_RIDE driver to AVAILABLE. A driver that went OFFLINE
// independently stays OFFLINE.
func (d *Driver) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status == models.DriverOnRide {
		d.status = models.DriverAvailable
	}
}

// goOffline succeeds only for drivers not currently serving a ride.
func (d *Driver) goOffline() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status == models.DriverAvailable || d.status == models.DriverUnavailable {
		d.status = models.DriverOffline
		return true
	}
	return false
}

func (d *Driver) goOnline() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status == models.DriverOffline {
		d.status = models.DriverAvailable
		return true
	}
	return false
}

// toggleBreak flips AVAILABLE<->UNAVAILABLE (driver pauses without logging out).
func (d *Driver) toggleBreak() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.status {
	case models.DriverAvailable:
		d.status = models.DriverUnavailable
		return true
	case models.DriverUnavailable:
		d.status = models.DriverAvailable
		return true
	}
	return false
}

// Update captures the driver's current state as a wire record.
func (d *Driver) Update(tsMillis int64) models.DriverAvailabilityUpdate {
	d.mu.Lock()
	defer d.mu.Unlock()
	return models.DriverAvailabilityUpdate{
		DriverID:  d.ID,
		Timestamp: tsMillis,
		Latitude:  d.loc.Latitude,
		Longitude: d.loc.Longitude,
		Status:    d.status,
	}
}
