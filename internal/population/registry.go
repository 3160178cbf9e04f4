package population

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/example/ridehail-sim/internal/geo"
	"github.com/example/ridehail-sim/internal/models"
)

// Config sizes the population and the service area.
type Config struct {
	Center     models.Location
	RadiusKm   float64
	Drivers    int
	Passengers int

	// VehicleWeights biases the fleet mix. Empty means the default mix.
	VehicleWeights map[models.VehicleType]float64

	// InitialAvailable is the probability a driver starts AVAILABLE rather
	// than OFFLINE.
	InitialAvailable float64
}

// PresenceProbs are per-tick transition probabilities for the presence
// process, split by time-of-day band.
type PresenceProbs struct {
	NightOffline   float64
	NightOnline    float64
	MorningOffline float64
	MorningOnline  float64
	DayOffline     float64
	DayOnline      float64
	BreakToggle    float64
}

// DefaultPresenceProbs mirror the observed workforce rhythm: churn off
// overnight, churn on through the morning.
func DefaultPresenceProbs() PresenceProbs {
	return PresenceProbs{
		NightOffline:   0.03,
		NightOnline:    0.005,
		MorningOffline: 0.01,
		MorningOnline:  0.02,
		DayOffline:     0.015,
		DayOnline:      0.01,
		BreakToggle:    0.002,
	}
}

func defaultVehicleWeights() map[models.VehicleType]float64 {
	return map[models.VehicleType]float64{
		models.VehicleEconomy: 0.80,
		models.VehicleLuxury:  0.08,
		models.VehiclePool:    0.02,
		models.VehicleSUV:     0.10,
	}
}

// Registry owns the driver and passenger sets for one simulation run.
// Drivers guard their own state; the registry-level mutex only protects the
// RNG and the active driver->request bindings used for the double-booking
// check.
type Registry struct {
	drivers    []*Driver
	byID       map[string]*Driver
	passengers []*Passenger

	mu     sync.Mutex
	rng    *rand.Rand
	active map[string]string // driver id -> request id

	log *slog.Logger
}

// NewRegistry builds the population. An empty driver or passenger set is a
// configuration fault surfaced at startup, not a runtime condition.
func NewRegistry(cfg Config, seed int64, log *slog.Logger) (*Registry, error) {
	if cfg.Drivers <= 0 {
		return nil, fmt.Errorf("population: driver count must be > 0, got %d", cfg.Drivers)
	}
	if cfg.Passengers <= 0 {
		return nil, fmt.Errorf("population: passenger count must be > 0, got %d", cfg.Passengers)
	}
	if cfg.RadiusKm <= 0 {
		return nil, fmt.Errorf("population: radius must be > 0, got %f", cfg.RadiusKm)
	}
	weights := cfg.VehicleWeights
	if len(weights) == 0 {
		weights = defaultVehicleWeights()
	}
	initialAvailable := cfg.InitialAvailable
	if initialAvailable <= 0 {
		initialAvailable = 0.7
	}

	rng := rand.New(rand.NewSource(seed))
	r := &Registry{
		byID:   make(map[string]*Driver, cfg.Drivers),
		active: make(map[string]string),
		rng:    rng,
		log:    log,
	}

	for i := 0; i < cfg.Drivers; i++ {
		status := models.DriverOffline
		if rng.Float64() < initialAvailable {
			status = models.DriverAvailable
		}
		d := NewDriver(
			fmt.Sprintf("D%05d", i),
			pickWeighted(rng, weights),
			status,
			geo.RandomPointInDisc(rng, cfg.Center, cfg.RadiusKm),
		)
		r.drivers = append(r.drivers, d)
		r.byID[d.ID] = d
	}
	sort.Slice(r.drivers, func(i, j int) bool { return r.drivers[i].ID < r.drivers[j].ID })

	for i := 0; i < cfg.Passengers; i++ {
		prefs, pay := newPassengerProfile(rng)
		r.passengers = append(r.passengers, &Passenger{
			ID:    fmt.Sprintf("P%05d", i),
			Home:  geo.RandomPointInDisc(rng, cfg.Center, cfg.RadiusKm),
			Work:  geo.RandomPointInDisc(rng, cfg.Center, cfg.RadiusKm),
			Prefs: prefs,
			Pay:   pay,
		})
	}
	return r, nil
}

func pickWeighted(rng *rand.Rand, weights map[models.VehicleType]float64) models.VehicleType {
	// iterate in a stable order so equal seeds give equal fleets
	types := make([]models.VehicleType, 0, len(weights))
	for vt := range weights {
		types = append(types, vt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	var total float64
	for _, vt := range types {
		total += weights[vt]
	}
	roll := rng.Float64() * total
	for _, vt := range types {
		roll -= weights[vt]
		if roll < 0 {
			return vt
		}
	}
	return types[len(types)-1]
}

// Driver returns the record for id, or nil.
func (r *Registry) Driver(id string) *Driver { return r.byID[id] }

// Drivers returns the full fleet ordered by id.
func (r *Registry) Drivers() []*Driver { return r.drivers }

// AvailableDrivers returns AVAILABLE drivers of the given vehicle type,
// ordered by id. A zero-value vehicle type matches every type.
func (r *Registry) AvailableDrivers(vt models.VehicleType) []*Driver {
	var out []*Driver
	for _, d := range r.drivers {
		if vt != "" && d.Vehicle != vt {
			continue
		}
		if d.Status() == models.DriverAvailable {
			out = append(out, d)
		}
	}
	return out
}

// OnlineCount counts drivers in any non-OFFLINE status.
func (r *Registry) OnlineCount() int {
	n := 0
	for _, d := range r.drivers {
		if d.Status() != models.DriverOffline {
			n++
		}
	}
	return n
}

// Claim binds driver to request atomically with the AVAILABLE->ON_RIDE
// transition. A second active binding for the same driver means the
// per-driver locking is broken; that is a design fault, so it panics.
func (r *Registry) Claim(driverID, requestID string) bool {
	d := r.byID[driverID]
	if d == nil || !d.TryClaim() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, exists := r.active[driverID]; exists {
		panic(fmt.Sprintf("population: driver %s double-booked by %s while serving %s", driverID, requestID, prev))
	}
	r.active[driverID] = requestID
	return true
}

// Release drops the binding and returns the driver to AVAILABLE unless it
// went OFFLINE independently.
func (r *Registry) Release(driverID, requestID string) {
	r.mu.Lock()
	if bound, exists := r.active[driverID]; exists && bound == requestID {
		delete(r.active, driverID)
	}
	r.mu.Unlock()
	if d := r.byID[driverID]; d != nil {
		d.Release()
	}
}

// ActiveRide reports the request currently bound to driverID, if any.
func (r *Registry) ActiveRide(driverID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.active[driverID]
	return id, ok
}

// MarkOnline forces a driver online, bypassing the presence dice.
func (r *Registry) MarkOnline(driverID string) bool {
	d := r.byID[driverID]
	return d != nil && d.goOnline()
}

// MarkOffline takes a driver off shift; ON_RIDE drivers are left alone.
func (r *Registry) MarkOffline(driverID string) bool {
	d := r.byID[driverID]
	return d != nil && d.goOffline()
}

// UpdateLocation moves a driver; invoked by ride sessions as trips progress.
func (r *Registry) UpdateLocation(driverID string, loc models.Location) {
	if d := r.byID[driverID]; d != nil {
		d.SetLocation(loc)
	}
}

// PresenceTick rolls the workforce dice once for every driver. ON_RIDE
// drivers are never transitioned; their session owns them until release.
func (r *Registry) PresenceTick(now time.Time, probs PresenceProbs) {
	offline, online := probs.DayOffline, probs.DayOnline
	switch h := now.Hour(); {
	case h < 6 || h >= 22:
		offline, online = probs.NightOffline, probs.NightOnline
	case h < 10:
		offline, online = probs.MorningOffline, probs.MorningOnline
	}
	for _, d := range r.drivers {
		r.mu.Lock()
		roll := r.rng.Float64()
		breakRoll := r.rng.Float64()
		r.mu.Unlock()
		switch d.Status() {
		case models.DriverAvailable, models.DriverUnavailable:
			if roll < offline {
				if d.goOffline() {
					r.log.Debug("driver went offline", "driver_id", d.ID)
				}
			} else if breakRoll < probs.BreakToggle {
				d.toggleBreak()
			}
		case models.DriverOffline:
			if roll < online {
				if d.goOnline() {
					r.log.Debug("driver came online", "driver_id", d.ID)
				}
			}
		}
	}
}

// SamplePassenger picks a passenger uniformly and applies profile drift
// before handing it out. Drift never happens mid-request because requests
// snapshot the profile at creation.
func (r *Registry) SamplePassenger() *Passenger {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.passengers[r.rng.Intn(len(r.passengers))]
	p.drift(r.rng)
	return p
}

// DriverUpdate captures one driver's state as a wire record.
func (r *Registry) DriverUpdate(driverID string, tsMillis int64) (models.DriverAvailabilityUpdate, bool) {
	d := r.byID[driverID]
	if d == nil {
		return models.DriverAvailabilityUpdate{}, false
	}
	return d.Update(tsMillis), true
}

// Snapshot captures an availability update per driver at tsMillis.
func (r *Registry) Snapshot(tsMillis int64) []models.DriverAvailabilityUpdate {
	out := make([]models.DriverAvailabilityUpdate, 0, len(r.drivers))
	for _, d := range r.drivers {
		out = append(out, d.Update(tsMillis))
	}
	return out
}
