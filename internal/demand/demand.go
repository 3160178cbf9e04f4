package demand

import (
	"math/rand"
	"time"
)

// Fare constants match the upstream pricing sheet.
const (
	baseFare  = 2.50
	perKmRate = 1.50
)

// Window is a daily recurring time-of-day interval [From, To) in hours.
type Window struct {
	FromHour int
	ToHour   int
}

func (w Window) contains(hour int) bool {
	return hour >= w.FromHour && hour < w.ToHour
}

// Model produces the time-of-day demand multiplier and everything derived
// from it: request arrival rate, surge pricing, and traffic speed factor.
// The multiplier is a pure function of the simulated instant so tests can
// pin expectations to fixed times.
type Model struct {
	BaseLambda     float64 // requests per simulated minute at multiplier 1
	PeakMultiplier float64
	MaxSurge       float64
	RushWindows    []Window
	RushSpeed      float64 // speed factor inside rush windows
}

// DefaultRushWindows are the morning and evening commute peaks.
func DefaultRushWindows() []Window {
	return []Window{{FromHour: 7, ToHour: 9}, {FromHour: 17, ToHour: 19}}
}

// Multiplier returns m(t) in [1, PeakMultiplier].
func (m *Model) Multiplier(t time.Time) float64 {
	if m.inRush(t) {
		return m.PeakMultiplier
	}
	return 1.0
}

// Surge returns the pricing factor at t, clamped to [1, MaxSurge].
func (m *Model) Surge(t time.Time) float64 {
	s := m.Multiplier(t)
	if m.MaxSurge > 0 && s > m.MaxSurge {
		s = m.MaxSurge
	}
	if s < 1 {
		s = 1
	}
	return s
}

// SpeedFactor models congestion: slower travel during rush windows.
func (m *Model) SpeedFactor(t time.Time) float64 {
	if m.inRush(t) {
		if m.RushSpeed > 0 {
			return m.RushSpeed
		}
		return 0.7
	}
	return 1.0
}

// Lambda is the instantaneous request arrival rate per simulated minute.
func (m *Model) Lambda(t time.Time) float64 {
	return m.BaseLambda * m.Multiplier(t)
}

func (m *Model) inRush(t time.Time) bool {
	h := t.Hour()
	for _, w := range m.RushWindows {
		if w.contains(h) {
			return true
		}
	}
	return false
}

// EstimateFare prices a trip of distanceKm at the given surge factor.
func EstimateFare(distanceKm, surge float64) float64 {
	if surge < 1 {
		surge = 1
	}
	return (baseFare + perKmRate*distanceKm) * surge
}

// Arrivals is a lazy, infinite, non-restartable stream of inter-arrival
// gaps. Each Next draws from Exp(λ(t)); the same seed replays the same
// sequence.
type Arrivals struct {
	model *Model
	rng   *rand.Rand
}

// NewArrivals builds a stream over model using its own seeded source.
func NewArrivals(model *Model, seed int64) *Arrivals {
	return &Arrivals{model: model, rng: rand.New(rand.NewSource(seed))}
}

// Next returns the simulated gap until the next request arriving after now.
func (a *Arrivals) Next(now time.Time) time.Duration {
	lambda := a.model.Lambda(now)
	if lambda <= 0 {
		lambda = 1
	}
	gapMinutes := a.rng.ExpFloat64() / lambda
	return time.Duration(gapMinutes * float64(time.Minute))
}
