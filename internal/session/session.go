package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/example/ridehail-sim/internal/demand"
	"github.com/example/ridehail-sim/internal/geo"
	"github.com/example/ridehail-sim/internal/models"
	"github.com/example/ridehail-sim/internal/msggen"
	"github.com/example/ridehail-sim/internal/observability"
	"github.com/example/ridehail-sim/internal/sink"
)

// Cancellation reasons recorded on terminal CANCELLED events.
const (
	ReasonNoDriver  = "no_driver"
	ReasonPassenger = "passenger_cancelled"
	ReasonNoShow    = "no_show"
	ReasonShutdown  = "shutdown"
)

// Matcher finds and claims a driver for a request.
type Matcher interface {
	Match(req *models.PassengerRequest) (string, bool)
}

// Pool is the registry surface a session needs: releasing its claim and
// moving its driver along the route.
type Pool interface {
	Release(driverID, requestID string)
	UpdateLocation(driverID string, loc models.Location)
	DriverUpdate(driverID string, tsMillis int64) (models.DriverAvailabilityUpdate, bool)
}

// Config tunes one session's lifecycle rolls and speeds.
type Config struct {
	BaseSpeedKmh float64

	// MatchTimeout is the simulated window a request waits for a driver
	// before cancelling with reason no_driver.
	MatchTimeout time.Duration
	// MatchRetryEvery is the simulated gap between repeat match attempts.
	MatchRetryEvery time.Duration

	// PreAcceptCancelProb is rolled on every failed match attempt: the
	// passenger giving up before a driver is found.
	PreAcceptCancelProb float64
	// NoShowProb is rolled once after acceptance.
	NoShowProb float64
	// DriverReplyProb attaches a generated driver greeting after acceptance.
	DriverReplyProb float64
}

// Result is reported on the orchestrator's completion channel.
type Result struct {
	RequestID string
	Status    models.RideStatus
	Reason    string
	DriverID  string
}

// Session runs one request's lifecycle as a goroutine. It has exclusive
// mutation rights over its request, and over its driver's status between
// claim and release. Its RNG is a child seeded by the orchestrator, so runs
// replay deterministically.
type Session struct {
	req     *models.PassengerRequest
	matched string // driver claimed by the orchestrator's first attempt, or ""

	matcher Matcher
	pool    Pool
	sink    sink.Sink
	clock   *demand.Clock
	model   *demand.Model
	msg     msggen.Generator
	rng     *rand.Rand
	cfg     Config
	log     *slog.Logger
}

func New(req *models.PassengerRequest, matchedDriver string, m Matcher, pool Pool, snk sink.Sink,
	clock *demand.Clock, model *demand.Model, gen msggen.Generator, seed int64, cfg Config, log *slog.Logger) *Session {
	if cfg.BaseSpeedKmh <= 0 {
		cfg.BaseSpeedKmh = 30
	}
	if cfg.MatchRetryEvery <= 0 {
		cfg.MatchRetryEvery = time.Minute
	}
	return &Session{
		req:     req,
		matched: matchedDriver,
		matcher: m,
		pool:    pool,
		sink:    snk,
		clock:   clock,
		model:   model,
		msg:     gen,
		rng:     rand.New(rand.NewSource(seed)),
		cfg:     cfg,
		log:     log.With("request_id", req.RequestID),
	}
}

// Run drives the request to a terminal state and returns the result.
// Cancellation via ctx is honored up to IN_PROGRESS; a trip underway always
// completes.
func (s *Session) Run(ctx context.Context) Result {
	observability.ActiveSessions.Inc()
	defer observability.ActiveSessions.Dec()

	driverID, missReason := s.findDriver(ctx)
	if driverID == "" {
		return s.cancel("", missReason)
	}

	s.accept(driverID)

	if s.rng.Float64() < s.cfg.NoShowProb {
		return s.cancel(driverID, ReasonNoShow)
	}

	s.maybeDriverReply(ctx, driverID)

	pickupTravel := s.travelTime(s.driverLocation(driverID), s.req.PickupLocation)
	if !s.clock.Sleep(ctx, pickupTravel) {
		return s.cancel(driverID, ReasonShutdown)
	}
	s.pool.UpdateLocation(driverID, s.req.PickupLocation)

	// Point of no return: once the trip starts it runs to completion
	// regardless of shutdown, so the sleep is detached from ctx.
	s.req.Status = models.StatusInProgress
	tripTime := s.travelTime(s.req.PickupLocation, s.req.DropoffLocation)
	s.clock.Sleep(context.Background(), tripTime)

	return s.complete(driverID, tripTime)
}

// findDriver retries the matcher until a claim succeeds, the passenger gives
// up, or the simulated timeout elapses. On a miss the driver id is empty and
// the reason says why.
func (s *Session) findDriver(ctx context.Context) (driverID, missReason string) {
	if s.matched != "" {
		return s.matched, ""
	}
	deadline := s.clock.Now().Add(s.cfg.MatchTimeout)
	for {
		if id, ok := s.matcher.Match(s.req); ok {
			return id, ""
		}
		if s.rng.Float64() < s.cfg.PreAcceptCancelProb {
			return "", ReasonPassenger
		}
		if !s.clock.Now().Before(deadline) {
			return "", ReasonNoDriver
		}
		if !s.clock.Sleep(ctx, s.cfg.MatchRetryEvery) {
			return "", ReasonShutdown
		}
	}
}

func (s *Session) accept(driverID string) {
	now := s.clock.NowMillis()
	if now < s.req.RequestTimestamp {
		now = s.req.RequestTimestamp
	}
	s.req.Status = models.StatusAccepted
	s.req.DriverID = &driverID
	s.req.AcceptedTimestamp = now
	s.log.Info("request accepted", "driver_id", driverID)
}

func (s *Session) complete(driverID string, tripTime time.Duration) Result {
	s.pool.UpdateLocation(driverID, s.req.DropoffLocation)
	dur := tripTime.Seconds()
	s.req.RideDuration = &dur
	s.req.Status = models.StatusCompleted
	s.release(driverID)

	observability.RidesCompleted.Inc()
	observability.RideDuration.Observe(dur)
	s.log.Info("ride completed", "driver_id", driverID, "duration_s", dur)
	s.publishTerminal(driverID)
	return Result{RequestID: s.req.RequestID, Status: models.StatusCompleted, DriverID: driverID}
}

func (s *Session) cancel(driverID, reason string) Result {
	s.req.Status = models.StatusCancelled
	if driverID != "" {
		s.release(driverID)
	}
	observability.CancellationsTotal.WithLabelValues(reason).Inc()
	s.log.Info("request cancelled", "reason", reason)
	s.publishTerminal(driverID)
	return Result{RequestID: s.req.RequestID, Status: models.StatusCancelled, Reason: reason, DriverID: driverID}
}

func (s *Session) release(driverID string) {
	s.pool.Release(driverID, s.req.RequestID)
}

// publishTerminal emits the frozen request record and, when a driver was
// involved, its availability update. Publish failures are the sink's
// problem; the lifecycle never depends on them.
func (s *Session) publishTerminal(driverID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sink.PublishRequest(ctx, s.req.Clone()); err != nil {
		s.log.Error("publish request failed", "error", err)
	}
	if driverID == "" {
		return
	}
	if upd, ok := s.pool.DriverUpdate(driverID, s.clock.NowMillis()); ok {
		if err := s.sink.PublishDriverUpdate(ctx, upd); err != nil {
			s.log.Error("publish driver update failed", "driver_id", driverID, "error", err)
		}
	}
}

func (s *Session) maybeDriverReply(ctx context.Context, driverID string) {
	if s.msg == nil || s.rng.Float64() >= s.cfg.DriverReplyProb {
		return
	}
	prompt := "Generate a short message (max 20 words) simulating a text from a ride-hailing driver who just accepted a trip"
	content, err := s.msg.Generate(ctx, prompt)
	if err != nil {
		s.log.Debug("driver message generation failed", "error", err)
		return
	}
	s.req.TextMessages = append(s.req.TextMessages, models.TextMessage{
		MessageID: fmt.Sprintf("MSG-%s-%04d", driverID, s.rng.Intn(10000)),
		Sender:    models.SenderDriver,
		Content:   content,
		SentAt:    s.clock.NowMillis(),
	})
}

func (s *Session) driverLocation(driverID string) models.Location {
	if upd, ok := s.pool.DriverUpdate(driverID, 0); ok {
		return models.Location{Latitude: upd.Latitude, Longitude: upd.Longitude}
	}
	return s.req.PickupLocation
}

// travelTime converts a leg distance into simulated time at the base speed
// scaled by current congestion.
func (s *Session) travelTime(from, to models.Location) time.Duration {
	distKm := geo.DistanceKm(from, to)
	speed := s.cfg.BaseSpeedKmh * s.model.SpeedFactor(s.clock.Now())
	if speed <= 0 {
		speed = s.cfg.BaseSpeedKmh
	}
	hours := distKm / speed
	return time.Duration(hours * float64(time.Hour))
}
