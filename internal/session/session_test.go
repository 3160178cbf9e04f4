package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/ridehail-sim/internal/demand"
	"github.com/example/ridehail-sim/internal/models"
	"github.com/example/ridehail-sim/internal/msggen"
	"github.com/example/ridehail-sim/internal/sink"
)

type fakePool struct {
	mu       sync.Mutex
	loc      models.Location
	status   models.DriverStatus
	released [][2]string
}

func (p *fakePool) Release(driverID, requestID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, [2]string{driverID, requestID})
	p.status = models.DriverAvailable
}

func (p *fakePool) UpdateLocation(_ string, loc models.Location) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loc = loc
}

func (p *fakePool) DriverUpdate(driverID string, tsMillis int64) (models.DriverAvailabilityUpdate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return models.DriverAvailabilityUpdate{
		DriverID:  driverID,
		Timestamp: tsMillis,
		Latitude:  p.loc.Latitude,
		Longitude: p.loc.Longitude,
		Status:    p.status,
	}, true
}

func (p *fakePool) releaseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.released)
}

// fakeMatcher misses failBefore times, then returns id forever (or misses
// forever when id is empty).
type fakeMatcher struct {
	id         string
	failBefore int
	calls      int
}

func (m *fakeMatcher) Match(*models.PassengerRequest) (string, bool) {
	m.calls++
	if m.id == "" || m.calls <= m.failBefore {
		return "", false
	}
	return m.id, true
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func offPeakModel() *demand.Model {
	return &demand.Model{
		BaseLambda:     10,
		PeakMultiplier: 3,
		MaxSurge:       2,
		RushWindows:    demand.DefaultRushWindows(),
		RushSpeed:      0.7,
	}
}

// fastClock compresses simulated time so lifecycle sleeps resolve in
// microseconds of wall time. Noon keeps the model off-peak.
func fastClock() *demand.Clock {
	return demand.NewClock(time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC), 200000)
}

func testRequest(clock *demand.Clock) *models.PassengerRequest {
	now := clock.NowMillis()
	return &models.PassengerRequest{
		RequestID:        "REQ-0001",
		PassengerID:      "P00001",
		Timestamp:        now,
		RequestTimestamp: now,
		PickupLocation:   models.Location{Latitude: 40.7128, Longitude: -74.0060},
		DropoffLocation:  models.Location{Latitude: 40.7306, Longitude: -73.9866},
		VehicleType:      models.VehicleEconomy,
		Status:           models.StatusRequested,
	}
}

func TestRunCompletesMatchedRide(t *testing.T) {
	clock := fastClock()
	req := testRequest(clock)
	pool := &fakePool{loc: models.Location{Latitude: 40.72, Longitude: -74.00}, status: models.DriverOnRide}
	mem := sink.NewMemory()

	s := New(req, "D00007", &fakeMatcher{}, pool, mem, clock, offPeakModel(),
		msggen.NewStatic("On my way!"), 42, Config{DriverReplyProb: 1}, testLogger())
	res := s.Run(context.Background())

	if res.Status != models.StatusCompleted {
		t.Fatalf("status = %s, reason = %s", res.Status, res.Reason)
	}
	if res.DriverID != "D00007" {
		t.Fatalf("driver = %q", res.DriverID)
	}
	if req.Status != models.StatusCompleted {
		t.Fatalf("request status = %s", req.Status)
	}
	if req.DriverID == nil || *req.DriverID != "D00007" {
		t.Fatal("driver id not recorded on request")
	}
	if req.RideDuration == nil || *req.RideDuration <= 0 {
		t.Fatal("ride duration not recorded")
	}
	if req.AcceptedTimestamp < req.RequestTimestamp {
		t.Fatalf("accepted %d before requested %d", req.AcceptedTimestamp, req.RequestTimestamp)
	}
	if pool.releaseCount() != 1 {
		t.Fatalf("release calls = %d", pool.releaseCount())
	}
	if got := pool.loc; got != req.DropoffLocation {
		t.Fatalf("driver parked at %+v, want dropoff", got)
	}
	if len(req.TextMessages) != 1 || req.TextMessages[0].Sender != models.SenderDriver {
		t.Fatalf("driver reply missing: %+v", req.TextMessages)
	}
	if n := len(mem.Requests()); n != 1 {
		t.Fatalf("published requests = %d", n)
	}
	if n := len(mem.Updates()); n != 1 {
		t.Fatalf("published driver updates = %d", n)
	}
}

func TestRunRetriesMatcherUntilDriverAppears(t *testing.T) {
	clock := fastClock()
	req := testRequest(clock)
	pool := &fakePool{loc: models.Location{Latitude: 40.71, Longitude: -74.01}, status: models.DriverOnRide}
	m := &fakeMatcher{id: "D00003", failBefore: 2}

	s := New(req, "", m, pool, sink.NewMemory(), clock, offPeakModel(),
		nil, 7, Config{MatchTimeout: 30 * time.Minute, MatchRetryEvery: time.Minute}, testLogger())
	res := s.Run(context.Background())

	if res.Status != models.StatusCompleted {
		t.Fatalf("status = %s, reason = %s", res.Status, res.Reason)
	}
	if m.calls != 3 {
		t.Fatalf("match attempts = %d, want 3", m.calls)
	}
}

func TestRunCancelsNoDriverAfterTimeout(t *testing.T) {
	clock := fastClock()
	req := testRequest(clock)
	pool := &fakePool{}
	mem := sink.NewMemory()

	s := New(req, "", &fakeMatcher{}, pool, mem, clock, offPeakModel(),
		nil, 7, Config{MatchTimeout: 3 * time.Minute, MatchRetryEvery: time.Minute}, testLogger())
	res := s.Run(context.Background())

	if res.Status != models.StatusCancelled || res.Reason != ReasonNoDriver {
		t.Fatalf("got %s/%s", res.Status, res.Reason)
	}
	if req.Status != models.StatusCancelled {
		t.Fatalf("request status = %s", req.Status)
	}
	if req.DriverID != nil {
		t.Fatalf("driver id set on unmatched request: %s", *req.DriverID)
	}
	if pool.releaseCount() != 0 {
		t.Fatal("released a driver that was never claimed")
	}
	if n := len(mem.Requests()); n != 1 {
		t.Fatalf("published requests = %d", n)
	}
	if n := len(mem.Updates()); n != 0 {
		t.Fatalf("published driver updates = %d, want none", n)
	}
}

func TestRunPassengerGivesUpBeforeMatch(t *testing.T) {
	clock := fastClock()
	req := testRequest(clock)

	s := New(req, "", &fakeMatcher{}, &fakePool{}, sink.NewMemory(), clock, offPeakModel(),
		nil, 7, Config{MatchTimeout: time.Hour, PreAcceptCancelProb: 1}, testLogger())
	res := s.Run(context.Background())

	if res.Status != models.StatusCancelled || res.Reason != ReasonPassenger {
		t.Fatalf("got %s/%s", res.Status, res.Reason)
	}
}

func TestRunNoShowReleasesDriver(t *testing.T) {
	clock := fastClock()
	req := testRequest(clock)
	pool := &fakePool{status: models.DriverOnRide}
	mem := sink.NewMemory()

	s := New(req, "D00002", &fakeMatcher{}, pool, mem, clock, offPeakModel(),
		nil, 7, Config{NoShowProb: 1}, testLogger())
	res := s.Run(context.Background())

	if res.Status != models.StatusCancelled || res.Reason != ReasonNoShow {
		t.Fatalf("got %s/%s", res.Status, res.Reason)
	}
	if req.AcceptedTimestamp == 0 {
		t.Fatal("no-show should happen after acceptance")
	}
	if pool.releaseCount() != 1 {
		t.Fatalf("release calls = %d", pool.releaseCount())
	}
	if n := len(mem.Updates()); n != 1 {
		t.Fatalf("published driver updates = %d", n)
	}
}

func TestRunShutdownBeforePickupCancels(t *testing.T) {
	clock := fastClock()
	req := testRequest(clock)
	pool := &fakePool{loc: models.Location{Latitude: 40.75, Longitude: -74.01}, status: models.DriverOnRide}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(req, "D00004", &fakeMatcher{}, pool, sink.NewMemory(), clock, offPeakModel(),
		nil, 7, Config{}, testLogger())
	res := s.Run(ctx)

	if res.Status != models.StatusCancelled || res.Reason != ReasonShutdown {
		t.Fatalf("got %s/%s", res.Status, res.Reason)
	}
	if pool.releaseCount() != 1 {
		t.Fatalf("release calls = %d", pool.releaseCount())
	}
}

func TestRunTripInProgressSurvivesShutdown(t *testing.T) {
	// Scale so the trip leg takes a few hundred milliseconds of wall time.
	clock := demand.NewClock(time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC), 2000)
	req := testRequest(clock)
	// Driver already at the pickup, so the cancellable leg is instant.
	pool := &fakePool{loc: req.PickupLocation, status: models.DriverOnRide}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() {
		s := New(req, "D00005", &fakeMatcher{}, pool, sink.NewMemory(), clock, offPeakModel(),
			nil, 7, Config{}, testLogger())
		done <- s.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	res := <-done

	if res.Status != models.StatusCompleted {
		t.Fatalf("trip underway must complete, got %s/%s", res.Status, res.Reason)
	}
	if req.RideDuration == nil {
		t.Fatal("ride duration not recorded")
	}
}

func TestPublishedRecordDoesNotAliasSessionState(t *testing.T) {
	clock := fastClock()
	req := testRequest(clock)
	pool := &fakePool{loc: models.Location{Latitude: 40.71, Longitude: -74.01}, status: models.DriverOnRide}
	mem := sink.NewMemory()

	s := New(req, "D00006", &fakeMatcher{}, pool, mem, clock, offPeakModel(),
		nil, 7, Config{}, testLogger())
	s.Run(context.Background())

	published := mem.Requests()[0]
	req.Status = models.StatusRequested
	req.PassengerID = "tampered"
	if published.Status != models.StatusCompleted || published.PassengerID != "P00001" {
		t.Fatal("published record shares memory with the live request")
	}
}
