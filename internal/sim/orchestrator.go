package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/example/ridehail-sim/internal/demand"
	"github.com/example/ridehail-sim/internal/geo"
	"github.com/example/ridehail-sim/internal/matcher"
	"github.com/example/ridehail-sim/internal/models"
	"github.com/example/ridehail-sim/internal/msggen"
	"github.com/example/ridehail-sim/internal/observability"
	"github.com/example/ridehail-sim/internal/population"
	"github.com/example/ridehail-sim/internal/session"
	"github.com/example/ridehail-sim/internal/sink"
)

// Mirror receives fleet snapshots for external availability queries. Nil
// disables mirroring.
type Mirror interface {
	Apply(ctx context.Context, updates []models.DriverAvailabilityUpdate)
}

// Options wires one simulation run.
type Options struct {
	Registry *population.Registry
	Matcher  *matcher.Service
	Sink     sink.Sink
	Mirror   Mirror
	Clock    *demand.Clock
	Model    *demand.Model
	MsgGen   msggen.Generator
	Log      *slog.Logger

	Center   models.Location
	RadiusKm float64

	Seed     int64
	Duration time.Duration // simulated; 0 runs until the context is cancelled

	SnapshotEvery time.Duration // simulated
	PresenceEvery time.Duration // simulated
	Presence      population.PresenceProbs

	Session          session.Config
	PassengerMsgProb float64
	DriverRatingProb float64

	// ShutdownGrace is real time allotted for draining sessions before the
	// remaining pre-trip ones are cancelled.
	ShutdownGrace time.Duration
}

// Stats is a consistent snapshot of run counters.
type Stats struct {
	SimTime         time.Time
	Requests        int64
	Completed       int64
	Cancelled       int64
	CancelsByReason map[string]int64
	Active          int64
	DriversOnline   int
	Multiplier      float64
	Surge           float64
}

// Requested ride types skew heavily toward economy; riders order luxury far
// less often than the fleet carries it.
var requestTypeWeights = []struct {
	vt models.VehicleType
	w  float64
}{
	{models.VehicleEconomy, 0.75},
	{models.VehicleLuxury, 0.10},
	{models.VehiclePool, 0.05},
	{models.VehicleSUV, 0.10},
}

// Orchestrator owns the run: it turns the demand process into requests,
// performs the first match attempt, hands each request to its own session
// goroutine, and drives the periodic snapshot and presence processes.
type Orchestrator struct {
	opts Options
	rng  *rand.Rand

	mu        sync.Mutex
	requests  int64
	completed int64
	cancelled int64
	byReason  map[string]int64
}

func New(opts Options) *Orchestrator {
	if opts.SnapshotEvery <= 0 {
		opts.SnapshotEvery = 5 * time.Minute
	}
	if opts.PresenceEvery <= 0 {
		opts.PresenceEvery = 10 * time.Minute
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 30 * time.Second
	}
	return &Orchestrator{
		opts:     opts,
		rng:      rand.New(rand.NewSource(opts.Seed)),
		byReason: make(map[string]int64),
	}
}

// Run blocks until the simulated duration elapses or ctx is cancelled, then
// drains in-flight sessions. Trips already underway always complete.
func (o *Orchestrator) Run(ctx context.Context) error {
	opts := o.opts
	log := opts.Log

	// Sessions outlive the request loop: they are cancelled by external
	// shutdown, not by the run duration ending. The watcher exits with Run so
	// a duration-bounded run on a long-lived context leaks nothing.
	sessCtx, sessCancel := context.WithCancel(context.Background())
	defer sessCancel()
	runDone := make(chan struct{})
	defer close(runDone)
	go func() {
		select {
		case <-ctx.Done():
			sessCancel()
		case <-runDone:
		}
	}()

	// The request loop additionally stops when the simulated duration ends.
	loopCtx, loopCancel := context.WithCancel(ctx)
	defer loopCancel()
	if opts.Duration > 0 {
		go func() {
			opts.Clock.Sleep(ctx, opts.Duration)
			loopCancel()
		}()
	}

	var ticks sync.WaitGroup
	ticks.Add(2)
	go func() {
		defer ticks.Done()
		o.snapshotLoop(loopCtx)
	}()
	go func() {
		defer ticks.Done()
		o.presenceLoop(loopCtx)
	}()

	results := make(chan session.Result)
	var collect sync.WaitGroup
	collect.Add(1)
	go func() {
		defer collect.Done()
		for res := range results {
			o.record(res)
		}
	}()

	arrivals := demand.NewArrivals(opts.Model, opts.Seed)
	var sessions sync.WaitGroup

	log.Info("simulation started",
		"sim_start", opts.Clock.Now(),
		"drivers", len(opts.Registry.Drivers()),
		"duration", opts.Duration,
	)

	for {
		gap := arrivals.Next(opts.Clock.Now())
		if !opts.Clock.Sleep(loopCtx, gap) {
			break
		}
		req := o.materialize(loopCtx)
		if req == nil {
			continue
		}
		observability.RequestsTotal.Inc()
		o.mu.Lock()
		o.requests++
		o.mu.Unlock()
		log.Debug("request created", "request_id", req.RequestID, "vehicle_type", req.VehicleType)

		matched, _ := opts.Matcher.Match(req)
		sess := session.New(req, matched, opts.Matcher, opts.Registry, opts.Sink,
			opts.Clock, opts.Model, opts.MsgGen, o.rng.Int63(), opts.Session, log)
		sessions.Add(1)
		go func() {
			defer sessions.Done()
			results <- sess.Run(sessCtx)
		}()
	}

	log.Info("request intake stopped, draining sessions")
	drained := make(chan struct{})
	go func() {
		sessions.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(opts.ShutdownGrace):
		// Anything still waiting on a match or pickup cancels; trips in
		// progress finish on their own.
		sessCancel()
		<-drained
	}

	close(results)
	collect.Wait()
	ticks.Wait()

	st := o.Stats()
	log.Info("simulation finished",
		"requests", st.Requests,
		"completed", st.Completed,
		"cancelled", st.Cancelled,
	)
	return nil
}

// materialize cuts a request from a sampled passenger profile. A profile
// anchored outside the service perimeter is resampled; after too many tries
// the arrival is dropped.
func (o *Orchestrator) materialize(ctx context.Context) *models.PassengerRequest {
	opts := o.opts
	var p *population.Passenger
	var pickup, dropoff models.Location
	for attempt := 0; ; attempt++ {
		if attempt == 10 {
			opts.Log.Warn("no passenger inside service perimeter, dropping arrival")
			return nil
		}
		p = opts.Registry.SamplePassenger()
		pickup, dropoff = p.Home, p.Work
		if o.rng.Float64() < 0.5 {
			pickup, dropoff = dropoff, pickup
		}
		if geo.ValidateWithin(pickup, opts.Center, opts.RadiusKm) == nil &&
			geo.ValidateWithin(dropoff, opts.Center, opts.RadiusKm) == nil {
			break
		}
	}

	now := opts.Clock.NowMillis()
	simNow := opts.Clock.Now()
	req := &models.PassengerRequest{
		RequestID:            fmt.Sprintf("REQ-%d-%04d", now/1000, 1000+o.rng.Intn(9000)),
		PassengerID:          p.ID,
		Timestamp:            now,
		RequestTimestamp:     now,
		PickupLocation:       pickup,
		DropoffLocation:      dropoff,
		VehicleType:          o.pickRequestType(),
		PassengerPreferences: p.Prefs,
		PaymentInfo:          clonePayment(p.Pay),
		EstimatedFare:        demand.EstimateFare(geo.DistanceKm(pickup, dropoff), opts.Model.Surge(simNow)),
		TextMessages:         []models.TextMessage{},
		Status:               models.StatusRequested,
	}
	if o.rng.Float64() < opts.DriverRatingProb {
		rating := math.Round((1.0+o.rng.Float64()*4.0)*10) / 10
		req.DriverRating = &rating
	}
	if opts.MsgGen != nil && o.rng.Float64() < opts.PassengerMsgProb {
		prompt := "Generate a short message (max 20 words) simulating a text from a ride-hailing passenger to the driver"
		if content, err := opts.MsgGen.Generate(ctx, prompt); err == nil {
			req.TextMessages = append(req.TextMessages, models.TextMessage{
				MessageID: fmt.Sprintf("SYS-%d-%04d", now/1000, 1000+o.rng.Intn(9000)),
				Sender:    models.SenderPassenger,
				Content:   content,
				SentAt:    now,
			})
		}
	}
	return req
}

func (o *Orchestrator) pickRequestType() models.VehicleType {
	roll := o.rng.Float64()
	acc := 0.0
	for _, rw := range requestTypeWeights {
		acc += rw.w
		if roll < acc {
			return rw.vt
		}
	}
	return requestTypeWeights[0].vt
}

func (o *Orchestrator) record(res session.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch res.Status {
	case models.StatusCompleted:
		o.completed++
	case models.StatusCancelled:
		o.cancelled++
		o.byReason[res.Reason]++
	}
}

// snapshotLoop periodically publishes every driver's availability record and
// refreshes the external mirror.
func (o *Orchestrator) snapshotLoop(ctx context.Context) {
	opts := o.opts
	for {
		if !opts.Clock.Sleep(ctx, opts.SnapshotEvery) {
			return
		}
		updates := opts.Registry.Snapshot(opts.Clock.NowMillis())
		observability.DriversOnline.Set(float64(opts.Registry.OnlineCount()))
		pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		for _, upd := range updates {
			if err := opts.Sink.PublishDriverUpdate(pctx, upd); err != nil {
				opts.Log.Error("snapshot publish failed", "driver_id", upd.DriverID, "error", err)
			}
		}
		if opts.Mirror != nil {
			opts.Mirror.Apply(pctx, updates)
		}
		cancel()
		opts.Log.Debug("fleet snapshot published", "drivers", len(updates))
	}
}

// presenceLoop rolls the workforce on and off shift.
func (o *Orchestrator) presenceLoop(ctx context.Context) {
	opts := o.opts
	for {
		if !opts.Clock.Sleep(ctx, opts.PresenceEvery) {
			return
		}
		opts.Registry.PresenceTick(opts.Clock.Now(), opts.Presence)
		observability.DriversOnline.Set(float64(opts.Registry.OnlineCount()))
	}
}

// Stats returns the current counter snapshot for the observation API.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	byReason := make(map[string]int64, len(o.byReason))
	for k, v := range o.byReason {
		byReason[k] = v
	}
	st := Stats{
		Requests:        o.requests,
		Completed:       o.completed,
		Cancelled:       o.cancelled,
		CancelsByReason: byReason,
		Active:          o.requests - o.completed - o.cancelled,
	}
	o.mu.Unlock()

	now := o.opts.Clock.Now()
	st.SimTime = now
	st.DriversOnline = o.opts.Registry.OnlineCount()
	st.Multiplier = o.opts.Model.Multiplier(now)
	st.Surge = o.opts.Model.Surge(now)
	return st
}

func clonePayment(p models.PaymentInfo) models.PaymentInfo {
	cp := p
	if p.CouponCodes != nil {
		cp.CouponCodes = make([]string, len(p.CouponCodes))
		copy(cp.CouponCodes, p.CouponCodes)
	}
	if p.LoyaltyPointsUsed != nil {
		v := *p.LoyaltyPointsUsed
		cp.LoyaltyPointsUsed = &v
	}
	return cp
}
