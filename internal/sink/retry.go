package sink

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/ridehail-sim/internal/models"
	"github.com/example/ridehail-sim/internal/observability"
)

// Retry wraps a sink with bounded attempts and exponential backoff. A
// publication that exhausts its attempts is logged and counted but never
// surfaces as an error: the simulation must not abort on sink trouble.
type Retry struct {
	Next     Sink
	Attempts int
	Delay    time.Duration
	Name     string
	Log      *slog.Logger
}

func NewRetry(next Sink, attempts int, delay time.Duration, name string, log *slog.Logger) *Retry {
	if attempts <= 0 {
		attempts = 3
	}
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	return &Retry{Next: next, Attempts: attempts, Delay: delay, Name: name, Log: log}
}

func (r *Retry) PublishRequest(ctx context.Context, req *models.PassengerRequest) error {
	r.attempt(ctx, func(ctx context.Context) error {
		return r.Next.PublishRequest(ctx, req)
	}, "request", req.RequestID)
	return nil
}

func (r *Retry) PublishDriverUpdate(ctx context.Context, upd models.DriverAvailabilityUpdate) error {
	r.attempt(ctx, func(ctx context.Context) error {
		return r.Next.PublishDriverUpdate(ctx, upd)
	}, "driver_update", upd.DriverID)
	return nil
}

func (r *Retry) Close() error { return r.Next.Close() }

func (r *Retry) attempt(ctx context.Context, publish func(context.Context) error, kind, id string) {
	delay := r.Delay
	var err error
	for i := 0; i < r.Attempts; i++ {
		if err = publish(ctx); err == nil {
			return
		}
		if i == r.Attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(delay):
			delay *= 2
			continue
		}
		break
	}
	observability.SinkPublishErrors.WithLabelValues(r.Name).Inc()
	r.Log.Error("publish failed permanently", "sink", r.Name, "kind", kind, "id", id, "error", err)
}
