package sink

import (
	"context"
	"log/slog"
	"sync"

	"github.com/example/ridehail-sim/internal/models"
)

// Sink receives the records the simulation emits. Implementations own their
// delivery guarantees; the engine never blocks its lifecycle on them.
type Sink interface {
	PublishRequest(ctx context.Context, req *models.PassengerRequest) error
	PublishDriverUpdate(ctx context.Context, upd models.DriverAvailabilityUpdate) error
	Close() error
}

// Memory captures records in-process. Tests assert against it; local runs
// can use it as a null sink.
type Memory struct {
	mu       sync.Mutex
	requests []*models.PassengerRequest
	updates  []models.DriverAvailabilityUpdate
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) PublishRequest(_ context.Context, req *models.PassengerRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return nil
}

func (m *Memory) PublishDriverUpdate(_ context.Context, upd models.DriverAvailabilityUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, upd)
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Requests() []*models.PassengerRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.PassengerRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *Memory) Updates() []models.DriverAvailabilityUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.DriverAvailabilityUpdate, len(m.updates))
	copy(out, m.updates)
	return out
}

// Tee fans publications out to several sinks. Errors are logged and swallowed
// so one slow or broken destination cannot starve the others.
type Tee struct {
	Sinks []Sink
	Log   *slog.Logger
}

func NewTee(log *slog.Logger, sinks ...Sink) *Tee { return &Tee{Sinks: sinks, Log: log} }

func (t *Tee) PublishRequest(ctx context.Context, req *models.PassengerRequest) error {
	for _, s := range t.Sinks {
		if err := s.PublishRequest(ctx, req); err != nil {
			t.Log.Warn("tee publish request failed", "error", err)
		}
	}
	return nil
}

func (t *Tee) PublishDriverUpdate(ctx context.Context, upd models.DriverAvailabilityUpdate) error {
	for _, s := range t.Sinks {
		if err := s.PublishDriverUpdate(ctx, upd); err != nil {
			t.Log.Warn("tee publish driver update failed", "error", err)
		}
	}
	return nil
}

func (t *Tee) Close() error {
	var first error
	for _, s := range t.Sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
