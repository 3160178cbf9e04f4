package demand

import (
	"context"
	"math"
	"testing"
	"time"
)

func testModel() *Model {
	return &Model{
		BaseLambda:     3,
		PeakMultiplier: 10.0 / 3.0,
		MaxSurge:       2.5,
		RushWindows:    DefaultRushWindows(),
		RushSpeed:      0.7,
	}
}

func at(hour int) time.Time {
	return time.Date(2025, 6, 2, hour, 30, 0, 0, time.UTC)
}

func TestMultiplier_RushAboveOffPeak(t *testing.T) {
	m := testModel()
	rush := m.Multiplier(at(8))
	offPeak := m.Multiplier(at(14))
	if rush <= offPeak {
		t.Fatalf("rush multiplier %f not above off-peak %f", rush, offPeak)
	}
	if offPeak != 1.0 {
		t.Errorf("off-peak multiplier = %f, want 1.0", offPeak)
	}
}

func TestMultiplier_WindowBoundaries(t *testing.T) {
	m := testModel()
	tests := []struct {
		hour int
		rush bool
	}{
		{6, false}, {7, true}, {8, true}, {9, false},
		{16, false}, {17, true}, {18, true}, {19, false}, {23, false},
	}
	for _, tt := range tests {
		got := m.Multiplier(at(tt.hour)) > 1.0
		if got != tt.rush {
			t.Errorf("hour %d: rush=%v, want %v", tt.hour, got, tt.rush)
		}
	}
}

func TestSurge_Clamped(t *testing.T) {
	m := testModel()
	if s := m.Surge(at(8)); s > m.MaxSurge {
		t.Errorf("surge %f exceeds cap %f", s, m.MaxSurge)
	}
	if s := m.Surge(at(3)); s != 1.0 {
		t.Errorf("night surge = %f, want 1.0", s)
	}
}

func TestSpeedFactor(t *testing.T) {
	m := testModel()
	if f := m.SpeedFactor(at(8)); f != 0.7 {
		t.Errorf("rush speed factor = %f, want 0.7", f)
	}
	if f := m.SpeedFactor(at(13)); f != 1.0 {
		t.Errorf("off-peak speed factor = %f, want 1.0", f)
	}
}

func TestEstimateFare(t *testing.T) {
	got := EstimateFare(10, 1)
	want := 2.50 + 1.50*10
	if math.Abs(got-want) > 0.001 {
		t.Errorf("EstimateFare(10, 1) = %f, want %f", got, want)
	}
	surged := EstimateFare(10, 2)
	if math.Abs(surged-2*want) > 0.001 {
		t.Errorf("surge not applied multiplicatively: %f", surged)
	}
	if EstimateFare(5, 0.5) != EstimateFare(5, 1) {
		t.Error("surge below 1 should clamp to 1")
	}
}

func TestArrivals_DeterministicAndPositive(t *testing.T) {
	m := testModel()
	a := NewArrivals(m, 99)
	b := NewArrivals(m, 99)
	now := at(12)
	for i := 0; i < 50; i++ {
		ga, gb := a.Next(now), b.Next(now)
		if ga != gb {
			t.Fatalf("draw %d diverged: %v vs %v", i, ga, gb)
		}
		if ga < 0 {
			t.Fatalf("negative inter-arrival gap %v", ga)
		}
	}
}

func TestArrivals_RushGapsShorter(t *testing.T) {
	m := testModel()
	mean := func(hour int, seed int64) time.Duration {
		a := NewArrivals(m, seed)
		var total time.Duration
		const n = 2000
		for i := 0; i < n; i++ {
			total += a.Next(at(hour))
		}
		return total / n
	}
	rush := mean(8, 1)
	offPeak := mean(14, 1)
	if rush >= offPeak {
		t.Fatalf("mean rush gap %v not shorter than off-peak %v", rush, offPeak)
	}
}

func TestClock_ScaledAdvance(t *testing.T) {
	start := time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)
	c := NewClock(start, 3600) // one real second is one simulated hour
	time.Sleep(20 * time.Millisecond)
	sim := c.Now().Sub(start)
	if sim < 30*time.Second {
		t.Errorf("simulated time barely advanced: %v", sim)
	}
}

func TestClock_SleepHonorsCancel(t *testing.T) {
	c := NewClock(time.Now(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if c.Sleep(ctx, time.Hour) {
		t.Error("Sleep returned true on cancelled context")
	}
}

func TestClock_SleepScaled(t *testing.T) {
	c := NewClock(time.Now(), 60000) // one simulated minute per real millisecond
	done := make(chan bool, 1)
	go func() { done <- c.Sleep(context.Background(), 10*time.Minute) }()
	select {
	case ok := <-done:
		if !ok {
			t.Error("Sleep returned false without cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scaled Sleep did not return promptly")
	}
}
