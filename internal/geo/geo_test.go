package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/example/ridehail-sim/internal/models"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lon1      float64
		lat2      float64
		lon2      float64
		wantKm    float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: 40.7128, lon1: -74.0060,
			lat2: 40.7128, lon2: -74.0060,
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name: "Manhattan to JFK (~19km)",
			lat1: 40.7128, lon1: -74.0060,
			lat2: 40.6413, lon2: -73.7781,
			wantKm:    20.5,
			tolerance: 2.0,
		},
		{
			name: "New York to Los Angeles (~3944km)",
			lat1: 40.7128, lon1: -74.0060,
			lat2: 34.0522, lon2: -118.2437,
			wantKm:    3944,
			tolerance: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	d1 := HaversineKm(40.0, -74.0, 41.0, -73.0)
	d2 := HaversineKm(41.0, -73.0, 40.0, -74.0)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestBearingDeg_CardinalDirections(t *testing.T) {
	origin := models.Location{Latitude: 0, Longitude: 0}
	tests := []struct {
		name string
		to   models.Location
		want float64
	}{
		{"due north", models.Location{Latitude: 1, Longitude: 0}, 0},
		{"due east", models.Location{Latitude: 0, Longitude: 1}, 90},
		{"due south", models.Location{Latitude: -1, Longitude: 0}, 180},
		{"due west", models.Location{Latitude: 0, Longitude: -1}, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BearingDeg(origin, tt.to)
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("BearingDeg() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestRandomPointInDisc_StaysInside(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	center := models.Location{Latitude: 40.0, Longitude: -74.0}
	const radiusKm = 15.0
	for i := 0; i < 1000; i++ {
		p := RandomPointInDisc(rng, center, radiusKm)
		if d := DistanceKm(p, center); d > radiusKm+0.01 {
			t.Fatalf("sample %d at %.3fkm exceeds radius %.1fkm", i, d, radiusKm)
		}
	}
}

func TestRandomPointInDisc_Deterministic(t *testing.T) {
	center := models.Location{Latitude: 40.0, Longitude: -74.0}
	a := RandomPointInDisc(rand.New(rand.NewSource(7)), center, 10)
	b := RandomPointInDisc(rand.New(rand.NewSource(7)), center, 10)
	if a != b {
		t.Errorf("same seed produced different points: %v vs %v", a, b)
	}
}

func TestValidateWithin(t *testing.T) {
	center := models.Location{Latitude: 40.0, Longitude: -74.0}
	inside := models.Location{Latitude: 40.01, Longitude: -74.01}
	outside := models.Location{Latitude: 41.0, Longitude: -74.0}
	if err := ValidateWithin(inside, center, 15); err != nil {
		t.Errorf("inside point rejected: %v", err)
	}
	if err := ValidateWithin(outside, center, 15); err != ErrOutsidePerimeter {
		t.Errorf("expected ErrOutsidePerimeter, got %v", err)
	}
}
