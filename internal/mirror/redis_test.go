package mirror

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/example/ridehail-sim/internal/models"
)

type fakeCommands struct {
	geo     map[string]*redis.GeoLocation
	hashes  map[string]map[string]interface{}
	removed []string
	geoErr  error
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{
		geo:    map[string]*redis.GeoLocation{},
		hashes: map[string]map[string]interface{}{},
	}
}

func (f *fakeCommands) GeoAdd(_ context.Context, _ string, loc *redis.GeoLocation) error {
	if f.geoErr != nil {
		return f.geoErr
	}
	f.geo[loc.Name] = loc
	return nil
}

func (f *fakeCommands) HSet(_ context.Context, key string, values map[string]interface{}) error {
	f.hashes[key] = values
	return nil
}

func (f *fakeCommands) ZRem(_ context.Context, _ string, member string) error {
	delete(f.geo, member)
	f.removed = append(f.removed, member)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApplyWritesGeoAndMeta(t *testing.T) {
	cmds := newFakeCommands()
	m := NewWithCommands(cmds, "drivers:geo", testLogger())

	m.Apply(context.Background(), []models.DriverAvailabilityUpdate{
		{DriverID: "D00001", Status: models.DriverAvailable, Latitude: 40.71, Longitude: -74.0, Timestamp: 1700000000000},
	})

	loc, ok := cmds.geo["D00001"]
	if !ok {
		t.Fatal("driver missing from geo set")
	}
	if loc.Latitude != 40.71 || loc.Longitude != -74.0 {
		t.Fatalf("wrong coordinates: %+v", loc)
	}
	meta := cmds.hashes["driver:meta:D00001"]
	if meta == nil {
		t.Fatal("meta hash not written")
	}
	if meta["status"] != string(models.DriverAvailable) {
		t.Fatalf("status = %v", meta["status"])
	}
	if meta["updated"] != "1700000000000" {
		t.Fatalf("updated = %v", meta["updated"])
	}
}

func TestApplyRemovesOfflineDrivers(t *testing.T) {
	cmds := newFakeCommands()
	m := NewWithCommands(cmds, "drivers:geo", testLogger())

	m.Apply(context.Background(), []models.DriverAvailabilityUpdate{
		{DriverID: "D00002", Status: models.DriverAvailable, Latitude: 1, Longitude: 2, Timestamp: 1},
	})
	m.Apply(context.Background(), []models.DriverAvailabilityUpdate{
		{DriverID: "D00002", Status: models.DriverOffline, Timestamp: 2},
	})

	if _, ok := cmds.geo["D00002"]; ok {
		t.Fatal("offline driver still in geo set")
	}
	if len(cmds.removed) != 1 || cmds.removed[0] != "D00002" {
		t.Fatalf("removed = %v", cmds.removed)
	}
}

func TestApplySkipsMetaAfterGeoError(t *testing.T) {
	cmds := newFakeCommands()
	cmds.geoErr = errors.New("connection refused")
	m := NewWithCommands(cmds, "drivers:geo", testLogger())

	m.Apply(context.Background(), []models.DriverAvailabilityUpdate{
		{DriverID: "D00003", Status: models.DriverAvailable, Latitude: 1, Longitude: 2, Timestamp: 3},
	})

	if len(cmds.hashes) != 0 {
		t.Fatalf("meta written despite geo failure: %v", cmds.hashes)
	}
}
