package mirror

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/example/ridehail-sim/internal/models"
)

// Commands is the subset of redis operations the mirror needs; tests inject
// a fake.
type Commands interface {
	GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error
	HSet(ctx context.Context, key string, values map[string]interface{}) error
	ZRem(ctx context.Context, key string, member string) error
}

type redisCommands struct{ c *redis.Client }

func (r *redisCommands) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	return r.c.GeoAdd(ctx, key, loc).Err()
}

func (r *redisCommands) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	return r.c.HSet(ctx, key, values).Err()
}

func (r *redisCommands) ZRem(ctx context.Context, key string, member string) error {
	return r.c.ZRem(ctx, key, member).Err()
}

// Mirror keeps a Redis GEO set plus per-driver metadata hashes in sync with
// fleet availability so external dashboards can query "drivers near X"
// without touching the engine. Offline drivers drop out of the geo set.
type Mirror struct {
	cmds   Commands
	geoKey string
	log    *slog.Logger
}

func New(addr, password, geoKey string, log *slog.Logger) *Mirror {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &Mirror{cmds: &redisCommands{c: c}, geoKey: geoKey, log: log}
}

// NewWithCommands wires an explicit command set; used by tests.
func NewWithCommands(cmds Commands, geoKey string, log *slog.Logger) *Mirror {
	return &Mirror{cmds: cmds, geoKey: geoKey, log: log}
}

// Apply refreshes the mirror from one availability snapshot. Redis errors
// are logged and skipped; the mirror is advisory, never load-bearing.
func (m *Mirror) Apply(ctx context.Context, updates []models.DriverAvailabilityUpdate) {
	for _, u := range updates {
		if u.Status == models.DriverOffline {
			if err := m.cmds.ZRem(ctx, m.geoKey, u.DriverID); err != nil {
				m.log.Warn("mirror remove failed", "driver_id", u.DriverID, "error", err)
			}
			continue
		}
		err := m.cmds.GeoAdd(ctx, m.geoKey, &redis.GeoLocation{
			Name:      u.DriverID,
			Latitude:  u.Latitude,
			Longitude: u.Longitude,
		})
		if err != nil {
			m.log.Warn("mirror geoadd failed", "driver_id", u.DriverID, "error", err)
			continue
		}
		meta := map[string]interface{}{
			"status":  string(u.Status),
			"updated": strconv.FormatInt(u.Timestamp, 10),
		}
		if err := m.cmds.HSet(ctx, metaKey(u.DriverID), meta); err != nil {
			m.log.Warn("mirror hset failed", "driver_id", u.DriverID, "error", err)
		}
	}
}

func metaKey(id string) string { return "driver:meta:" + id }
