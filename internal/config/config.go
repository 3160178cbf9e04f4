package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/ridehail-sim/internal/models"
)

// Config captures every tunable of one simulation run. Values come from
// environment variables with defaults chosen so the binary produces a
// plausible city out of the box.
type Config struct {
	// City perimeter and population.
	CenterLat  float64
	CenterLon  float64
	RadiusKm   float64
	Drivers    int
	Passengers int

	// Run shape.
	Duration        time.Duration // simulated run length; 0 runs until signalled
	TimeScale       float64       // simulated seconds per real second
	StartTime       time.Time     // simulated start instant
	Seed            int64
	ShutdownGrace   time.Duration
	SnapshotEvery   time.Duration // simulated gap between fleet snapshots
	PresenceEvery   time.Duration // simulated gap between presence rolls

	// Demand model.
	BaseLambda     float64 // requests per simulated minute off-peak
	PeakMultiplier float64
	MaxSurge       float64

	// Matching and lifecycle.
	DispatchRadiusKm    float64
	BaseSpeedKmh        float64
	MatchTimeout        time.Duration
	MatchRetryEvery     time.Duration
	PreAcceptCancelProb float64
	NoShowProb          float64
	PassengerMsgProb    float64
	DriverReplyProb     float64
	DriverRatingProb    float64

	// Backends. Empty endpoints disable the corresponding sink.
	KafkaBrokers      []string
	KafkaRideTopic    string
	KafkaDriverTopic  string
	AMQPURL           string
	AMQPExchange      string
	RedisAddr         string
	RedisPassword     string
	RedisGeoKey       string
	PGDSN             string
	GeminiAPIKey      string
	SinkRetryAttempts int

	// Observation API.
	HTTPAddr        string
	ShutdownTimeout time.Duration

	LogLevel      string
	RunMigrations bool
}

func defaults() Config {
	return Config{
		CenterLat:  40.7128,
		CenterLon:  -74.0060,
		RadiusKm:   15,
		Drivers:    200,
		Passengers: 1000,

		Duration:      0,
		TimeScale:     60,
		StartTime:     time.Now().UTC(),
		Seed:          time.Now().UnixNano(),
		ShutdownGrace: 30 * time.Second,
		SnapshotEvery: 5 * time.Minute,
		PresenceEvery: 10 * time.Minute,

		BaseLambda:     3,
		PeakMultiplier: 10.0 / 3.0,
		MaxSurge:       3,

		DispatchRadiusKm:    8,
		BaseSpeedKmh:        30,
		MatchTimeout:        10 * time.Minute,
		MatchRetryEvery:     time.Minute,
		PreAcceptCancelProb: 0.05,
		NoShowProb:          0.03,
		PassengerMsgProb:    0.15,
		DriverReplyProb:     0.10,
		DriverRatingProb:    0.40,

		KafkaRideTopic:    "passenger-requests",
		KafkaDriverTopic:  "driver-availability",
		AMQPExchange:      "ridehail.events",
		RedisGeoKey:       "drivers:geo",
		SinkRetryAttempts: 3,

		HTTPAddr:        ":8080",
		ShutdownTimeout: 15 * time.Second,
		LogLevel:        "info",
	}
}

// Load reads the environment on top of defaults. All parse failures are
// joined so one run reports every bad key at once.
func Load() (Config, error) {
	cfg := defaults()
	var errs []error

	setFloatFromEnv(&cfg.CenterLat, "CITY_CENTER_LAT", &errs)
	setFloatFromEnv(&cfg.CenterLon, "CITY_CENTER_LON", &errs)
	setFloatFromEnv(&cfg.RadiusKm, "CITY_RADIUS_KM", &errs)
	setIntFromEnv(&cfg.Drivers, "FLEET_DRIVERS", &errs)
	setIntFromEnv(&cfg.Passengers, "FLEET_PASSENGERS", &errs)

	setDurationFromEnv(&cfg.Duration, "SIM_DURATION", &errs)
	setFloatFromEnv(&cfg.TimeScale, "SIM_TIME_SCALE", &errs)
	setInt64FromEnv(&cfg.Seed, "SIM_SEED", &errs)
	setDurationFromEnv(&cfg.ShutdownGrace, "SIM_SHUTDOWN_GRACE", &errs)
	setDurationFromEnv(&cfg.SnapshotEvery, "SIM_SNAPSHOT_EVERY", &errs)
	setDurationFromEnv(&cfg.PresenceEvery, "SIM_PRESENCE_EVERY", &errs)
	if v := os.Getenv("SIM_START_TIME"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid SIM_START_TIME: %w", err))
		} else {
			cfg.StartTime = t
		}
	}

	setFloatFromEnv(&cfg.BaseLambda, "DEMAND_BASE_LAMBDA", &errs)
	setFloatFromEnv(&cfg.PeakMultiplier, "DEMAND_PEAK_MULTIPLIER", &errs)
	setFloatFromEnv(&cfg.MaxSurge, "DEMAND_MAX_SURGE", &errs)

	setFloatFromEnv(&cfg.DispatchRadiusKm, "MATCH_DISPATCH_RADIUS_KM", &errs)
	setFloatFromEnv(&cfg.BaseSpeedKmh, "SIM_BASE_SPEED_KMH", &errs)
	setDurationFromEnv(&cfg.MatchTimeout, "MATCH_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.MatchRetryEvery, "MATCH_RETRY_EVERY", &errs)
	setFloatFromEnv(&cfg.PreAcceptCancelProb, "PROB_PRE_ACCEPT_CANCEL", &errs)
	setFloatFromEnv(&cfg.NoShowProb, "PROB_NO_SHOW", &errs)
	setFloatFromEnv(&cfg.PassengerMsgProb, "PROB_PASSENGER_MESSAGE", &errs)
	setFloatFromEnv(&cfg.DriverReplyProb, "PROB_DRIVER_REPLY", &errs)
	setFloatFromEnv(&cfg.DriverRatingProb, "PROB_DRIVER_RATING", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaRideTopic, "KAFKA_RIDE_TOPIC")
	setStringFromEnv(&cfg.KafkaDriverTopic, "KAFKA_DRIVER_TOPIC")
	cfg.AMQPURL = strings.TrimSpace(os.Getenv("AMQP_URL"))
	setStringFromEnv(&cfg.AMQPExchange, "AMQP_EXCHANGE")
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")
	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	setIntFromEnv(&cfg.SinkRetryAttempts, "SINK_RETRY_ATTEMPTS", &errs)

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	errs = append(errs, cfg.validate()...)
	return cfg, errors.Join(errs...)
}

func (c *Config) validate() []error {
	var errs []error
	if c.Drivers <= 0 {
		errs = append(errs, fmt.Errorf("FLEET_DRIVERS must be > 0"))
	}
	if c.Passengers <= 0 {
		errs = append(errs, fmt.Errorf("FLEET_PASSENGERS must be > 0"))
	}
	if c.RadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("CITY_RADIUS_KM must be > 0"))
	}
	if c.TimeScale <= 0 {
		errs = append(errs, fmt.Errorf("SIM_TIME_SCALE must be > 0"))
	}
	if c.BaseLambda <= 0 {
		errs = append(errs, fmt.Errorf("DEMAND_BASE_LAMBDA must be > 0"))
	}
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"PROB_PRE_ACCEPT_CANCEL", c.PreAcceptCancelProb},
		{"PROB_NO_SHOW", c.NoShowProb},
		{"PROB_PASSENGER_MESSAGE", c.PassengerMsgProb},
		{"PROB_DRIVER_REPLY", c.DriverReplyProb},
		{"PROB_DRIVER_RATING", c.DriverRatingProb},
	} {
		if p.value < 0 || p.value > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0, 1]", p.name))
		}
	}
	return errs
}

// Center returns the city center as a wire location.
func (c *Config) Center() models.Location {
	return models.Location{Latitude: c.CenterLat, Longitude: c.CenterLon}
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setInt64FromEnv(target *int64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
