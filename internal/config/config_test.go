package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Drivers != 200 || cfg.Passengers != 1000 {
		t.Fatalf("population defaults = %d/%d", cfg.Drivers, cfg.Passengers)
	}
	if cfg.TimeScale != 60 {
		t.Fatalf("time scale = %v", cfg.TimeScale)
	}
	if cfg.KafkaRideTopic != "passenger-requests" {
		t.Fatalf("kafka topic = %q", cfg.KafkaRideTopic)
	}
	if len(cfg.KafkaBrokers) != 0 || cfg.AMQPURL != "" || cfg.RedisAddr != "" || cfg.PGDSN != "" {
		t.Fatal("backends should default to disabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FLEET_DRIVERS", "50")
	t.Setenv("SIM_TIME_SCALE", "600")
	t.Setenv("SIM_DURATION", "2h")
	t.Setenv("SIM_START_TIME", "2024-06-03T07:00:00Z")
	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092 ,")
	t.Setenv("PROB_NO_SHOW", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Drivers != 50 {
		t.Fatalf("drivers = %d", cfg.Drivers)
	}
	if cfg.Duration != 2*time.Hour {
		t.Fatalf("duration = %v", cfg.Duration)
	}
	if !cfg.StartTime.Equal(time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", cfg.StartTime)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b2:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	if cfg.NoShowProb != 0.5 {
		t.Fatalf("no-show = %v", cfg.NoShowProb)
	}
}

func TestLoadJoinsAllErrors(t *testing.T) {
	t.Setenv("FLEET_DRIVERS", "not-a-number")
	t.Setenv("SIM_DURATION", "fast")
	t.Setenv("PROB_NO_SHOW", "1.5")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"FLEET_DRIVERS", "SIM_DURATION", "PROB_NO_SHOW"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %s: %v", want, err)
		}
	}
}

func TestValidateRejectsZeroPopulation(t *testing.T) {
	t.Setenv("FLEET_PASSENGERS", "0")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "FLEET_PASSENGERS") {
		t.Fatalf("err = %v", err)
	}
}
