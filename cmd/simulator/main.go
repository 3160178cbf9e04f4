package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/ridehail-sim/internal/config"
	"github.com/example/ridehail-sim/internal/demand"
	"github.com/example/ridehail-sim/internal/httpapi"
	"github.com/example/ridehail-sim/internal/logging"
	"github.com/example/ridehail-sim/internal/matcher"
	"github.com/example/ridehail-sim/internal/mirror"
	"github.com/example/ridehail-sim/internal/msggen"
	"github.com/example/ridehail-sim/internal/population"
	"github.com/example/ridehail-sim/internal/session"
	"github.com/example/ridehail-sim/internal/sim"
	"github.com/example/ridehail-sim/internal/sink"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "simulator:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logging.New(cfg.LogLevel, "simulator")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := population.NewRegistry(population.Config{
		Center:     cfg.Center(),
		RadiusKm:   cfg.RadiusKm,
		Drivers:    cfg.Drivers,
		Passengers: cfg.Passengers,
	}, cfg.Seed, log)
	if err != nil {
		return err
	}

	model := &demand.Model{
		BaseLambda:     cfg.BaseLambda,
		PeakMultiplier: cfg.PeakMultiplier,
		MaxSurge:       cfg.MaxSurge,
		RushWindows:    demand.DefaultRushWindows(),
	}
	clock := demand.NewClock(cfg.StartTime, cfg.TimeScale)

	if cfg.PGDSN != "" && cfg.RunMigrations {
		if err := applyMigrations(cfg.PGDSN, log); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	feed := httpapi.NewFeed()
	snk, closeSinks := buildSinks(cfg, feed, log)
	defer closeSinks()

	gen := buildGenerator(ctx, cfg, log)

	var mir sim.Mirror
	if cfg.RedisAddr != "" {
		mir = mirror.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey, log)
		log.Info("redis availability mirror enabled", "addr", cfg.RedisAddr)
	}

	m := &matcher.Service{
		Pool:             reg,
		Log:              log,
		DispatchRadiusKm: cfg.DispatchRadiusKm,
		Fallback:         matcher.DefaultFallback(),
	}

	orch := sim.New(sim.Options{
		Registry: reg,
		Matcher:  m,
		Sink:     snk,
		Mirror:   mir,
		Clock:    clock,
		Model:    model,
		MsgGen:   gen,
		Log:      log,
		Center:   cfg.Center(),
		RadiusKm: cfg.RadiusKm,
		Seed:     cfg.Seed,
		Duration: cfg.Duration,

		SnapshotEvery: cfg.SnapshotEvery,
		PresenceEvery: cfg.PresenceEvery,
		Presence:      population.DefaultPresenceProbs(),

		Session: session.Config{
			BaseSpeedKmh:        cfg.BaseSpeedKmh,
			MatchTimeout:        cfg.MatchTimeout,
			MatchRetryEvery:     cfg.MatchRetryEvery,
			PreAcceptCancelProb: cfg.PreAcceptCancelProb,
			NoShowProb:          cfg.NoShowProb,
			DriverReplyProb:     cfg.DriverReplyProb,
		},
		PassengerMsgProb: cfg.PassengerMsgProb,
		DriverRatingProb: cfg.DriverRatingProb,
		ShutdownGrace:    cfg.ShutdownGrace,
	})

	srv := httpapi.NewServer(reg, clock, statsAdapter(orch), feed, log)
	go func() {
		if err := srv.Run(ctx, cfg.HTTPAddr, cfg.ShutdownTimeout); err != nil {
			log.Error("http server stopped", "error", err)
		}
	}()
	log.Info("observation api listening", "addr", cfg.HTTPAddr)

	err = orch.Run(ctx)
	stop()
	return err
}

// buildSinks assembles the event pipeline: every configured backend behind a
// retry wrapper, all fanned out through a tee that also feeds websocket
// observers. With nothing configured, events land in memory only.
func buildSinks(cfg config.Config, feed *httpapi.Feed, log *slog.Logger) (sink.Sink, func()) {
	sinks := []sink.Sink{feed}

	if len(cfg.KafkaBrokers) > 0 {
		k := sink.NewKafka(cfg.KafkaBrokers, cfg.KafkaRideTopic, cfg.KafkaDriverTopic)
		sinks = append(sinks, sink.NewRetry(k, cfg.SinkRetryAttempts, 200*time.Millisecond, "kafka", log))
		log.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers)
	}
	if cfg.AMQPURL != "" {
		a, err := sink.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Error("amqp sink disabled", "error", err)
		} else {
			sinks = append(sinks, sink.NewRetry(a, cfg.SinkRetryAttempts, 200*time.Millisecond, "amqp", log))
			log.Info("amqp sink enabled", "exchange", cfg.AMQPExchange)
		}
	}
	if cfg.PGDSN != "" {
		p, err := sink.NewPostgres(cfg.PGDSN)
		if err != nil {
			log.Error("postgres sink disabled", "error", err)
		} else {
			sinks = append(sinks, sink.NewRetry(p, cfg.SinkRetryAttempts, 200*time.Millisecond, "postgres", log))
			log.Info("postgres sink enabled")
		}
	}
	if len(sinks) == 1 {
		sinks = append(sinks, sink.NewMemory())
		log.Info("no durable sinks configured, capturing events in memory")
	}

	tee := sink.NewTee(log, sinks...)
	return tee, func() {
		if err := tee.Close(); err != nil {
			log.Error("sink close failed", "error", err)
		}
	}
}

func buildGenerator(ctx context.Context, cfg config.Config, log *slog.Logger) msggen.Generator {
	if cfg.GeminiAPIKey == "" {
		return msggen.NewStatic("")
	}
	g, err := msggen.NewGemini(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Error("gemini unavailable, using static messages", "error", err)
		return msggen.NewStatic("")
	}
	log.Info("gemini message generation enabled")
	return g
}

func applyMigrations(dsn string, log *slog.Logger) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_events.sql"))
	if err != nil {
		return err
	}
	if _, err := db.Exec(string(b)); err != nil {
		return err
	}
	log.Info("migration applied", "file", "001_create_events.sql")
	return nil
}

func statsAdapter(orch *sim.Orchestrator) func() httpapi.Stats {
	return func() httpapi.Stats {
		st := orch.Stats()
		return httpapi.Stats{
			SimTime:           st.SimTime.Format(time.RFC3339),
			RequestsCreated:   st.Requests,
			RidesCompleted:    st.Completed,
			RidesCancelled:    st.Cancelled,
			CancelsByReason:   st.CancelsByReason,
			ActiveSessions:    st.Active,
			DriversOnline:     st.DriversOnline,
			CurrentSurge:      st.Surge,
			CurrentMultiplier: st.Multiplier,
		}
	}
}
