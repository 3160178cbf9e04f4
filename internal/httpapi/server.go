package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ridehail-sim/internal/demand"
	"github.com/example/ridehail-sim/internal/models"
)

// Pool is the fleet view the API reads. It never mutates anything.
type Pool interface {
	Snapshot(tsMillis int64) []models.DriverAvailabilityUpdate
	OnlineCount() int
}

// Stats is the run-level counter snapshot served by /api/v1/stats.
type Stats struct {
	SimTime           string           `json:"sim_time"`
	RequestsCreated   int64            `json:"requests_created"`
	RidesCompleted    int64            `json:"rides_completed"`
	RidesCancelled    int64            `json:"rides_cancelled"`
	CancelsByReason   map[string]int64 `json:"cancels_by_reason"`
	ActiveSessions    int64            `json:"active_sessions"`
	DriversOnline     int              `json:"drivers_online"`
	CurrentSurge      float64          `json:"current_surge"`
	CurrentMultiplier float64          `json:"current_multiplier"`
}

// Server exposes the read-only observation surface of a running simulation:
// health, metrics, fleet snapshot, run stats, and a websocket event feed.
type Server struct {
	pool   Pool
	clock  *demand.Clock
	stats  func() Stats
	feed   *Feed
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(pool Pool, clock *demand.Clock, stats func() Stats, feed *Feed, logger *slog.Logger) *Server {
	s := &Server{pool: pool, clock: clock, stats: stats, feed: feed, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/api/v1/snapshot", s.handleSnapshot).Methods("GET")
	s.mux.HandleFunc("/api/v1/stats", s.handleStats).Methods("GET")
	s.mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Run serves until ctx is cancelled, then drains connections within
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.feed.Close()
	return srv.Shutdown(sctx)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ts := s.clock.NowMillis()
	writeJSON(w, map[string]any{
		"timestamp": ts,
		"drivers":   s.pool.Snapshot(ts),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.stats())
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	fc := s.feed.add(conn)
	// Observers only listen; the read loop exists to notice disconnects.
	go func() {
		defer s.feed.remove(fc)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
