package sink

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/lib/pq"

	"github.com/example/ridehail-sim/internal/models"
)

// Postgres archives published records for offline analysis. It is an
// external collaborator of the engine, not engine state: the simulation
// never reads it back.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) PublishRequest(ctx context.Context, req *models.PassengerRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	var driverID sql.NullString
	if req.DriverID != nil {
		driverID = sql.NullString{String: *req.DriverID, Valid: true}
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO passenger_requests(request_id, passenger_id, driver_id, status, estimated_fare, requested_at_ms, payload)
		 VALUES($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (request_id) DO UPDATE SET driver_id=$3, status=$4, payload=$7`,
		req.RequestID, req.PassengerID, driverID, string(req.Status), req.EstimatedFare, req.RequestTimestamp, payload)
	return err
}

func (p *Postgres) PublishDriverUpdate(ctx context.Context, upd models.DriverAvailabilityUpdate) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO driver_updates(driver_id, ts_ms, latitude, longitude, status) VALUES($1,$2,$3,$4,$5)`,
		upd.DriverID, upd.Timestamp, upd.Latitude, upd.Longitude, string(upd.Status))
	return err
}

func (p *Postgres) Close() error { return p.db.Close() }
