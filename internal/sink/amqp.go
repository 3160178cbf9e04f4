package sink

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/ridehail-sim/internal/models"
)

// AMQP publishes records to a topic exchange. Requests route by vehicle type
// (ride.request.<type>) so downstream consumers can bind per fleet segment;
// driver updates share a single key.
type AMQP struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQP{conn: conn, ch: ch, exchange: exchange}, nil
}

func (a *AMQP) PublishRequest(ctx context.Context, req *models.PassengerRequest) error {
	key := fmt.Sprintf("ride.request.%s", req.VehicleType)
	return a.publish(ctx, key, req)
}

func (a *AMQP) PublishDriverUpdate(ctx context.Context, upd models.DriverAvailabilityUpdate) error {
	return a.publish(ctx, "driver.update", upd)
}

func (a *AMQP) publish(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return a.ch.PublishWithContext(ctx, a.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

func (a *AMQP) Close() error {
	err := a.ch.Close()
	if cerr := a.conn.Close(); err == nil {
		err = cerr
	}
	return err
}
