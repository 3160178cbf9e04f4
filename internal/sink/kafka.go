package sink

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/example/ridehail-sim/internal/models"
)

// Kafka publishes records as JSON, one topic per record type, keyed by
// entity id so per-passenger and per-driver ordering survives partitioning.
type Kafka struct {
	requests *kafka.Writer
	updates  *kafka.Writer
}

func NewKafka(brokers []string, requestTopic, updateTopic string) *Kafka {
	return &Kafka{
		requests: kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: requestTopic, Balancer: &kafka.LeastBytes{}}),
		updates:  kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: updateTopic, Balancer: &kafka.LeastBytes{}}),
	}
}

func (k *Kafka) PublishRequest(ctx context.Context, req *models.PassengerRequest) error {
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return k.requests.WriteMessages(ctx, kafka.Message{Key: []byte(req.PassengerID), Value: b})
}

func (k *Kafka) PublishDriverUpdate(ctx context.Context, upd models.DriverAvailabilityUpdate) error {
	b, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	return k.updates.WriteMessages(ctx, kafka.Message{Key: []byte(upd.DriverID), Value: b})
}

func (k *Kafka) Close() error {
	err := k.requests.Close()
	if uerr := k.updates.Close(); err == nil {
		err = uerr
	}
	return err
}
