package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/lox/snowsignal/internal/metrics"
	"github.com/lox/snowsignal/internal/models"
)

// KafkaSink publishes forecast snapshots to a topic for downstream
// consumers (dashboards, alerting).
type KafkaSink struct {
	writer *kafkago.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireAll,
		},
	}
}

func (k *KafkaSink) PublishForecast(ctx context.Context, snapshot *models.ForecastSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(snapshot.TargetStationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "generated_at", Value: []byte(snapshot.GeneratedAt.Format(time.RFC3339))},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		metrics.SnapshotsPublished.WithLabelValues("kafka", "error").Inc()
		return fmt.Errorf("publish snapshot: %w", err)
	}
	metrics.SnapshotsPublished.WithLabelValues("kafka", "ok").Inc()
	return nil
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
