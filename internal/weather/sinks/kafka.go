package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/i474232898/weather-eto-aggregation/internal/weather"
)

// messageWriter is the part of kafkago.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaConfig describes the producer.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Kafka produces one JSON message per day report, keyed by location and day.
type Kafka struct {
	writer messageWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewKafka creates a producer for the configured topic.
func NewKafka(cfg KafkaConfig, logger *slog.Logger) *Kafka {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newKafka(w, logger)
}

func newKafka(w messageWriter, logger *slog.Logger) *Kafka {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kafka{writer: w, logger: logger, now: time.Now}
}

// dayEvent is the message body.
type dayEvent struct {
	Location weather.Location  `json:"location"`
	Report   weather.DayReport `json:"report"`
}

func (k *Kafka) Publish(ctx context.Context, loc weather.Location, report weather.DayReport) error {
	msg, err := serializeDay(loc, report, k.now())
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", msg.Key, err)
	}
	k.logger.Debug("kafka day published", "key", string(msg.Key))
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

func serializeDay(loc weather.Location, report weather.DayReport, at time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(dayEvent{Location: loc, Report: report})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize day report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(fmt.Sprintf("%s:%d", loc.Key(), report.Day)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(report.Status)},
			{Key: "units", Value: []byte(report.Units)},
			{Key: "published_at", Value: []byte(at.UTC().Format(time.RFC3339))},
		},
	}, nil
}
