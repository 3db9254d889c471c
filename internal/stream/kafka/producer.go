// Package kafkastream streams analysis.completed events to a Kafka topic.
package kafkastream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

// messageWriter is the subset of *kafka.Writer used by the producer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes a compact event per completed report, keyed by market
// id so every analysis of one market lands on the same partition. It
// implements domain.ReportSink.
type Producer struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewProducer creates a hash-balanced writer for topic.
func NewProducer(brokers []string, topic string, logger *slog.Logger) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     brokers,
		Topic:       topic,
		MaxAttempts: 3,
		Balancer:    &kafka.Hash{},
	})
	return newProducer(w, topic, logger)
}

func newProducer(w messageWriter, topic string, logger *slog.Logger) *Producer {
	return &Producer{
		writer: w,
		topic:  topic,
		logger: logger.With(slog.String("component", "kafka_producer")),
	}
}

// Name identifies the sink in logs.
func (p *Producer) Name() string { return "event_stream" }

// Publish writes one analysis.completed message for r.
func (p *Producer) Publish(ctx context.Context, r domain.Report) error {
	msg, err := Message(r)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s to %s: %w", r.ID, p.topic, err)
	}
	p.logger.DebugContext(ctx, "analysis event written",
		slog.String("report_id", r.ID),
		slog.String("topic", p.topic),
	)
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Message builds the Kafka message for r. The key falls back to the market
// URL when the venue id is unknown.
func Message(r domain.Report) (kafka.Message, error) {
	value, err := json.Marshal(domain.CompletedEvent(r))
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: marshal event %s: %w", r.ID, err)
	}
	key := r.MarketID
	if key == "" {
		key = r.MarketURL
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(domain.EventAnalysisCompleted)},
			{Key: "report_id", Value: []byte(r.ID)},
			{Key: "timestamp", Value: []byte(r.CreatedAt.UTC().Format(time.RFC3339))},
		},
		Time: r.CreatedAt,
	}, nil
}
