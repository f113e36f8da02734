// Package notify publishes run summaries for downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/gosight/gosight/analytics/internal/config"
)

// MessageWriter is the subset of kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer MessageWriter
	topic  string
}

// NewKafkaPublisher returns nil when no brokers or run_summaries topic is
// configured. A nil publisher drops every message.
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	topic, ok := cfg.Topics["run_summaries"]
	if !ok || topic == "" || len(cfg.Brokers) == 0 {
		return nil
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		Async:                  true,
		AllowAutoTopicCreation: true,
	}
	log.Info().Str("topic", topic).Msg("Kafka run summary writer initialized")

	return &KafkaPublisher{writer: w, topic: topic}
}

// Publish writes payload as JSON keyed by key. Failures are logged.
func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload interface{}) {
	if p == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to marshal run summary")
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	})
	if err != nil {
		log.Error().Err(err).Str("topic", p.topic).Msg("Failed to publish run summary")
		return
	}
	log.Debug().Str("topic", p.topic).Str("key", key).Msg("Run summary published")
}

func (p *KafkaPublisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
