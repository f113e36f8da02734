// Package consumer feeds listing mutation messages from Kafka to the
// mutation processor.
package consumer

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/gosight/gosight/analytics/internal/config"
	"github.com/gosight/gosight/analytics/internal/mutation"
)

const defaultTopic = "listings.mutations"

// MessageProcessor handles one decoded listing mutation.
type MessageProcessor interface {
	Process(ctx context.Context, msg mutation.Message) error
}

// MessageReader is the subset of kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConsumer struct {
	reader    MessageReader
	processor MessageProcessor
	topic     string
	group     string
}

func NewKafkaConsumer(cfg config.KafkaConfig, processor MessageProcessor) *KafkaConsumer {
	topic := cfg.Topic("listing_mutations", defaultTopic)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})

	return newConsumer(reader, processor, topic, cfg.ConsumerGroup)
}

func newConsumer(reader MessageReader, processor MessageProcessor, topic, group string) *KafkaConsumer {
	return &KafkaConsumer{reader: reader, processor: processor, topic: topic, group: group}
}

// Start consumes until ctx is cancelled. Every message is committed after
// one processing attempt so a bad mutation never blocks the partition.
func (c *KafkaConsumer) Start(ctx context.Context) {
	log.Info().
		Str("topic", c.topic).
		Str("group", c.group).
		Msg("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Kafka consumer stopped")
			return
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("Failed to fetch message")
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error().Err(err).Msg("Failed to commit message")
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, msg kafka.Message) {
	var m mutation.Message
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		log.Error().
			Err(err).
			Str("value", string(msg.Value)).
			Msg("Failed to parse message")
		return
	}

	if err := c.processor.Process(ctx, m); err != nil {
		log.Error().
			Err(err).
			Str("key", string(msg.Key)).
			Int64("offset", msg.Offset).
			Msg("Failed to process listing mutation")
	}
}

func (c *KafkaConsumer) Close() error {
	log.Info().Msg("Closing Kafka consumer")
	return c.reader.Close()
}
