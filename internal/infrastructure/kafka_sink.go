package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
)

// KafkaSink writes detection events to a Kafka (or Redpanda) topic
type KafkaSink struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewKafkaSink creates a writer for a comma separated broker list
func NewKafkaSink(brokers, topic string, logger zerolog.Logger) (*KafkaSink, error) {
	if strings.TrimSpace(brokers) == "" || topic == "" {
		return nil, fmt.Errorf("kafka sink needs brokers and topic")
	}

	addrs := strings.Split(brokers, ",")
	for i := range addrs {
		addrs[i] = strings.TrimSpace(addrs[i])
	}

	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(addrs...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
			WriteTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "kafka").Logger(),
	}, nil
}

// Write sends the event keyed by subject path so events for one file stay ordered
func (k *KafkaSink) Write(ctx context.Context, event domain.DetectionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SubjectPath),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event-kind", Value: []byte(event.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write to kafka topic %s: %w", k.writer.Topic, err)
	}

	k.logger.Debug().Str("id", event.ID).Msg("event written to kafka")
	return nil
}

// Close flushes and closes the writer
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
