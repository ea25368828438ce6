package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pfm-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

type ImportJobMessageProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// Creates a new import job producer and ensures the topic exists
func NewImportJobMessageProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*ImportJobMessageProducer, error) {
	if cfg.ImportTopic == "" {
		return nil, fmt.Errorf("kafka import topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for import job producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.ImportTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure import topic %s exists for import job producer: %w", cfg.ImportTopic, err)
	}

	// One message carries a whole batch, so writes are synchronous with full
	// acks: a dropped message here silently loses an entire import.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.ImportTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write import job messages", "topic", cfg.ImportTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote import job messages", "topic", cfg.ImportTopic, "count", len(messages))
			}
		},
	}

	return &ImportJobMessageProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.ImportTopic,
	}, nil
}

func (p *ImportJobMessageProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for import job producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message via import job producer",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s via import job producer: %w", p.topic, err)
	}

	p.logger.Debug("Published message via import job producer",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *ImportJobMessageProducer) Close() error {
	p.logger.Info("Closing import job Kafka message producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close import job kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
