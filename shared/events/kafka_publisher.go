package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to Kafka, one topic per stream. Messages are
// keyed by the account they concern so per-account ordering is kept within
// a partition.
type KafkaPublisher struct {
	writer       MessageWriter
	writeTimeout time.Duration
	logger       *zap.Logger
}

func NewKafkaWriter(brokers []string, logger *zap.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		AllowAutoTopicCreation: true,
		Logger:                 kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
	}
}

func NewKafkaPublisher(writer MessageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:       writer,
		writeTimeout: 10 * time.Second,
		logger:       logger,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	value, err := json.Marshal(newEvent(eventType, data))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: stream,
		Key:   []byte(partitionKey(data)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("failed to produce message to Kafka: %w", err)
	}
	p.logger.Debug("event produced",
		zap.String("topic", stream),
		zap.String("type", eventType),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}

func partitionKey(data any) string {
	switch e := data.(type) {
	case AccountCreatedEvent:
		return e.AccountID
	case BalanceUpdatedEvent:
		return e.AccountID
	case TransferCompletedEvent:
		return e.SourceAccountID
	default:
		return ""
	}
}
