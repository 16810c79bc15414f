package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"catalog/internal/logger"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards ProductCreated events to a Kafka topic so other
// systems can follow catalog activity. It is a listener like any other.
type KafkaPublisher struct {
	writer  MessageWriter
	logger  *logger.Logger
	timeout time.Duration
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

func NewKafkaPublisher(writer MessageWriter, logger *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  writer,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

func (p *KafkaPublisher) OnProductCreated(ctx context.Context, event ProductCreated) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(strconv.Itoa(event.Product.ID)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
		Time: event.CreatedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}

	p.logger.Debug("Published %s for record %d", event.Type, event.RecordID)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
