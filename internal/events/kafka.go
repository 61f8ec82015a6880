package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
)

// ErrForwarderClosed is returned after Close.
var ErrForwarderClosed = errors.New("kafka forwarder closed")

// MessageWriter is the subset of *kafka.Writer the forwarder needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarder publishes every ticket event to a Kafka topic, keyed by
// ticket id so a ticket's events stay ordered within a partition.
type KafkaForwarder struct {
	writer MessageWriter
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewKafkaForwarder dials nothing until the first write.
func NewKafkaForwarder(cfg config.KafkaConfig, logger *zap.Logger) (*KafkaForwarder, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
		BatchTimeout: 50 * time.Millisecond,
	}
	return NewKafkaForwarderWithWriter(writer, logger), nil
}

// NewKafkaForwarderWithWriter wraps an existing writer.
func NewKafkaForwarderWithWriter(writer MessageWriter, logger *zap.Logger) *KafkaForwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaForwarder{writer: writer, logger: logger}
}

// Register subscribes the forwarder to every event type.
func (f *KafkaForwarder) Register(d Dispatcher) {
	SubscribeAll(d, f.Handle)
}

// Handle implements EventHandler.
func (f *KafkaForwarder) Handle(ctx context.Context, event Event) error {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return ErrForwarderClosed
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.TicketID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		f.logger.Warn("kafka publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
		return err
	}
	return nil
}

// Close flushes and closes the writer.
func (f *KafkaForwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.writer.Close()
}
