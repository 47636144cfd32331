package ingress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"firestige.xyz/vlanswitch/internal/config"
	"firestige.xyz/vlanswitch/internal/kafkaconn"
)

// messageReader is the subset of *kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventConsumer reads switch events from a Kafka topic and submits
// them to the controller.
type KafkaEventConsumer struct {
	cfg    config.EventsKafkaConfig
	reader messageReader
	sink   Sink
}

// NewKafkaEventConsumer creates a consumer group reader on cfg.Topic.
func NewKafkaEventConsumer(cfg config.EventsKafkaConfig, sink Sink) (*KafkaEventConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("group_id is required")
	}

	dialer, err := kafkaconn.Dialer(cfg.SASL, cfg.TLS)
	if err != nil {
		return nil, err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		StartOffset:    kafkaconn.StartOffset(cfg.AutoOffsetReset),
		Dialer:         dialer,
		MinBytes:       1,
		MaxBytes:       10 << 20,
		CommitInterval: time.Second,
		MaxWait:        100 * time.Millisecond,
	})

	return &KafkaEventConsumer{cfg: cfg, reader: reader, sink: sink}, nil
}

// Start consumes events until ctx is cancelled.
func (c *KafkaEventConsumer) Start(ctx context.Context) error {
	slog.Info("kafka event consumer started",
		"brokers", c.cfg.Brokers,
		"topic", c.cfg.Topic,
		"group_id", c.cfg.GroupID,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("kafka event consumer stopped", "reason", ctx.Err())
			return ctx.Err()
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			slog.Error("failed to fetch kafka message", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				continue
			}
		}

		if err := c.processMessage(msg); err != nil {
			slog.Warn("failed to process switch event",
				"error", err,
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			slog.Error("failed to commit message", "error", err)
		}
	}
}

func (c *KafkaEventConsumer) processMessage(msg kafka.Message) error {
	ev, err := Decode(msg.Value)
	if err != nil {
		return err
	}
	return Submit(c.sink, ev)
}

// Stop closes the reader. Safe to call more than once.
func (c *KafkaEventConsumer) Stop() error {
	if c.reader == nil {
		return nil
	}
	reader := c.reader
	c.reader = nil
	slog.Info("closing kafka event consumer")
	if err := reader.Close(); err != nil {
		return fmt.Errorf("failed to close kafka reader: %w", err)
	}
	return nil
}
