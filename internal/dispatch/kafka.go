package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"firestige.xyz/vlanswitch/internal/config"
	"firestige.xyz/vlanswitch/internal/core"
	"firestige.xyz/vlanswitch/internal/kafkaconn"
	"firestige.xyz/vlanswitch/internal/metrics"
)

// Command envelope types on the commands topic.
const (
	TypeInstallRule = "install_rule"
	TypeEmit        = "emit"
)

// Envelope is the wire format of a command on the commands topic.
//
// Example JSON:
//
//	{
//	  "type":      "install_rule",
//	  "switch_id": 1,
//	  "node":      "ctl-01",
//	  "timestamp": "2024-01-15T10:30:00Z",
//	  "install_rule": {"switch_id": 1, "priority": 1, "match": {...}, "actions": [...], "buffer_id": 4294967295}
//	}
type Envelope struct {
	Type        string            `json:"type"`
	Switch      core.SwitchID     `json:"switch_id"`
	Node        string            `json:"node,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	InstallRule *core.InstallRule `json:"install_rule,omitempty"`
	Emit        *core.Emit        `json:"emit,omitempty"`
}

// messageWriter is the subset of *kafka.Writer the sink needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes commands to a Kafka topic. Messages are keyed by switch
// id so the hash balancer keeps each switch's commands on one partition, in
// order.
type KafkaSink struct {
	node   string
	topic  string
	writer messageWriter

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewKafkaSink creates a sink writing to cfg.Topic.
func NewKafkaSink(cfg config.DispatchKafkaConfig, node string) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	batchTimeout := 10 * time.Millisecond
	if cfg.BatchTimeout != "" {
		d, err := time.ParseDuration(cfg.BatchTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid batch_timeout %q: %w", cfg.BatchTimeout, err)
		}
		batchTimeout = d
	}

	codec, err := kafkaconn.Compression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	transport, err := kafkaconn.Transport(cfg.SASL, cfg.TLS)
	if err != nil {
		return nil, err
	}

	s := &KafkaSink{node: node, topic: cfg.Topic}
	s.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: batchTimeout,
		Compression:  codec,
		Async:        cfg.Async,
		Transport:    transport,
		Completion:   s.completion,
	}

	slog.Info("kafka dispatch sink created",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"async", cfg.Async,
		"compression", cfg.Compression,
	)
	return s, nil
}

// newKafkaSinkWithWriter is used by tests to inject a fake writer.
func newKafkaSinkWithWriter(w messageWriter, topic, node string) *KafkaSink {
	return &KafkaSink{node: node, topic: topic, writer: w}
}

// completion is called by async writers once a batch is acknowledged.
func (s *KafkaSink) completion(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	s.failed.Add(uint64(len(msgs)))
	metrics.DispatchErrorsTotal.WithLabelValues("kafka_async").Add(float64(len(msgs)))
	slog.Error("kafka dispatch batch failed", "topic", s.topic, "messages", len(msgs), "error", err)
}

func (s *KafkaSink) InstallRule(ctx context.Context, rule core.InstallRule) error {
	return s.publish(ctx, Envelope{
		Type:        TypeInstallRule,
		Switch:      rule.Switch,
		InstallRule: &rule,
	})
}

func (s *KafkaSink) Emit(ctx context.Context, emit core.Emit) error {
	return s.publish(ctx, Envelope{
		Type:   TypeEmit,
		Switch: emit.Switch,
		Emit:   &emit,
	})
}

func (s *KafkaSink) publish(ctx context.Context, env Envelope) error {
	if s.writer == nil {
		return fmt.Errorf("kafka sink closed")
	}
	env.Node = s.node
	env.Timestamp = time.Now().UTC()

	value, err := json.Marshal(env)
	if err != nil {
		s.failed.Add(1)
		return fmt.Errorf("marshal %s: %w", env.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(env.Switch.String()),
		Value: value,
		Time:  env.Timestamp,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.failed.Add(1)
		return fmt.Errorf("write %s: %w", env.Type, err)
	}
	s.sent.Add(1)
	return nil
}

func (s *KafkaSink) Name() string { return "kafka" }

// Stats returns the number of messages handed to the writer and the number
// that failed.
func (s *KafkaSink) Stats() (sent, failed uint64) {
	return s.sent.Load(), s.failed.Load()
}

// Close flushes pending messages and closes the writer.
func (s *KafkaSink) Close() error {
	if s.writer == nil {
		return nil
	}
	w := s.writer
	s.writer = nil
	sent, failed := s.Stats()
	slog.Info("closing kafka dispatch sink", "topic", s.topic, "sent", sent, "failed", failed)
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
