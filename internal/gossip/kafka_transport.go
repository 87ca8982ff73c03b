package gossip

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaTransport fans gossip messages out over a Kafka topic, keyed by
// peer id so a given peer's messages land on a stable partition. Built
// the same way kernel/internal/audit/kafka_producer.go wraps
// segmentio/kafka-go's Writer: a thin retrying wrapper, no custom wire
// protocol beyond JSON-encoding the Message.
type KafkaTransport struct {
	writer      *kafka.Writer
	maxAttempts int
}

// KafkaTransportConfig configures a KafkaTransport.
type KafkaTransportConfig struct {
	Brokers      []string
	Topic        string
	MaxAttempts  int
	WriteTimeout time.Duration
}

// NewKafkaTransport constructs a KafkaTransport.
func NewKafkaTransport(cfg KafkaTransportConfig) (*KafkaTransport, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("gossip: at least one kafka broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("gossip: kafka topic required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	})

	return &KafkaTransport{writer: w, maxAttempts: cfg.MaxAttempts}, nil
}

// Send encodes msg and produces it keyed by the destination peer id,
// retrying transient write failures with a backoff that starts at 100ms
// and doubles after each failure until it reaches at least 2s.
func (t *KafkaTransport) Send(ctx context.Context, peer Peer, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("gossip: encode message: %w", err)
	}
	kmsg := kafka.Message{Key: []byte(peer.ID), Value: value, Time: time.Now().UTC()}

	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := t.writer.WriteMessages(attemptCtx, kmsg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(backoff)
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	return fmt.Errorf("gossip: produce failed after %d attempts: %w", t.maxAttempts, lastErr)
}

// Close shuts down the underlying writer.
func (t *KafkaTransport) Close() error {
	if t == nil || t.writer == nil {
		return nil
	}
	return t.writer.Close()
}

var _ Transport = (*KafkaTransport)(nil)
