// Package events publishes insights to Kafka for downstream consumers.
//
// When publishing is disabled, or no brokers are configured, the [Publisher]
// runs in log-only mode: every insight is marshalled and logged at debug
// level, and nothing leaves the process.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/AugmentOS-Community/convoscope/internal/observe"
	"github.com/AugmentOS-Community/convoscope/internal/resilience"
	"github.com/AugmentOS-Community/convoscope/internal/session"
)

// DefaultTopic is used when Config.Topic is empty.
const DefaultTopic = "convoscope.insights"

// Compile-time interface check.
var _ session.Sink = (*Publisher)(nil)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds Kafka publisher configuration.
type Config struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	Principal string
}

// Option is a functional option for configuring a [Publisher].
type Option func(*Publisher)

// WithWriter replaces the Kafka writer. The publisher is enabled regardless
// of Config.Enabled.
func WithWriter(w MessageWriter) Option {
	return func(p *Publisher) {
		p.writer = w
	}
}

// WithBreaker replaces the circuit breaker guarding broker writes.
func WithBreaker(b *resilience.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

// Publisher writes insights as JSON messages keyed by user ID. Writes go
// through a circuit breaker so an unreachable broker is skipped until it
// recovers.
type Publisher struct {
	writer    MessageWriter
	breaker   *resilience.Breaker
	topic     string
	principal string
}

// New returns a [Publisher] for cfg.
func New(cfg Config, opts ...Option) *Publisher {
	p := &Publisher{
		topic:     cfg.Topic,
		principal: cfg.Principal,
	}
	if p.topic == "" {
		p.topic = DefaultTopic
	}

	if cfg.Enabled && len(cfg.Brokers) > 0 {
		dialer := &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
		}
		p.writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        p.topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    &kafka.Transport{Dial: dialer.DialFunc},
		}
	}
	for _, o := range opts {
		o(p)
	}
	if p.breaker == nil {
		p.breaker = resilience.New(resilience.Config{Name: "kafka"})
	}

	if p.writer == nil {
		slog.Info("events: kafka disabled, using log-only mode")
	} else {
		slog.Info("events: kafka publisher initialised",
			"brokers", cfg.Brokers,
			"topic", p.topic,
			"principal", p.principal,
		)
	}
	return p
}

// Enabled reports whether insights are written to Kafka.
func (p *Publisher) Enabled() bool { return p.writer != nil }

// Topic returns the destination topic.
func (p *Publisher) Topic() string { return p.topic }

// Degraded reports whether broker writes are currently short-circuited.
func (p *Publisher) Degraded() bool {
	return p.writer != nil && p.breaker.Open()
}

// Publish implements [session.Sink].
func (p *Publisher) Publish(ctx context.Context, in session.Insight) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("events: marshal insight for %q: %w", in.UserID, err)
	}

	log := observe.Logger(ctx)
	log.Debug("events: publishing insight",
		"topic", p.topic,
		"user_id", in.UserID,
		"entities", len(in.Entities),
		"bytes", len(payload),
	)
	if p.writer == nil {
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(in.UserID),
		Value: payload,
		Time:  in.At,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte("convoscope.insight")},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}
	err = p.breaker.Execute(func() error {
		return p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("events: write to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("events: close writer: %w", err)
	}
	return nil
}
