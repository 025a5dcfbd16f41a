// Package eventfeed publishes committed incident status changes to Kafka
// for dispatch consoles and other downstream consumers.
package eventfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/segmentio/kafka-go"

	"github.com/sosdesk/intake/internal/pkg/env"
	"github.com/sosdesk/intake/internal/pkg/incident"
)

const (
	DefaultTopic        = "incident-status-changes"
	DefaultWriteTimeout = 5 * time.Second
)

type Config struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// ConfigFromEnv reads KAFKA_ENABLED, KAFKA_BROKERS, KAFKA_STATUS_TOPIC and
// KAFKA_WRITE_TIMEOUT.
func ConfigFromEnv() Config {
	return Config{
		Enabled:      env.GetEnvBool("KAFKA_ENABLED", false),
		Brokers:      env.GetEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
		Topic:        env.GetEnv("KAFKA_STATUS_TOPIC", DefaultTopic),
		WriteTimeout: env.GetEnvDuration("KAFKA_WRITE_TIMEOUT", DefaultWriteTimeout),
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes one message per status change, keyed by incident id so
// changes of one incident stay ordered within a partition.
type Publisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
}

func NewPublisher(cfg Config) *Publisher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.WriteTimeout,
	}
	return newPublisher(writer, cfg)
}

func newPublisher(w messageWriter, cfg Config) *Publisher {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	log.Infof("[EventFeed] Publishing status changes to topic %s", cfg.Topic)
	return &Publisher{writer: w, topic: cfg.Topic, timeout: timeout}
}

// statusMessage is the wire form consumers read.
type statusMessage struct {
	Event string `json:"event"`
	incident.StatusChange
}

func (p *Publisher) PublishStatusChange(ctx context.Context, change incident.StatusChange) error {
	value, err := json.Marshal(statusMessage{Event: "incident_status_changed", StatusChange: change})
	if err != nil {
		return fmt.Errorf("encode status change: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(change.IncidentID),
		Value: value,
		Time:  change.ChangedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}
	log.Debugf("[EventFeed] Published %s -> %s for incident %s", change.From, change.To, change.IncidentID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
