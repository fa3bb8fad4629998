package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Config describes the consumer group reading queued webhook events.
type Config struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int           // default 1KB
	MaxBytes       int           // default 10MB
	CommitInterval time.Duration // 0 commits synchronously on every Commit
	MaxWait        time.Duration // default 50ms
}

func (c Config) readerConfig() kafka.ReaderConfig {
	rc := kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		MinBytes:       c.MinBytes,
		MaxBytes:       c.MaxBytes,
		CommitInterval: c.CommitInterval,
		MaxWait:        c.MaxWait,
		// a new group replays the backlog; ledger checks absorb duplicates
		StartOffset: kafka.FirstOffset,
	}
	if rc.MinBytes <= 0 {
		rc.MinBytes = 1 << 10
	}
	if rc.MaxBytes <= 0 {
		rc.MaxBytes = 10 << 20
	}
	if rc.MaxWait <= 0 {
		rc.MaxWait = 50 * time.Millisecond
	}
	return rc
}

// Consumer reads one topic as part of a consumer group. Offsets only move on
// an explicit Commit.
type Consumer struct {
	r     *kafka.Reader
	topic string
}

func NewConsumerFromConfig(c Config, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	rc := c.readerConfig()
	rc.ErrorLogger = kafka.LoggerFunc(log.Named("kafka").Sugar().Errorf)

	return &Consumer{r: kafka.NewReader(rc), topic: c.Topic}
}

type Message = kafka.Message

func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	m, err := c.r.FetchMessage(ctx)
	if err != nil {
		return m, fmt.Errorf("kafka fetch %s: %w", c.topic, err)
	}
	return m, nil
}

func (c *Consumer) Commit(ctx context.Context, m Message) error {
	if err := c.r.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("kafka commit %s@%d/%d: %w", m.Topic, m.Partition, m.Offset, err)
	}
	return nil
}

func (c *Consumer) Close() error { return c.r.Close() }
