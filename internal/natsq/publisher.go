// Package natsq publishes identity messages to a NATS JetStream stream.
package natsq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

var ErrNoAck = errors.New("jetstream publish returned no acknowledgment")

type Config struct {
	URL     string
	Stream  string
	Timeout time.Duration
}

type Publisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream string
}

// Connect dials NATS and makes sure the stream exists for the given subjects.
func Connect(ctx context.Context, cfg Config, subjects ...string) (*Publisher, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("subhub"), nats.Timeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if cfg.Stream != "" && len(subjects) > 0 {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:      cfg.Stream,
			Subjects:  subjects,
			MaxAge:    7 * 24 * time.Hour,
			Retention: jetstream.LimitsPolicy,
			Storage:   jetstream.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Stream, err)
		}
	}

	return &Publisher{conn: nc, js: js, stream: cfg.Stream}, nil
}

// Publish sends value to subject and waits for the stream acknowledgment.
// The message id header lets JetStream drop duplicates within its window.
func (p *Publisher) Publish(ctx context.Context, subject string, key, value []byte) error {
	msg := nats.NewMsg(subject)
	msg.Data = value
	if len(key) > 0 {
		msg.Header.Set(jetstream.MsgIDHeader, string(key))
	}

	ack, err := p.js.PublishMsg(ctx, msg)
	if err != nil {
		return fmt.Errorf("jetstream publish %s: %w", subject, err)
	}
	return checkAck(ack, p.stream)
}

func checkAck(ack *jetstream.PubAck, stream string) error {
	if ack == nil || ack.Stream == "" {
		return ErrNoAck
	}
	if stream != "" && ack.Stream != stream {
		return fmt.Errorf("ack from unexpected stream %q", ack.Stream)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.conn != nil {
		return p.conn.Drain()
	}
	return nil
}
