package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jmehdipour/subhub/internal/model"
)

var ErrNoPayload = errors.New("no payload")

// Adapter delivers one projected payload to an external destination.
type Adapter interface {
	Destination() model.Destination
	Deliver(ctx context.Context, ev model.Event, payload any) error
}

type MarketingConfig struct {
	URL           string
	APIKey        string
	TimeoutMs     int
	Require2xx    bool
	FailThreshold int
	OpenForMs     int
}

// MarketingAdapter POSTs JSON payloads to the marketing platform. Success is
// transport-level unless Require2xx is set.
type MarketingAdapter struct {
	url        string
	apiKey     string
	require2xx bool
	client     *http.Client
	br         *MicroBreaker
}

func NewMarketingAdapter(c MarketingConfig) *MarketingAdapter {
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = 3000
	}
	if c.FailThreshold <= 0 {
		c.FailThreshold = 5
	}
	if c.OpenForMs <= 0 {
		c.OpenForMs = 30000
	}

	return &MarketingAdapter{
		url:        c.URL,
		apiKey:     c.APIKey,
		require2xx: c.Require2xx,
		client:     &http.Client{Timeout: time.Duration(c.TimeoutMs) * time.Millisecond},
		br:         NewMicroBreaker(c.FailThreshold, time.Duration(c.OpenForMs)*time.Millisecond),
	}
}

func (a *MarketingAdapter) Destination() model.Destination { return model.DestinationMarketing }

func (a *MarketingAdapter) Deliver(ctx context.Context, ev model.Event, payload any) error {
	if payload == nil {
		return ErrNoPayload
	}
	if err := a.br.Acquire(); err != nil {
		return fmt.Errorf("marketing: %w", err)
	}
	err := a.post(ctx, ev, payload)
	a.br.Done(err)
	return err
}

func (a *MarketingAdapter) post(ctx context.Context, ev model.Event, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marketing: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(b))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", a.apiKey)
	req.Header.Set("Idempotency-Key", ev.ID)

	res, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("marketing: %w", err)
	}

	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if a.require2xx && res.StatusCode/100 != 2 {
		return fmt.Errorf("marketing: event=%s status=%d", ev.ID, res.StatusCode)
	}

	return nil
}

// Publisher writes a message to a topic and returns once the broker has
// acknowledged it.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// IdentityAdapter wraps payloads in an envelope and publishes them to the
// identity topic, keyed by event id.
type IdentityAdapter struct {
	pub   Publisher
	topic string
	newID func() string
}

func NewIdentityAdapter(pub Publisher, topic string, newID func() string) *IdentityAdapter {
	return &IdentityAdapter{pub: pub, topic: topic, newID: newID}
}

func (a *IdentityAdapter) Destination() model.Destination { return model.DestinationIdentityQueue }

func (a *IdentityAdapter) Deliver(ctx context.Context, ev model.Event, payload any) error {
	if payload == nil {
		return ErrNoPayload
	}
	msg, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("identity: encode payload: %w", err)
	}
	env, err := json.Marshal(model.Envelope{
		ID:        a.newID(),
		EventID:   ev.ID,
		EventType: ev.Type,
		Message:   msg,
	})
	if err != nil {
		return fmt.Errorf("identity: encode envelope: %w", err)
	}
	if err := a.pub.Publish(ctx, a.topic, []byte(ev.ID), env); err != nil {
		return fmt.Errorf("identity: publish %s: %w", a.topic, err)
	}
	return nil
}
