package intake

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmehdipour/subhub/internal/dispatcher"
	"github.com/jmehdipour/subhub/internal/model"
	"github.com/jmehdipour/subhub/internal/routing"
)

const EventsKafkaTopic = "stripe.events"

const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Router interface {
	RouteAndDeliver(ctx context.Context, ev model.Event) (dispatcher.Result, error)
}

// Service accepts verified provider events. In sync mode it routes them
// inline; in async mode it enqueues them for the router worker.
type Service struct {
	mode   string
	router Router
	pub    Publisher
	topic  string
}

func New(mode string, router Router, pub Publisher, topic string) (*Service, error) {
	if topic == "" {
		topic = EventsKafkaTopic
	}
	switch mode {
	case ModeSync:
		if router == nil {
			return nil, fmt.Errorf("intake: sync mode needs a router")
		}
	case ModeAsync:
		if pub == nil {
			return nil, fmt.Errorf("intake: async mode needs a publisher")
		}
	default:
		return nil, fmt.Errorf("intake: unknown mode %q", mode)
	}
	return &Service{mode: mode, router: router, pub: pub, topic: topic}, nil
}

// Accept hands ev to the routing pipeline. Unhandled kinds are dropped
// before they reach the queue.
func (s *Service) Accept(ctx context.Context, ev model.Event) (dispatcher.Result, error) {
	if s.mode == ModeSync {
		return s.router.RouteAndDeliver(ctx, ev)
	}

	kind := routing.Classify(ev)
	res := dispatcher.Result{EventID: ev.ID, Kind: kind, Outcome: dispatcher.OutcomeIgnored}
	if kind == model.KindUnhandled {
		return res, nil
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return res, fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	if err := s.pub.Publish(ctx, s.topic, []byte(ev.ID), b); err != nil {
		res.Outcome = dispatcher.OutcomeError
		return res, fmt.Errorf("enqueue event %s: %w", ev.ID, err)
	}
	res.Outcome = dispatcher.OutcomeQueued
	return res, nil
}

func (s *Service) Mode() string { return s.mode }
