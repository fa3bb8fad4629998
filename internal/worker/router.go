package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmehdipour/subhub/internal/dispatcher"
	"github.com/jmehdipour/subhub/internal/kafka"
	"github.com/jmehdipour/subhub/internal/model"
	"go.uber.org/zap"
)

// Source is the queue side of the router worker.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

type Router interface {
	RouteAndDeliver(ctx context.Context, ev model.Event) (dispatcher.Result, error)
}

// RouterKafka:
// - fetches provider events queued by the webhook in async mode,
// - routes each through the dispatcher,
// - commits once the event is routed or judged unroutable.
type RouterKafka struct {
	Source Source
	Router Router
	Log    *zap.Logger

	Workers     int           // number of goroutines routing events
	MaxAttempts int           // attempts for transient routing faults
	RetryWait   time.Duration // initial wait between attempts
}

func NewRouterKafka(src Source, router Router, log *zap.Logger) *RouterKafka {
	if log == nil {
		log = zap.NewNop()
	}
	return &RouterKafka{
		Source:      src,
		Router:      router,
		Log:         log,
		Workers:     8,
		MaxAttempts: 3,
		RetryWait:   500 * time.Millisecond,
	}
}

// Run starts the worker and blocks until ctx is cancelled and in-flight
// events are finished.
func (w *RouterKafka) Run(ctx context.Context) error {
	if w.Workers <= 0 {
		w.Workers = 8
	}
	if w.MaxAttempts <= 0 {
		w.MaxAttempts = 1
	}

	msgCh := make(chan kafka.Message, w.Workers*2)

	go func() {
		defer close(msgCh)
		for {
			m, err := w.Source.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.Log.Warn("kafka fetch failed", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(200 * time.Millisecond):
				}
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < w.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range msgCh {
				w.processOne(ctx, m)
			}
		}()
	}

	wg.Wait()
	return nil
}

func (w *RouterKafka) processOne(ctx context.Context, m kafka.Message) {
	var ev model.Event
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.ID == "" {
		// poison message: commit and skip
		w.Log.Error("bad event message", zap.Error(err), zap.Int64("offset", m.Offset))
		w.commit(ctx, m)
		return
	}

	log := w.Log.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))
	if err := w.route(ctx, ev); err != nil {
		// Offsets are committed even after transient retries run out. Workers
		// finish out of order, so holding back one offset cannot stop a later
		// commit on the same partition; the sweep replays the event instead.
		log.Error("routing failed, leaving event to the sweep",
			zap.Bool("transient", dispatcher.IsTransient(err)), zap.Error(err))
	}

	w.commit(ctx, m)
}

func (w *RouterKafka) route(ctx context.Context, ev model.Event) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.RetryWait
	bo.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		_, err := w.Router.RouteAndDeliver(ctx, ev)
		if err == nil {
			return nil
		}
		if !dispatcher.IsTransient(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		w.Log.Warn("routing retry",
			zap.String("event_id", ev.ID),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(w.MaxAttempts-1)), ctx)
	return backoff.RetryNotify(op, b, notify)
}

func (w *RouterKafka) commit(ctx context.Context, m kafka.Message) {
	// commit survives shutdown of the fetch context
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.Source.Commit(cctx, m); err != nil {
		w.Log.Error("kafka commit failed", zap.Error(err), zap.Int64("offset", m.Offset))
	}
}
