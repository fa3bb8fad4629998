package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/subhub/internal/metrics"
	"github.com/jmehdipour/subhub/internal/model"
	"github.com/jmehdipour/subhub/internal/projector"
	"github.com/jmehdipour/subhub/internal/repository"
	"github.com/jmehdipour/subhub/internal/routing"
	"github.com/jmehdipour/subhub/internal/util"
	"go.uber.org/zap"
)

// Projector builds per-destination payloads for a classified event.
type Projector interface {
	Project(ctx context.Context, kind model.EventKind, ev model.Event) (projector.Projection, error)
}

// AttemptSink receives the delivery audit trail. Failures are logged only.
type AttemptSink interface {
	Insert(ctx context.Context, attempts []model.DeliveryAttempt) error
}

type Config struct {
	Routes          routing.Table
	Projector       Projector
	Ledger          repository.DeliveryLedger
	Adapters        []Adapter
	Audit           AttemptSink // optional
	DeliveryTimeout time.Duration
	Logger          *zap.Logger
}

// Dispatcher routes one event to its destinations and records each
// successful delivery in the ledger. It never retries a failed destination;
// a later redelivery or sweep pass does.
type Dispatcher struct {
	routes   routing.Table
	proj     Projector
	ledger   repository.DeliveryLedger
	adapters map[model.Destination]Adapter
	audit    AttemptSink
	timeout  time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewDispatcher(c Config) *Dispatcher {
	if c.Routes == nil {
		c.Routes = routing.DefaultTable()
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	adapters := make(map[model.Destination]Adapter, len(c.Adapters))
	for _, a := range c.Adapters {
		adapters[a.Destination()] = a
	}

	return &Dispatcher{
		routes:   c.Routes,
		proj:     c.Projector,
		ledger:   c.Ledger,
		adapters: adapters,
		audit:    c.Audit,
		timeout:  c.DeliveryTimeout,
		log:      c.Logger,
		now:      time.Now,
	}
}

// Outcome summarises what happened to one event.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeQueued    Outcome = "queued"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeRejected  Outcome = "rejected"
	OutcomeError     Outcome = "error"
)

type Result struct {
	EventID   string
	Kind      model.EventKind
	Outcome   Outcome
	Delivered []model.Destination
	Skipped   []model.Destination
	Failed    map[model.Destination]error
}

// Complete reports whether every routed destination is now in the ledger.
func (r Result) Complete() bool { return len(r.Failed) == 0 }

// RouteAndDeliver classifies, projects and delivers ev. Destination failures
// are logged and reported in the Result. Projection and ledger read faults
// abort the event and are returned.
func (d *Dispatcher) RouteAndDeliver(ctx context.Context, ev model.Event) (Result, error) {
	kind := routing.Classify(ev)
	res := Result{EventID: ev.ID, Kind: kind, Failed: map[model.Destination]error{}}
	log := d.log.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))

	if kind == model.KindUnhandled {
		log.Info("unhandled event type")
		res.Outcome = OutcomeIgnored
		metrics.EventsTotal.WithLabelValues(kind.String(), string(res.Outcome)).Inc()
		return res, nil
	}

	payloads, err := d.proj.Project(ctx, kind, ev)
	if err != nil {
		res.Outcome = OutcomeError
		if projector.IsPermanent(err) {
			res.Outcome = OutcomeRejected
		}
		metrics.EventsTotal.WithLabelValues(kind.String(), string(res.Outcome)).Inc()
		log.Error("projection failed", zap.Error(err))
		return res, fmt.Errorf("project %s: %w", ev.ID, err)
	}

	already, err := d.ledger.Get(ctx, ev.ID)
	if err != nil {
		res.Outcome = OutcomeError
		metrics.EventsTotal.WithLabelValues(kind.String(), string(res.Outcome)).Inc()
		return res, fmt.Errorf("ledger get %s: %w", ev.ID, err)
	}
	if already == nil {
		already = &model.DeliveryRecord{EventID: ev.ID}
	}

	routes := d.routes.DestinationsFor(kind)
	var attempts []model.DeliveryAttempt
	for _, dest := range routes {
		payload, ok := payloads[dest]
		if !ok {
			continue
		}
		if already.Has(dest) {
			res.Skipped = append(res.Skipped, dest)
			attempts = append(attempts, d.attempt(ev, dest, model.AttemptSkipped, nil))
			metrics.DeliveriesTotal.WithLabelValues(dest.String(), string(model.AttemptSkipped)).Inc()
			continue
		}

		if err := d.deliver(ctx, ev, dest, payload); err != nil {
			res.Failed[dest] = err
			attempts = append(attempts, d.attempt(ev, dest, model.AttemptFailed, err))
			metrics.DeliveriesTotal.WithLabelValues(dest.String(), string(model.AttemptFailed)).Inc()
			log.Warn("delivery failed", zap.String("destination", dest.String()), zap.Error(err))
			continue
		}
		res.Delivered = append(res.Delivered, dest)
		attempts = append(attempts, d.attempt(ev, dest, model.AttemptDelivered, nil))
		metrics.DeliveriesTotal.WithLabelValues(dest.String(), string(model.AttemptDelivered)).Inc()
	}

	for dest := range payloads {
		if !contains(routes, dest) {
			log.Warn("payload for unrouted destination dropped", zap.String("destination", dest.String()))
		}
	}

	res.Outcome = OutcomeProcessed
	metrics.EventsTotal.WithLabelValues(kind.String(), string(res.Outcome)).Inc()
	d.record(ctx, attempts)

	log.Info("event routed",
		zap.String("kind", kind.String()),
		zap.Int("delivered", len(res.Delivered)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("failed", len(res.Failed)),
	)
	return res, nil
}

// deliver calls the adapter under the delivery timeout and records success.
// A ledger write failure counts as a failed delivery for that destination.
func (d *Dispatcher) deliver(ctx context.Context, ev model.Event, dest model.Destination, payload any) error {
	a, ok := d.adapters[dest]
	if !ok {
		return fmt.Errorf("no adapter for destination %s", dest)
	}

	dctx, cancel := context.WithTimeout(ctx, d.timeout)
	start := d.now()
	err := a.Deliver(dctx, ev, payload)
	cancel()
	metrics.DeliveryDuration.WithLabelValues(dest.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	if err := d.ledger.RecordDelivery(ctx, ev.ID, dest); err != nil {
		return fmt.Errorf("delivered but ledger write failed: %w", err)
	}
	return nil
}

func (d *Dispatcher) attempt(ev model.Event, dest model.Destination, st model.AttemptStatus, err error) model.DeliveryAttempt {
	at := d.now().UTC()
	a := model.DeliveryAttempt{
		ID:          util.NewAt(at),
		EventID:     ev.ID,
		EventType:   ev.Type,
		Destination: dest.String(),
		Status:      st,
		CreatedAt:   at,
	}
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

func (d *Dispatcher) record(ctx context.Context, attempts []model.DeliveryAttempt) {
	if d.audit == nil || len(attempts) == 0 {
		return
	}
	if err := d.audit.Insert(ctx, attempts); err != nil {
		d.log.Warn("delivery audit insert failed", zap.Error(err), zap.Int("rows", len(attempts)))
	}
}

func contains(ds []model.Destination, d model.Destination) bool {
	for _, x := range ds {
		if x == d {
			return true
		}
	}
	return false
}

// IsTransient reports whether a RouteAndDeliver error is worth redelivering.
func IsTransient(err error) bool {
	return err != nil && !projector.IsPermanent(err) && !errors.Is(err, projector.ErrUnhandled)
}
