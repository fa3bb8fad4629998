package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmehdipour/subhub/internal/dispatcher"
	"github.com/jmehdipour/subhub/internal/metrics"
	"github.com/jmehdipour/subhub/internal/model"
	"github.com/jmehdipour/subhub/internal/repository"
	"go.uber.org/zap"
)

var ErrSweepInProgress = errors.New("sweep already in progress")

// EventLister pages through the provider's event history.
type EventLister interface {
	ListEvents(ctx context.Context, q model.EventQuery) (model.EventPage, error)
}

type Router interface {
	RouteAndDeliver(ctx context.Context, ev model.Event) (dispatcher.Result, error)
}

type Config struct {
	PageSize int
	// ReplayPartial re-runs every listed event and lets the per-destination
	// ledger check decide, instead of skipping events with any ledger record.
	ReplayPartial bool
	// EventTimeout bounds the ledger lookup and replay of a single event.
	EventTimeout time.Duration
}

type Stats struct {
	Pages      int `json:"pages"`
	Seen       int `json:"seen"`
	Replayed   int `json:"replayed"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Incomplete int `json:"incomplete"`
}

// Sweeper replays recent provider events that the webhook path missed.
type Sweeper struct {
	events EventLister
	ledger repository.DeliveryLedger
	router Router
	cfg    Config
	log    *zap.Logger
	now    func() time.Time

	running sync.Mutex
}

func New(events EventLister, ledger repository.DeliveryLedger, router Router, cfg Config, log *zap.Logger) *Sweeper {
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = 100
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{events: events, ledger: ledger, router: router, cfg: cfg, log: log, now: time.Now}
}

// Sweep lists known event types created in the last hoursBack hours and
// replays the ones the ledger has never seen. Per-event failures are logged
// and counted; only a listing failure ends the pass early.
func (s *Sweeper) Sweep(ctx context.Context, hoursBack int) (Stats, error) {
	var st Stats
	if hoursBack <= 0 {
		return st, fmt.Errorf("hours_back must be positive, got %d", hoursBack)
	}
	if !s.running.TryLock() {
		return st, ErrSweepInProgress
	}
	defer s.running.Unlock()

	since := s.now().Add(-time.Duration(hoursBack) * time.Hour).Unix()
	log := s.log.With(zap.Int("hours_back", hoursBack), zap.Int64("created_after", since))
	log.Info("sweep started", zap.Bool("replay_partial", s.cfg.ReplayPartial))

	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		page, err := s.events.ListEvents(ctx, model.EventQuery{
			Types:         model.KnownTypes(),
			CreatedAfter:  since,
			StartingAfter: cursor,
			Limit:         s.cfg.PageSize,
		})
		if err != nil {
			return st, fmt.Errorf("list events after %q: %w", cursor, err)
		}
		st.Pages++

		for _, ev := range page.Events {
			st.Seen++
			s.handle(ctx, ev, &st)
		}

		if !page.HasMore || len(page.Events) == 0 {
			break
		}
		cursor = page.Events[len(page.Events)-1].ID
	}

	log.Info("sweep finished",
		zap.Int("pages", st.Pages),
		zap.Int("seen", st.Seen),
		zap.Int("replayed", st.Replayed),
		zap.Int("skipped", st.Skipped),
		zap.Int("failed", st.Failed),
	)
	return st, nil
}

func (s *Sweeper) handle(ctx context.Context, ev model.Event, st *Stats) {
	log := s.log.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EventTimeout)
	defer cancel()

	if !s.cfg.ReplayPartial {
		rec, err := s.ledger.Get(ctx, ev.ID)
		if err != nil {
			st.Failed++
			metrics.SweepEventsTotal.WithLabelValues("failed").Inc()
			log.Error("sweep ledger lookup failed", zap.Error(err))
			return
		}
		if rec != nil {
			st.Skipped++
			metrics.SweepEventsTotal.WithLabelValues("skipped").Inc()
			return
		}
	}

	res, err := s.router.RouteAndDeliver(ctx, ev)
	if err != nil {
		st.Failed++
		metrics.SweepEventsTotal.WithLabelValues("failed").Inc()
		log.Error("sweep replay failed", zap.Error(err))
		return
	}
	st.Replayed++
	if !res.Complete() {
		st.Incomplete++
	}
	metrics.SweepEventsTotal.WithLabelValues("replayed").Inc()
}
