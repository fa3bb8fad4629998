package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmehdipour/subhub/internal/dispatcher"
	"github.com/jmehdipour/subhub/internal/model"
	"github.com/jmehdipour/subhub/internal/payments/paymentstest"
	"github.com/jmehdipour/subhub/internal/projector"
	"github.com/jmehdipour/subhub/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRouter struct {
	mu   sync.Mutex
	seen []string
	fail map[string]error
}

func (r *fakeRouter) RouteAndDeliver(_ context.Context, ev model.Event) (dispatcher.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, ev.ID)
	if err := r.fail[ev.ID]; err != nil {
		return dispatcher.Result{EventID: ev.ID}, err
	}
	return dispatcher.Result{EventID: ev.ID, Outcome: dispatcher.OutcomeProcessed}, nil
}

func newLedger(t *testing.T) repository.DeliveryLedger {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return repository.NewRedisLedger(rdb, "")
}

func events(ids ...string) []model.Event {
	out := make([]model.Event, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Event{ID: id, Type: string(model.KindCustomerUpdated)})
	}
	return out
}

func newSweeper(lister EventLister, ledger repository.DeliveryLedger, router Router, cfg Config) *Sweeper {
	s := New(lister, ledger, router, cfg, zap.NewNop())
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func TestSweep_PaginationTerminates(t *testing.T) {
	billing := paymentstest.New()
	billing.Pages = []model.EventPage{
		{Events: events("evt_1", "evt_2"), HasMore: true},
		{Events: events("evt_3", "evt_4"), HasMore: true},
		{Events: events("evt_5"), HasMore: false},
	}
	router := &fakeRouter{}
	s := newSweeper(billing, newLedger(t), router, Config{PageSize: 2})

	st, err := s.Sweep(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 3, billing.CallCount("events"))
	assert.Equal(t, []string{"evt_1", "evt_2", "evt_3", "evt_4", "evt_5"}, router.seen)
	assert.Equal(t, Stats{Pages: 3, Seen: 5, Replayed: 5}, st)

	require.Len(t, billing.Queries, 3)
	assert.Equal(t, "", billing.Queries[0].StartingAfter)
	assert.Equal(t, "evt_2", billing.Queries[1].StartingAfter)
	assert.Equal(t, "evt_4", billing.Queries[2].StartingAfter)
	for _, q := range billing.Queries {
		assert.Equal(t, int64(1700000000-24*3600), q.CreatedAfter)
		assert.Equal(t, 2, q.Limit)
		assert.ElementsMatch(t, model.KnownTypes(), q.Types)
	}
}

func TestSweep_EmptyPageStops(t *testing.T) {
	billing := paymentstest.New()
	billing.Pages = []model.EventPage{{HasMore: true}}
	s := newSweeper(billing, newLedger(t), &fakeRouter{}, Config{})

	st, err := s.Sweep(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Pages)
	assert.Equal(t, 1, billing.CallCount("events"))
}

func TestSweep_SkipsEventsWithLedgerRecord(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t)
	require.NoError(t, ledger.RecordDelivery(ctx, "evt_2", model.DestinationMarketing))

	billing := paymentstest.New()
	billing.Pages = []model.EventPage{{Events: events("evt_1", "evt_2", "evt_3")}}
	router := &fakeRouter{}

	st, err := newSweeper(billing, ledger, router, Config{}).Sweep(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"evt_1", "evt_3"}, router.seen)
	assert.Equal(t, 1, st.Skipped)
	assert.Equal(t, 2, st.Replayed)
}

func TestSweep_PerEventFailureDoesNotHalt(t *testing.T) {
	billing := paymentstest.New()
	billing.Pages = []model.EventPage{{Events: events("evt_1", "evt_2")}}
	router := &fakeRouter{fail: map[string]error{"evt_1": errors.New("provider unavailable")}}

	st, err := newSweeper(billing, newLedger(t), router, Config{}).Sweep(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"evt_1", "evt_2"}, router.seen)
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, 1, st.Replayed)
}

func TestSweep_ListingFailure(t *testing.T) {
	billing := paymentstest.New()
	billing.Err = errors.New("rate limited")

	_, err := newSweeper(billing, newLedger(t), &fakeRouter{}, Config{}).Sweep(context.Background(), 6)
	assert.ErrorIs(t, err, billing.Err)
}

func TestSweep_RejectsConcurrentRun(t *testing.T) {
	s := newSweeper(paymentstest.New(), newLedger(t), &fakeRouter{}, Config{})
	s.running.Lock()
	defer s.running.Unlock()

	_, err := s.Sweep(context.Background(), 6)
	assert.ErrorIs(t, err, ErrSweepInProgress)
}

func TestSweep_InvalidWindow(t *testing.T) {
	s := newSweeper(paymentstest.New(), newLedger(t), &fakeRouter{}, Config{})
	_, err := s.Sweep(context.Background(), 0)
	assert.Error(t, err)
}

type toggleAdapter struct {
	dest  model.Destination
	mu    sync.Mutex
	err   error
	calls int
}

func (a *toggleAdapter) Destination() model.Destination { return a.dest }

func (a *toggleAdapter) Deliver(context.Context, model.Event, any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.err
}

type noAccounts struct{}

func (noAccounts) GetDeleted(context.Context, string, string) (*model.DeletedAccount, error) {
	return nil, nil
}

// partialSetup delivers a subscription.created event with marketing down,
// leaving the ledger holding only identity_queue.
func partialSetup(t *testing.T) (*paymentstest.Fake, repository.DeliveryLedger, *dispatcher.Dispatcher, *toggleAdapter) {
	t.Helper()
	billing := paymentstest.New()
	billing.Customers["cus_1"] = &model.Customer{ID: "cus_1", Metadata: map[string]string{"userid": "user_1"}}
	ev := model.Event{ID: "evt_1", Type: string(model.KindSubscriptionCreated), Created: 1699999000}
	ev.Data.Object = []byte(`{"id":"sub_1","customer":"cus_1","status":"active","plan":{"nickname":"Plan A"}}`)
	billing.Pages = []model.EventPage{{Events: []model.Event{ev}}}

	ledger := newLedger(t)
	marketing := &toggleAdapter{dest: model.DestinationMarketing, err: errors.New("crm down")}
	identity := &toggleAdapter{dest: model.DestinationIdentityQueue}
	d := dispatcher.NewDispatcher(dispatcher.Config{
		Projector: projector.New(billing, noAccounts{}, zap.NewNop()),
		Ledger:    ledger,
		Adapters:  []dispatcher.Adapter{marketing, identity},
	})

	_, err := d.RouteAndDeliver(context.Background(), ev)
	require.NoError(t, err)
	marketing.mu.Lock()
	marketing.err = nil
	marketing.mu.Unlock()
	return billing, ledger, d, marketing
}

func TestSweep_SkipsPartiallyDeliveredByDefault(t *testing.T) {
	billing, ledger, d, marketing := partialSetup(t)

	st, err := newSweeper(billing, ledger, d, Config{}).Sweep(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Skipped)
	assert.Equal(t, 1, marketing.calls)

	rec, err := ledger.Get(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.Equal(t, []model.Destination{model.DestinationIdentityQueue}, rec.Destinations)
}

func TestSweep_ReplayPartialCompletesDestinations(t *testing.T) {
	billing, ledger, d, marketing := partialSetup(t)

	st, err := newSweeper(billing, ledger, d, Config{ReplayPartial: true}).Sweep(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Replayed)
	assert.Zero(t, st.Incomplete)
	assert.Equal(t, 2, marketing.calls)

	rec, err := ledger.Get(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.Destination{model.DestinationMarketing, model.DestinationIdentityQueue}, rec.Destinations)
}

type stalledLedger struct {
	repository.DeliveryLedger
}

func (stalledLedger) Get(ctx context.Context, _ string) (*model.DeliveryRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSweep_StalledLedgerIsBoundedPerEvent(t *testing.T) {
	billing := paymentstest.New()
	billing.Pages = []model.EventPage{{Events: events("evt_1", "evt_2")}}
	router := &fakeRouter{}
	s := newSweeper(billing, stalledLedger{}, router, Config{EventTimeout: 20 * time.Millisecond})

	done := make(chan struct{})
	var st Stats
	var err error
	go func() {
		st, err = s.Sweep(context.Background(), 24)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep blocked on a stalled ledger")
	}
	require.NoError(t, err)
	assert.Equal(t, Stats{Pages: 1, Seen: 2, Failed: 2}, st)
	assert.Empty(t, router.seen)
}
