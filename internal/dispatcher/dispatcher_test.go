package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmehdipour/subhub/internal/model"
	"github.com/jmehdipour/subhub/internal/payments/paymentstest"
	"github.com/jmehdipour/subhub/internal/projector"
	"github.com/jmehdipour/subhub/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAdapter struct {
	dest model.Destination

	mu    sync.Mutex
	calls []any
	err   error
}

func (a *fakeAdapter) Destination() model.Destination { return a.dest }

func (a *fakeAdapter) Deliver(_ context.Context, _ model.Event, payload any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, payload)
	return a.err
}

func (a *fakeAdapter) setErr(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}

func (a *fakeAdapter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs [][]byte
	keys []string
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, _ string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, string(key))
	p.msgs = append(p.msgs, value)
	return nil
}

type fakeLedger struct {
	repository.DeliveryLedger
	getErr    error
	recordErr error
}

func (l *fakeLedger) Get(ctx context.Context, id string) (*model.DeliveryRecord, error) {
	if l.getErr != nil {
		return nil, l.getErr
	}
	return l.DeliveryLedger.Get(ctx, id)
}

func (l *fakeLedger) RecordDelivery(ctx context.Context, id string, d model.Destination) error {
	if l.recordErr != nil {
		return l.recordErr
	}
	return l.DeliveryLedger.RecordDelivery(ctx, id, d)
}

type captureSink struct {
	rows []model.DeliveryAttempt
}

func (s *captureSink) Insert(_ context.Context, rows []model.DeliveryAttempt) error {
	s.rows = append(s.rows, rows...)
	return nil
}

type noAccounts struct{}

func (noAccounts) GetDeleted(context.Context, string, string) (*model.DeletedAccount, error) {
	return nil, nil
}

func newLedger(t *testing.T) repository.DeliveryLedger {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return repository.NewRedisLedger(rdb, "")
}

func billing() *paymentstest.Fake {
	f := paymentstest.New()
	f.Customers["cus_1"] = &model.Customer{ID: "cus_1", Email: "a@example.com", Metadata: map[string]string{"userid": "user_1"}}
	f.Products["prod_1"] = &model.Product{ID: "prod_1", Name: "Pro"}
	return f
}

type harness struct {
	d         *Dispatcher
	ledger    repository.DeliveryLedger
	marketing *fakeAdapter
	identity  *fakeAdapter
	audit     *captureSink
}

func newHarness(t *testing.T, ledger repository.DeliveryLedger) *harness {
	h := &harness{
		ledger:    ledger,
		marketing: &fakeAdapter{dest: model.DestinationMarketing},
		identity:  &fakeAdapter{dest: model.DestinationIdentityQueue},
		audit:     &captureSink{},
	}
	h.d = NewDispatcher(Config{
		Projector: projector.New(billing(), noAccounts{}, zap.NewNop()),
		Ledger:    ledger,
		Adapters:  []Adapter{h.marketing, h.identity},
		Audit:     h.audit,
		Logger:    zap.NewNop(),
	})
	return h
}

const subscriptionCreated = `{
	"id": "evt_10",
	"type": "customer.subscription.created",
	"created": 1700000000,
	"data": {"object": {"id": "sub_1", "customer": "cus_1", "status": "active",
		"plan": {"id": "plan_1", "nickname": "Plan A", "product": "prod_1", "amount": 999}}}
}`

func decodeEvent(t *testing.T, raw string) model.Event {
	t.Helper()
	var ev model.Event
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	return ev
}

func TestRouteAndDeliver_Idempotent(t *testing.T) {
	h := newHarness(t, newLedger(t))
	ev := decodeEvent(t, subscriptionCreated)
	ctx := context.Background()

	res, err := h.d.RouteAndDeliver(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, []model.Destination{model.DestinationMarketing, model.DestinationIdentityQueue}, res.Delivered)

	res, err = h.d.RouteAndDeliver(ctx, ev)
	require.NoError(t, err)
	assert.Empty(t, res.Delivered)
	assert.Len(t, res.Skipped, 2)

	assert.Equal(t, 1, h.marketing.count())
	assert.Equal(t, 1, h.identity.count())

	rec, err := h.ledger.Get(ctx, "evt_10")
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.Destination{model.DestinationMarketing, model.DestinationIdentityQueue}, rec.Destinations)
}

func TestRouteAndDeliver_PartialFailureIsolation(t *testing.T) {
	h := newHarness(t, newLedger(t))
	ev := decodeEvent(t, subscriptionCreated)
	ctx := context.Background()

	h.marketing.setErr(errors.New("crm unavailable"))
	res, err := h.d.RouteAndDeliver(ctx, ev)
	require.NoError(t, err)
	assert.False(t, res.Complete())
	assert.Contains(t, res.Failed, model.DestinationMarketing)
	assert.Equal(t, []model.Destination{model.DestinationIdentityQueue}, res.Delivered)

	rec, err := h.ledger.Get(ctx, "evt_10")
	require.NoError(t, err)
	assert.Equal(t, []model.Destination{model.DestinationIdentityQueue}, rec.Destinations)

	h.marketing.setErr(nil)
	res, err = h.d.RouteAndDeliver(ctx, ev)
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, []model.Destination{model.DestinationMarketing}, res.Delivered)
	assert.Equal(t, []model.Destination{model.DestinationIdentityQueue}, res.Skipped)
	assert.Equal(t, 2, h.marketing.count())
	assert.Equal(t, 1, h.identity.count())
}

func TestRouteAndDeliver_SubscriptionDeletedEndToEnd(t *testing.T) {
	ledger := newLedger(t)
	pub := &fakePublisher{}
	marketing := &fakeAdapter{dest: model.DestinationMarketing}
	d := NewDispatcher(Config{
		Projector: projector.New(billing(), noAccounts{}, zap.NewNop()),
		Ledger:    ledger,
		Adapters: []Adapter{
			marketing,
			NewIdentityAdapter(pub, "identity.subscriptions", func() string { return "01HZXTEST" }),
		},
	})

	ev := decodeEvent(t, `{"id":"evt_1","type":"customer.subscription.deleted","data":{"object":{"customer":"cus_1","id":"sub_1","plan":{"nickname":"Plan A","product":"prod_1"}}}}`)
	res, err := d.RouteAndDeliver(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, []model.Destination{model.DestinationIdentityQueue}, res.Delivered)
	assert.Zero(t, marketing.count())

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "evt_1", pub.keys[0])

	var env model.Envelope
	require.NoError(t, json.Unmarshal(pub.msgs[0], &env))
	assert.Equal(t, "01HZXTEST", env.ID)
	assert.Equal(t, "evt_1", env.EventID)

	var msg model.IdentityPayload
	require.NoError(t, json.Unmarshal(env.Message, &msg))
	assert.Equal(t, "user_1", msg.UID)
	assert.Equal(t, "sub_1", msg.SubscriptionID)
	assert.False(t, msg.Active)
	assert.Equal(t, "Plan A", msg.ProductName)

	rec, err := ledger.Get(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.Equal(t, []model.Destination{model.DestinationIdentityQueue}, rec.Destinations)
}

func TestRouteAndDeliver_Unhandled(t *testing.T) {
	h := newHarness(t, newLedger(t))
	res, err := h.d.RouteAndDeliver(context.Background(), model.Event{ID: "evt_x", Type: "foo.bar"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Equal(t, model.KindUnhandled, res.Kind)
	assert.Zero(t, h.marketing.count()+h.identity.count())
}

func TestRouteAndDeliver_ProjectionErrorAbortsEvent(t *testing.T) {
	h := newHarness(t, newLedger(t))
	ev := decodeEvent(t, `{"id":"evt_2","type":"customer.created","data":{"object":{"id":"cus_9"}}}`)

	res, err := h.d.RouteAndDeliver(context.Background(), ev)
	var ce *projector.ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.False(t, IsTransient(err))
	assert.Zero(t, h.marketing.count())

	rec, err := h.ledger.Get(context.Background(), "evt_2")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRouteAndDeliver_LedgerFaults(t *testing.T) {
	ev := decodeEvent(t, subscriptionCreated)
	boom := errors.New("ledger unavailable")

	t.Run("read fault aborts before delivery", func(t *testing.T) {
		h := newHarness(t, &fakeLedger{DeliveryLedger: newLedger(t), getErr: boom})
		_, err := h.d.RouteAndDeliver(context.Background(), ev)
		assert.ErrorIs(t, err, boom)
		assert.True(t, IsTransient(err))
		assert.Zero(t, h.marketing.count()+h.identity.count())
	})

	t.Run("write fault counts as failed delivery", func(t *testing.T) {
		h := newHarness(t, &fakeLedger{DeliveryLedger: newLedger(t), recordErr: boom})
		res, err := h.d.RouteAndDeliver(context.Background(), ev)
		require.NoError(t, err)
		assert.Len(t, res.Failed, 2)
		assert.ErrorIs(t, res.Failed[model.DestinationMarketing], boom)
		assert.Empty(t, res.Delivered)
	})
}

func TestRouteAndDeliver_AuditTrail(t *testing.T) {
	h := newHarness(t, newLedger(t))
	ev := decodeEvent(t, subscriptionCreated)
	h.identity.setErr(errors.New("broker down"))

	_, err := h.d.RouteAndDeliver(context.Background(), ev)
	require.NoError(t, err)

	require.Len(t, h.audit.rows, 2)
	assert.Equal(t, "marketing", h.audit.rows[0].Destination)
	assert.Equal(t, model.AttemptDelivered, h.audit.rows[0].Status)
	assert.Equal(t, model.AttemptFailed, h.audit.rows[1].Status)
	assert.Contains(t, h.audit.rows[1].Error, "broker down")
	assert.NotEmpty(t, h.audit.rows[1].ID)
}

func TestRouteAndDeliver_ConcurrentSameEvent(t *testing.T) {
	h := newHarness(t, newLedger(t))
	ev := decodeEvent(t, subscriptionCreated)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.d.RouteAndDeliver(context.Background(), ev)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := h.ledger.Get(context.Background(), "evt_10")
	require.NoError(t, err)
	assert.Len(t, rec.Destinations, 2)
}
