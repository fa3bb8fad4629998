package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmehdipour/subhub/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockDB creates a sqlmock-backed sqlx database with expectation checking on cleanup.
func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestMySQLLedger_GetAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT destination\\s+FROM delivery_ledger").
		WithArgs("evt_1").
		WillReturnRows(sqlmock.NewRows([]string{"destination"}))

	rec, err := NewMySQLLedger(db).Get(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMySQLLedger_GetPresent(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT destination\\s+FROM delivery_ledger").
		WithArgs("evt_1").
		WillReturnRows(sqlmock.NewRows([]string{"destination"}).
			AddRow("marketing").
			AddRow("identity_queue"))

	rec, err := NewMySQLLedger(db).Get(context.Background(), "evt_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "evt_1", rec.EventID)
	assert.Equal(t, []model.Destination{model.DestinationMarketing, model.DestinationIdentityQueue}, rec.Destinations)
	assert.True(t, rec.Has(model.DestinationIdentityQueue))
}

func TestMySQLLedger_RecordDeliveryIsIdempotentInsert(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO delivery_ledger .+ ON DUPLICATE KEY UPDATE event_id = event_id").
		WithArgs("evt_1", "marketing").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO delivery_ledger").
		WithArgs("evt_1", "marketing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	l := NewMySQLLedger(db)
	require.NoError(t, l.RecordDelivery(context.Background(), "evt_1", model.DestinationMarketing))
	require.NoError(t, l.RecordDelivery(context.Background(), "evt_1", model.DestinationMarketing))
}

func TestMySQLLedger_PropagatesErrors(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("connection refused")
	mock.ExpectQuery("SELECT destination").WithArgs("evt_1").WillReturnError(boom)
	mock.ExpectExec("INSERT INTO delivery_ledger").WithArgs("evt_1", "marketing").WillReturnError(boom)

	l := NewMySQLLedger(db)
	_, err := l.Get(context.Background(), "evt_1")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, l.RecordDelivery(context.Background(), "evt_1", model.DestinationMarketing), boom)
}

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLedger(t *testing.T) {
	ctx := context.Background()
	l := NewRedisLedger(setupTestRedis(t), "")

	t.Run("absent", func(t *testing.T) {
		rec, err := l.Get(ctx, "evt_1")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("record is idempotent", func(t *testing.T) {
		require.NoError(t, l.RecordDelivery(ctx, "evt_1", model.DestinationMarketing))
		require.NoError(t, l.RecordDelivery(ctx, "evt_1", model.DestinationMarketing))
		require.NoError(t, l.RecordDelivery(ctx, "evt_1", model.DestinationIdentityQueue))

		rec, err := l.Get(ctx, "evt_1")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.ElementsMatch(t, []model.Destination{model.DestinationMarketing, model.DestinationIdentityQueue}, rec.Destinations)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, l.RecordDelivery(ctx, "evt_2", model.DestinationIdentityQueue))
			}()
		}
		wg.Wait()

		rec, err := l.Get(ctx, "evt_2")
		require.NoError(t, err)
		assert.Equal(t, []model.Destination{model.DestinationIdentityQueue}, rec.Destinations)
	})
}
