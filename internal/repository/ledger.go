package repository

import (
	"context"
	"sort"

	"github.com/jmehdipour/subhub/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// DeliveryLedger records which destinations an event has been delivered to.
// RecordDelivery is an idempotent set-append enforced by the store, so
// concurrent callers for the same event never lose or duplicate entries.
type DeliveryLedger interface {
	// Get returns nil when the event has no record at all.
	Get(ctx context.Context, eventID string) (*model.DeliveryRecord, error)
	RecordDelivery(ctx context.Context, eventID string, dest model.Destination) error
}

// MySQLLedger stores one row per (event_id, destination).
type MySQLLedger struct {
	db *sqlx.DB
}

func NewMySQLLedger(db *sqlx.DB) *MySQLLedger {
	return &MySQLLedger{db: db}
}

var _ DeliveryLedger = (*MySQLLedger)(nil)

func (r *MySQLLedger) Get(ctx context.Context, eventID string) (*model.DeliveryRecord, error) {
	var dests []string
	err := r.db.SelectContext(ctx, &dests, `
		SELECT destination
		  FROM delivery_ledger
		 WHERE event_id = ?
		 ORDER BY delivered_at, destination
	`, eventID)
	if err != nil {
		return nil, err
	}
	if len(dests) == 0 {
		return nil, nil
	}
	return newRecord(eventID, dests), nil
}

func (r *MySQLLedger) RecordDelivery(ctx context.Context, eventID string, dest model.Destination) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO delivery_ledger (event_id, destination, delivered_at)
		VALUES (?, ?, NOW(6))
		ON DUPLICATE KEY UPDATE event_id = event_id
	`, eventID, dest.String())
	return err
}

// RedisLedger keeps a set per event id.
type RedisLedger struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisLedger(rdb *redis.Client, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = "ledger:evt:"
	}
	return &RedisLedger{rdb: rdb, prefix: prefix}
}

var _ DeliveryLedger = (*RedisLedger)(nil)

func (r *RedisLedger) Get(ctx context.Context, eventID string) (*model.DeliveryRecord, error) {
	dests, err := r.rdb.SMembers(ctx, r.prefix+eventID).Result()
	if err != nil {
		return nil, err
	}
	if len(dests) == 0 {
		return nil, nil
	}
	sort.Strings(dests)
	return newRecord(eventID, dests), nil
}

func (r *RedisLedger) RecordDelivery(ctx context.Context, eventID string, dest model.Destination) error {
	return r.rdb.SAdd(ctx, r.prefix+eventID, dest.String()).Err()
}

func newRecord(eventID string, dests []string) *model.DeliveryRecord {
	rec := &model.DeliveryRecord{EventID: eventID, Destinations: make([]model.Destination, 0, len(dests))}
	for _, d := range dests {
		rec.Destinations = append(rec.Destinations, model.Destination(d))
	}
	return rec
}
