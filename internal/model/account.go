package model

import "time"

// DeletedAccount is written by the account-deletion workflow before the
// provider emits customer.deleted.
type DeletedAccount struct {
	UserID          string    `db:"user_id"`
	CustomerID      string    `db:"customer_id"`
	OriginSystem    string    `db:"origin_system"`
	SubscriptionIDs []string  `db:"-"`
	RawSubs         []byte    `db:"subscriptions"` // JSON array
	CreatedAt       time.Time `db:"created_at"`
}
