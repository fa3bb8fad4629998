package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmehdipour/subhub/internal/model"
	"github.com/jmoiron/sqlx"
)

// AccountsRepository reads deleted-account records written by the account
// deletion workflow.
type AccountsRepository interface {
	GetDeleted(ctx context.Context, userID, customerID string) (*model.DeletedAccount, error)
	SaveDeleted(ctx context.Context, acc model.DeletedAccount) error
}

type AccountsRepositoryImpl struct {
	db *sqlx.DB
}

func NewAccountsRepository(db *sqlx.DB) *AccountsRepositoryImpl {
	return &AccountsRepositoryImpl{db: db}
}

var _ AccountsRepository = (*AccountsRepositoryImpl)(nil)

func (r *AccountsRepositoryImpl) GetDeleted(ctx context.Context, userID, customerID string) (*model.DeletedAccount, error) {
	var a model.DeletedAccount
	err := r.db.GetContext(ctx, &a, `
		SELECT user_id, customer_id, origin_system, subscriptions, created_at
		  FROM deleted_accounts
		 WHERE user_id = ? AND customer_id = ? LIMIT 1
	`, userID, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(a.RawSubs) > 0 {
		if err := json.Unmarshal(a.RawSubs, &a.SubscriptionIDs); err != nil {
			return nil, fmt.Errorf("decode subscriptions for %s: %w", userID, err)
		}
	}
	return &a, nil
}

// SaveDeleted upserts a record keyed by (user_id, customer_id).
func (r *AccountsRepositoryImpl) SaveDeleted(ctx context.Context, acc model.DeletedAccount) error {
	subs := acc.SubscriptionIDs
	if subs == nil {
		subs = []string{}
	}
	raw, err := json.Marshal(subs)
	if err != nil {
		return fmt.Errorf("encode subscriptions: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO deleted_accounts (user_id, customer_id, origin_system, subscriptions, created_at)
		VALUES (?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE
		    origin_system = VALUES(origin_system),
		    subscriptions = VALUES(subscriptions)
	`, acc.UserID, acc.CustomerID, acc.OriginSystem, raw)
	return err
}
