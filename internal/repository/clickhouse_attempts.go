package repository

import (
	"context"
	"strings"

	"github.com/jmehdipour/subhub/internal/model"
	"github.com/jmoiron/sqlx"
)

// AttemptFilter narrows a delivery attempts listing. Empty fields match all.
type AttemptFilter struct {
	EventID     string
	Destination string
	Status      model.AttemptStatus
	Limit       int
	Offset      int
}

// CHAttemptsRepository stores the delivery audit trail in ClickHouse.
type CHAttemptsRepository interface {
	Insert(ctx context.Context, attempts []model.DeliveryAttempt) error
	List(ctx context.Context, f AttemptFilter) ([]model.DeliveryAttempt, error)
}

type chAttemptsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHAttemptsRepository(ch *sqlx.DB) CHAttemptsRepository {
	return &chAttemptsRepository{ch: ch}
}

func (r *chAttemptsRepository) Insert(ctx context.Context, attempts []model.DeliveryAttempt) error {
	if len(attempts) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(attempts)*7)

	sb.WriteString(`INSERT INTO subhub.delivery_attempts (id, event_id, event_type, destination, status, error, created_at) VALUES `)
	for i, a := range attempts {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, a.ID, a.EventID, a.EventType, a.Destination, a.Status.String(), a.Error, a.CreatedAt)
	}

	_, err := r.ch.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *chAttemptsRepository) List(ctx context.Context, f AttemptFilter) ([]model.DeliveryAttempt, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := `
		SELECT id, event_id, event_type, destination, status, error, created_at
		FROM subhub.delivery_attempts
		WHERE 1 = 1
	`
	var args []any

	if f.EventID != "" {
		q += " AND event_id = ?"
		args = append(args, f.EventID)
	}
	if f.Destination != "" {
		q += " AND destination = ?"
		args = append(args, f.Destination)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status.String())
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	var rows []model.DeliveryAttempt
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
