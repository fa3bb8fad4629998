package payments

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

// RetryPolicy is exponential backoff between MinWait and MaxWait, bounded by
// MaxAttempts. The last error is returned once attempts run out.
type RetryPolicy struct {
	MaxAttempts int
	MinWait     time.Duration
	MaxWait     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, MinWait: time.Second, MaxWait: 8 * time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.MinWait
	b.MaxInterval = p.MaxWait
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// retry runs fn under the policy. Only transient provider faults are retried.
func retry[T any](ctx context.Context, p RetryPolicy, log *zap.Logger, op string, fn func() (T, error)) (T, error) {
	attempt := 0
	return backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !transient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, p.backOff(ctx), func(err error, wait time.Duration) {
		log.Warn("provider call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}

// transient reports whether a provider error is worth retrying: connection
// errors, rate limits, idempotency conflicts and 5xx responses.
func transient(err error) bool {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return true
	}
	switch {
	case serr.HTTPStatusCode == http.StatusTooManyRequests:
		return true
	case serr.HTTPStatusCode == http.StatusConflict:
		return true
	case serr.HTTPStatusCode >= 500:
		return true
	case string(serr.Type) == "idempotency_error", string(serr.Type) == "api_connection_error":
		return true
	}
	return false
}
