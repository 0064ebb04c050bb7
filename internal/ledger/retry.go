package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryPolicy bounds the exponential backoff used around whole operations.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var DefaultRetry = RetryPolicy{MaxRetries: 4, InitialInterval: 100 * time.Millisecond, MaxInterval: 2 * time.Second}

// withRetry reruns op while it fails with ErrTransient. Every other error
// stops at once. op must be a complete transaction.
func (s *Service) withRetry(ctx context.Context, p RetryPolicy, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0

	attempt := func() error {
		err := op()
		if err != nil && !errors.Is(err, ErrTransient) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.Log.Warn("transient failure, retrying", zap.Error(err), zap.Duration("wait", wait))
	}
	return backoff.RetryNotify(attempt, backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx), notify)
}
