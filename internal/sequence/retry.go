package sequence

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NewRetryPolicy returns an exponential backoff that gives up after
// maxRetries additional attempts.
func NewRetryPolicy(maxRetries uint64) backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries)
}

// NextIDWithRetry calls src.NextID until it succeeds, policy gives up, or ctx
// ends. Only failed refill transactions are retried; configuration errors
// and lock timeouts are returned immediately.
//
// Each attempt goes back through the allocator, so a retried refill starts
// a new transaction. Retries are logged at Debug on the source's logger when
// it exposes one (as *Allocator does), otherwise on slog.Default().
func NextIDWithRetry(ctx context.Context, src IDSource, policy backoff.BackOff) (int64, error) {
	var id int64
	op := func() error {
		var err error
		id, err = src.NextID(ctx)
		if err != nil && !IsTransactionError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	logger := slog.Default()
	if l, ok := src.(interface{ Logger() *slog.Logger }); ok {
		logger = l.Logger()
	}
	notify := func(err error, wait time.Duration) {
		logger.Debug("retrying sequence allocation", "error", err, "wait", wait)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), notify); err != nil {
		return 0, err
	}
	return id, nil
}
