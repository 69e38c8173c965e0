package store

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// retrier re-runs Redis commands that failed with a transient network error.
// After the last attempt the command's own error is returned unchanged so
// callers see the backend error type.
type retrier struct {
	policy retrypolicy.RetryPolicy[any]
}

func newRetrier(retries int, logger zerolog.Logger) *retrier {
	if retries <= 0 {
		return nil
	}
	policy := retrypolicy.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool { return isTransient(err) }).
		WithMaxRetries(retries).
		WithBackoff(20*time.Millisecond, 500*time.Millisecond).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[any]) {
			logger.Warn().Err(e.LastError()).Int("attempt", e.Attempts()).Msg("Retrying redis command")
		}).
		Build()
	return &retrier{policy: policy}
}

// do runs fn under the retry policy. A nil retrier runs fn once.
func (r *retrier) do(ctx context.Context, fn func() error) error {
	if r == nil {
		return fn()
	}
	return failsafe.With[any](r.policy).WithContext(ctx).Run(fn)
}

func isTransient(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
