package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/timeout"
)

// DefaultCallTimeout bounds every outbound vendor call.
const DefaultCallTimeout = 30 * time.Second

// WithTimeout runs fn under both a deadline context and a hard timeout
// policy. The policy fires even when fn ignores its context.
func WithTimeout[R any](ctx context.Context, d time.Duration, fn func(context.Context) (R, error)) (R, error) {
	if d <= 0 {
		d = DefaultCallTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	to := timeout.New[R](d)
	return failsafe.With(to).WithContext(tctx).Get(func() (R, error) {
		return fn(tctx)
	})
}

// IsTimeout reports whether err came from an exhausted call deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, timeout.ErrExceeded) || errors.Is(err, context.DeadlineExceeded)
}
