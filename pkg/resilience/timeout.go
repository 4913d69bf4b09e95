package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/errors"
)

// WithTimeout bounds fn by timeout. An overrun returns an error matching
// both apperrors.ErrTimeout and context.DeadlineExceeded; cancellation of
// ctx itself is returned as ctx.Err() and is not reported as a timeout.
// fn keeps running in the background after an overrun and must honour its
// context.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()
	select {
	case err := <-done:
		// fn may observe the deadline before this select does.
		if err == nil || timeoutCtx.Err() == nil {
			return err
		}
	case <-timeoutCtx.Done():
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return fmt.Errorf("%s: %w after %v: %w", name, apperrors.ErrTimeout, timeout, context.DeadlineExceeded)
}

// IsTimeout reports whether err came from an overrun WithTimeout.
func IsTimeout(err error) bool {
	return errors.Is(err, apperrors.ErrTimeout)
}
