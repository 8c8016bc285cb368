package common

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout races operation against a timer. The operation receives a
// context that is canceled when the timer fires; its result is discarded if
// it returns late.
func WithTimeout(ctx context.Context, timeout time.Duration, operation func(context.Context) error) error {
	if timeout <= 0 {
		return operation(ctx)
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- operation(opCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
