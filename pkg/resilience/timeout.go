package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/errors"
)

// WithTimeout runs fn under a deadline and returns as soon as the deadline
// passes, even if fn ignores its context. An overrun is reported as an error
// matching both apperrors.ErrTimeout and context.DeadlineExceeded; a
// cancelled parent is reported as the parent's error. A non-positive timeout
// calls fn directly.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(callCtx) }()

	var err error
	select {
	case err = <-done:
		if err == nil || !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	case <-callCtx.Done():
		err = callCtx.Err()
	}
	if parentErr := ctx.Err(); parentErr != nil {
		return fmt.Errorf("%s: %w", name, parentErr)
	}
	return fmt.Errorf("%s: %w: %w after %v", name, apperrors.ErrTimeout, context.DeadlineExceeded, timeout)
}
