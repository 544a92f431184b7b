package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultMaxAttempts = 5
	defaultBaseDelay   = 10 * time.Millisecond
	maxDelay           = time.Second
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (c RetryConfig) attempts() int {
	if c.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return c.MaxAttempts
}

func (c RetryConfig) backoff() retry.Backoff {
	base := c.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	b := retry.NewExponential(base)
	b = retry.WithCappedDuration(maxDelay, b)
	b = retry.WithJitterPercent(20, b)
	return retry.WithMaxRetries(uint64(c.attempts()-1), b)
}

// runWithRetry повторяет attempt, пока он возвращает ErrConflict.
func runWithRetry(ctx context.Context, cfg RetryConfig, attempt func(ctx context.Context) error) (int, error) {
	n := 0
	err := retry.Do(ctx, cfg.backoff(), func(ctx context.Context) error {
		n++
		err := attempt(ctx)
		if errors.Is(err, ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && errors.Is(err, ErrConflict) {
		return n, fmt.Errorf("%w after %d attempts: %w", ErrContention, n, err)
	}
	return n, err
}
