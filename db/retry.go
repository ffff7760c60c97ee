// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	clocks "github.com/vimeo/go-clocks"
	retry "github.com/vimeo/go-retry"
)

// RetryPolicy bounds retries of transient storage failures
type RetryPolicy struct {
	Attempts   int
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Clock      clocks.Clock
	Logger     *slog.Logger
}

// DefaultRetryPolicy tries three times with doubling delay
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:   3,
		MinBackoff: 50 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
	}
}

// Do runs fn until it succeeds, fails with a non-transient error, or the
// attempts are used up. fn must be safe to repeat: a read, an idempotent
// write, or a whole transaction.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	clock := p.Clock
	if clock == nil {
		clock = clocks.DefaultClock()
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := retry.DefaultBackoff()
	if p.MinBackoff > 0 {
		b.MinBackoff = p.MinBackoff
	}
	if p.MaxBackoff > 0 {
		b.MaxBackoff = p.MaxBackoff
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || !IsTransient(err) || attempt >= p.Attempts {
			return err
		}

		delay := b.Next()
		logger.Warn("retrying transient storage failure",
			"op", op,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if !clock.SleepFor(ctx, delay) {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}
}
