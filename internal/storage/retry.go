package storage

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        float64
	OnRetry       func(attempt int, err error, nextDelay time.Duration)
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        0.1,
	}
}

// WithRetry runs fn up to cfg.MaxAttempts times, backing off exponentially
// with jitter between attempts. Only transient errors are retried; anything
// else is returned on the first occurrence.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		// The attempt error alone cannot distinguish a per-request
		// timeout from an expired caller deadline; the caller's context
		// can.
		if ctx.Err() != nil {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := float64(cfg.InitialDelay)
		for i := 1; i < attempt; i++ {
			delay *= cfg.BackoffFactor
		}
		if delay > float64(cfg.MaxDelay) {
			delay = float64(cfg.MaxDelay)
		}
		if cfg.Jitter > 0 {
			delay += delay * cfg.Jitter * (rand.Float64()*2 - 1)
		}
		nextDelay := time.Duration(delay)

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, nextDelay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(nextDelay):
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// RetryingStore decorates a Store with the retry policy. Each primitive
// operation retries independently; callers see only the final outcome.
type RetryingStore struct {
	Store  Store
	Config RetryConfig
}

func NewRetryingStore(s Store, cfg RetryConfig) *RetryingStore {
	return &RetryingStore{Store: s, Config: cfg}
}

func (r *RetryingStore) Put(ctx context.Context, key, localPath string) error {
	return WithRetry(ctx, r.Config, func() error {
		return r.Store.Put(ctx, key, localPath)
	})
}

func (r *RetryingStore) Get(ctx context.Context, key, destPath string) error {
	return WithRetry(ctx, r.Config, func() error {
		return r.Store.Get(ctx, key, destPath)
	})
}

func (r *RetryingStore) ListPage(ctx context.Context, in ListPageInput) (*ListPageOutput, error) {
	var out *ListPageOutput
	err := WithRetry(ctx, r.Config, func() error {
		var err error
		out, err = r.Store.ListPage(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RetryingStore) DeleteBatch(ctx context.Context, keys []string) ([]DeleteOutcome, error) {
	var out []DeleteOutcome
	err := WithRetry(ctx, r.Config, func() error {
		var err error
		out, err = r.Store.DeleteBatch(ctx, keys)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
