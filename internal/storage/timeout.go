package storage

import (
	"context"
	"time"
)

// TimeoutStore applies one deadline per primitive operation. Timeouts are
// per-request, not per-run: a long backup is bounded only by the caller's
// context.
type TimeoutStore struct {
	Store   Store
	Timeout time.Duration
}

func NewTimeoutStore(s Store, timeout time.Duration) *TimeoutStore {
	return &TimeoutStore{Store: s, Timeout: timeout}
}

func (t *TimeoutStore) with(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.Timeout)
}

func (t *TimeoutStore) Put(ctx context.Context, key, localPath string) error {
	ctx, cancel := t.with(ctx)
	defer cancel()
	return t.Store.Put(ctx, key, localPath)
}

func (t *TimeoutStore) Get(ctx context.Context, key, destPath string) error {
	ctx, cancel := t.with(ctx)
	defer cancel()
	return t.Store.Get(ctx, key, destPath)
}

func (t *TimeoutStore) ListPage(ctx context.Context, in ListPageInput) (*ListPageOutput, error) {
	ctx, cancel := t.with(ctx)
	defer cancel()
	return t.Store.ListPage(ctx, in)
}

func (t *TimeoutStore) DeleteBatch(ctx context.Context, keys []string) ([]DeleteOutcome, error) {
	ctx, cancel := t.with(ctx)
	defer cancel()
	return t.Store.DeleteBatch(ctx, keys)
}
