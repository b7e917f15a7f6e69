package snapshot_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/snapkeep/snapkeep/internal/storage"
)

// fakeStore is an in-memory storage.Store with small pages so every test
// exercises pagination. Failure injection is per key.
type fakeStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	pageSize   int
	failPut    map[string]error
	failGet    map[string]error
	failDelete map[string]error
	listErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:    make(map[string][]byte),
		pageSize:   2,
		failPut:    make(map[string]error),
		failGet:    make(map[string]error),
		failDelete: make(map[string]error),
	}
}

func (f *fakeStore) seed(key, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = []byte(content)
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeStore) keysUnder(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeStore) Put(ctx context.Context, key, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	err := f.failPut[key]
	f.mu.Unlock()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.objects[key] = data
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key, destPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	injected := f.failGet[key]
	data, ok := f.objects[key]
	f.mu.Unlock()
	if injected != nil {
		return injected
	}
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(destPath, data, 0644)
}

// ListPage mimics S3 hierarchical listing: with a delimiter, keys whose
// remainder contains it collapse into common prefixes, and keys plus
// prefixes paginate together in lexicographic order.
func (f *fakeStore) ListPage(ctx context.Context, in storage.ListPageInput) (*storage.ListPageOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}

	type item struct {
		value    string
		isPrefix bool
	}

	seenPrefix := make(map[string]struct{})
	var items []item
	for k := range f.objects {
		if !strings.HasPrefix(k, in.Prefix) {
			continue
		}
		rest := k[len(in.Prefix):]
		if in.Delimiter != "" {
			if idx := strings.Index(rest, in.Delimiter); idx >= 0 {
				cp := in.Prefix + rest[:idx+len(in.Delimiter)]
				if _, dup := seenPrefix[cp]; !dup {
					seenPrefix[cp] = struct{}{}
					items = append(items, item{value: cp, isPrefix: true})
				}
				continue
			}
		}
		items = append(items, item{value: k})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].value < items[j].value })

	start := 0
	if in.ContinuationToken != "" {
		start, _ = strconv.Atoi(in.ContinuationToken)
	}
	end := start + f.pageSize
	if f.pageSize <= 0 || end > len(items) {
		end = len(items)
	}

	out := &storage.ListPageOutput{}
	for _, it := range items[start:end] {
		if it.isPrefix {
			out.CommonPrefixes = append(out.CommonPrefixes, it.value)
		} else {
			out.Keys = append(out.Keys, storage.ObjectInfo{Key: it.value, Size: int64(len(f.objects[it.value]))})
		}
	}
	if end < len(items) {
		out.NextToken = strconv.Itoa(end)
	}
	return out, nil
}

func (f *fakeStore) DeleteBatch(ctx context.Context, keys []string) ([]storage.DeleteOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	outcomes := make([]storage.DeleteOutcome, 0, len(keys))
	for _, k := range keys {
		if err := f.failDelete[k]; err != nil {
			outcomes = append(outcomes, storage.DeleteOutcome{Key: k, Err: err})
			continue
		}
		delete(f.objects, k)
		outcomes = append(outcomes, storage.DeleteOutcome{Key: k})
	}
	return outcomes, nil
}
