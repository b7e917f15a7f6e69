package storage

import "context"

// ObjectInfo describes one listed object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ListPageInput asks for a single page of a listing. The caller drives
// pagination by feeding NextToken back in as ContinuationToken.
type ListPageInput struct {
	Prefix            string
	Delimiter         string
	ContinuationToken string
}

type ListPageOutput struct {
	Keys           []ObjectInfo
	CommonPrefixes []string
	// NextToken is empty on the final page.
	NextToken string
}

// DeleteOutcome is the per-key result of a batch delete.
type DeleteOutcome struct {
	Key string
	Err error
}

// Store is the object-store surface the snapshot core runs against. The
// key namespace is flat; "/" is a hierarchy separator only through
// delimiter-aware listing.
type Store interface {
	// Put uploads the file at localPath under key.
	Put(ctx context.Context, key, localPath string) error

	// Get downloads key to destPath, creating parent directories as needed.
	Get(ctx context.Context, key, destPath string) error

	// ListPage returns one page of keys (and, with a delimiter, the
	// first-level common prefixes) under the given prefix.
	ListPage(ctx context.Context, in ListPageInput) (*ListPageOutput, error)

	// DeleteBatch deletes the given keys, chunking to the store's batch
	// limit internally, and reports a per-key outcome.
	DeleteBatch(ctx context.Context, keys []string) ([]DeleteOutcome, error)
}
