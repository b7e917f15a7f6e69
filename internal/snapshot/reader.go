package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/snapkeep/snapkeep/internal/storage"
)

// Reader reconstructs a local directory tree from the objects under a
// remote prefix.
type Reader struct {
	Store storage.Store
	// Workers bounds concurrent downloads. Zero means defaultWorkers.
	Workers int
	Logger  *slog.Logger
}

// Restore downloads every object under prefix into destRoot, recreating
// the relative layout. The prefix does not have to be a snapshot boundary:
// a shorter prefix restores a routine's whole history. Per-file failures
// are recorded in the report; malformed keys are skipped with a warning
// and do not fail the run; only a broken listing is returned as an error.
func (r *Reader) Restore(ctx context.Context, prefix, destRoot string) (*RunReport, error) {
	base := strings.TrimSuffix(prefix, "/")
	log := r.logger().With("prefix", base)
	log.Info("starting restore", "dest", destRoot)

	report := &RunReport{SnapshotPrefix: base}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(boundWorkers(r.Workers))

	token := ""
	for {
		if ctx.Err() != nil {
			report.Incomplete = true
			break
		}

		page, err := r.Store.ListPage(ctx, storage.ListPageInput{
			Prefix:            prefix,
			ContinuationToken: token,
		})
		if err != nil {
			g.Wait()
			return report, fmt.Errorf("list %s: %w", prefix, err)
		}

		for _, obj := range page.Keys {
			if ctx.Err() != nil {
				report.Incomplete = true
				break
			}

			key := obj.Key
			if strings.HasSuffix(key, "/") {
				// Directory marker, nothing to materialize.
				continue
			}

			rel, err := ParseRelative(base, key)
			if err != nil {
				mu.Lock()
				report.Warnings = append(report.Warnings, fmt.Sprintf("skipping %s: %v", key, err))
				mu.Unlock()
				log.Warn("skipping malformed key", "key", key, "error", err)
				continue
			}

			dest := filepath.Join(destRoot, filepath.FromSlash(rel))
			g.Go(func() error {
				getErr := r.Store.Get(ctx, key, dest)

				mu.Lock()
				report.Attempted++
				if getErr != nil {
					report.Failed = append(report.Failed, FileOutcome{RelPath: rel, Err: getErr})
				} else {
					report.Succeeded++
				}
				mu.Unlock()

				if getErr != nil {
					log.Warn("download failed", "file", rel, "error", getErr)
				}
				return nil
			})
		}

		if page.NextToken == "" || report.Incomplete {
			break
		}
		token = page.NextToken
	}
	g.Wait()

	if ctx.Err() != nil {
		report.Incomplete = true
	}

	log.Info("restore finished",
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", len(report.Failed),
		"warnings", len(report.Warnings),
		"incomplete", report.Incomplete)
	return report, nil
}

func (r *Reader) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
