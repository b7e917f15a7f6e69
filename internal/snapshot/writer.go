package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/snapkeep/snapkeep/internal/config"
	"github.com/snapkeep/snapkeep/internal/storage"
)

const (
	defaultWorkers = 8
	minWorkers     = 4
	maxWorkers     = 16
)

// boundWorkers clamps a requested pool size into the supported range.
// Zero and negative values fall back to the default.
func boundWorkers(n int) int {
	switch {
	case n <= 0:
		return defaultWorkers
	case n < minWorkers:
		return minWorkers
	case n > maxWorkers:
		return maxWorkers
	}
	return n
}

// Writer materializes one snapshot of a routine's source tree into the
// object store.
type Writer struct {
	Store storage.Store
	// Retention, when set, is applied after every non-cancelled run,
	// including runs with partial upload failures or a broken
	// enumeration: the new snapshot prefix exists either way and must be
	// counted.
	Retention *Manager
	// Clock stamps snapshot ids. Nil means time.Now.
	Clock func() time.Time
	// Workers bounds concurrent uploads. Zero means defaultWorkers.
	Workers int
	Logger  *slog.Logger
}

// Run backs up the routine's source (or sourceOverride when non-empty)
// into a fresh snapshot prefix. A single file failure is recorded in the
// report and does not abort the remaining uploads. The returned error is
// reserved for run-level failures: a missing source or a broken
// enumeration.
func (w *Writer) Run(ctx context.Context, routine config.Routine, sourceOverride string) (*RunReport, error) {
	source := routine.SourcePath
	if sourceOverride != "" {
		source = sourceOverride
	}
	if _, err := os.Stat(source); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, source)
	}

	clock := w.Clock
	if clock == nil {
		clock = time.Now
	}
	snapPrefix := Prefix(routine.S3Prefix, routine.Name, FormatID(clock()))

	log := w.logger().With("routine", routine.Name, "snapshot", snapPrefix)
	log.Info("starting backup", "source", source)

	report := &RunReport{SnapshotPrefix: snapPrefix}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(boundWorkers(w.Workers))

	walkErr := EnumerateFiles(source, func(e Entry) error {
		if err := ctx.Err(); err != nil {
			// In-flight uploads finish; nothing new starts.
			mu.Lock()
			report.Incomplete = true
			mu.Unlock()
			return err
		}

		if e.Err != nil {
			mu.Lock()
			report.Attempted++
			report.Failed = append(report.Failed, FileOutcome{RelPath: e.RelPath, Err: e.Err})
			mu.Unlock()
			log.Warn("skipping subtree", "path", e.RelPath, "error", e.Err)
			return nil
		}

		entry := e
		g.Go(func() error {
			key := ObjectKey(snapPrefix, entry.RelPath)
			putErr := w.Store.Put(ctx, key, entry.AbsPath)

			mu.Lock()
			report.Attempted++
			if putErr != nil {
				report.Failed = append(report.Failed, FileOutcome{RelPath: entry.RelPath, Err: putErr})
			} else {
				report.Succeeded++
			}
			mu.Unlock()

			if putErr != nil {
				log.Warn("upload failed", "file", entry.RelPath, "error", putErr)
			}
			return nil
		})
		return nil
	})
	g.Wait()

	if ctx.Err() != nil {
		report.Incomplete = true
	}

	log.Info("backup finished",
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", len(report.Failed),
		"incomplete", report.Incomplete)

	// Retention runs even when enumeration broke partway: any uploads
	// that did land created a snapshot prefix that must be counted.
	if w.Retention != nil && !report.Incomplete {
		ret, err := w.Retention.Apply(ctx, routine)
		if err != nil {
			log.Warn("retention aborted, snapshots left untouched", "error", err)
		} else {
			for _, warning := range ret.Warnings {
				log.Warn("retention warning", "detail", warning)
			}
		}
	}

	if walkErr != nil && !report.Incomplete {
		return report, fmt.Errorf("enumerate %s: %w", source, walkErr)
	}
	return report, nil
}

func (w *Writer) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
