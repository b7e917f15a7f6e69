package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/snapkeep/snapkeep/internal/config"
	"github.com/snapkeep/snapkeep/internal/storage"
)

// Manager prunes snapshots beyond a routine's retention count.
type Manager struct {
	Store  storage.Store
	Logger *slog.Logger
}

// Apply lists the snapshot prefixes under the routine, keeps the newest
// RetentionCount of them, and deletes the rest. Each stale snapshot is
// deleted independently: one failing becomes a warning and does not block
// the others. A listing failure aborts the whole pass with nothing
// deleted: never delete on uncertain state.
func (m *Manager) Apply(ctx context.Context, routine config.Routine) (*RetentionReport, error) {
	base := routine.S3Prefix + "/" + routine.Name + "/"
	log := m.logger().With("routine", routine.Name)

	var prefixes []string
	token := ""
	for {
		page, err := m.Store.ListPage(ctx, storage.ListPageInput{
			Prefix:            base,
			Delimiter:         "/",
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list snapshots under %s: %w", base, err)
		}
		prefixes = append(prefixes, page.CommonPrefixes...)
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	// The fixed-width snapshot id makes descending lexicographic order
	// descending chronological order.
	ids := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		ids = append(ids, strings.TrimSuffix(p, "/"))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	keep := routine.RetentionCount
	if keep > len(ids) {
		keep = len(ids)
	}

	report := &RetentionReport{Kept: ids[:keep]}
	for _, stale := range ids[keep:] {
		if ctx.Err() != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("cancelled before deleting %s", stale))
			continue
		}
		if err := m.deletePrefix(ctx, stale+"/"); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("delete %s: %v", stale, err))
			log.Warn("failed to delete old snapshot", "prefix", stale, "error", err)
			continue
		}
		report.Deleted = append(report.Deleted, stale)
		log.Info("removed old snapshot", "prefix", stale)
	}
	return report, nil
}

// deletePrefix removes every object under prefix. It re-lists the first
// page after each batch delete instead of paginating with tokens, so a
// partially deleted prefix is always observed fresh.
func (m *Manager) deletePrefix(ctx context.Context, prefix string) error {
	for {
		page, err := m.Store.ListPage(ctx, storage.ListPageInput{Prefix: prefix})
		if err != nil {
			return fmt.Errorf("list %s: %w", prefix, err)
		}
		if len(page.Keys) == 0 {
			return nil
		}

		keys := make([]string, len(page.Keys))
		for i, obj := range page.Keys {
			keys[i] = obj.Key
		}

		outcomes, err := m.Store.DeleteBatch(ctx, keys)
		if err != nil {
			return fmt.Errorf("delete batch under %s: %w", prefix, err)
		}
		for _, o := range outcomes {
			if o.Err != nil {
				return fmt.Errorf("delete %s: %w", o.Key, o.Err)
			}
		}
	}
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
