package snapshot

// FileOutcome records why a single file failed during a run.
type FileOutcome struct {
	RelPath string
	Err     error
}

// RunReport aggregates per-file outcomes of one backup or restore run.
// Per-file failures live here, never in the returned error: the caller
// decides exit behavior from the counts.
type RunReport struct {
	// SnapshotPrefix is the boundary written to (backup) or read from
	// (restore).
	SnapshotPrefix string
	Attempted      int
	Succeeded      int
	Failed         []FileOutcome
	// Warnings records objects skipped without being attempted, such as
	// foreign keys caught by a raw prefix listing. They do not fail the
	// run.
	Warnings []string
	// Incomplete is set when the run was cancelled before every
	// enumerated file was attempted.
	Incomplete bool
}

// OK reports whether every attempted file succeeded and the run finished.
func (r *RunReport) OK() bool {
	return len(r.Failed) == 0 && !r.Incomplete
}

// RetentionReport describes one retention pass: snapshot prefixes kept,
// prefixes fully deleted, and warnings for snapshots whose deletion failed
// partway (those keep their remaining objects until the next pass).
type RetentionReport struct {
	Kept     []string
	Deleted  []string
	Warnings []string
}
