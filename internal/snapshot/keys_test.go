package snapshot_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapkeep/snapkeep/internal/snapshot"
)

func TestFormatID(t *testing.T) {
	ts := time.Date(2024, 3, 7, 9, 5, 42, 0, time.UTC)
	assert.Equal(t, "20240307T090542Z", snapshot.FormatID(ts))

	// Non-UTC inputs are normalized so ids stay comparable.
	loc := time.FixedZone("UTC+2", 2*3600)
	assert.Equal(t, "20240307T090542Z", snapshot.FormatID(ts.In(loc)))
}

func TestFormatIDSortsChronologically(t *testing.T) {
	earlier := snapshot.FormatID(time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC))
	later := snapshot.FormatID(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.Less(t, earlier, later)
}

func TestPrefixAndObjectKey(t *testing.T) {
	p := snapshot.Prefix("backups/my-mac", "Daily", "20240307T090542Z")
	assert.Equal(t, "backups/my-mac/Daily/20240307T090542Z", p)
	assert.Equal(t, p+"/docs/a.txt", snapshot.ObjectKey(p, "docs/a.txt"))
}

func TestParseRelativeRoundTrip(t *testing.T) {
	p := snapshot.Prefix("backups", "Daily", "20240307T090542Z")
	for _, rel := range []string{
		"a.txt",
		"docs/report.pdf",
		"deep/nested/tree/file",
		"name with spaces.txt",
	} {
		got, err := snapshot.ParseRelative(p, snapshot.ObjectKey(p, rel))
		require.NoError(t, err)
		assert.Equal(t, rel, got)
	}
}

func TestParseRelativeRejectsForeignKeys(t *testing.T) {
	p := "backups/Daily/20240307T090542Z"

	_, err := snapshot.ParseRelative(p, "backups/Weekly/20240307T090542Z/a.txt")
	assert.ErrorIs(t, err, snapshot.ErrMalformedKey)

	// Sibling prefix sharing the same leading bytes.
	_, err = snapshot.ParseRelative(p, p+"X/a.txt")
	assert.ErrorIs(t, err, snapshot.ErrMalformedKey)
}

func TestParseRelativeRejectsDirectoryMarker(t *testing.T) {
	p := "backups/Daily/20240307T090542Z"
	_, err := snapshot.ParseRelative(p, p+"/")
	assert.ErrorIs(t, err, snapshot.ErrMalformedKey)
}
