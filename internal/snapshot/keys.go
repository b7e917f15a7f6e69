package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// idLayout is the snapshot id format: fixed-width UTC so lexicographic
// order equals chronological order. Two runs starting within the same
// second share an id and their objects merge into one snapshot.
const idLayout = "20060102T150405Z"

// ErrMalformedKey marks a key that does not belong under the snapshot
// prefix it was listed for, or a bare directory-marker object.
var ErrMalformedKey = errors.New("malformed object key")

// FormatID renders t as a snapshot id.
func FormatID(t time.Time) string {
	return t.UTC().Format(idLayout)
}

// Prefix builds the snapshot boundary: everything sharing this exact
// prefix belongs to one snapshot.
func Prefix(remotePrefix, routineName, id string) string {
	return remotePrefix + "/" + routineName + "/" + id
}

// ObjectKey places a relative file path under a snapshot prefix.
func ObjectKey(snapshotPrefix, relPath string) string {
	return snapshotPrefix + "/" + relPath
}

// ParseRelative strips snapshotPrefix + "/" from fullKey. An empty
// remainder denotes a directory marker, which callers must skip rather
// than treat as a file.
func ParseRelative(snapshotPrefix, fullKey string) (string, error) {
	rel, ok := strings.CutPrefix(fullKey, snapshotPrefix+"/")
	if !ok {
		return "", fmt.Errorf("%w: %q is not under %q", ErrMalformedKey, fullKey, snapshotPrefix)
	}
	if rel == "" {
		return "", fmt.Errorf("%w: %q is a directory marker", ErrMalformedKey, fullKey)
	}
	return rel, nil
}
