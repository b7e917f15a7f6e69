package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// ErrSourceNotFound marks a backup source that does not exist at call time.
var ErrSourceNotFound = errors.New("backup source does not exist")

// ErrCycle marks a symlinked directory that resolves to a directory
// already being walked. The subtree is skipped; the rest of the
// enumeration continues.
var ErrCycle = errors.New("symlink cycle detected")

// Entry is one enumerated item. RelPath always uses forward slashes so it
// can be joined straight into an object key. A non-nil Err means the entry
// names a subtree that was skipped rather than a file to transfer.
type Entry struct {
	AbsPath string
	RelPath string
	Err     error
}

// EnumerateFiles walks root and calls fn once per regular file. A regular
// file root yields exactly one entry named by its basename; a directory
// root is recursed fully, following symlinked directories at most once.
// Directory entries themselves are never yielded: the object store has no
// empty-directory concept. Returning an error from fn stops the walk.
func EnumerateFiles(root string, fn func(Entry) error) error {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, root)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", root, err)
	}

	if !info.IsDir() {
		return fn(Entry{AbsPath: root, RelPath: filepath.Base(root)})
	}

	seen := make(map[string]struct{})
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		seen[resolved] = struct{}{}
	}
	return walkDir(root, "", seen, fn)
}

func walkDir(dir, rel string, seen map[string]struct{}, fn func(Entry) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, e := range entries {
		abs := filepath.Join(dir, e.Name())
		childRel := path.Join(rel, e.Name())

		mode := e.Type()
		if mode&fs.ModeSymlink != 0 {
			target, err := os.Stat(abs)
			if err != nil {
				// Broken symlink: nothing to upload.
				continue
			}
			if target.IsDir() {
				resolved, err := filepath.EvalSymlinks(abs)
				if err != nil {
					continue
				}
				if _, visited := seen[resolved]; visited {
					if err := fn(Entry{AbsPath: abs, RelPath: childRel, Err: fmt.Errorf("%w: %s", ErrCycle, abs)}); err != nil {
						return err
					}
					continue
				}
				seen[resolved] = struct{}{}
				if err := walkDir(abs, childRel, seen, fn); err != nil {
					return err
				}
				continue
			}
			if target.Mode().IsRegular() {
				if err := fn(Entry{AbsPath: abs, RelPath: childRel}); err != nil {
					return err
				}
			}
			continue
		}

		if e.IsDir() {
			if resolved, err := filepath.EvalSymlinks(abs); err == nil {
				seen[resolved] = struct{}{}
			}
			if err := walkDir(abs, childRel, seen, fn); err != nil {
				return err
			}
			continue
		}

		if mode.IsRegular() {
			if err := fn(Entry{AbsPath: abs, RelPath: childRel}); err != nil {
				return err
			}
		}
	}
	return nil
}
