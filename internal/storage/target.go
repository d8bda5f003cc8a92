package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// PartialSuffix marks an on-disk artifact whose transfer has not been
// validated. The final filename only ever appears via Commit's rename, so a
// file under its final name is complete by construction — unless its size
// contradicts the expected size, in which case it is reclassified as partial
// and re-fetched.
const PartialSuffix = ".partial"

// FileState classifies a destination path. It is derived from the
// filesystem on demand, never stored.
type FileState string

const (
	StateAbsent   FileState = "absent"
	StatePartial  FileState = "partial"
	StateComplete FileState = "complete"
)

// Target resolves one task's destination under the output root. Exactly one
// worker touches a Target at a time; the manager's in-flight guard enforces
// that.
type Target struct {
	finalPath string
}

func NewTarget(root, relPath string) *Target {
	return &Target{finalPath: filepath.Join(root, filepath.FromSlash(relPath))}
}

// Path returns the final destination path.
func (t *Target) Path() string { return t.finalPath }

// PartialPath returns the in-progress sibling of the final path.
func (t *Target) PartialPath() string { return t.finalPath + PartialSuffix }

// EnsureDir creates the destination's parent directory.
func (t *Target) EnsureDir() error {
	if err := os.MkdirAll(filepath.Dir(t.finalPath), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}
	return nil
}

// Classify inspects the destination. A leftover .partial from any earlier
// run is always partial, regardless of its size. A final file counts as
// complete when its size matches the expected size, or is simply non-empty
// when the expected size is unknown.
func (t *Target) Classify(expectedSize int64) (FileState, error) {
	if _, err := os.Stat(t.PartialPath()); err == nil {
		return StatePartial, nil
	} else if !os.IsNotExist(err) {
		return StateAbsent, fmt.Errorf("stat partial file: %w", err)
	}

	info, err := os.Stat(t.finalPath)
	if os.IsNotExist(err) {
		return StateAbsent, nil
	}
	if err != nil {
		return StateAbsent, fmt.Errorf("stat destination: %w", err)
	}

	if expectedSize > 0 {
		if info.Size() == expectedSize {
			return StateComplete, nil
		}
		return StatePartial, nil
	}
	if info.Size() > 0 {
		return StateComplete, nil
	}
	return StatePartial, nil
}

// Discard removes partial artifacts so the next fetch starts from byte 0.
// Partial content is never appended to.
func (t *Target) Discard() error {
	if err := os.Remove(t.PartialPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove partial file: %w", err)
	}
	// a final file classified partial (wrong size) goes too
	if err := os.Remove(t.finalPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale destination: %w", err)
	}
	return nil
}

// CreatePartial opens the .partial file for writing, truncating any
// previous content.
func (t *Target) CreatePartial() (*os.File, error) {
	f, err := os.OpenFile(t.PartialPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create partial file: %w", err)
	}
	return f, nil
}

// Commit atomically renames the validated .partial file to its final name.
// This rename is the single transition that makes the file visible as
// complete to later runs and to concurrent inspection.
func (t *Target) Commit() error {
	if err := os.Rename(t.PartialPath(), t.finalPath); err != nil {
		return fmt.Errorf("commit download: %w", err)
	}
	return nil
}
