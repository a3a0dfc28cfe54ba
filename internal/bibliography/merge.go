// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibliography

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdiddy/arxiv-registry/internal/registry"
	"github.com/pdiddy/arxiv-registry/pkg/types"
)

// MergeResult reports what Merge did with an entry.
type MergeResult int

const (
	// Appended means the entry was written to the end of the file.
	Appended MergeResult = iota

	// Skipped means the file already holds the entry's key for the same
	// work; nothing was written.
	Skipped
)

func (r MergeResult) String() string {
	switch r {
	case Appended:
		return "appended"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("MergeResult(%d)", int(r))
	}
}

// ConflictError reports a .bib record that holds the entry's key for a
// different (or unidentifiable) work. It matches registry.ErrConflict.
type ConflictError struct {
	Path       string
	Key        string
	ExternalID string

	// Existing lists the identities of the record already in the file;
	// empty when the record names no eprint, arXiv url or doi.
	Existing []string
}

func (e *ConflictError) Error() string {
	existing := "an unidentified work"
	if len(e.Existing) > 0 {
		existing = strings.Join(e.Existing, ", ")
	}
	return fmt.Sprintf("%s: key %s is bound to %s, not %s", e.Path, e.Key, existing, e.ExternalID)
}

// Is makes errors.Is(err, registry.ErrConflict) hold for ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == registry.ErrConflict
}

// Merger merges entries into .bib files. Merges through one Merger are
// serialized, so the scan and the append of one entry are never
// interleaved with another. The zero value is ready to use.
type Merger struct {
	mu sync.Mutex
}

// Merge adds entry to the .bib file at path, creating the file if needed.
// An existing record with the entry's key is left alone: the call is
// Skipped when it describes the same work and fails with a *ConflictError
// otherwise. The file is only ever appended to, with one write per entry.
func (m *Merger) Merge(path string, entry types.ExportedEntry) (MergeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	existing := string(data)

	incoming := Scan(entry.Text)
	if len(incoming) != 1 {
		return 0, fmt.Errorf("merging %s: rendered entry does not parse as one record", entry.ExternalID)
	}
	for _, rec := range Scan(existing) {
		if !strings.EqualFold(rec.Key, entry.Key) {
			continue
		}
		if rec.SameWork(incoming[0]) {
			return Skipped, nil
		}
		return 0, &ConflictError{Path: path, Key: rec.Key, ExternalID: entry.ExternalID, Existing: rec.Identities()}
	}

	var b strings.Builder
	switch {
	case existing == "":
	case strings.HasSuffix(existing, "\n\n"):
	case strings.HasSuffix(existing, "\n"):
		b.WriteString("\n")
	default:
		b.WriteString("\n\n")
	}
	b.WriteString(entry.Text)

	if err := appendSync(path, b.String()); err != nil {
		return 0, err
	}
	return Appended, nil
}

func appendSync(path, text string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return fmt.Errorf("appending to %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	return f.Close()
}
