// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export turns keyed registry items into bibliography entries and
// merges them into a .bib file, one work at a time or in batches.
package export

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/pdiddy/arxiv-registry/internal/bibliography"
	"github.com/pdiddy/arxiv-registry/pkg/types"
)

// Store is the part of the registry store the exporter needs.
type Store interface {
	GetItem(ctx context.Context, externalID string) (types.Item, error)
	GetExportedKey(ctx context.Context, externalID string) (types.CitationKey, error)
	MarkExported(ctx context.Context, externalID string) (types.CitationKey, error)
}

// KeyResolver assigns citation keys on demand.
type KeyResolver interface {
	ResolveKey(ctx context.Context, externalID string) (types.CitationKey, error)
}

// Exporter renders and merges entries.
type Exporter struct {
	store  Store
	keys   KeyResolver
	merger *bibliography.Merger
	log    *log.Logger
}

// New returns an Exporter.
func New(store Store, keys KeyResolver, logger *log.Logger) *Exporter {
	return &Exporter{store: store, keys: keys, merger: &bibliography.Merger{}, log: logger}
}

// Export renders externalID with its current metadata and its already
// assigned key. It never assigns a key: an unkeyed work yields an error
// wrapping registry.ErrNotFound.
func (e *Exporter) Export(ctx context.Context, externalID string, cfg types.ExportConfig) (types.ExportedEntry, error) {
	ck, err := e.store.GetExportedKey(ctx, externalID)
	if err != nil {
		return types.ExportedEntry{}, err
	}
	return e.render(ctx, ck, cfg)
}

// Result describes one successful ExportTo.
type Result struct {
	Entry types.ExportedEntry
	Key   types.CitationKey
	Merge bibliography.MergeResult
}

// ExportTo resolves the key of externalID (assigning it if needed), renders
// the entry and merges it into the .bib file at path. The work is marked
// exported once the file holds its entry. A conflicting record in the file
// fails the call and leaves both the file and the registry unchanged.
func (e *Exporter) ExportTo(ctx context.Context, externalID, path string, cfg types.ExportConfig) (Result, error) {
	ck, err := e.keys.ResolveKey(ctx, externalID)
	if err != nil {
		return Result{}, err
	}
	entry, err := e.render(ctx, ck, cfg)
	if err != nil {
		return Result{}, err
	}

	res, err := e.merger.Merge(path, entry)
	if err != nil {
		return Result{}, fmt.Errorf("exporting %s: %w", externalID, err)
	}

	if ck, err = e.store.MarkExported(ctx, externalID); err != nil {
		return Result{}, err
	}
	e.log.Debug("entry exported", "id", externalID, "key", ck.Key, "result", res)
	return Result{Entry: entry, Key: ck, Merge: res}, nil
}

func (e *Exporter) render(ctx context.Context, ck types.CitationKey, cfg types.ExportConfig) (types.ExportedEntry, error) {
	item, err := e.store.GetItem(ctx, ck.ExternalID)
	if err != nil {
		return types.ExportedEntry{}, err
	}
	return bibliography.Render(item, ck.Key, cfg)
}

// Failure pairs a work with the error that stopped its export.
type Failure struct {
	ExternalID string
	Err        error
}

// BatchSummary holds the outcome of a batch export.
type BatchSummary struct {
	Written  int
	Skipped  int
	Failed   int
	Failures []Failure
}

// Total returns the number of works processed.
func (s BatchSummary) Total() int {
	return s.Written + s.Skipped + s.Failed
}

// HasFailures reports whether any work failed.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// Err returns nil when every work succeeded, or a *BatchError carrying the
// individual failures.
func (s BatchSummary) Err() error {
	if !s.HasFailures() {
		return nil
	}
	return &BatchError{Summary: s}
}

// BatchError reports a batch with failed works. errors.Is and errors.As
// see through it to each failure.
type BatchError struct {
	Summary BatchSummary
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of %d work(s) failed export", e.Summary.Failed, e.Summary.Total())
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Summary.Failures))
	for _, f := range e.Summary.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

func (s *BatchSummary) fail(w io.Writer, id string, err error) {
	fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
	s.Failed++
	s.Failures = append(s.Failures, Failure{ExternalID: id, Err: err})
}

// ExportBatch exports each id into path in order, printing one status line
// per work to w. A failing work is reported and the batch continues; a
// cancelled context fails the remaining works.
func (e *Exporter) ExportBatch(ctx context.Context, ids []string, path string, cfg types.ExportConfig, w io.Writer) BatchSummary {
	var summary BatchSummary
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			summary.fail(w, id, err)
			continue
		}

		res, err := e.ExportTo(ctx, id, path, cfg)
		if err != nil {
			e.log.Warn("export failed", "id", id, "err", err)
			summary.fail(w, id, err)
			continue
		}
		switch res.Merge {
		case bibliography.Skipped:
			fmt.Fprintf(w, "skipped: %s (%s already in %s)\n", id, res.Key.Key, path)
			summary.Skipped++
		default:
			fmt.Fprintf(w, "wrote:   %s (%s)\n", id, res.Key.Key)
			summary.Written++
		}
	}
	fmt.Fprintf(w, "\nExport summary: %d written, %d skipped, %d failed (total: %d)\n",
		summary.Written, summary.Skipped, summary.Failed, summary.Total())
	return summary
}

// RenderBatch resolves keys for ids and writes their entries to out,
// separated by blank lines, without touching any .bib file or the
// exported state. Status lines and the summary go to status.
func (e *Exporter) RenderBatch(ctx context.Context, ids []string, cfg types.ExportConfig, out, status io.Writer) BatchSummary {
	var summary BatchSummary
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			summary.fail(status, id, err)
			continue
		}

		entry, err := e.resolveAndRender(ctx, id, cfg)
		if err != nil {
			e.log.Warn("render failed", "id", id, "err", err)
			summary.fail(status, id, err)
			continue
		}
		if summary.Written > 0 {
			io.WriteString(out, "\n")
		}
		io.WriteString(out, entry.Text)
		fmt.Fprintf(status, "rendered: %s (%s)\n", id, entry.Key)
		summary.Written++
	}
	fmt.Fprintf(status, "\nRender summary: %d rendered, %d failed (total: %d)\n",
		summary.Written, summary.Failed, summary.Total())
	return summary
}

func (e *Exporter) resolveAndRender(ctx context.Context, id string, cfg types.ExportConfig) (types.ExportedEntry, error) {
	ck, err := e.keys.ResolveKey(ctx, id)
	if err != nil {
		return types.ExportedEntry{}, err
	}
	return e.render(ctx, ck, cfg)
}
