// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/arxiv-registry/internal/bibliography"
	"github.com/pdiddy/arxiv-registry/internal/citekey"
	"github.com/pdiddy/arxiv-registry/internal/registry"
	"github.com/pdiddy/arxiv-registry/pkg/types"
)

func setup(t *testing.T) (*Exporter, *registry.Store, string) {
	t.Helper()
	dir := t.TempDir()
	logger := log.New(io.Discard)
	s, err := registry.Open(filepath.Join(dir, "notes", registry.DefaultFile), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	_, err = s.Init(context.Background())
	require.NoError(t, err)

	return New(s, citekey.NewResolver(s, logger), logger), s, filepath.Join(dir, "paper", "refs.bib")
}

func seed(t *testing.T, s *registry.Store) {
	t.Helper()
	ctx := context.Background()
	_, err := s.UpsertItem(ctx, "2006.11239", types.Metadata{
		Title:    types.Ptr("Denoising Diffusion Probabilistic Models"),
		Authors:  []string{"Jonathan Ho", "Ajay Jain", "Pieter Abbeel"},
		Year:     types.Ptr(2020),
		Category: types.Ptr("cs.LG"),
	})
	require.NoError(t, err)
	_, err = s.UpsertItem(ctx, "1803.10122", types.Metadata{
		Title:   types.Ptr("World Models"),
		Authors: []string{"David Ha", "Jürgen Schmidhuber"},
		Year:    types.Ptr(2018),
	})
	require.NoError(t, err)
	_, err = s.UpsertItem(ctx, "2101.00001", types.Metadata{
		Title: types.Ptr("Anonymous Work"),
		Year:  types.Ptr(2021),
	})
	require.NoError(t, err)
}

func TestExportNeverAssignsKey(t *testing.T) {
	ctx := context.Background()
	e, s, _ := setup(t)
	seed(t, s)

	_, err := e.Export(ctx, "2006.11239", types.ExportConfig{})
	require.ErrorIs(t, err, registry.ErrNotFound)

	state, err := s.Lifecycle(ctx, "2006.11239")
	require.NoError(t, err)
	assert.Equal(t, types.StateCached, state)
}

func TestExportToWritesAndSkips(t *testing.T) {
	ctx := context.Background()
	e, s, bib := setup(t)
	seed(t, s)

	res, err := e.ExportTo(ctx, "2006.11239", bib, types.ExportConfig{})
	require.NoError(t, err)
	assert.Equal(t, bibliography.Appended, res.Merge)
	assert.Equal(t, "ho2020denoising", res.Key.Key)
	require.NotNil(t, res.Key.ExportedAt)

	data, err := os.ReadFile(bib)
	require.NoError(t, err)
	assert.Equal(t, res.Entry.Text, string(data))

	state, err := s.Lifecycle(ctx, "2006.11239")
	require.NoError(t, err)
	assert.Equal(t, types.StateExported, state)

	res, err = e.ExportTo(ctx, "2006.11239", bib, types.ExportConfig{})
	require.NoError(t, err)
	assert.Equal(t, bibliography.Skipped, res.Merge)

	again, err := os.ReadFile(bib)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	rendered, err := e.Export(ctx, "2006.11239", types.ExportConfig{})
	require.NoError(t, err)
	assert.Equal(t, string(data), rendered.Text)
}

func TestExportUsesCurrentMetadataAndKeptKey(t *testing.T) {
	ctx := context.Background()
	e, s, bib := setup(t)
	seed(t, s)

	_, err := e.ExportTo(ctx, "1803.10122", bib, types.ExportConfig{})
	require.NoError(t, err)

	_, err = s.UpsertItem(ctx, "1803.10122", types.Metadata{
		Title: types.Ptr("Recurrent World Models Facilitate Policy Evolution"),
		Venue: types.Ptr("Advances in Neural Information Processing Systems 31 (NeurIPS 2018)"),
	})
	require.NoError(t, err)

	entry, err := e.Export(ctx, "1803.10122", types.ExportConfig{})
	require.NoError(t, err)
	assert.Equal(t, "ha2018world", entry.Key)
	assert.Equal(t, types.EntryInProceedings, entry.EntryType)
	assert.Contains(t, entry.Text, "title = {Recurrent World Models Facilitate Policy Evolution}")
	assert.Contains(t, entry.Text, "author = {David Ha and Jürgen Schmidhuber}")
}

func TestExportToConflictLeavesFileUnchanged(t *testing.T) {
	ctx := context.Background()
	e, s, bib := setup(t)
	seed(t, s)

	existing := "@misc{ho2020denoising,\n  eprint = {2105.05233}\n}\n"
	require.NoError(t, os.MkdirAll(filepath.Dir(bib), 0o755))
	require.NoError(t, os.WriteFile(bib, []byte(existing), 0o644))

	_, err := e.ExportTo(ctx, "2006.11239", bib, types.ExportConfig{})
	require.ErrorIs(t, err, registry.ErrConflict)

	data, err := os.ReadFile(bib)
	require.NoError(t, err)
	assert.Equal(t, existing, string(data))

	state, err := s.Lifecycle(ctx, "2006.11239")
	require.NoError(t, err)
	assert.Equal(t, types.StateKeyed, state)
}

func TestExportBatchContinuesAfterFailures(t *testing.T) {
	ctx := context.Background()
	e, s, bib := setup(t)
	seed(t, s)

	_, err := e.ExportTo(ctx, "1803.10122", bib, types.ExportConfig{})
	require.NoError(t, err)

	var out bytes.Buffer
	ids := []string{"2006.11239", "2101.00001", "9999.99999", "1803.10122"}
	summary := e.ExportBatch(ctx, ids, bib, types.ExportConfig{}, &out)

	assert.Equal(t, 1, summary.Written)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 4, summary.Total())
	assert.True(t, summary.HasFailures())

	require.Len(t, summary.Failures, 2)
	assert.Equal(t, "2101.00001", summary.Failures[0].ExternalID)
	assert.ErrorIs(t, summary.Failures[0].Err, registry.ErrMetadataIncomplete)
	assert.Equal(t, "9999.99999", summary.Failures[1].ExternalID)
	assert.ErrorIs(t, summary.Failures[1].Err, registry.ErrNotFound)

	text := out.String()
	assert.Contains(t, text, "wrote:   2006.11239 (ho2020denoising)\n")
	assert.Contains(t, text, "failed:  2101.00001")
	assert.Contains(t, text, "skipped: 1803.10122 (ha2018world already in ")
	assert.Contains(t, text, "Export summary: 1 written, 1 skipped, 2 failed (total: 4)")

	data, err := os.ReadFile(bib)
	require.NoError(t, err)
	assert.Len(t, bibliography.Scan(string(data)), 2)
}

func TestExportBatchCancelled(t *testing.T) {
	e, s, bib := setup(t)
	seed(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	summary := e.ExportBatch(ctx, []string{"2006.11239", "1803.10122"}, bib, types.ExportConfig{}, &out)
	assert.Equal(t, 2, summary.Failed)
	assert.Zero(t, summary.Written)
	assert.NoFileExists(t, bib)
}

func TestBatchSummaryErr(t *testing.T) {
	ctx := context.Background()
	e, s, bib := setup(t)
	seed(t, s)

	ok := e.ExportBatch(ctx, []string{"2006.11239"}, bib, types.ExportConfig{}, io.Discard)
	require.NoError(t, ok.Err())

	bad := e.ExportBatch(ctx, []string{"2101.00001", "9999.99999"}, bib, types.ExportConfig{}, io.Discard)
	err := bad.Err()
	require.Error(t, err)
	assert.Equal(t, "2 of 2 work(s) failed export", err.Error())
	assert.ErrorIs(t, err, registry.ErrMetadataIncomplete)
	assert.ErrorIs(t, err, registry.ErrNotFound)

	var be *BatchError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 2, be.Summary.Failed)
}

func TestRenderBatchPrintsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	e, s, bib := setup(t)
	seed(t, s)

	var out, status bytes.Buffer
	summary := e.RenderBatch(ctx, []string{"2006.11239", "2101.00001", "1803.10122"}, types.ExportConfig{}, &out, &status)
	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, 1, summary.Failed)

	entries := bibliography.Scan(out.String())
	require.Len(t, entries, 2)
	assert.Equal(t, "ho2020denoising", entries[0].Key)
	assert.Equal(t, "ha2018world", entries[1].Key)
	assert.Contains(t, out.String(), "}\n\n@misc{ha2018world,")

	assert.Contains(t, status.String(), "rendered: 2006.11239 (ho2020denoising)\n")
	assert.Contains(t, status.String(), "failed:  2101.00001")
	assert.Contains(t, status.String(), "Render summary: 2 rendered, 1 failed (total: 3)")
	assert.NoFileExists(t, bib)

	state, err := s.Lifecycle(ctx, "2006.11239")
	require.NoError(t, err)
	assert.Equal(t, types.StateKeyed, state)
}
