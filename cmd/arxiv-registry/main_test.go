// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/arxiv-registry/internal/arxiv"
	"github.com/pdiddy/arxiv-registry/internal/bibliography"
	"github.com/pdiddy/arxiv-registry/internal/export"
	"github.com/pdiddy/arxiv-registry/internal/registry"
)

func TestExitCode(t *testing.T) {
	storage := &registry.StorageError{Op: "writing item", Err: errors.New("disk I/O error")}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"other", errors.New("bad flag"), exitOther},
		{"not found", fmt.Errorf("item 1: %w", registry.ErrNotFound), exitNotFound},
		{"metadata incomplete", fmt.Errorf("resolving key: %w", registry.ErrMetadataIncomplete), exitMetadataIncomplete},
		{"conflict", &bibliography.ConflictError{Path: "refs.bib", Key: "ho2020denoising", ExternalID: "2006.11239"}, exitConflict},
		{"storage", fmt.Errorf("exporting: %w", storage), exitStorage},
		{"upstream", fmt.Errorf("searching arXiv: %w", arxiv.ErrUpstream), exitUpstream},
		{"batch takes most severe", (export.BatchSummary{Failed: 2, Failures: []export.Failure{
			{ExternalID: "a", Err: registry.ErrNotFound},
			{ExternalID: "b", Err: storage},
		}}).Err(), exitStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestDBPath(t *testing.T) {
	withConfig := viper.New()
	withConfig.Set("db", "/cfg/registry.sqlite3")
	withProject := viper.New()
	withProject.Set("project_dir", "/cfg/project")

	tests := []struct {
		name          string
		flagDB, flagP string
		v             *viper.Viper
		want          string
	}{
		{"db flag wins", "/flag/r.sqlite3", "/flag/project", withConfig, "/flag/r.sqlite3"},
		{"project flag", "", "/flag/project", withConfig, filepath.Join("/flag/project", "notes", registry.DefaultFile)},
		{"config db", "", "", withConfig, "/cfg/registry.sqlite3"},
		{"config project", "", "", withProject, filepath.Join("/cfg/project", "notes", registry.DefaultFile)},
		{"default", "", "", viper.New(), filepath.Join("notes", registry.DefaultFile)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dbPath(tt.flagDB, tt.flagP, tt.v))
		})
	}
}

func TestExportConfigValidation(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := exportConfig(exportCmd, v)
	require.NoError(t, err)
	assert.EqualValues(t, "latex", cfg.Escape)
	assert.Empty(t, cfg.EntryType)

	v.Set("bibtex.entry_type", "book")
	_, err = exportConfig(exportCmd, v)
	require.Error(t, err)

	v.Set("bibtex.entry_type", "article")
	v.Set("bibtex.escape", "html")
	_, err = exportConfig(exportCmd, v)
	require.Error(t, err)
}

func TestNormalizeIDs(t *testing.T) {
	ids, err := normalizeIDs([]string{"arXiv:2006.11239v2", "https://arxiv.org/abs/1803.10122"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2006.11239", "1803.10122"}, ids)

	_, err = normalizeIDs([]string{" "})
	require.Error(t, err)
}

const ddpmFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"
      xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/"
      xmlns:arxiv="http://arxiv.org/schemas/atom">
  <opensearch:totalResults>1</opensearch:totalResults>
  <entry>
    <id>http://arxiv.org/abs/2006.11239v2</id>
    <published>2020-06-19T17:24:44Z</published>
    <title>Denoising Diffusion Probabilistic Models</title>
    <summary>We present high quality image synthesis results.</summary>
    <author><name>Jonathan Ho</name></author>
    <author><name>Ajay Jain</name></author>
    <author><name>Pieter Abbeel</name></author>
    <arxiv:primary_category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
</feed>`

// resetFlags restores every flag of the command tree to its default so
// consecutive executions of rootCmd do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	resetFlags(rootCmd)
	return out.String(), err
}

func TestCLIEndToEnd(t *testing.T) {
	var requests int32
	var fail atomic.Bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, ddpmFeed)
	}))
	defer ts.Close()

	viper.Set("arxiv.api_url", ts.URL)
	viper.Set("http.max_retries", 1)
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	db := filepath.Join(dir, "notes", registry.DefaultFile)

	out, err := run(t, "init", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Registry ready: "+db)

	out, err = run(t, "search", "--db", db, "Denoising Diffusion Probabilistic Models")
	require.NoError(t, err)
	assert.Contains(t, out, "fetched from arXiv")
	assert.Contains(t, out, "2006.11239")
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))

	out, err = run(t, "search", "--db", db, "denoising  diffusion PROBABILISTIC models")
	require.NoError(t, err)
	assert.Contains(t, out, "cached")
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))

	out, err = run(t, "search", "--db", db, "--max-results", "5", "Denoising Diffusion Probabilistic Models")
	require.NoError(t, err)
	assert.Contains(t, out, "fetched from arXiv", "a different page size is a different cache entry")
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))

	_, err = run(t, "search", "--db", db, "--sort-order", "sideways", "diffusion")
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))

	out, err = run(t, "show", "--db", db, "2006.11239")
	require.NoError(t, err)
	assert.NotContains(t, out, `"citation_key"`)
	assert.Contains(t, out, `"state": "cached"`)

	out, err = run(t, "show", "--db", db, "--ensure-key", "2006.11239")
	require.NoError(t, err)
	assert.Contains(t, out, `"key": "ho2020denoising"`)
	assert.Contains(t, out, `"state": "keyed"`)

	bib := filepath.Join(dir, "paper", "refs.bib")
	out, err = run(t, "export-bibtex", "--db", db, "--out-bib", bib, "arXiv:2006.11239v2")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote:   2006.11239 (ho2020denoising)")
	data, err := os.ReadFile(bib)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "@misc{ho2020denoising,\n"))

	out, err = run(t, "export-bibtex", "--db", db, "--out-bib", bib, "--search", "Denoising Diffusion Probabilistic Models")
	require.NoError(t, err)
	assert.Contains(t, out, "skipped: 2006.11239")

	conflicting := filepath.Join(dir, "other.bib")
	handWritten := "@article{ho2020denoising,\n  eprint = {2107.00001},\n}\n"
	require.NoError(t, os.WriteFile(conflicting, []byte(handWritten), 0o644))
	_, err = run(t, "export-bibtex", "--db", db, "--out-bib", conflicting, "2006.11239")
	require.Error(t, err)
	assert.Equal(t, exitConflict, exitCode(err))
	data, err = os.ReadFile(conflicting)
	require.NoError(t, err)
	assert.Equal(t, handWritten, string(data))

	out, err = run(t, "show", "--db", db, "2006.11239")
	require.NoError(t, err)
	assert.Contains(t, out, `"key": "ho2020denoising"`)
	assert.Contains(t, out, `"state": "exported"`)

	out, err = run(t, "show", "--db", db, "--format", "csl", "2006.11239")
	require.NoError(t, err)
	assert.Contains(t, out, "id: ho2020denoising")

	_, err = run(t, "show", "--db", db, "1803.10122")
	assert.Equal(t, exitNotFound, exitCode(err))

	fail.Store(true)
	_, err = run(t, "search", "--db", db, "--force-refresh", "Denoising Diffusion Probabilistic Models")
	assert.Equal(t, exitUpstream, exitCode(err))

	out, err = run(t, "stats", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Works:         1")
	assert.Contains(t, out, "Exported keys: 1")
	assert.Contains(t, out, "Fetches:       3")
}
