// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/arxiv-registry/internal/arxiv"
	"github.com/pdiddy/arxiv-registry/internal/querycache"
	"github.com/pdiddy/arxiv-registry/internal/registry"
	"github.com/pdiddy/arxiv-registry/internal/secrets"
	"github.com/pdiddy/arxiv-registry/pkg/types"
)

// dbPath picks the registry file: --db, then --project-dir, then the db
// and project_dir config keys, then ./notes/arxiv-registry.sqlite3.
func dbPath(flagDB, flagProject string, v *viper.Viper) string {
	switch {
	case flagDB != "":
		return flagDB
	case flagProject != "":
		return filepath.Join(flagProject, "notes", registry.DefaultFile)
	case v.GetString("db") != "":
		return v.GetString("db")
	case v.GetString("project_dir") != "":
		return filepath.Join(v.GetString("project_dir"), "notes", registry.DefaultFile)
	}
	return filepath.Join("notes", registry.DefaultFile)
}

// openRegistry opens the registry selected by the command's flags and
// brings its schema up to date. Migrations are additive, so every command
// can run them.
func openRegistry(ctx context.Context, cmd *cobra.Command) (*registry.Store, string, error) {
	flagDB, _ := cmd.Flags().GetString("db")
	flagProject, _ := cmd.Flags().GetString("project-dir")
	path := dbPath(flagDB, flagProject, viper.GetViper())

	store, err := registry.Open(path, logger)
	if err != nil {
		return nil, path, err
	}
	if _, err := store.Init(ctx); err != nil {
		store.Close()
		return nil, path, err
	}
	return store, path, nil
}

func httpConfig(v *viper.Viper) types.HTTPConfig {
	ua := v.GetString("http.user_agent")
	if ua == "" {
		ua = secrets.UserAgent("arxiv-registry/"+version, loadedSecrets)
	}
	return types.HTTPConfig{
		Timeout:    v.GetDuration("http.timeout"),
		UserAgent:  ua,
		MaxRetries: v.GetInt("http.max_retries"),
	}
}

// searchConfig merges the search flags of cmd over the config file.
func searchConfig(cmd *cobra.Command, v *viper.Viper) types.SearchConfig {
	cfg := types.SearchConfig{
		HTTPConfig:  httpConfig(v),
		MaxResults:  v.GetInt("search.max_results"),
		SortBy:      v.GetString("search.sort_by"),
		SortOrder:   v.GetString("search.sort_order"),
		TTL:         v.GetDuration("search.ttl"),
		Concurrency: v.GetInt("search.concurrency"),
	}
	if cmd.Flags().Changed("max-results") {
		cfg.MaxResults, _ = cmd.Flags().GetInt("max-results")
	}
	if cmd.Flags().Changed("start") {
		cfg.Start, _ = cmd.Flags().GetInt("start")
	}
	if cmd.Flags().Changed("sort-by") {
		cfg.SortBy, _ = cmd.Flags().GetString("sort-by")
	}
	if cmd.Flags().Changed("sort-order") {
		cfg.SortOrder, _ = cmd.Flags().GetString("sort-order")
	}
	if cmd.Flags().Changed("ttl") {
		cfg.TTL, _ = cmd.Flags().GetDuration("ttl")
	}
	return cfg
}

// addSearchParamFlags registers the paging and sort flags shared by the
// commands that search or look up cached searches.
func addSearchParamFlags(fs *pflag.FlagSet) {
	fs.Int("max-results", 0, "maximum number of results requested from arXiv (default 25)")
	fs.Int("start", 0, "offset of the first result requested from arXiv")
	fs.String("sort-by", "", "relevance, lastUpdatedDate or submittedDate (default relevance)")
	fs.String("sort-order", "", "ascending or descending (default descending)")
}

// searchParams returns the cache-relevant options of cfg.
func searchParams(cfg types.SearchConfig) querycache.Params {
	return querycache.Params{
		Start:      cfg.Start,
		MaxResults: cfg.MaxResults,
		SortBy:     cfg.SortBy,
		SortOrder:  cfg.SortOrder,
	}
}

func newArxivClient(cfg types.HTTPConfig, v *viper.Viper, fetchLog arxiv.FetchRecorder) *arxiv.Client {
	c := arxiv.NewClient(cfg, logger)
	c.BaseURL = v.GetString("arxiv.api_url")
	c.Recorder = fetchLog
	return c
}

// exportConfig merges the bibtex flags of cmd over the config file.
func exportConfig(cmd *cobra.Command, v *viper.Viper) (types.ExportConfig, error) {
	cfg := types.ExportConfig{
		EntryType: types.EntryType(v.GetString("bibtex.entry_type")),
		Escape:    types.EscapeMode(v.GetString("bibtex.escape")),
	}
	if cmd.Flags().Changed("entry-type") {
		s, _ := cmd.Flags().GetString("entry-type")
		cfg.EntryType = types.EntryType(s)
	}
	if cmd.Flags().Changed("escape") {
		s, _ := cmd.Flags().GetString("escape")
		cfg.Escape = types.EscapeMode(s)
	}

	switch cfg.EntryType {
	case "", types.EntryArticle, types.EntryInProceedings, types.EntryMisc:
	default:
		return cfg, fmt.Errorf("unknown entry type %q (want article, inproceedings or misc)", cfg.EntryType)
	}
	switch cfg.Escape {
	case "", types.EscapeLaTeX, types.EscapeNone:
	default:
		return cfg, fmt.Errorf("unknown escape mode %q (want latex or none)", cfg.Escape)
	}
	return cfg, nil
}

// normalizeIDs maps CLI-provided ids (versioned, prefixed or URLs) to
// registry external ids.
func normalizeIDs(args []string) ([]string, error) {
	ids := make([]string, 0, len(args))
	for _, a := range args {
		base, _ := arxiv.NormalizeID(a)
		if base == "" {
			return nil, fmt.Errorf("invalid arXiv id %q", a)
		}
		ids = append(ids, base)
	}
	return ids, nil
}
