// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discovery runs a search pass: it answers from the query cache
// when it can, and otherwise fetches from arXiv, upserts every returned
// work and records the search.
package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/arxiv-registry/internal/arxiv"
	"github.com/pdiddy/arxiv-registry/internal/querycache"
	"github.com/pdiddy/arxiv-registry/internal/registry"
	"github.com/pdiddy/arxiv-registry/pkg/types"
)

const defaultConcurrency = 4

// Source is the upstream bibliographic source.
type Source interface {
	Search(ctx context.Context, query string, opts arxiv.SearchOptions) (arxiv.Feed, error)
	FetchByID(ctx context.Context, ids ...string) (arxiv.Feed, error)
}

// ItemStore persists fetched metadata.
type ItemStore interface {
	UpsertItem(ctx context.Context, externalID string, incoming types.Metadata) (types.Item, error)
}

// Searches is the query cache consulted before going upstream.
type Searches interface {
	Lookup(ctx context.Context, query string, opts querycache.LookupOptions) (types.SearchRecord, error)
	Record(ctx context.Context, query string, params querycache.Params, itemIDs []string) (types.SearchRecord, error)
}

// Config tunes a Discoverer.
type Config struct {
	// Params are the paging and sort options of every search. Zero fields
	// take the querycache defaults.
	Params querycache.Params

	// Concurrency bounds parallel upserts after a fetch (default 4).
	Concurrency int
}

// Discoverer ties the query cache, the registry store and the upstream
// source together.
type Discoverer struct {
	cache  Searches
	store  ItemStore
	source Source
	cfg    Config
	log    *log.Logger
}

// New returns a Discoverer.
func New(cache Searches, store ItemStore, source Source, cfg Config, logger *log.Logger) *Discoverer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Discoverer{cache: cache, store: store, source: source, cfg: cfg, log: logger}
}

// Result is the outcome of a search pass.
type Result struct {
	Record types.SearchRecord `json:"record" yaml:"record"`

	// Fetched is true when the answer came from arXiv rather than the cache.
	Fetched bool `json:"fetched" yaml:"fetched"`

	// TotalResults is the upstream match count; zero for cached answers.
	TotalResults int `json:"total_results,omitempty" yaml:"total_results,omitempty"`
}

// Search answers query from the cache, or on a miss (or when forceRefresh
// is set) fetches it upstream, upserts every work and records the search.
// The record is written only after all upserts succeed, so an interrupted
// pass leaves no search record behind and can simply be repeated.
func (d *Discoverer) Search(ctx context.Context, query string, forceRefresh bool) (Result, error) {
	params := d.cfg.Params.Normalized()
	rec, err := d.cache.Lookup(ctx, query, querycache.LookupOptions{ForceRefresh: forceRefresh, Params: params})
	if err == nil {
		return Result{Record: rec}, nil
	}
	if !errors.Is(err, registry.ErrCacheMiss) {
		return Result{}, err
	}

	d.log.Info("fetching from arXiv", "query", query, "reason", err)
	feed, err := d.source.Search(ctx, query, arxiv.SearchOptions{
		Start:      params.Start,
		MaxResults: params.MaxResults,
		SortBy:     params.SortBy,
		SortOrder:  params.SortOrder,
	})
	if err != nil {
		return Result{}, fmt.Errorf("searching arXiv: %w", err)
	}

	ids, err := d.upsert(ctx, feed.Entries)
	if err != nil {
		return Result{}, err
	}
	rec, err = d.cache.Record(ctx, query, params, ids)
	if err != nil {
		return Result{}, err
	}
	return Result{Record: rec, Fetched: true, TotalResults: feed.TotalResults}, nil
}

// Fetch retrieves the given works by id and upserts them. It returns the
// external ids stored, in response order. Ids arXiv does not know are
// reported as registry.ErrNotFound.
func (d *Discoverer) Fetch(ctx context.Context, ids ...string) ([]string, error) {
	feed, err := d.source.FetchByID(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("fetching from arXiv: %w", err)
	}
	if len(feed.Entries) == 0 {
		return nil, fmt.Errorf("arXiv has no record of %v: %w", ids, registry.ErrNotFound)
	}
	return d.upsert(ctx, feed.Entries)
}

// upsert stores entries with bounded parallelism and returns their ids in
// feed order. Duplicate ids within one feed are upserted once.
func (d *Discoverer) upsert(ctx context.Context, entries []arxiv.Entry) ([]string, error) {
	ids := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for _, e := range entries {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		ids = append(ids, e.ID)

		g.Go(func() error {
			if _, err := d.store.UpsertItem(gctx, e.ID, e.Metadata); err != nil {
				return fmt.Errorf("storing %s: %w", e.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	d.log.Debug("works stored", "count", len(ids))
	return ids, nil
}
