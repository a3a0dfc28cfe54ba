// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package querycache decides whether a discovery query can be answered from
// the registry. It canonicalizes queries and reports hits or misses; on a
// miss it never calls the upstream source itself, leaving the fetch and the
// follow-up Record to the caller.
package querycache

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	gocache "github.com/patrickmn/go-cache"

	"github.com/pdiddy/arxiv-registry/internal/registry"
	"github.com/pdiddy/arxiv-registry/pkg/types"
)

const memoCleanupInterval = 10 * time.Minute

// SearchStore is the part of the registry store the manager needs.
type SearchStore interface {
	FindCachedSearch(ctx context.Context, canonicalQuery string) (types.SearchRecord, error)
	RecordSearch(ctx context.Context, canonicalQuery string, itemIDs []string, ttl time.Duration) (types.SearchRecord, error)
}

// Options configures a Manager.
type Options struct {
	// TTL is attached to searches recorded through the manager. Zero (the
	// default) records non-expiring searches.
	TTL time.Duration

	Logger *log.Logger
}

// LookupOptions modifies a single lookup.
type LookupOptions struct {
	// ForceRefresh reports a miss regardless of any live record.
	ForceRefresh bool

	// Params are the paging and sort options the answer must have been
	// fetched with.
	Params Params
}

// Manager answers lookups from an in-process memo backed by the store.
type Manager struct {
	store SearchStore
	ttl   time.Duration
	memo  *gocache.Cache
	log   *log.Logger
	now   func() time.Time
}

// New returns a Manager over store.
func New(store SearchStore, opts Options) *Manager {
	return &Manager{
		store: store,
		ttl:   opts.TTL,
		memo:  gocache.New(gocache.NoExpiration, memoCleanupInterval),
		log:   opts.Logger,
		now:   time.Now,
	}
}

// Lookup returns the live search record for query under opts.Params. It
// returns an error wrapping registry.ErrCacheMiss when nothing live is
// cached or when opts.ForceRefresh is set.
func (m *Manager) Lookup(ctx context.Context, query string, opts LookupOptions) (types.SearchRecord, error) {
	key, err := cacheKey(query, opts.Params)
	if err != nil {
		return types.SearchRecord{}, err
	}

	if opts.ForceRefresh {
		m.memo.Delete(key)
		m.log.Debug("forced refresh", "query", key)
		return types.SearchRecord{}, fmt.Errorf("forced refresh of %q: %w", key, registry.ErrCacheMiss)
	}

	if v, ok := m.memo.Get(key); ok {
		if rec, ok := v.(types.SearchRecord); ok && !rec.Expired(m.now()) {
			m.log.Debug("memo hit", "query", key)
			return cloneRecord(rec), nil
		}
		m.memo.Delete(key)
	}

	rec, err := m.store.FindCachedSearch(ctx, key)
	if err != nil {
		return types.SearchRecord{}, err
	}
	m.remember(rec)
	m.log.Debug("cache hit", "query", key, "items", len(rec.ItemIDs))
	return cloneRecord(rec), nil
}

// Record stores itemIDs as the result of query under params, with the
// manager's TTL.
func (m *Manager) Record(ctx context.Context, query string, params Params, itemIDs []string) (types.SearchRecord, error) {
	key, err := cacheKey(query, params)
	if err != nil {
		return types.SearchRecord{}, err
	}
	rec, err := m.store.RecordSearch(ctx, key, itemIDs, m.ttl)
	if err != nil {
		m.memo.Delete(key)
		return types.SearchRecord{}, err
	}
	m.remember(rec)
	return cloneRecord(rec), nil
}

// Invalidate drops any memoized answer for query. The stored record stays
// and is superseded by the next Record.
func (m *Manager) Invalidate(query string, params Params) {
	m.memo.Delete(params.Key(query))
}

func cacheKey(query string, params Params) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}
	key := params.Key(query)
	if key == "" {
		return "", fmt.Errorf("query is empty")
	}
	return key, nil
}

func (m *Manager) remember(rec types.SearchRecord) {
	ttl := gocache.NoExpiration
	if rec.TTL > 0 {
		ttl = rec.CreatedAt.Add(rec.TTL).Sub(m.now())
		if ttl <= 0 {
			return
		}
	}
	m.memo.Set(rec.CanonicalQuery, cloneRecord(rec), ttl)
}

func cloneRecord(rec types.SearchRecord) types.SearchRecord {
	rec.ItemIDs = slices.Clone(rec.ItemIDs)
	return rec
}
