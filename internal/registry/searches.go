// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/arxiv-registry/pkg/types"
)

// RecordSearch stores itemIDs as the current result of canonicalQuery,
// superseding any earlier record, and appends a run to the search history.
// The record is written in one transaction: a cancelled or failed call
// leaves either the full id list or nothing.
func (s *Store) RecordSearch(ctx context.Context, canonicalQuery string, itemIDs []string, ttl time.Duration) (types.SearchRecord, error) {
	if strings.TrimSpace(canonicalQuery) == "" {
		return types.SearchRecord{}, fmt.Errorf("recording search: empty query")
	}

	rec := types.SearchRecord{
		CanonicalQuery: canonicalQuery,
		ItemIDs:        orderedSet(itemIDs),
		CreatedAt:      s.now().UTC(),
		TTL:            ttl,
	}
	idsJSON, err := json.Marshal(rec.ItemIDs)
	if err != nil {
		return types.SearchRecord{}, fmt.Errorf("encoding item ids: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.SearchRecord{}, storageErr("beginning search record", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO searches (canonical_query, item_ids, created_at, ttl_ms)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(canonical_query) DO UPDATE SET
			item_ids=excluded.item_ids, created_at=excluded.created_at, ttl_ms=excluded.ttl_ms`,
		rec.CanonicalQuery, string(idsJSON), formatTime(rec.CreatedAt), ttl.Milliseconds(),
	)
	if err != nil {
		return types.SearchRecord{}, storageErr("writing search", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO search_runs (run_id, canonical_query, item_count, ttl_ms, requested_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), rec.CanonicalQuery, len(rec.ItemIDs), ttl.Milliseconds(), formatTime(rec.CreatedAt),
	)
	if err != nil {
		return types.SearchRecord{}, storageErr("writing search run", err)
	}

	if err := tx.Commit(); err != nil {
		return types.SearchRecord{}, storageErr("committing search record", err)
	}

	s.log.Debug("search recorded", "query", canonicalQuery, "items", len(rec.ItemIDs))
	return rec, nil
}

// FindCachedSearch returns the live record for canonicalQuery. It returns
// ErrCacheMiss when no record exists or the record is past its TTL.
func (s *Store) FindCachedSearch(ctx context.Context, canonicalQuery string) (types.SearchRecord, error) {
	var (
		rec       types.SearchRecord
		idsJSON   string
		createdAt string
		ttlMillis int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT canonical_query, item_ids, created_at, ttl_ms FROM searches WHERE canonical_query = ?`,
		canonicalQuery,
	).Scan(&rec.CanonicalQuery, &idsJSON, &createdAt, &ttlMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return types.SearchRecord{}, ErrCacheMiss
	}
	if err != nil {
		return types.SearchRecord{}, storageErr("reading search", err)
	}

	if err := json.Unmarshal([]byte(idsJSON), &rec.ItemIDs); err != nil {
		return types.SearchRecord{}, storageErr("decoding search", err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return types.SearchRecord{}, storageErr("decoding search", err)
	}
	rec.TTL = time.Duration(ttlMillis) * time.Millisecond

	if rec.Expired(s.now()) {
		return types.SearchRecord{}, fmt.Errorf("search %q recorded %s: %w",
			canonicalQuery, rec.CreatedAt.Format(time.RFC3339), ErrCacheMiss)
	}
	return rec, nil
}

// orderedSet drops empty and repeated ids, keeping first occurrences.
func orderedSet(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
