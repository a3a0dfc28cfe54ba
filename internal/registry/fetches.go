// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"database/sql"

	"github.com/pdiddy/arxiv-registry/pkg/types"
)

// RecordFetch appends f to the fetch log. FetchedAt is set by the store
// when zero.
func (s *Store) RecordFetch(ctx context.Context, f types.Fetch) error {
	if f.FetchedAt.IsZero() {
		f.FetchedAt = s.now()
	}
	var digest sql.NullString
	if f.SHA256 != "" {
		digest = sql.NullString{String: f.SHA256, Valid: true}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fetches (fetched_at, kind, url, status, sha256, bytes) VALUES (?, ?, ?, ?, ?, ?)`,
		formatTime(f.FetchedAt), f.Kind, f.URL, f.Status, digest, f.Bytes,
	)
	if err != nil {
		return storageErr("writing fetch log", err)
	}
	return nil
}

// RecentFetches returns up to limit logged fetches, newest first.
func (s *Store) RecentFetches(ctx context.Context, limit int) ([]types.Fetch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fetched_at, kind, url, status, sha256, bytes FROM fetches
		 ORDER BY fetch_id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, storageErr("reading fetch log", err)
	}
	defer rows.Close()

	var fetches []types.Fetch
	for rows.Next() {
		var (
			f         types.Fetch
			fetchedAt string
			digest    sql.NullString
		)
		if err := rows.Scan(&fetchedAt, &f.Kind, &f.URL, &f.Status, &digest, &f.Bytes); err != nil {
			return nil, storageErr("reading fetch log", err)
		}
		if f.FetchedAt, err = parseTime(fetchedAt); err != nil {
			return nil, storageErr("reading fetch log", err)
		}
		f.SHA256 = digest.String
		fetches = append(fetches, f)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("reading fetch log", err)
	}
	return fetches, nil
}
