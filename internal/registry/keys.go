// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pdiddy/arxiv-registry/pkg/types"
)

// CandidateFunc returns the n-th candidate citation key for item. Candidate
// 0 is the base key; later candidates are tried in order when earlier ones
// belong to other works. An error aborts assignment without writing.
type CandidateFunc func(item types.Item, n int) (string, error)

// maxCandidates bounds the collision search for a single base key.
const maxCandidates = 10000

const selectKey = `SELECT external_id, citation_key, base_key, assigned_at, exported_at FROM keys`

// AssignOrGetKey returns the key already bound to externalID, or binds the
// first unused candidate produced by candidate. Assignment happens in one
// write transaction, so concurrent callers can never bind the same key
// twice, and a bound key is never replaced.
func (s *Store) AssignOrGetKey(ctx context.Context, externalID string, candidate CandidateFunc) (types.CitationKey, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.CitationKey{}, storageErr("beginning key assignment", err)
	}
	defer tx.Rollback()

	existing, err := scanKey(tx.QueryRowContext(ctx, selectKey+` WHERE external_id = ?`, externalID))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.CitationKey{}, storageErr("reading key", err)
	}

	item, err := scanItem(tx.QueryRowContext(ctx, selectItem, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.CitationKey{}, fmt.Errorf("item %s: %w", externalID, ErrNotFound)
	}
	if err != nil {
		return types.CitationKey{}, storageErr("reading item", err)
	}

	base, err := candidate(item, 0)
	if err != nil {
		return types.CitationKey{}, err
	}

	for n := 0; n < maxCandidates; n++ {
		key := base
		if n > 0 {
			if key, err = candidate(item, n); err != nil {
				return types.CitationKey{}, err
			}
		}

		var owner string
		err := tx.QueryRowContext(ctx, `SELECT external_id FROM keys WHERE citation_key = ?`, key).Scan(&owner)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return types.CitationKey{}, storageErr("checking key", err)
		}

		ck := types.CitationKey{
			ExternalID: externalID,
			Key:        key,
			BaseKey:    base,
			AssignedAt: s.now().UTC(),
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO keys (external_id, citation_key, base_key, assigned_at) VALUES (?, ?, ?, ?)`,
			ck.ExternalID, ck.Key, ck.BaseKey, formatTime(ck.AssignedAt),
		)
		if err != nil {
			return types.CitationKey{}, storageErr("writing key", err)
		}
		if err := tx.Commit(); err != nil {
			return types.CitationKey{}, storageErr("committing key", err)
		}

		s.log.Debug("citation key assigned", "id", externalID, "key", key)
		return ck, nil
	}

	return types.CitationKey{}, fmt.Errorf("no free citation key for %s after %d candidates of %q", externalID, maxCandidates, base)
}

// GetExportedKey returns the key bound to externalID without assigning one.
func (s *Store) GetExportedKey(ctx context.Context, externalID string) (types.CitationKey, error) {
	ck, err := scanKey(s.db.QueryRowContext(ctx, selectKey+` WHERE external_id = ?`, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.CitationKey{}, fmt.Errorf("citation key for %s: %w", externalID, ErrNotFound)
	}
	if err != nil {
		return types.CitationKey{}, storageErr("reading key", err)
	}
	return ck, nil
}

// MarkExported records the first successful export of externalID. Later
// calls keep the original timestamp.
func (s *Store) MarkExported(ctx context.Context, externalID string) (types.CitationKey, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE keys SET exported_at = COALESCE(exported_at, ?) WHERE external_id = ?`,
		formatTime(s.now()), externalID,
	)
	if err != nil {
		return types.CitationKey{}, storageErr("marking export", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.CitationKey{}, storageErr("marking export", err)
	}
	if n == 0 {
		return types.CitationKey{}, fmt.Errorf("citation key for %s: %w", externalID, ErrNotFound)
	}

	ck, err := scanKey(s.db.QueryRowContext(ctx, selectKey+` WHERE external_id = ?`, externalID))
	if err != nil {
		return types.CitationKey{}, storageErr("reading key", err)
	}
	return ck, nil
}

// Lifecycle reports how far externalID has progressed: unseen, cached,
// keyed or exported.
func (s *Store) Lifecycle(ctx context.Context, externalID string) (types.LifecycleState, error) {
	if _, err := s.GetItem(ctx, externalID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.StateUnseen, nil
		}
		return "", err
	}
	ck, err := s.GetExportedKey(ctx, externalID)
	switch {
	case errors.Is(err, ErrNotFound):
		return types.StateCached, nil
	case err != nil:
		return "", err
	case ck.ExportedAt == nil:
		return types.StateKeyed, nil
	default:
		return types.StateExported, nil
	}
}

func scanKey(row rowScanner) (types.CitationKey, error) {
	var (
		ck         types.CitationKey
		assignedAt string
		exportedAt sql.NullString
	)
	if err := row.Scan(&ck.ExternalID, &ck.Key, &ck.BaseKey, &assignedAt, &exportedAt); err != nil {
		return types.CitationKey{}, err
	}
	var err error
	if ck.AssignedAt, err = parseTime(assignedAt); err != nil {
		return types.CitationKey{}, err
	}
	if exportedAt.Valid {
		t, err := parseTime(exportedAt.String)
		if err != nil {
			return types.CitationKey{}, err
		}
		ck.ExportedAt = &t
	}
	return ck, nil
}
