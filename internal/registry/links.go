// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"fmt"
)

// LinkIdentities records that two works refer to the same publication
// (e.g. a preprint and its journal version). Links are informational: both
// items and their citation keys stay as they are.
func (s *Store) LinkIdentities(ctx context.Context, a, b, note string) error {
	if a == b {
		return fmt.Errorf("linking %s: cannot link a work to itself", a)
	}
	for _, id := range []string{a, b} {
		if _, err := s.GetItem(ctx, id); err != nil {
			return err
		}
	}
	if b < a {
		a, b = b, a
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identity_links (external_id, linked_id, note, linked_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(external_id, linked_id) DO NOTHING`,
		a, b, note, formatTime(s.now()),
	)
	if err != nil {
		return storageErr("writing identity link", err)
	}
	return nil
}

// Links returns the ids explicitly linked to externalID, sorted.
func (s *Store) Links(ctx context.Context, externalID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT linked_id FROM identity_links WHERE external_id = ?
		 UNION
		 SELECT external_id FROM identity_links WHERE linked_id = ?
		 ORDER BY 1`,
		externalID, externalID,
	)
	if err != nil {
		return nil, storageErr("reading identity links", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("reading identity links", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("reading identity links", err)
	}
	return ids, nil
}
