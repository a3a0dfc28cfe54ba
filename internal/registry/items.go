// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pdiddy/arxiv-registry/pkg/types"
)

const selectItem = `SELECT external_id, metadata_json, retrieved_at, created_at FROM items WHERE external_id = ?`

// UpsertItem merges incoming into the stored metadata for externalID, or
// creates the item on first sighting. Reported fields overwrite, absent
// fields are preserved, so repeating the call with the same input is safe.
func (s *Store) UpsertItem(ctx context.Context, externalID string, incoming types.Metadata) (types.Item, error) {
	if externalID == "" {
		return types.Item{}, fmt.Errorf("upserting item: empty external id")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Item{}, storageErr("beginning upsert", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	item, err := scanItem(tx.QueryRowContext(ctx, selectItem, externalID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		item = types.Item{ExternalID: externalID, CreatedAt: now}
	case err != nil:
		return types.Item{}, storageErr("reading item", err)
	}

	item.Metadata = item.Metadata.Merge(incoming)
	item.RetrievedAt = now

	data, err := json.Marshal(item.Metadata)
	if err != nil {
		return types.Item{}, fmt.Errorf("encoding metadata for %s: %w", externalID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (external_id, metadata_json, retrieved_at, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(external_id) DO UPDATE SET
			metadata_json=excluded.metadata_json, retrieved_at=excluded.retrieved_at`,
		externalID, string(data), formatTime(item.RetrievedAt), formatTime(item.CreatedAt),
	)
	if err != nil {
		return types.Item{}, storageErr("writing item", err)
	}

	if err := tx.Commit(); err != nil {
		return types.Item{}, storageErr("committing upsert", err)
	}

	s.log.Debug("item upserted", "id", externalID)
	return item, nil
}

// GetItem returns the stored item for externalID.
func (s *Store) GetItem(ctx context.Context, externalID string) (types.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, selectItem, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Item{}, fmt.Errorf("item %s: %w", externalID, ErrNotFound)
	}
	if err != nil {
		return types.Item{}, storageErr("reading item", err)
	}
	return item, nil
}

func scanItem(row rowScanner) (types.Item, error) {
	var (
		item                   types.Item
		metaJSON               string
		retrievedAt, createdAt string
	)
	if err := row.Scan(&item.ExternalID, &metaJSON, &retrievedAt, &createdAt); err != nil {
		return types.Item{}, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &item.Metadata); err != nil {
		return types.Item{}, fmt.Errorf("decoding metadata for %s: %w", item.ExternalID, err)
	}
	var err error
	if item.RetrievedAt, err = parseTime(retrievedAt); err != nil {
		return types.Item{}, err
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return types.Item{}, err
	}
	return item, nil
}
