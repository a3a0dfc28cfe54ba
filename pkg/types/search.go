// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SearchRecord is a cached discovery query: the canonical query string and
// the ordered identifiers it returned. A record is never edited; a newer
// record for the same canonical query supersedes it.
type SearchRecord struct {
	CanonicalQuery string    `json:"canonical_query" yaml:"canonical_query"`
	ItemIDs        []string  `json:"item_ids" yaml:"item_ids"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`

	// TTL bounds how long the record answers lookups. Zero never expires.
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// Expired reports whether the record is past its TTL at now.
func (r SearchRecord) Expired(now time.Time) bool {
	return r.TTL > 0 && now.Sub(r.CreatedAt) > r.TTL
}

// Fetch is one audited upstream request: what was asked for, the HTTP
// status, and a digest of the body that came back.
type Fetch struct {
	Kind      string    `json:"kind" yaml:"kind"`
	URL       string    `json:"url" yaml:"url"`
	Status    int       `json:"status" yaml:"status"`
	SHA256    string    `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	Bytes     int       `json:"bytes" yaml:"bytes"`
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// CitationKey binds an external identifier to its citation key. Once
// assigned, Key never changes.
type CitationKey struct {
	ExternalID string `json:"external_id" yaml:"external_id"`
	Key        string `json:"key" yaml:"key"`

	// BaseKey is the derived candidate before any collision suffix.
	BaseKey    string    `json:"base_key" yaml:"base_key"`
	AssignedAt time.Time `json:"assigned_at" yaml:"assigned_at"`

	// ExportedAt is set on the first successful export.
	ExportedAt *time.Time `json:"exported_at,omitempty" yaml:"exported_at,omitempty"`
}

// ExportedEntry is a rendered bibliography entry. It is always reproducible
// from the Item and its CitationKey and is never stored.
type ExportedEntry struct {
	ExternalID string    `json:"external_id" yaml:"external_id"`
	Key        string    `json:"key" yaml:"key"`
	EntryType  EntryType `json:"entry_type" yaml:"entry_type"`
	Text       string    `json:"text" yaml:"text"`
}
