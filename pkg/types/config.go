// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for calls to the upstream source.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "arxiv-registry/0.1 (mailto:someone@example.org)").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries is the number of retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// RegistryConfig locates the registry database.
type RegistryConfig struct {
	// Path is the SQLite file backing the registry.
	Path string `json:"path" yaml:"path"`
}

// SearchConfig holds settings for discovery searches.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the maximum number of results requested upstream (default 25).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// Start is the offset of the first result requested upstream.
	Start int `json:"start" yaml:"start"`

	// SortBy is relevance, lastUpdatedDate or submittedDate; SortOrder is
	// ascending or descending. Together with MaxResults and Start they are
	// part of the cache key of a search.
	SortBy    string `json:"sort_by" yaml:"sort_by"`
	SortOrder string `json:"sort_order" yaml:"sort_order"`

	// TTL is attached to newly recorded searches. Zero means the record
	// never expires and only a forced refresh replaces it.
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// Concurrency bounds parallel item upserts after a fetch (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// EntryType is a BibTeX entry type.
type EntryType string

const (
	EntryArticle       EntryType = "article"
	EntryInProceedings EntryType = "inproceedings"
	EntryMisc          EntryType = "misc"
)

// EscapeMode selects how title, author and venue text is escaped.
type EscapeMode string

const (
	// EscapeLaTeX escapes characters that are special to LaTeX.
	EscapeLaTeX EscapeMode = "latex"

	// EscapeNone writes text verbatim.
	EscapeNone EscapeMode = "none"
)

// FieldSet lists the BibTeX fields rendered for one entry type. Required
// fields must be present; optional fields are written when available.
type FieldSet struct {
	Required []string `json:"required" yaml:"required"`
	Optional []string `json:"optional" yaml:"optional"`
}

// ExportConfig controls how entries are rendered.
type ExportConfig struct {
	// EntryType forces the entry type. Empty infers it from the metadata.
	EntryType EntryType `json:"entry_type,omitempty" yaml:"entry_type,omitempty"`

	// Escape selects the escaping rules (default latex).
	Escape EscapeMode `json:"escape" yaml:"escape"`

	// Fields overrides the field set per entry type. Entry types missing
	// from the map use the defaults.
	Fields map[EntryType]FieldSet `json:"fields,omitempty" yaml:"fields,omitempty"`
}
