// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data structures of the arXiv registry:
// work metadata and its merge rule, cached searches, citation keys, and
// rendered bibliography entries.
package types

import (
	"maps"
	"time"
)

// Metadata holds the fields the upstream source reports for a work. Every
// field is optional: a nil pointer (or nil slice/map) means "not reported"
// and is preserved by Merge. Fields the registry does not model go into
// Extras.
type Metadata struct {
	// Title is the work title.
	Title *string `json:"title,omitempty" yaml:"title,omitempty"`

	// Authors lists author names in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Year is the publication or preprint year.
	Year *int `json:"year,omitempty" yaml:"year,omitempty"`

	// Venue is the journal or proceedings reference, if published.
	Venue *string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// Category is the primary subject category (e.g. "cs.LG").
	Category *string `json:"category,omitempty" yaml:"category,omitempty"`

	// Abstract is an excerpt of the work abstract.
	Abstract *string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// DOI is the DOI of the published version, if any.
	DOI *string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// URL is the landing page of the work.
	URL *string `json:"url,omitempty" yaml:"url,omitempty"`

	// Extras carries fields that have no typed slot (comment, categories,
	// versioned id, ...). Merged key by key.
	Extras map[string]string `json:"extras,omitempty" yaml:"extras,omitempty"`
}

// Merge returns m updated with every field that incoming reports. Absent
// incoming fields keep their current value; nothing is ever cleared.
func (m Metadata) Merge(incoming Metadata) Metadata {
	out := m
	if incoming.Title != nil {
		out.Title = incoming.Title
	}
	if len(incoming.Authors) > 0 {
		out.Authors = append([]string(nil), incoming.Authors...)
	}
	if incoming.Year != nil {
		out.Year = incoming.Year
	}
	if incoming.Venue != nil {
		out.Venue = incoming.Venue
	}
	if incoming.Category != nil {
		out.Category = incoming.Category
	}
	if incoming.Abstract != nil {
		out.Abstract = incoming.Abstract
	}
	if incoming.DOI != nil {
		out.DOI = incoming.DOI
	}
	if incoming.URL != nil {
		out.URL = incoming.URL
	}
	if len(incoming.Extras) > 0 {
		extras := make(map[string]string, len(m.Extras)+len(incoming.Extras))
		maps.Copy(extras, m.Extras)
		maps.Copy(extras, incoming.Extras)
		out.Extras = extras
	}
	return out
}

// Item is a work's cached metadata keyed by its external identifier.
type Item struct {
	// ExternalID is the upstream identifier (base arXiv id, no version).
	// It is the sole merge key and never changes.
	ExternalID string `json:"external_id" yaml:"external_id"`

	Metadata Metadata `json:"metadata" yaml:"metadata"`

	// RetrievedAt is when metadata for this work was last pushed.
	RetrievedAt time.Time `json:"retrieved_at" yaml:"retrieved_at"`

	// CreatedAt is when the work was first seen.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// LifecycleState describes how far a work has progressed through the
// registry. Transitions only move forward.
type LifecycleState string

const (
	StateUnseen   LifecycleState = "unseen"
	StateCached   LifecycleState = "cached"
	StateKeyed    LifecycleState = "keyed"
	StateExported LifecycleState = "exported"
)

// Ptr returns a pointer to v. Handy for building Metadata literals.
func Ptr[T any](v T) *T { return &v }

// Deref returns the value p points to, or the zero value when p is nil.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
