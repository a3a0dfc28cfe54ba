// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package querycache

import "fmt"

// Defaults applied to zero Params fields. They match the defaults of the
// arXiv client.
const (
	DefaultMaxResults = 25
	DefaultSortBy     = "relevance"
	DefaultSortOrder  = "descending"
)

var (
	sortFields = map[string]bool{"relevance": true, "lastUpdatedDate": true, "submittedDate": true}
	sortOrders = map[string]bool{"ascending": true, "descending": true}
)

// Params are the paging and sort options of a search. The same query
// text with different Params returns a different result list, so they are
// part of the cache key.
type Params struct {
	Start      int    `json:"start" yaml:"start"`
	MaxResults int    `json:"max_results" yaml:"max_results"`
	SortBy     string `json:"sort_by" yaml:"sort_by"`
	SortOrder  string `json:"sort_order" yaml:"sort_order"`
}

// Normalized fills zero fields with their defaults.
func (p Params) Normalized() Params {
	if p.MaxResults <= 0 {
		p.MaxResults = DefaultMaxResults
	}
	if p.SortBy == "" {
		p.SortBy = DefaultSortBy
	}
	if p.SortOrder == "" {
		p.SortOrder = DefaultSortOrder
	}
	return p
}

// Validate reports options the arXiv API does not accept.
func (p Params) Validate() error {
	p = p.Normalized()
	switch {
	case p.Start < 0:
		return fmt.Errorf("start must not be negative, got %d", p.Start)
	case !sortFields[p.SortBy]:
		return fmt.Errorf("unknown sort field %q (want relevance, lastUpdatedDate or submittedDate)", p.SortBy)
	case !sortOrders[p.SortOrder]:
		return fmt.Errorf("unknown sort order %q (want ascending or descending)", p.SortOrder)
	}
	return nil
}

// Key returns the cache key of query under p: the canonical query followed
// by the normalized options as sorted fields, e.g.
//
//	ti:diffusion #max_results=25&sort=relevance:descending&start=0
//
// It returns "" when the query is empty.
func (p Params) Key(query string) string {
	canonical := Canonicalize(query)
	if canonical == "" {
		return ""
	}
	p = p.Normalized()
	return fmt.Sprintf("%s #max_results=%d&sort=%s:%s&start=%d",
		canonical, p.MaxResults, p.SortBy, p.SortOrder, p.Start)
}
