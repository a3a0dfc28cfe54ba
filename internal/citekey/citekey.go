// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citekey derives citation keys from work metadata and binds them
// through the registry store. A key is first-author surname, year and first
// title word; collisions with other works get a letter suffix in the order
// the works were first keyed.
package citekey

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/arxiv-registry/internal/registry"
	"github.com/pdiddy/arxiv-registry/pkg/types"
)

// KeyStore is the part of the registry store the resolver needs.
type KeyStore interface {
	AssignOrGetKey(ctx context.Context, externalID string, candidate registry.CandidateFunc) (types.CitationKey, error)
	GetExportedKey(ctx context.Context, externalID string) (types.CitationKey, error)
}

// Resolver assigns citation keys.
type Resolver struct {
	store KeyStore
	log   *log.Logger
}

// NewResolver returns a Resolver over store.
func NewResolver(store KeyStore, logger *log.Logger) *Resolver {
	return &Resolver{store: store, log: logger}
}

// ResolveKey returns the key bound to externalID, assigning one on first
// request. It fails with registry.ErrMetadataIncomplete, writing nothing,
// when the stored metadata lacks an author, year or title.
func (r *Resolver) ResolveKey(ctx context.Context, externalID string) (types.CitationKey, error) {
	ck, err := r.store.AssignOrGetKey(ctx, externalID, Candidate)
	if err != nil {
		return types.CitationKey{}, fmt.Errorf("resolving key for %s: %w", externalID, err)
	}
	if ck.Key != ck.BaseKey {
		r.log.Info("citation key collided", "id", externalID, "base", ck.BaseKey, "key", ck.Key)
	}
	return ck, nil
}

// Lookup returns the key already bound to externalID without assigning.
func (r *Resolver) Lookup(ctx context.Context, externalID string) (types.CitationKey, error) {
	return r.store.GetExportedKey(ctx, externalID)
}

// Candidate is the registry.CandidateFunc used for every work: the base key
// followed by Suffix(n).
func Candidate(item types.Item, n int) (string, error) {
	base, err := DeriveBase(item.Metadata)
	if err != nil {
		return "", err
	}
	return base + Suffix(n), nil
}

// DeriveBase builds the uncollided key for meta, e.g. "ho2020denoising".
func DeriveBase(meta types.Metadata) (string, error) {
	var surname string
	if len(meta.Authors) > 0 {
		surname = normalizeToken(Surname(meta.Authors[0]))
	}
	var year string
	if y := types.Deref(meta.Year); y > 0 {
		year = fmt.Sprintf("%04d", y)
	}
	word := normalizeToken(firstTitleWord(fold(types.Deref(meta.Title))))

	var missing []string
	if surname == "" {
		missing = append(missing, "author")
	}
	if year == "" {
		missing = append(missing, "year")
	}
	if word == "" {
		missing = append(missing, "title")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: missing %s", registry.ErrMetadataIncomplete, strings.Join(missing, ", "))
	}
	return surname + year + word, nil
}

// Suffix returns the collision suffix for the n-th candidate: "" for the
// base key, then a through z, then a1, a2 and so on.
func Suffix(n int) string {
	switch {
	case n <= 0:
		return ""
	case n <= 26:
		return string(rune('a' + n - 1))
	default:
		return "a" + strconv.Itoa(n-26)
	}
}

// Surname extracts the family name from an author string. "Ho, Jonathan"
// and "Jonathan Ho" both yield "Ho".
func Surname(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if before, _, ok := strings.Cut(name, ","); ok {
		return strings.TrimSpace(before)
	}
	if i := strings.LastIndexByte(name, ' '); i >= 0 {
		return name[i+1:]
	}
	return name
}

func firstTitleWord(title string) string {
	fields := strings.FieldsFunc(title, func(r rune) bool {
		return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// fold strips combining marks so that "Schölkopf" becomes "Scholkopf".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// normalizeToken lower-cases a folded token and keeps only [a-z0-9].
func normalizeToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(fold(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
