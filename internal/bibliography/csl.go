// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibliography

import (
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/arxiv-registry/pkg/types"
)

// CSLItem is a bibliographic entry in CSL-YAML form, consumable by Pandoc
// and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
	Number         string    `yaml:"number,omitempty"`
	Publisher      string    `yaml:"publisher,omitempty"`
}

// CSLName is a person's name in CSL form.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate is a date in CSL date-parts form.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// ToCSL converts item to CSL. The id is the citation key when one is
// bound, else the external id.
func ToCSL(item types.Item, key string) CSLItem {
	m := item.Metadata
	c := CSLItem{
		ID:       key,
		Title:    types.Deref(m.Title),
		Abstract: types.Deref(m.Abstract),
		DOI:      types.Deref(m.DOI),
		URL:      types.Deref(m.URL),
		Number:   item.ExternalID,
	}
	if c.ID == "" {
		c.ID = item.ExternalID
	}
	if c.URL == "" {
		c.URL = "https://arxiv.org/abs/" + item.ExternalID
	}

	switch InferEntryType(m) {
	case types.EntryArticle:
		c.Type = "article-journal"
		c.ContainerTitle = types.Deref(m.Venue)
	case types.EntryInProceedings:
		c.Type = "paper-conference"
		c.ContainerTitle = types.Deref(m.Venue)
	default:
		// CSL has no preprint type of its own; "article" is the convention.
		c.Type = "article"
		c.Publisher = "arXiv"
	}

	for _, a := range m.Authors {
		if n := parseAuthorName(a); n != (CSLName{}) {
			c.Author = append(c.Author, n)
		}
	}
	if y := types.Deref(m.Year); y > 0 {
		c.Issued = &CSLDate{DateParts: [][]int{{y}}}
	}
	return c
}

// WriteCSL writes items as a CSL-YAML list to w.
func WriteCSL(w io.Writer, items []CSLItem) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

// parseAuthorName splits a name into CSL family and given parts. "Family,
// Given" and "Given Family" are both understood; single-token names use
// the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return CSLName{}
	}
	if family, given, ok := strings.Cut(name, ","); ok {
		return CSLName{Family: strings.TrimSpace(family), Given: strings.TrimSpace(given)}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{Given: name[:idx], Family: name[idx+1:]}
}
