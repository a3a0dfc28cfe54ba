// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bibliography renders registry items as BibTeX and CSL entries and
// merges BibTeX entries into an externally owned .bib file without ever
// rewriting what is already there.
package bibliography

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/arxiv-registry/internal/registry"
	"github.com/pdiddy/arxiv-registry/pkg/types"
)

// arXiv fields written for every entry type when available.
var arxivFields = []string{"doi", "eprint", "archivePrefix", "primaryClass", "url"}

// DefaultFieldSets returns the field sets used when ExportConfig.Fields has
// no entry for a type.
func DefaultFieldSets() map[types.EntryType]types.FieldSet {
	return map[types.EntryType]types.FieldSet{
		types.EntryArticle: {
			Required: []string{"author", "title", "journal", "year"},
			Optional: arxivFields,
		},
		types.EntryInProceedings: {
			Required: []string{"author", "title", "booktitle", "year"},
			Optional: arxivFields,
		},
		types.EntryMisc: {
			Required: []string{"author", "title", "year"},
			Optional: append([]string{"note"}, arxivFields...),
		},
	}
}

// conferenceRe matches journal references that name proceedings rather
// than a journal.
var conferenceRe = regexp.MustCompile(`(?i)\b(proc\.?|proceedings|conference|conf\.|workshop|symposium|neurips|nips|icml|iclr|cvpr|iccv|eccv|acl|emnlp|naacl|aaai|ijcai|kdd|sigir)\b`)

// InferEntryType picks the entry type from the metadata: article when a
// journal reference exists, inproceedings when that reference names a
// conference, misc for plain preprints.
func InferEntryType(meta types.Metadata) types.EntryType {
	venue := strings.TrimSpace(types.Deref(meta.Venue))
	switch {
	case venue == "":
		return types.EntryMisc
	case conferenceRe.MatchString(venue):
		return types.EntryInProceedings
	default:
		return types.EntryArticle
	}
}

// Render formats item under key. The output depends only on the item, the
// key and cfg, so unchanged inputs give byte-identical text.
func Render(item types.Item, key string, cfg types.ExportConfig) (types.ExportedEntry, error) {
	if key == "" {
		return types.ExportedEntry{}, fmt.Errorf("rendering %s: empty citation key", item.ExternalID)
	}
	escape, err := escaper(cfg.Escape)
	if err != nil {
		return types.ExportedEntry{}, err
	}

	entryType := cfg.EntryType
	if entryType == "" {
		entryType = InferEntryType(item.Metadata)
	}
	fs, ok := cfg.Fields[entryType]
	if !ok {
		if fs, ok = DefaultFieldSets()[entryType]; !ok {
			return types.ExportedEntry{}, fmt.Errorf("rendering %s: unknown entry type %q", item.ExternalID, entryType)
		}
	}

	var (
		lines   []string
		missing []string
	)
	for _, name := range fs.Required {
		v, err := fieldValue(name, item, escape)
		if err != nil {
			return types.ExportedEntry{}, err
		}
		if v == "" {
			missing = append(missing, name)
			continue
		}
		lines = append(lines, formatField(name, v))
	}
	if len(missing) > 0 {
		return types.ExportedEntry{}, fmt.Errorf("%w: %s entry for %s lacks %s",
			registry.ErrMetadataIncomplete, entryType, item.ExternalID, strings.Join(missing, ", "))
	}
	for _, name := range fs.Optional {
		v, err := fieldValue(name, item, escape)
		if err != nil {
			return types.ExportedEntry{}, err
		}
		if v != "" {
			lines = append(lines, formatField(name, v))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "@%s{%s,\n", entryType, key)
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n}\n")

	return types.ExportedEntry{
		ExternalID: item.ExternalID,
		Key:        key,
		EntryType:  entryType,
		Text:       b.String(),
	}, nil
}

func formatField(name, value string) string {
	return "  " + name + " = {" + value + "}"
}

// fieldValue returns the rendered value of a BibTeX field, or "" when the
// item has nothing for it.
func fieldValue(name string, item types.Item, escape func(string) string) (string, error) {
	m := item.Metadata
	switch strings.ToLower(name) {
	case "author":
		var names []string
		for _, a := range m.Authors {
			if a = strings.TrimSpace(a); a != "" {
				names = append(names, escape(a))
			}
		}
		return strings.Join(names, " and "), nil
	case "title":
		return escape(strings.Join(strings.Fields(types.Deref(m.Title)), " ")), nil
	case "journal", "booktitle":
		return escape(strings.TrimSpace(types.Deref(m.Venue))), nil
	case "year":
		if y := types.Deref(m.Year); y > 0 {
			return strconv.Itoa(y), nil
		}
		return "", nil
	case "note":
		if c := strings.TrimSpace(m.Extras["comment"]); c != "" {
			return escape(c), nil
		}
		return "", nil
	case "doi":
		return strings.TrimSpace(types.Deref(m.DOI)), nil
	case "eprint":
		return item.ExternalID, nil
	case "archiveprefix":
		return "arXiv", nil
	case "primaryclass":
		return strings.TrimSpace(types.Deref(m.Category)), nil
	case "url":
		if u := strings.TrimSpace(types.Deref(m.URL)); u != "" {
			return u, nil
		}
		return "https://arxiv.org/abs/" + item.ExternalID, nil
	case "abstract":
		return escape(strings.TrimSpace(types.Deref(m.Abstract))), nil
	default:
		return "", fmt.Errorf("rendering %s: unsupported field %q", item.ExternalID, name)
	}
}
