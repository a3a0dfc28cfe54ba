// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibliography

import (
	"regexp"
	"strings"
)

// Record is one entry found in a .bib file. Field names are lower-cased;
// values are kept as written, without the outer braces or quotes.
type Record struct {
	Type   string
	Key    string
	Fields map[string]string
}

// entryHeadRe matches the start of a block: "@type{" or "@type(".
var entryHeadRe = regexp.MustCompile(`@\s*([A-Za-z]+)\s*([{(])`)

// entryKeyRe matches the citation key that follows the head of an entry.
var entryKeyRe = regexp.MustCompile(`^\s*([^,\s{}()]+)\s*,`)

// arxivURLRe extracts the identifier from an arXiv abstract or PDF link.
var arxivURLRe = regexp.MustCompile(`(?i)arxiv\.org/(?:abs|pdf)/([^\s?#{}]+?)(?:\.pdf)?(?:[?#].*)?$`)

// versionRe matches a trailing arXiv version ("v2").
var versionRe = regexp.MustCompile(`v\d+$`)

// Scan extracts the entries of a .bib file. It is deliberately lenient:
// text it cannot parse is skipped, and @comment, @string and @preamble
// blocks are ignored.
func Scan(data string) []Record {
	var records []Record
	pos := 0
	for pos < len(data) {
		loc := entryHeadRe.FindStringSubmatchIndex(data[pos:])
		if loc == nil {
			break
		}
		typ := strings.ToLower(data[pos+loc[2] : pos+loc[3]])
		open := data[pos+loc[4]]
		bodyStart := pos + loc[1]

		end := matchClose(data, bodyStart, open)
		block := data[bodyStart:end]
		pos = min(end+1, len(data))

		switch typ {
		case "comment", "string", "preamble":
			continue
		}
		km := entryKeyRe.FindStringSubmatchIndex(block)
		if km == nil {
			continue
		}
		records = append(records, Record{
			Type:   typ,
			Key:    block[km[2]:km[3]],
			Fields: parseFields(block[km[1]:]),
		})
	}
	return records
}

// matchClose returns the index of the delimiter closing an entry whose
// body starts at start, or len(data) when the entry is unterminated.
func matchClose(data string, start int, open byte) int {
	closeCh := byte('}')
	if open == '(' {
		closeCh = ')'
	}
	depth := 0
	for i := start; i < len(data); i++ {
		switch c := data[i]; {
		case c == '\\':
			// \{ and \} are literal braces; skip the escaped byte.
			i++
		case c == '{':
			depth++
		case c == '}' && depth > 0:
			depth--
		case c == closeCh && depth == 0:
			return i
		}
	}
	return len(data)
}

// parseFields reads "name = value" pairs. Values may be braced, quoted, a
// bare number or macro, or a concatenation with #; concatenations are kept
// only as far as the first part.
func parseFields(body string) map[string]string {
	fields := map[string]string{}
	i := 0
	for i < len(body) {
		for i < len(body) && (isSpace(body[i]) || body[i] == ',') {
			i++
		}
		nameStart := i
		for i < len(body) && body[i] != '=' && body[i] != ',' {
			i++
		}
		if i >= len(body) || body[i] == ',' {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(body[nameStart:i]))
		i++
		for i < len(body) && isSpace(body[i]) {
			i++
		}
		if i >= len(body) {
			break
		}

		var value string
		switch body[i] {
		case '{':
			end := matchClose(body, i+1, '{')
			value = body[i+1 : end]
			i = end + 1
		case '"':
			end := i + 1
			depth := 0
			for end < len(body) && !(body[end] == '"' && depth == 0) {
				switch body[end] {
				case '\\':
					end++
				case '{':
					depth++
				case '}':
					if depth > 0 {
						depth--
					}
				}
				end++
			}
			value = body[i+1 : min(end, len(body))]
			i = end + 1
		default:
			start := i
			for i < len(body) && body[i] != ',' && body[i] != '#' && !isSpace(body[i]) {
				i++
			}
			value = strings.TrimSpace(body[start:i])
		}
		// Skip the rest of a # concatenation.
		for i < len(body) && body[i] != ',' {
			i++
		}
		if name != "" {
			fields[name] = strings.TrimSpace(value)
		}
	}
	return fields
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Identities returns the identifiers that bind the record to a work: its
// arXiv id (from eprint or an arXiv url) and its DOI. A record with
// neither cannot be attributed to any work.
func (r Record) Identities() []string {
	var ids []string
	if a := r.arxivID(); a != "" {
		ids = append(ids, a)
	}
	if d := r.doi(); d != "" {
		ids = append(ids, "doi:"+d)
	}
	return ids
}

// SameWork reports whether r and other describe the same work. When both
// carry an arXiv id the decision rests on it alone, since distinct
// preprints of one published paper share a DOI. The DOI decides only when
// at least one side has no arXiv id.
func (r Record) SameWork(other Record) bool {
	a, b := r.arxivID(), other.arxivID()
	if a != "" && b != "" {
		return a == b
	}
	d := r.doi()
	return d != "" && d == other.doi()
}

func (r Record) arxivID() string {
	if e := normalizeArxivID(r.Fields["eprint"]); e != "" {
		return e
	}
	if m := arxivURLRe.FindStringSubmatch(strings.TrimSpace(r.Fields["url"])); m != nil {
		return normalizeArxivID(m[1])
	}
	return ""
}

func (r Record) doi() string {
	return normalizeDOI(r.Fields["doi"])
}

func normalizeArxivID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "arxiv:")
	return versionRe.ReplaceAllString(s, "")
}

func normalizeDOI(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "doi:"} {
		s = strings.TrimPrefix(s, p)
	}
	return s
}
