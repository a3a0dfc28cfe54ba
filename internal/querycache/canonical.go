// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package querycache

import (
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode"
)

// Boolean operators of the arXiv query language. They are only operators
// when written in upper case; "and" in free text is an ordinary word.
var operators = map[string]bool{"AND": true, "OR": true, "ANDNOT": true}

// Query is a structured discovery query. Each non-empty field becomes one
// fielded clause; clauses are ANDed together.
type Query struct {
	Text     string
	Title    string
	Author   string
	Abstract string
	Category string
}

// String renders q in the arXiv query syntax.
func (q Query) String() string {
	var clauses []string
	add := func(prefix, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		if prefix != "" {
			if strings.ContainsAny(value, " \t") {
				value = `"` + value + `"`
			}
			value = prefix + ":" + value
		}
		clauses = append(clauses, value)
	}
	add("", q.Text)
	add("ti", q.Title)
	add("au", q.Author)
	add("abs", q.Abstract)
	add("cat", q.Category)
	return strings.Join(clauses, " AND ")
}

// fieldedRe matches a token with a field prefix, e.g. ti:diffusion.
var fieldedRe = regexp.MustCompile(`^[a-z]+:.`)

// Canonicalize maps a query to its cache key. It folds case, collapses
// whitespace (also inside quoted phrases), drops an unbalanced quote, and
// sorts the clauses of a pure AND conjunction so that reordered clauses hit
// the same record. Within a clause, juxtaposed fielded terms (ti:a au:b)
// are sorted as well; a clause holding any unfielded word keeps its word
// order. Queries with OR, ANDNOT or parentheses are not reordered.
func Canonicalize(query string) string {
	if strings.Count(query, `"`)%2 == 1 {
		i := strings.LastIndex(query, `"`)
		query = query[:i] + query[i+1:]
	}
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return ""
	}

	reorder := true
	var clauses [][]string
	var current []string
	flush := func() {
		if len(current) > 0 {
			clauses = append(clauses, current)
			current = nil
		}
	}
	for _, tok := range tokens {
		if operators[tok] {
			if tok != "AND" {
				reorder = false
			}
			flush()
			clauses = append(clauses, []string{tok})
			continue
		}
		if strings.ContainsAny(tok, "()") {
			reorder = false
		}
		current = append(current, foldToken(tok))
	}
	flush()

	if !reorder {
		parts := make([]string, len(clauses))
		for i, c := range clauses {
			parts[i] = strings.Join(c, " ")
		}
		return strings.Join(parts, " ")
	}

	var terms []string
	for _, c := range clauses {
		if len(c) == 1 && c[0] == "AND" {
			continue
		}
		if allFielded(c) {
			c = slices.Clone(c)
			sort.Strings(c)
		}
		terms = append(terms, strings.Join(c, " "))
	}
	sort.Strings(terms)
	return strings.Join(terms, " AND ")
}

func allFielded(tokens []string) bool {
	for _, tok := range tokens {
		if !fieldedRe.MatchString(tok) {
			return false
		}
	}
	return true
}

// tokenize splits on whitespace outside double quotes. A quoted phrase
// (optionally with a field prefix, e.g. ti:"world model") stays one token.
func tokenize(s string) []string {
	var (
		tokens  []string
		b       strings.Builder
		inQuote bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			b.WriteRune(r)
		case unicode.IsSpace(r) && !inQuote:
			if b.Len() > 0 {
				tokens = append(tokens, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

// foldToken lower-cases a token and collapses whitespace inside quotes.
func foldToken(tok string) string {
	parts := strings.Split(strings.ToLower(tok), `"`)
	for i := 1; i < len(parts); i += 2 {
		parts[i] = strings.Join(strings.Fields(parts[i]), " ")
	}
	return strings.Join(parts, `"`)
}
