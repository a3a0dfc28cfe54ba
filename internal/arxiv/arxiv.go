// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package arxiv is a client for the arXiv Atom API. It turns search and
// id-list responses into registry metadata; caching and persistence are
// left to the caller.
package arxiv

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/pdiddy/arxiv-registry/internal/httputil"
	"github.com/pdiddy/arxiv-registry/pkg/types"
)

// apiBase is the arXiv query endpoint. Declared as a var so tests can
// substitute an httptest server.
var apiBase = "https://export.arxiv.org/api/query"

// ErrUpstream marks failures talking to arXiv: transport errors, non-200
// responses, unparseable feeds, and error entries.
var ErrUpstream = errors.New("arXiv request failed")

const (
	defaultMaxResults = 25
	defaultTimeout    = 30 * time.Second

	// abstractExcerpt caps the stored abstract, in runes.
	abstractExcerpt = 2000
)

// Client queries the arXiv API.
type Client struct {
	// BaseURL overrides the API endpoint (e.g. a mirror). Empty uses
	// export.arxiv.org.
	BaseURL string

	HTTP       *http.Client
	UserAgent  string
	MaxRetries int
	Log        *log.Logger

	// Recorder, when set, logs every response received from arXiv.
	Recorder FetchRecorder
}

// FetchRecorder keeps an audit log of upstream requests.
type FetchRecorder interface {
	RecordFetch(ctx context.Context, f types.Fetch) error
}

// Fetch kinds written to the FetchRecorder.
const (
	KindSearch = "arxiv_api_search"
	KindIDList = "arxiv_api_id_list"
)

// NewClient returns a Client configured from cfg.
func NewClient(cfg types.HTTPConfig, logger *log.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		HTTP:       &http.Client{Timeout: timeout},
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
		Log:        logger,
	}
}

// SearchOptions tunes a search request.
type SearchOptions struct {
	Start      int
	MaxResults int

	// SortBy is relevance, lastUpdatedDate or submittedDate.
	SortBy string

	// SortOrder is ascending or descending.
	SortOrder string
}

// Entry is one work from a feed.
type Entry struct {
	// ID is the unversioned arXiv id, the registry's external id.
	ID          string
	VersionedID string
	Metadata    types.Metadata
}

// Feed is a parsed API response.
type Feed struct {
	TotalResults int
	Entries      []Entry
}

// Search runs query (arXiv query syntax, e.g. `ti:"world models" AND
// au:ha`) and returns the matching works in result order.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) (Feed, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Feed{}, fmt.Errorf("empty arXiv query")
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	if opts.SortBy == "" {
		opts.SortBy = "relevance"
	}
	if opts.SortOrder == "" {
		opts.SortOrder = "descending"
	}

	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", strconv.Itoa(opts.Start))
	params.Set("max_results", strconv.Itoa(opts.MaxResults))
	params.Set("sortBy", opts.SortBy)
	params.Set("sortOrder", opts.SortOrder)
	return c.get(ctx, KindSearch, params)
}

// FetchByID returns the metadata of the given works. Ids may be versioned
// or given as abs/pdf URLs.
func (c *Client) FetchByID(ctx context.Context, ids ...string) (Feed, error) {
	var list []string
	for _, id := range ids {
		if _, v := NormalizeID(id); v != "" {
			list = append(list, v)
		}
	}
	if len(list) == 0 {
		return Feed{}, fmt.Errorf("no arXiv ids to fetch")
	}

	params := url.Values{}
	params.Set("id_list", strings.Join(list, ","))
	params.Set("max_results", strconv.Itoa(len(list)))
	return c.get(ctx, KindIDList, params)
}

func (c *Client) get(ctx context.Context, kind string, params url.Values) (Feed, error) {
	base := c.BaseURL
	if base == "" {
		base = apiBase
	}
	u := base + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Feed{}, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept", "application/atom+xml")

	start := time.Now()
	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, c.MaxRetries, c.Log)
	if err != nil {
		if ctx.Err() != nil {
			return Feed{}, err
		}
		return Feed{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return Feed{}, err
		}
		return Feed{}, fmt.Errorf("%w: reading response: %v", ErrUpstream, err)
	}
	if err := c.record(ctx, kind, u, resp.StatusCode, body); err != nil {
		return Feed{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Feed{}, fmt.Errorf("%w: arXiv API returned HTTP %d", ErrUpstream, resp.StatusCode)
	}

	feed, err := ParseFeed(bytes.NewReader(body))
	if err != nil {
		return Feed{}, err
	}
	if c.Log != nil {
		c.Log.Debug("arXiv response", "entries", len(feed.Entries), "total", feed.TotalResults, "elapsed", time.Since(start))
	}
	return feed, nil
}

func (c *Client) record(ctx context.Context, kind, u string, status int, body []byte) error {
	if c.Recorder == nil {
		return nil
	}
	f := types.Fetch{Kind: kind, URL: u, Status: status, Bytes: len(body)}
	if len(body) > 0 {
		sum := sha256.Sum256(body)
		f.SHA256 = hex.EncodeToString(sum[:])
	}
	if err := c.Recorder.RecordFetch(ctx, f); err != nil {
		return fmt.Errorf("logging fetch of %s: %w", u, err)
	}
	return nil
}

// Atom feed structures. Element namespaces are spelled out because arXiv
// mixes Atom, OpenSearch and its own extension elements.
type atomFeed struct {
	TotalResults string      `xml:"http://a9.com/-/spec/opensearch/1.1/ totalResults"`
	Entries      []atomEntry `xml:"http://www.w3.org/2005/Atom entry"`
}

type atomEntry struct {
	ID         string     `xml:"http://www.w3.org/2005/Atom id"`
	Title      string     `xml:"http://www.w3.org/2005/Atom title"`
	Summary    string     `xml:"http://www.w3.org/2005/Atom summary"`
	Published  string     `xml:"http://www.w3.org/2005/Atom published"`
	Updated    string     `xml:"http://www.w3.org/2005/Atom updated"`
	Authors    []atomName `xml:"http://www.w3.org/2005/Atom author"`
	Links      []atomLink `xml:"http://www.w3.org/2005/Atom link"`
	Categories []atomTerm `xml:"http://www.w3.org/2005/Atom category"`

	Comment         string    `xml:"http://arxiv.org/schemas/atom comment"`
	JournalRef      string    `xml:"http://arxiv.org/schemas/atom journal_ref"`
	DOI             string    `xml:"http://arxiv.org/schemas/atom doi"`
	PrimaryCategory *atomTerm `xml:"http://arxiv.org/schemas/atom primary_category"`
}

type atomName struct {
	Name string `xml:"http://www.w3.org/2005/Atom name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

type atomTerm struct {
	Term string `xml:"term,attr"`
}

// ParseFeed decodes an arXiv Atom response. An API error entry (returned
// for malformed queries) becomes an ErrUpstream error.
func ParseFeed(r io.Reader) (Feed, error) {
	var af atomFeed
	if err := xml.NewDecoder(r).Decode(&af); err != nil {
		return Feed{}, fmt.Errorf("%w: parsing arXiv response: %v", ErrUpstream, err)
	}

	feed := Feed{}
	if n, err := strconv.Atoi(strings.TrimSpace(af.TotalResults)); err == nil {
		feed.TotalResults = n
	}
	for _, e := range af.Entries {
		if strings.Contains(e.ID, "/api/errors") {
			return Feed{}, fmt.Errorf("%w: %s", ErrUpstream, collapse(e.Summary))
		}
		entry, ok := toEntry(e)
		if !ok {
			continue
		}
		feed.Entries = append(feed.Entries, entry)
	}
	return feed, nil
}

func toEntry(e atomEntry) (Entry, bool) {
	base, versioned := NormalizeID(e.ID)
	if base == "" {
		return Entry{}, false
	}

	m := types.Metadata{Extras: map[string]string{}}
	if t := collapse(e.Title); t != "" {
		m.Title = &t
	}
	for _, a := range e.Authors {
		if n := collapse(a.Name); n != "" {
			m.Authors = append(m.Authors, n)
		}
	}
	if y, ok := yearOf(e.Published); ok {
		m.Year = &y
	}
	if j := collapse(e.JournalRef); j != "" {
		m.Venue = &j
	}
	if e.PrimaryCategory != nil && e.PrimaryCategory.Term != "" {
		m.Category = types.Ptr(e.PrimaryCategory.Term)
	}
	if s := excerpt(collapse(e.Summary), abstractExcerpt); s != "" {
		m.Abstract = &s
	}
	if d := strings.TrimSpace(e.DOI); d != "" {
		m.DOI = &d
	}

	for _, l := range e.Links {
		switch {
		case l.Rel == "alternate" && l.Type == "text/html" && m.URL == nil:
			m.URL = types.Ptr(strings.TrimSpace(l.Href))
		case l.Type == "application/pdf" || l.Title == "pdf":
			setExtra(m.Extras, "pdf_url", l.Href)
		}
	}
	if m.URL == nil {
		m.URL = types.Ptr("https://arxiv.org/abs/" + base)
	}

	var cats []string
	for _, c := range e.Categories {
		if t := strings.TrimSpace(c.Term); t != "" {
			cats = append(cats, t)
		}
	}
	setExtra(m.Extras, "categories", strings.Join(cats, ","))
	setExtra(m.Extras, "comment", collapse(e.Comment))
	setExtra(m.Extras, "published", e.Published)
	setExtra(m.Extras, "updated", e.Updated)
	setExtra(m.Extras, "versioned_id", versioned)
	if len(m.Extras) == 0 {
		m.Extras = nil
	}

	return Entry{ID: base, VersionedID: versioned, Metadata: m}, true
}

func setExtra(extras map[string]string, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		extras[key] = value
	}
}

var (
	// idPrefixRe strips "arXiv:" labels.
	idPrefixRe = regexp.MustCompile(`(?i)^arxiv:\s*`)

	// idVersionRe matches a trailing version ("v3").
	idVersionRe = regexp.MustCompile(`v\d+$`)

	// yearRe matches the leading year of an RFC 3339 date.
	yearRe = regexp.MustCompile(`^(\d{4})`)
)

// NormalizeID accepts a bare, versioned, "arXiv:"-prefixed or URL form of
// an arXiv id and returns the unversioned id and the id as given (with its
// version, if any). "https://arxiv.org/pdf/2006.11239v2.pdf" yields
// ("2006.11239", "2006.11239v2").
func NormalizeID(v string) (base, versioned string) {
	raw := idPrefixRe.ReplaceAllString(strings.TrimSpace(v), "")
	raw, _, _ = strings.Cut(raw, "?")
	raw = strings.TrimRight(raw, "/")
	for _, marker := range []string{"/abs/", "/pdf/"} {
		if _, after, ok := strings.Cut(raw, marker); ok {
			raw = after
		}
	}
	raw = strings.TrimSpace(strings.TrimSuffix(raw, ".pdf"))
	return idVersionRe.ReplaceAllString(raw, ""), raw
}

func yearOf(published string) (int, bool) {
	m := yearRe.FindStringSubmatch(strings.TrimSpace(published))
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	return y, err == nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// excerpt truncates s to at most n runes, cutting at a word boundary.
func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := string([]rune(s)[:n])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
