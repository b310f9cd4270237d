// Package arxiv implements the feed client for the arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/scholarstream/arxiv-radar/internal/domain"
	"github.com/scholarstream/arxiv-radar/internal/source"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the default number of results per page.
	DefaultPageSize = 100

	// DefaultMaxPages bounds pagination per fetch.
	DefaultMaxPages = 5

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"
)

// arxivIDRegex extracts the arXiv ID from the entry URL, dropping the version
// suffix. Matches "http://arxiv.org/abs/2401.12345v2" and the older
// "http://arxiv.org/abs/hep-th/9901001v1" form.
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(v\d+)?$`)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// PageSize is the number of results requested per page.
	PageSize int

	// MaxPages bounds pagination per fetch.
	MaxPages int
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = 3
	}
	if c.BurstSize == 0 {
		c.BurstSize = 3
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxPages == 0 {
		c.MaxPages = DefaultMaxPages
	}
}

// Client queries the arXiv Atom API. Safe for concurrent use.
type Client struct {
	config     Config
	httpClient *source.HTTPClient
}

// New creates a new arXiv client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := source.NewHTTPClient(source.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "arxiv-radar/1.0",
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a client with a custom HTTP client. Useful for
// testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *source.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Fetch retrieves paper metadata matching the criteria, page by page,
// stopping when a page comes back empty or MaxPages is reached. Results are
// deduplicated by arXiv ID within the fetch and exclude terms are applied
// before papers are returned. Safe to re-invoke per topic.
func (c *Client) Fetch(ctx context.Context, criteria source.SearchCriteria) ([]domain.Paper, error) {
	seen := make(map[string]struct{})
	var papers []domain.Paper

	for page := 0; page < c.config.MaxPages; page++ {
		entries, err := c.fetchPage(ctx, criteria, page*c.config.PageSize)
		if err != nil {
			return nil, &domain.SourceError{Source: sourceName, Op: "fetch", Cause: err}
		}
		if len(entries) == 0 {
			break
		}

		for i := range entries {
			paper, ok := entryToPaper(&entries[i])
			if !ok {
				continue
			}
			if _, dup := seen[paper.ArXivID]; dup {
				continue
			}
			seen[paper.ArXivID] = struct{}{}

			if criteria.Excludes(paper) {
				continue
			}
			papers = append(papers, paper)
		}

		if len(entries) < c.config.PageSize {
			break
		}
	}

	return papers, nil
}

// Name returns the human-readable source name.
func (c *Client) Name() string {
	return sourceName
}

// fetchPage requests one page of results starting at the given offset.
func (c *Client) fetchPage(ctx context.Context, criteria source.SearchCriteria, offset int) ([]entry, error) {
	pageURL, err := c.buildSearchURL(criteria, offset)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, fmt.Errorf("arXiv returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// Limit body to 10MB.
	var f feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return f.Entries, nil
}

// buildSearchURL constructs the arXiv search API URL for one page.
func (c *Client) buildSearchURL(criteria source.SearchCriteria, offset int) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	query := url.Values{}
	query.Set("search_query", criteria.QueryString())
	query.Set("max_results", strconv.Itoa(c.config.PageSize))
	if offset > 0 {
		query.Set("start", strconv.Itoa(offset))
	}

	// Newest submissions first.
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "descending")

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// entryToPaper converts an Atom entry to a domain Paper.
func entryToPaper(e *entry) (domain.Paper, bool) {
	arxivID := extractArXivID(e.ID)
	if arxivID == "" {
		return domain.Paper{}, false
	}

	authors := make([]domain.Author, 0, len(e.Authors))
	for _, a := range e.Authors {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		authors = append(authors, domain.Author{
			Name:        name,
			Affiliation: strings.TrimSpace(a.Affiliation),
		})
	}

	categories := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		if c.Term != "" {
			categories = append(categories, c.Term)
		}
	}

	submitted, err := time.Parse(time.RFC3339, e.Published)
	if err != nil {
		return domain.Paper{}, false
	}

	var updated *time.Time
	if t, err := time.Parse(time.RFC3339, e.Updated); err == nil && !t.Equal(submitted) {
		updated = &t
	}

	pdfURL := ""
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			pdfURL = l.Href
			break
		}
	}
	if pdfURL == "" {
		pdfURL = "https://arxiv.org/pdf/" + arxivID
	}

	return domain.Paper{
		ArXivID:    arxivID,
		Title:      collapseWhitespace(e.Title),
		Abstract:   strings.TrimSpace(e.Summary),
		Authors:    authors,
		Categories: categories,
		Submitted:  submitted,
		Updated:    updated,
		Comment:    collapseWhitespace(e.Comment),
		AbsURL:     "https://arxiv.org/abs/" + arxivID,
		PDFURL:     pdfURL,
	}, true
}

// extractArXivID pulls the version-stripped arXiv ID out of an entry URL.
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(entryURL)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// collapseWhitespace flattens the newline-wrapped text arXiv returns in
// title and comment fields.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
