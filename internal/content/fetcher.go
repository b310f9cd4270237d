// Package content retrieves full paper text for analysis, trying the
// rendered-HTML mirror first and falling back to PDF text extraction.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"github.com/scholarstream/arxiv-radar/internal/domain"
	"github.com/scholarstream/arxiv-radar/internal/source"
)

// Default values for the content fetcher.
const (
	DefaultMirrorBaseURL = "https://ar5iv.labs.arxiv.org"
	DefaultMaxPDFSize    = 50 * 1024 * 1024
	DefaultMaxChars      = 60000

	// minBodyChars rejects mirror pages that rendered but carry no real
	// article text (error pages, stubs).
	minBodyChars = 500
)

// Config holds fetcher configuration.
type Config struct {
	// MirrorBaseURL is the base URL of the rendered-HTML mirror.
	MirrorBaseURL string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxPDFSize is the maximum PDF size in bytes.
	MaxPDFSize int64

	// MaxChars truncates extracted text to bound prompt size.
	MaxChars int
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.MirrorBaseURL == "" {
		c.MirrorBaseURL = DefaultMirrorBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RateLimit == 0 {
		c.RateLimit = 2
	}
	if c.BurstSize == 0 {
		c.BurstSize = 2
	}
	if c.MaxPDFSize == 0 {
		c.MaxPDFSize = DefaultMaxPDFSize
	}
	if c.MaxChars == 0 {
		c.MaxChars = DefaultMaxChars
	}
}

// Fetcher retrieves paper bodies. Safe for concurrent use.
type Fetcher struct {
	config     Config
	httpClient *source.HTTPClient
	logger     zerolog.Logger
}

// New creates a content fetcher.
func New(cfg Config, logger zerolog.Logger) *Fetcher {
	cfg.applyDefaults()

	return &Fetcher{
		config: cfg,
		httpClient: source.NewHTTPClient(source.HTTPClientConfig{
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: cfg.BurstSize,
		}),
		logger: logger.With().Str("component", "content").Logger(),
	}
}

// NewWithHTTPClient creates a fetcher with a custom HTTP client. Useful for
// testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *source.HTTPClient, logger zerolog.Logger) *Fetcher {
	cfg.applyDefaults()

	return &Fetcher{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "content").Logger(),
	}
}

// Fetch returns the paper body, trying the HTML mirror first and the PDF
// second. When both fail it returns (nil, nil): absence is expected and must
// not fail the paper. Only context cancellation is surfaced as an error.
func (f *Fetcher) Fetch(ctx context.Context, paper domain.Paper) (*domain.PaperContent, error) {
	body, err := f.fetchHTML(ctx, paper)
	if err == nil {
		return &domain.PaperContent{Body: body, Source: domain.ContentSourceHTML}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	f.logger.Debug().Str("arxiv_id", paper.ArXivID).Err(err).Msg("HTML mirror failed, trying PDF")

	body, err = f.fetchPDF(ctx, paper)
	if err == nil {
		return &domain.PaperContent{Body: body, Source: domain.ContentSourcePDF}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	f.logger.Info().Str("arxiv_id", paper.ArXivID).Err(err).Msg("no full text available")

	return nil, nil
}

// fetchHTML pulls the rendered article from the HTML mirror.
func (f *Fetcher) fetchHTML(ctx context.Context, paper domain.Paper) (string, error) {
	pageURL := strings.TrimRight(f.config.MirrorBaseURL, "/") + "/html/" + paper.ArXivID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching mirror page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mirror returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return "", fmt.Errorf("parsing mirror page: %w", err)
	}

	// Equation markup and navigation chrome add noise without meaning in
	// plain text.
	doc.Find("script, style, nav, header, footer, math, svg").Remove()

	sel := doc.Find("article")
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}

	body := collapseText(sel.Text())
	if len(body) < minBodyChars {
		return "", errors.New("mirror page has no article body")
	}

	return truncate(body, f.config.MaxChars), nil
}

// fetchPDF downloads the PDF and extracts its plain text.
func (f *Fetcher) fetchPDF(ctx context.Context, paper domain.Paper) (string, error) {
	if paper.PDFURL == "" {
		return "", errors.New("paper has no PDF URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, paper.PDFURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading PDF: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("PDF download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxPDFSize+1))
	if err != nil {
		return "", fmt.Errorf("reading PDF body: %w", err)
	}
	if int64(len(data)) > f.config.MaxPDFSize {
		return "", fmt.Errorf("PDF exceeds maximum size %d", f.config.MaxPDFSize)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return "", errors.New("response is not a PDF")
	}

	text, err := extractPDFText(data)
	if err != nil {
		return "", fmt.Errorf("extracting PDF text: %w", err)
	}

	body := collapseText(text)
	if len(body) < minBodyChars {
		return "", errors.New("PDF yielded no usable text")
	}

	return truncate(body, f.config.MaxChars), nil
}

// extractPDFText pulls plain text out of PDF bytes page by page. Pages that
// fail to decode are skipped rather than failing the whole document.
func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}

	return sb.String(), nil
}

// collapseText flattens runs of whitespace while keeping paragraph breaks.
func collapseText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}
