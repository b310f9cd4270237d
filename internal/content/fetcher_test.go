package content

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarstream/arxiv-radar/internal/domain"
	"github.com/scholarstream/arxiv-radar/internal/source"
)

func articleHTML(body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>t</title><script>var x = 1;</script></head>
<body><nav>navigation chrome</nav>
<article><h1>Paper Title</h1><p>%s</p></article>
<footer>footer text</footer></body></html>`, body)
}

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*Fetcher, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f := NewWithHTTPClient(Config{MirrorBaseURL: srv.URL}, source.NewHTTPClient(source.HTTPClientConfig{
		Timeout:    5 * time.Second,
		RateLimit:  1000,
		BurstSize:  1000,
		MaxRetries: 1,
	}), zerolog.Nop())
	return f, srv
}

func TestFetch(t *testing.T) {
	longBody := strings.Repeat("We evaluate the approach on real-world benchmarks. ", 20)

	t.Run("html mirror preferred", func(t *testing.T) {
		f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/html/2401.00001", r.URL.Path)
			fmt.Fprint(w, articleHTML(longBody))
		})

		got, err := f.Fetch(context.Background(), domain.Paper{ArXivID: "2401.00001"})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, domain.ContentSourceHTML, got.Source)
		assert.Contains(t, got.Body, "real-world benchmarks")
		assert.NotContains(t, got.Body, "var x = 1")
		assert.NotContains(t, got.Body, "navigation chrome")
	})

	t.Run("falls back to pdf marker check", func(t *testing.T) {
		f, srv := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/html/") {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			// Not a real PDF; the fallback must reject it and report absence.
			fmt.Fprint(w, "<html>not a pdf</html>")
		})

		got, err := f.Fetch(context.Background(), domain.Paper{
			ArXivID: "2401.00001",
			PDFURL:  srv.URL + "/pdf/2401.00001",
		})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("short mirror body rejected", func(t *testing.T) {
		f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/html/") {
				fmt.Fprint(w, articleHTML("too short"))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		})

		got, err := f.Fetch(context.Background(), domain.Paper{ArXivID: "2401.00001"})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("both sources failing is absence, not error", func(t *testing.T) {
		f, srv := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		got, err := f.Fetch(context.Background(), domain.Paper{
			ArXivID: "2401.00001",
			PDFURL:  srv.URL + "/pdf/2401.00001",
		})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("cancelled context surfaces error", func(t *testing.T) {
		f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, articleHTML("body"))
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.Fetch(ctx, domain.Paper{ArXivID: "2401.00001"})
		require.Error(t, err)
	})

	t.Run("body truncated to max chars", func(t *testing.T) {
		huge := strings.Repeat("word ", 5000)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, articleHTML(huge))
		}))
		t.Cleanup(srv.Close)

		f := NewWithHTTPClient(Config{MirrorBaseURL: srv.URL, MaxChars: 1000}, source.NewHTTPClient(source.HTTPClientConfig{
			RateLimit: 1000,
			BurstSize: 1000,
		}), zerolog.Nop())

		got, err := f.Fetch(context.Background(), domain.Paper{ArXivID: "2401.00001"})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.LessOrEqual(t, len(got.Body), 1000)
	})
}

func TestCollapseText(t *testing.T) {
	in := "  Title \n\n\n  body   line  \n \n second\tline "
	assert.Equal(t, "Title\nbody line\nsecond line", collapseText(in))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 100))
	assert.Equal(t, "abc", truncate("abc def", 4))
	// Multi-byte rune at the cut point must not be split.
	s := "aé"
	got := truncate(s, 2)
	assert.Equal(t, "a", got)
}
