package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		Token:      "test-token",
		APIBaseURL: srv.URL,
		Repo:       "owner/updates",
	})
	require.NoError(t, err)
	return c
}

func TestParseRepo(t *testing.T) {
	owner, name, err := ParseRepo("scholarstream/paper-updates")
	require.NoError(t, err)
	assert.Equal(t, "scholarstream", owner)
	assert.Equal(t, "paper-updates", name)

	_, _, err = ParseRepo("not a repo")
	assert.ErrorIs(t, err, ErrInvalidRepo)

	_, _, err = ParseRepo("https://github.com/owner/repo/extra")
	assert.ErrorIs(t, err, ErrInvalidRepo)
}

func TestGetFile(t *testing.T) {
	t.Run("decodes content and sha", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/repos/owner/updates/contents/papers.md", r.URL.Path)
			assert.Equal(t, "updates", r.URL.Query().Get("ref"))
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

			json.NewEncoder(w).Encode(map[string]string{
				"content":  base64.StdEncoding.EncodeToString([]byte("# Paper Updates\n")),
				"encoding": "base64",
				"sha":      "abc123",
			})
		})

		f, err := c.GetFile(context.Background(), "updates", "papers.md")
		require.NoError(t, err)
		assert.Equal(t, "# Paper Updates\n", string(f.Content))
		assert.Equal(t, "abc123", f.SHA)
	})

	t.Run("missing file", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := c.GetFile(context.Background(), "updates", "papers.md")
		assert.ErrorIs(t, err, ErrFileNotFound)
	})
}

func TestPutFile(t *testing.T) {
	t.Run("sends base64 content and sha", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/repos/owner/updates/contents/reports/2401.00001.md", r.URL.Path)

			var req putRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "updates", req.Branch)
			assert.Equal(t, "old-sha", req.SHA)

			decoded, err := base64.StdEncoding.DecodeString(req.Content)
			require.NoError(t, err)
			assert.Equal(t, "report body", string(decoded))

			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{}`))
		})

		err := c.PutFile(context.Background(), "updates", "reports/2401.00001.md", "update report", []byte("report body"), "old-sha")
		require.NoError(t, err)
	})

	t.Run("stale sha is a conflict", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"message": "is at abc but expected def"}`))
		})

		err := c.PutFile(context.Background(), "updates", "papers.md", "m", []byte("x"), "stale")
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("422 is a conflict", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		})

		err := c.PutFile(context.Background(), "updates", "papers.md", "m", []byte("x"), "")
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("bad token", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		err := c.PutFile(context.Background(), "updates", "papers.md", "m", []byte("x"), "")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestEnsureBranch(t *testing.T) {
	t.Run("existing branch is a no-op", func(t *testing.T) {
		var calls int
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			json.NewEncoder(w).Encode(map[string]any{"object": map[string]string{"sha": "head"}})
		})

		require.NoError(t, c.EnsureBranch(context.Background(), "updates"))
		assert.Equal(t, 1, calls)
	})

	t.Run("creates missing branch from default head", func(t *testing.T) {
		var created bool
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/repos/owner/updates/git/ref/heads/updates":
				w.WriteHeader(http.StatusNotFound)
			case r.Method == http.MethodGet && r.URL.Path == "/repos/owner/updates":
				json.NewEncoder(w).Encode(map[string]string{"default_branch": "main"})
			case r.Method == http.MethodGet && r.URL.Path == "/repos/owner/updates/git/ref/heads/main":
				json.NewEncoder(w).Encode(map[string]any{"object": map[string]string{"sha": "head-sha"}})
			case r.Method == http.MethodPost && r.URL.Path == "/repos/owner/updates/git/refs":
				var req map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "refs/heads/updates", req["ref"])
				assert.Equal(t, "head-sha", req["sha"])
				created = true
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{}`))
			default:
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
		})

		require.NoError(t, c.EnsureBranch(context.Background(), "updates"))
		assert.True(t, created)
	})
}
