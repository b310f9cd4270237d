// Package github provides a minimal client for the GitHub contents API,
// used to read and commit files in the publishing repository.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultAPIBaseURL is the GitHub REST API base URL.
const DefaultAPIBaseURL = "https://api.github.com"

// Errors.
var (
	ErrInvalidRepo  = errors.New("invalid repository, expected owner/name")
	ErrFileNotFound = errors.New("file not found (404)")
	ErrConflict     = errors.New("commit conflict, remote changed")
	ErrRateLimited  = errors.New("GitHub API rate limit exceeded")
	ErrUnauthorized = errors.New("GitHub API authentication failed")
	ErrAPIError     = errors.New("GitHub API error")
)

// repoPattern matches the owner/name shorthand.
var repoPattern = regexp.MustCompile(`^([a-zA-Z0-9_.-]+)/([a-zA-Z0-9_.-]+)$`)

// ParseRepo splits an owner/name shorthand.
func ParseRepo(input string) (owner, name string, err error) {
	matches := repoPattern.FindStringSubmatch(strings.TrimSpace(input))
	if matches == nil {
		return "", "", ErrInvalidRepo
	}
	return matches[1], matches[2], nil
}

// File is a file fetched from the contents API. SHA must be passed back on
// update so GitHub can detect concurrent modification.
type File struct {
	Path    string
	Content []byte
	SHA     string
}

// Config holds client configuration.
type Config struct {
	// Token authenticates API requests.
	Token string

	// APIBaseURL overrides the GitHub API base URL. For tests.
	APIBaseURL string

	// Repo is the owner/name of the target repository.
	Repo string

	// Timeout bounds a single API request.
	Timeout time.Duration
}

// Client commits files to one GitHub repository. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	owner      string
	repo       string
}

// NewClient creates a contents API client for the configured repository.
func NewClient(cfg Config) (*Client, error) {
	owner, repo, err := ParseRepo(cfg.Repo)
	if err != nil {
		return nil, err
	}

	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      cfg.Token,
		owner:      owner,
		repo:       repo,
	}, nil
}

// contentResponse is the contents API GET response.
type contentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
}

// GetFile fetches a file from the given branch. Returns ErrFileNotFound when
// the path does not exist there.
func (c *Client) GetFile(ctx context.Context, branch, path string) (*File, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		c.baseURL, c.owner, c.repo, escapePath(path), url.QueryEscape(branch))

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var cr contentResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("%w: decoding contents response: %v", ErrAPIError, err)
	}

	content, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(cr.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding file content: %v", ErrAPIError, err)
	}

	return &File{Path: path, Content: content, SHA: cr.SHA}, nil
}

// putRequest is the contents API PUT request body.
type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

// PutFile creates or updates a file on the given branch in a single commit.
// sha identifies the version being replaced; pass empty for a new file.
// A stale sha surfaces as ErrConflict.
func (c *Client) PutFile(ctx context.Context, branch, path, message string, content []byte, sha string) error {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.baseURL, c.owner, c.repo, escapePath(path))

	reqBody, err := json.Marshal(putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  branch,
		SHA:     sha,
	})
	if err != nil {
		return fmt.Errorf("%w: encoding request: %v", ErrAPIError, err)
	}

	_, err = c.do(ctx, http.MethodPut, endpoint, reqBody)
	return err
}

// refResponse is the git refs API response.
type refResponse struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

// repoResponse is the repository metadata response.
type repoResponse struct {
	DefaultBranch string `json:"default_branch"`
}

// EnsureBranch creates the branch from the repository's default branch head
// when it does not exist yet.
func (c *Client) EnsureBranch(ctx context.Context, branch string) error {
	refURL := fmt.Sprintf("%s/repos/%s/%s/git/ref/heads/%s",
		c.baseURL, c.owner, c.repo, url.PathEscape(branch))

	if _, err := c.do(ctx, http.MethodGet, refURL, nil); err == nil {
		return nil
	} else if !errors.Is(err, ErrFileNotFound) {
		return err
	}

	repoURL := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, c.owner, c.repo)
	body, err := c.do(ctx, http.MethodGet, repoURL, nil)
	if err != nil {
		return err
	}
	var repo repoResponse
	if err := json.Unmarshal(body, &repo); err != nil {
		return fmt.Errorf("%w: decoding repository response: %v", ErrAPIError, err)
	}

	headURL := fmt.Sprintf("%s/repos/%s/%s/git/ref/heads/%s",
		c.baseURL, c.owner, c.repo, url.PathEscape(repo.DefaultBranch))
	body, err = c.do(ctx, http.MethodGet, headURL, nil)
	if err != nil {
		return err
	}
	var head refResponse
	if err := json.Unmarshal(body, &head); err != nil {
		return fmt.Errorf("%w: decoding ref response: %v", ErrAPIError, err)
	}

	createBody, err := json.Marshal(map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": head.Object.SHA,
	})
	if err != nil {
		return fmt.Errorf("%w: encoding ref request: %v", ErrAPIError, err)
	}

	createURL := fmt.Sprintf("%s/repos/%s/%s/git/refs", c.baseURL, c.owner, c.repo)
	_, err = c.do(ctx, http.MethodPost, createURL, createBody)
	return err
}

// do executes one API request and maps error statuses to sentinels.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrAPIError, err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "arxiv-radar")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPIError, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrAPIError, err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return respBody, nil
	case http.StatusNotFound:
		return nil, ErrFileNotFound
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", ErrConflict, strings.TrimSpace(string(respBody)))
	case http.StatusUnauthorized, http.StatusForbidden:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return nil, ErrRateLimited
		}
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, fmt.Errorf("%w: status %d: %s", ErrAPIError, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
}

// escapePath escapes each path segment while keeping separators.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
