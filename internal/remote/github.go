package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"catalogo-sync-api/internal/config"
	"catalogo-sync-api/pkg/apierror"
)

// GitHubClient implements CatalogStore against a GitHub-style contents
// API: JSON bodies, base64 file content, sha-guarded writes.
type GitHubClient struct {
	httpClient   *http.Client
	baseURL      string
	repo         string
	branch       string
	token        string
	commitAuthor string
	commitEmail  string
}

// NewGitHubClient creates a contents-API client from configuration.
func NewGitHubClient(cfg config.RemoteConfig) *GitHubClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &GitHubClient{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		repo:         cfg.Repo,
		branch:       cfg.Branch,
		token:        cfg.Token,
		commitAuthor: cfg.CommitAuthor,
		commitEmail:  cfg.CommitEmail,
	}
}

type contentsResponse struct {
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

type writeResponse struct {
	Content *struct {
		SHA string `json:"sha"`
	} `json:"content"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

type writeRequest struct {
	Message   string     `json:"message"`
	Content   string     `json:"content,omitempty"`
	SHA       string     `json:"sha,omitempty"`
	Branch    string     `json:"branch,omitempty"`
	Committer *committer `json:"committer,omitempty"`
}

type committer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// GetFile fetches a file and its content hash.
func (c *GitHubClient) GetFile(ctx context.Context, path string) (*File, error) {
	endpoint := c.contentsURL(path)
	if c.branch != "" {
		endpoint += "?ref=" + url.QueryEscape(c.branch)
	}

	body, _, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var resp contentsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apierror.Network(fmt.Sprintf("malformed contents response for %s: %v", path, err))
	}

	// The API wraps base64 content at 60 columns.
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(resp.Content, "\n", ""))
	if err != nil {
		return nil, apierror.Network(fmt.Sprintf("malformed base64 content for %s: %v", path, err))
	}

	return &File{Content: raw, SHA: resp.SHA}, nil
}

// PutFile creates or replaces a file guarded by expectedSHA.
func (c *GitHubClient) PutFile(ctx context.Context, path string, content []byte, expectedSHA, message string) (*Commit, error) {
	req := writeRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     expectedSHA,
		Branch:  c.branch,
	}
	if c.commitAuthor != "" {
		req.Committer = &committer{Name: c.commitAuthor, Email: c.commitEmail}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal put request: %w", err)
	}

	body, _, err := c.do(ctx, http.MethodPut, c.contentsURL(path), payload)
	if err != nil {
		return nil, err
	}

	var resp writeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apierror.Network(fmt.Sprintf("malformed write response for %s: %v", path, err))
	}

	commit := &Commit{ID: resp.Commit.SHA}
	if resp.Content != nil {
		commit.NewSHA = resp.Content.SHA
	}
	return commit, nil
}

// DeleteFile removes a file guarded by its current hash.
func (c *GitHubClient) DeleteFile(ctx context.Context, path, sha, message string) error {
	req := writeRequest{Message: message, SHA: sha, Branch: c.branch}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal delete request: %w", err)
	}

	_, _, err = c.do(ctx, http.MethodDelete, c.contentsURL(path), payload)
	return err
}

func (c *GitHubClient) contentsURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/contents/%s", c.baseURL, c.repo, strings.TrimLeft(path, "/"))
}

// do executes one request and maps failures onto the error taxonomy:
// 404 NOT_FOUND, 409/422 CONFLICT (sha mismatch), deadline TIMEOUT, other
// transport failures NETWORK_ERROR.
func (c *GitHubClient) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, apierror.Timeout(fmt.Sprintf("%s %s timed out", method, endpoint))
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, 0, apierror.Timeout(fmt.Sprintf("%s %s timed out", method, endpoint))
		}
		return nil, 0, apierror.Network(fmt.Sprintf("%s %s failed: %v", method, endpoint, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, apierror.Network(fmt.Sprintf("failed to read response: %v", err))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, resp.StatusCode, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, resp.StatusCode, apierror.NotFound(fmt.Sprintf("remote file not found: %s", endpoint))
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		// The contents API reports a stale sha as 409 or 422.
		log.Printf("[GitHubClient] CAS rejection on %s %s: %s", method, endpoint, truncate(body))
		return nil, resp.StatusCode, apierror.Conflict("remote document changed since last load")
	default:
		return nil, resp.StatusCode, apierror.Network(fmt.Sprintf("%s %s returned %d: %s",
			method, endpoint, resp.StatusCode, truncate(body)))
	}
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
