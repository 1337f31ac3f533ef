// Package client formats requests against the post API. Every request
// re-reads the persisted session and, when it holds a token, sends it as a
// bearer credential.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"memories/internal/models"
)

const DefaultBaseURL = "http://localhost:5000"

// APIError is returned for any non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// SearchQuery selects posts by title text and tags.
type SearchQuery struct {
	Search string
	Tags   []string
}

// SearchResult is the body of a search response.
type SearchResult struct {
	Data []*models.Post `json:"data"`
}

// MessageResult is the body of responses that only carry a message.
type MessageResult struct {
	Message string `json:"message"`
}

type Client struct {
	baseURL     string
	httpClient  *http.Client
	sessionPath string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSessionPath overrides where the session file is read from.
func WithSessionPath(path string) Option {
	return func(c *Client) { c.sessionPath = path }
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sessionPath == "" {
		if path, err := DefaultSessionPath(); err == nil {
			c.sessionPath = path
		}
	}
	return c
}

// SessionPath is the file consulted for the bearer token.
func (c *Client) SessionPath() string { return c.sessionPath }

func (c *Client) FetchPost(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) FetchPosts(ctx context.Context, page int) (*models.PostPage, error) {
	var result models.PostPage
	if err := c.do(ctx, http.MethodGet, "/posts?page="+strconv.Itoa(page), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchPostsBySearch sends "none" for an empty search string.
func (c *Client) FetchPostsBySearch(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	search := q.Search
	if search == "" {
		search = "none"
	}
	params := url.Values{}
	params.Set("searchQuery", search)
	params.Set("tags", strings.Join(q.Tags, ","))

	var result SearchResult
	if err := c.do(ctx, http.MethodGet, "/posts/search?"+params.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CreatePost(ctx context.Context, input models.PostInput) (*models.Post, error) {
	var post models.Post
	if err := c.do(ctx, http.MethodPost, "/posts", input, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// LikePost toggles the caller's like. Without a session the server answers
// 200 with an "Unauthenticated" message, reported here as a 401 APIError.
func (c *Client) LikePost(ctx context.Context, id string) (*models.Post, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPatch, "/posts/"+url.PathEscape(id)+"/likePost", nil, &raw); err != nil {
		return nil, err
	}

	// A post may carry "Unauthenticated" as its own message, so only a
	// body without an _id is the server's reply.
	var reply struct {
		ID      string `json:"_id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &reply); err == nil && reply.ID == "" && reply.Message == "Unauthenticated" {
		return nil, &APIError{Status: http.StatusUnauthorized, Message: reply.Message}
	}

	var post models.Post
	if err := json.Unmarshal(raw, &post); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &post, nil
}

func (c *Client) Comment(ctx context.Context, value, id string) (*models.Post, error) {
	var post models.Post
	body := map[string]string{"value": value}
	if err := c.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(id)+"/commentPost", body, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost returns the payload echoed back by the server.
func (c *Client) UpdatePost(ctx context.Context, id string, update models.PostUpdate) (*models.PostUpdate, error) {
	var echoed models.PostUpdate
	if err := c.do(ctx, http.MethodPatch, "/posts/"+url.PathEscape(id), update, &echoed); err != nil {
		return nil, err
	}
	return &echoed, nil
}

func (c *Client) DeletePost(ctx context.Context, id string) (*MessageResult, error) {
	var result MessageResult
	if err := c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) error {
	if c.sessionPath == "" {
		return nil
	}
	session, err := LoadSession(c.sessionPath)
	if err != nil {
		return err
	}
	if session != nil && session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+session.Token)
	} else {
		slog.Debug("no session token, sending anonymous request", "path", req.URL.Path)
	}
	return nil
}

// errorMessage extracts {message} bodies and falls back to the raw text.
func errorMessage(raw []byte) string {
	var msg MessageResult
	if err := json.Unmarshal(raw, &msg); err == nil && msg.Message != "" {
		return msg.Message
	}
	return strings.TrimSpace(string(raw))
}
