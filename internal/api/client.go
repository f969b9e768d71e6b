// Package api fetches chart specifications from the dashboard backend.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rshade/statdash/internal/catalog"
	"github.com/rshade/statdash/internal/logging"
)

// DefaultTimeout bounds a single fetch when the caller sets no deadline.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 32 << 20

// FetchError describes a failed fetch: transport error, non-2xx status, or a
// body that is not JSON.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("request %s failed: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("request %s failed: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client talks to the backend JSON API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout. The current HTTP client is copied
// first, so a client passed to WithHTTPClient is never modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			return
		}
		h := *c.http
		h.Timeout = d
		c.http = &h
	}
}

// NewClient returns a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL joins the base URL, path and an already-encoded query.
func (c *Client) URL(path, query string) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if query != "" {
		u += "?" + query
	}
	return u
}

// Fetch performs a GET and returns the JSON body.
func (c *Client) Fetch(ctx context.Context, path, query string) (json.RawMessage, error) {
	target := c.URL(path, query)
	log := logging.FromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if traceID := logging.TraceIDFromContext(ctx); traceID != "" {
		req.Header.Set("X-Trace-Id", traceID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: target, Status: resp.StatusCode, Err: err}
	}

	log.Debug().Ctx(ctx).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Int("bytes", len(body)).
		Msg("api fetch")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: target, Status: resp.StatusCode, Err: errors.New(statusDetail(resp.Status, body))}
	}
	if !json.Valid(body) {
		return nil, &FetchError{URL: target, Status: resp.StatusCode, Err: errors.New("response is not valid JSON")}
	}
	return json.RawMessage(body), nil
}

// FetchView fetches the chart specification of view with the given values.
func (c *Client) FetchView(
	ctx context.Context,
	cat *catalog.Catalog,
	view catalog.View,
	values map[string]string,
) (json.RawMessage, error) {
	return c.Fetch(ctx, cat.Path(view, values), cat.Query(view, values))
}

// statusDetail extracts a short reason from an error response body.
func statusDetail(status string, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return status
}
