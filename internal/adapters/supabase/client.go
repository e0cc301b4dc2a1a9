// Package supabase is a minimal client for the Supabase REST (PostgREST) and
// Auth (GoTrue) endpoints.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrNotConfigured is returned by New when URL or key is missing.
var ErrNotConfigured = errors.New("supabase url and api key are required")

// Config holds client configuration.
type Config struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

// Client issues requests against one Supabase project.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

// Request describes one call. Path is relative to the project URL,
// e.g. "/rest/v1/accounts".
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Bearer overrides the API key in the Authorization header.
	Bearer string
	Header http.Header
}

// Response is a buffered HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// JSON returns the body parsed with gjson.
func (r *Response) JSON() gjson.Result {
	return gjson.ParseBytes(r.Body)
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase: %d %s", e.Status, e.Message)
}

// Do sends req and returns the response. Non-2xx responses are returned as
// *APIError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	reqURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		reqURL += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("apikey", c.apiKey)
	bearer := req.Bearer
	if bearer == "" {
		bearer = c.apiKey
	}
	httpReq.Header.Set("Authorization", "Bearer "+bearer)
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	out := &Response{StatusCode: resp.StatusCode, Body: data, Header: resp.Header}
	if resp.StatusCode >= 400 {
		return out, &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	return out, nil
}

// errorMessage extracts the message from GoTrue and PostgREST error bodies.
func errorMessage(body []byte) string {
	res := gjson.ParseBytes(body)
	for _, key := range []string{"msg", "message", "error_description", "error"} {
		if v := res.Get(key); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return strings.TrimSpace(string(body))
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
