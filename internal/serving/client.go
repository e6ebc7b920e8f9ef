// Package serving talks to the workspace model-serving REST API.
package serving

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/oauth2"
)

const (
	endpointsPath = "/api/2.0/serving-endpoints"

	// maxErrorBody caps how much of a failed response is read for diagnostics.
	maxErrorBody = 64 * 1024
)

// APIError reports a non-success response from the workspace API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	// RetryAfter is the server's Retry-After hint, zero when absent. Never acted on.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// StatusCode extracts the HTTP status from an APIError chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client issues authenticated requests against a single workspace.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient builds a workspace client whose transport attaches the bearer
// token from src to every request.
func NewClient(ctx context.Context, baseURL string, src oauth2.TokenSource, timeout time.Duration) *Client {
	if ctx == nil {
		ctx = context.Background()
	}
	base := cleanhttp.DefaultPooledClient()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	httpClient := oauth2.NewClient(ctx, src)
	httpClient.Timeout = timeout

	return &Client{
		BaseURL: baseURL,
		HTTP:    httpClient,
	}
}

// ListEndpoints returns every serving endpoint in the workspace.
func (c *Client) ListEndpoints(ctx context.Context) ([]Endpoint, error) {
	body, err := c.do(ctx, http.MethodGet, endpointsPath, nil)
	if err != nil {
		return nil, err
	}
	endpoints, err := parseEndpoints(body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: decode response: %w", http.MethodGet, endpointsPath, err)
	}
	return endpoints, nil
}

// PatchRateLimits replaces the endpoint's rate limits with limits.
// Only 200 and 201 count as success.
func (c *Client) PatchRateLimits(ctx context.Context, name string, limits []RateLimit) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("endpoint name is required")
	}

	payload, err := sjson.SetBytes([]byte(`{}`), "rate_limits", limits)
	if err != nil {
		return fmt.Errorf("encode rate limits: %w", err)
	}

	path := endpointsPath + "/" + url.PathEscape(name) + "/config"
	_, err = c.do(ctx, http.MethodPatch, path, payload, http.StatusOK, http.StatusCreated)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, accept ...int) ([]byte, error) {
	if c == nil || strings.TrimSpace(c.BaseURL) == "" {
		return nil, errors.New("serving client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	base, err := url.Parse(strings.TrimRight(c.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse workspace url: %w", err)
	}
	reqURL := base.String() + path

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.HTTP
	if client == nil {
		client = cleanhttp.DefaultClient()
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if accepted(resp.StatusCode, accept) {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
		}
		return body, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &APIError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body),
		RetryAfter: retryAfterHeader(resp),
	}
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if retry == "" {
		return 0
	}

	if seconds, err := time.ParseDuration(retry + "s"); err == nil && seconds > 0 {
		return seconds
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		if wait := time.Until(parsed); wait > 0 {
			return wait
		}
	}
	return 0
}

// accepted reports whether status is in accept, or is any 2xx when accept is empty.
func accepted(status int, accept []int) bool {
	if len(accept) == 0 {
		return status >= 200 && status < 300
	}
	for _, code := range accept {
		if status == code {
			return true
		}
	}
	return false
}

func errorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if msg := gjson.GetBytes(body, "message"); msg.Exists() && msg.String() != "" {
		return msg.String()
	}
	if code := gjson.GetBytes(body, "error_code"); code.Exists() {
		return code.String()
	}
	return ""
}
