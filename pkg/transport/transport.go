// Package transport is the shared HTTP transport used by the ingestion,
// media, and prompt endpoints. It owns auth-header construction, bounds
// every request with a per-attempt deadline, and classifies failures into
// typed network/HTTP errors for retry classification.
package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/langfuse/langfuse-go/pkg/version"
)

// Config holds connection and credential settings shared by every request.
type Config struct {
	BaseURL        string
	PublicKey      string
	SecretKey      string
	SDKIntegration string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

const defaultBaseURL = "https://cloud.langfuse.com"
const defaultSDKIntegration = "DEFAULT"
const defaultRequestTimeout = 10 * time.Second

// Client issues authenticated requests against the langfuse API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// New builds a Client, applying the documented defaults: baseUrl
// cloud.langfuse.com with trailing slashes stripped, sdkIntegration
// "DEFAULT", requestTimeout 10s.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.SDKIntegration == "" {
		cfg.SDKIntegration = defaultSDKIntegration
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: cfg.HTTPClient, logger: slog.Default()}
}

// Configured reports whether credentials are present. Absence disables
// transmission with a warning rather than a panic/throw.
func (c *Client) Configured() bool {
	return c.cfg.PublicKey != ""
}

// NetworkError wraps a transport-level failure (connection refused, DNS,
// context deadline exceeded while waiting on the round trip). Always
// retryable.
type NetworkError struct{ Err error }

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError wraps a response outside the success range. Retryable when
// Status < 200 or >= 400.
type HTTPError struct {
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Status, truncateForError(e.Body))
}

func truncateForError(b []byte) string {
	const max = 500
	if len(b) > max {
		return string(b[:max]) + "…"
	}
	return string(b)
}

// Response is the decoded result of a round trip. Do, PutRaw and GetRaw
// also return it alongside an *HTTPError.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Do issues an authenticated JSON request. body is marshaled when non-nil.
// A status below 200 or from 400 up yields *HTTPError (207 and other 2xx/3xx
// statuses do not); a transport-level failure yields
// *NetworkError; both satisfy errors.As for retry classification. When ctx
// carries no deadline of its own, the configured RequestTimeout bounds the
// attempt; callers that derive a per-attempt deadline (the flusher's retry
// loop, the prompt cache's fetchTimeoutMs override) keep their own.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", method, "path", path, "error", err)
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	result := &Response{StatusCode: resp.StatusCode, Body: respBody, Header: resp.Header}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		c.logger.Debug("non-success response", "method", method, "path", path, "status", resp.StatusCode)
		return result, &HTTPError{Status: resp.StatusCode, Body: respBody}
	}
	return result, nil
}

// PutRaw uploads raw bytes to an arbitrary presigned URL. No langfuse auth
// headers are attached; the URL itself carries the upload authorization.
func (c *Client) PutRaw(ctx context.Context, url string, data []byte, headers map[string]string) (*Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	result := &Response{StatusCode: resp.StatusCode, Body: respBody, Header: resp.Header}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return result, &HTTPError{Status: resp.StatusCode, Body: respBody}
	}
	return result, nil
}

// GetRaw downloads raw bytes from an arbitrary presigned URL. Like PutRaw,
// no langfuse auth headers are attached.
func (c *Client) GetRaw(ctx context.Context, url string) (*Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	result := &Response{StatusCode: resp.StatusCode, Body: respBody, Header: resp.Header}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return result, &HTTPError{Status: resp.StatusCode, Body: respBody}
	}
	return result, nil
}

// setAuthHeaders attaches the headers every langfuse API request must
// carry.
func (c *Client) setAuthHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Langfuse-Sdk-Name", version.SDKName)
	req.Header.Set("X-Langfuse-Sdk-Version", version.SDKVersion)
	req.Header.Set("X-Langfuse-Sdk-Variant", version.SDKVariant)
	req.Header.Set("X-Langfuse-Sdk-Integration", c.cfg.SDKIntegration)
	req.Header.Set("X-Langfuse-Public-Key", c.cfg.PublicKey)

	if c.cfg.SecretKey != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(c.cfg.PublicKey + ":" + c.cfg.SecretKey))
		req.Header.Set("Authorization", "Basic "+creds)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.cfg.PublicKey)
	}
}
