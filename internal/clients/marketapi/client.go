// Package marketapi provides the single HTTP client for the quote/history API
package marketapi

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

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/tradeonly/internal/common"
)

const (
	APIPrefix        = "/api"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 10 // requests per second

	maxErrorBody = 4 << 10
)

// Client is the HTTP client adapter. The base URL is resolved once at
// construction and never changes.
type Client struct {
	origin     string
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the API origin. The /api prefix is appended by NewClient.
func WithBaseURL(origin string) ClientOption {
	return func(c *Client) {
		c.origin = origin
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates the adapter
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.baseURL = ResolveBaseURL(c.origin, common.DefaultAPIOrigin, APIPrefix)
	return c
}

// NewClientFromConfig builds the adapter from the [api] config section
func NewClientFromConfig(cfg common.APIConfig, logger *common.Logger) *Client {
	return NewClient(
		WithBaseURL(cfg.BaseURL),
		WithTimeout(cfg.GetTimeout()),
		WithRateLimit(cfg.RateLimit),
		WithLogger(logger),
	)
}

// ResolveBaseURL picks override when set, otherwise fallback, strips any
// trailing slashes and appends prefix.
func ResolveBaseURL(override, fallback, prefix string) string {
	origin := strings.TrimSpace(override)
	if origin == "" {
		origin = fallback
	}
	return strings.TrimRight(origin, "/") + prefix
}

// BaseURL returns the resolved base URL including the API prefix
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ErrorKind classifies an HTTPError
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindStatus    ErrorKind = "status"
	KindDecode    ErrorKind = "decode"
)

// HTTPError is returned for every failed request
type HTTPError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Method     string
	Path       string
	Err        error
}

func (e *HTTPError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("market API %s error: %s (status: %d, endpoint: %s %s)", e.Kind, e.Message, e.StatusCode, e.Method, e.Path)
	}
	return fmt.Sprintf("market API %s error: %s (endpoint: %s %s)", e.Kind, e.Message, e.Method, e.Path)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Kind == KindStatus && he.StatusCode == http.StatusNotFound
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Request(ctx, http.MethodGet, path, query, nil, out)
}

// Request performs a rate-limited request against the API. body, when not
// nil, is sent as JSON. out receives the decoded response; numbers decode as
// json.Number when out is a *any.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body, out any) error {
	fail := func(kind ErrorKind, status int, msg string, err error) error {
		return &HTTPError{Kind: kind, StatusCode: status, Message: msg, Method: method, Path: path, Err: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(KindTransport, 0, "rate limit wait", err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fail(KindDecode, 0, "failed to encode request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fail(KindTransport, 0, "failed to create request", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", common.UserAgent())
	req.Header.Set("X-Request-ID", requestID)

	c.logger.Debug().Str("method", method).Str("url", c.baseURL+path).Str("request_id", requestID).Msg("Market API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(KindTransport, 0, "failed to execute request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fail(KindStatus, resp.StatusCode, errorMessage(resp.StatusCode, raw), nil)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fail(KindDecode, resp.StatusCode, "failed to decode response", err)
	}
	return nil
}

// errorMessage extracts a FastAPI style {"detail": ...} or {"error": ...}
// message, falling back to the raw body or the status text.
func errorMessage(status int, raw []byte) string {
	var envelope map[string]any
	if json.Unmarshal(raw, &envelope) == nil {
		for _, key := range []string{"detail", "error", "message"} {
			if s, ok := envelope[key].(string); ok && s != "" {
				return s
			}
		}
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return msg
	}
	return http.StatusText(status)
}
