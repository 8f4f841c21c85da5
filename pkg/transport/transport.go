// Package transport issues authenticated HTTP requests against the LeakIX
// API and classifies every response into an Outcome. Network failures are
// converted to outcomes, never propagated as raw errors to engine code.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/leakix-tools/leakix-go/pkg/logging"
)

const (
	// DefaultBaseURL is the production LeakIX API.
	DefaultBaseURL = "https://leakix.net"

	// DefaultTimeout is the per-request ceiling. A socket hung beyond it
	// surfaces as a transport error, not a stuck process.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimitHeader carries the retry-after hint on 429
	// responses. Observed value, not documented upstream; override via
	// Config if the live API changes.
	DefaultRateLimitHeader = "x-limited-for"

	// DefaultPageLimitSentinel is the error string the API returns when
	// the account tier's page limit is reached. Same caveat as above.
	DefaultPageLimitSentinel = "Page limit"
)

// Config holds transport configuration.
type Config struct {
	// BaseURL of the API. Defaults to DefaultBaseURL.
	BaseURL string

	// APIKey sent in the api-key header.
	APIKey string

	// UserAgent identifies this client to the upstream service.
	UserAgent string

	// Timeout per HTTP request. Defaults to DefaultTimeout.
	Timeout time.Duration

	// RateLimitHeader and PageLimitSentinel are upstream-specific
	// constants, configurable because they are observed rather than
	// documented.
	RateLimitHeader   string
	PageLimitSentinel string
}

// Client performs API calls and classifies responses.
type Client struct {
	httpClient *http.Client

	// streamClient has no overall timeout: http.Client.Timeout covers the
	// body read, which would cut a long-lived bulk stream mid-flight.
	// Stream lifetime is bounded by the caller's context instead.
	streamClient *http.Client

	cfg    Config
	logger zerolog.Logger
}

// New creates a transport client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimitHeader == "" {
		cfg.RateLimitHeader = DefaultRateLimitHeader
	}
	if cfg.PageLimitSentinel == "" {
		cfg.PageLimitSentinel = DefaultPageLimitSentinel
	}

	return &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{},
		cfg:          cfg,
		logger:       logging.NewLogger("transport"),
	}
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// Fetch performs one GET request and classifies the response.
//
// Classification priority: transport failure, 429, other >=400, empty
// body, page-limit sentinel, unparseable JSON, page.
func (c *Client) Fetch(ctx context.Context, endpoint string, params map[string]string) Outcome {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := c.newRequest(ctx, endpoint, params)
	if err != nil {
		return Outcome{Kind: KindTransportError, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Request failed")
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return Outcome{Kind: KindTransportError, Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusTooManyRequests {
		rateLimitedTotal.Inc()
		return Outcome{
			Kind:       KindRateLimited,
			Status:     resp.StatusCode,
			RetryAfter: c.retryAfter(resp.Header),
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn().Int("status", resp.StatusCode).Str("endpoint", endpoint).Msg("HTTP error")
		return Outcome{
			Kind:   KindTransportError,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("http status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Kind: KindTransportError, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if len(body) == 0 {
		return Outcome{Kind: KindEndOfResults, Status: resp.StatusCode}
	}

	return c.classifyBody(body, resp)
}

// classifyBody distinguishes the page-limit sentinel, malformed payloads
// and real pages.
func (c *Client) classifyBody(body []byte, resp *http.Response) Outcome {
	ttl := extractTTL(resp.Header)

	var sentinel struct {
		Error string `json:"Error"`
	}
	if err := json.Unmarshal(body, &sentinel); err == nil && sentinel.Error == c.cfg.PageLimitSentinel {
		return Outcome{Kind: KindPageLimit, Status: resp.StatusCode, Raw: body}
	}

	records, err := SplitRecords(body)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Response body is not valid JSON")
		return Outcome{Kind: KindMalformed, Status: resp.StatusCode}
	}

	return Outcome{
		Kind:     KindPage,
		Records:  records,
		Raw:      body,
		Status:   resp.StatusCode,
		CacheTTL: ttl,
	}
}

// OpenStream opens the long-lived bulk endpoint connection and hands the
// body to the caller, who owns it until closed. The bulk endpoint returns
// newline-delimited JSON unconditionally, so no Accept header is sent.
func (c *Client) OpenStream(ctx context.Context, endpoint string, params map[string]string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, fmt.Errorf("open stream: %w", err)
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			rateLimitedTotal.Inc()
		}
		return nil, fmt.Errorf("open stream: http status %d", resp.StatusCode)
	}

	return resp.Body, nil
}

func (c *Client) newRequest(ctx context.Context, endpoint string, params map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if len(params) > 0 {
		q := url.Values{}
		for key, value := range params {
			q.Set(key, value)
		}
		req.URL.RawQuery = q.Encode()
	}

	req.Header.Set("api-key", c.cfg.APIKey)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	return req, nil
}

// retryAfter parses the rate-limit header. Zero means unspecified.
func (c *Client) retryAfter(headers http.Header) time.Duration {
	value := headers.Get(c.cfg.RateLimitHeader)
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// extractTTL reads caching metadata from response headers: Cache-Control
// max-age first, then Expires. Non-positive or unparseable values are
// ignored and the default TTL applies.
func extractTTL(headers http.Header) time.Duration {
	for _, directive := range strings.Split(headers.Get("Cache-Control"), ",") {
		directive = strings.TrimSpace(directive)
		if !strings.HasPrefix(directive, "max-age=") {
			continue
		}
		seconds, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age="))
		if err != nil || seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if expiresStr := headers.Get("Expires"); expiresStr != "" {
		expires, err := http.ParseTime(expiresStr)
		if err != nil {
			return 0
		}
		if ttl := time.Until(expires); ttl > 0 {
			return ttl
		}
	}

	return 0
}

// SplitRecords breaks a page payload into individual record documents.
// The pagination engine also uses it to re-split cached raw payloads.
// A JSON array yields its elements; an object with an "events" array
// yields the events; any other object is a single record.
func SplitRecords(body []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var records []json.RawMessage
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var envelope struct {
		Events []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if envelope.Events != nil {
		return envelope.Events, nil
	}

	return []json.RawMessage{json.RawMessage(body)}, nil
}
