package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ramonehamilton/nft-rarity/internal/rarity"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultWorkers    = 8
	DefaultUserAgent  = "nft-rarity/1.0"

	InitialBackoff = 1 * time.Second
	MaxBackoff     = 16 * time.Second

	// maxBodySize caps a single metadata document.
	maxBodySize = 1 << 20

	idPlaceholder = "{id}"
)

// DefaultRateLimit allows 10 requests per second.
var DefaultRateLimit = rate.Every(100 * time.Millisecond)

// ClientOptions configures the metadata client.
type ClientOptions struct {
	// BaseURL is either a prefix ("https://host/meta", fetched as
	// BaseURL/<id>.json) or a template containing "{id}".
	BaseURL string

	RateLimit      rate.Limit
	Timeout        time.Duration
	MaxRetries     int
	Workers        int
	UserAgent      string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// HTTPClient allows a custom HTTP client
	HTTPClient *http.Client
}

// DefaultClientOptions returns conservative default options.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		RateLimit:      DefaultRateLimit,
		Timeout:        DefaultTimeout,
		MaxRetries:     DefaultMaxRetries,
		Workers:        DefaultWorkers,
		UserAgent:      DefaultUserAgent,
		InitialBackoff: InitialBackoff,
		MaxBackoff:     MaxBackoff,
	}
}

// Client fetches token metadata with rate limiting and retries.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	opts       ClientOptions

	counters *counters
}

// counters are shared between a client and its WithBaseURL copies.
type counters struct {
	requests atomic.Uint64
	failures atomic.Uint64
	retries  atomic.Uint64
}

// NewClient creates a metadata client. Zero-valued options take defaults.
func NewClient(options ClientOptions) *Client {
	defaults := DefaultClientOptions()
	if options.RateLimit == 0 {
		options.RateLimit = defaults.RateLimit
	}
	if options.Timeout == 0 {
		options.Timeout = defaults.Timeout
	}
	if options.MaxRetries < 0 {
		options.MaxRetries = 0
	}
	if options.Workers <= 0 {
		options.Workers = defaults.Workers
	}
	if options.UserAgent == "" {
		options.UserAgent = defaults.UserAgent
	}
	if options.InitialBackoff <= 0 {
		options.InitialBackoff = defaults.InitialBackoff
	}
	if options.MaxBackoff <= 0 {
		options.MaxBackoff = defaults.MaxBackoff
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: options.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(options.RateLimit, 1),
		opts:       options,
		counters:   &counters{},
	}
}

// WithBaseURL returns a client sharing this client's limiter and HTTP client
// but fetching from a different base URL.
func (c *Client) WithBaseURL(baseURL string) *Client {
	opts := c.opts
	opts.BaseURL = baseURL
	return &Client{
		httpClient: c.httpClient,
		limiter:    c.limiter,
		opts:       opts,
		counters:   c.counters,
	}
}

// TokenURL returns the metadata URL for tokenID.
func (c *Client) TokenURL(tokenID string) (string, error) {
	if c.opts.BaseURL == "" {
		return "", &APIError{Type: ErrInvalidParams, Message: "base URL is required"}
	}
	escaped := url.PathEscape(tokenID)
	if strings.Contains(c.opts.BaseURL, idPlaceholder) {
		return strings.ReplaceAll(c.opts.BaseURL, idPlaceholder, escaped), nil
	}
	return strings.TrimRight(c.opts.BaseURL, "/") + "/" + escaped + ".json", nil
}

// FetchToken fetches and normalises the metadata of a single token.
func (c *Client) FetchToken(ctx context.Context, tokenID string) (rarity.Item, error) {
	u, err := c.TokenURL(tokenID)
	if err != nil {
		return rarity.Item{}, err
	}

	body, err := c.doRequest(ctx, u)
	if err != nil {
		return rarity.Item{}, fmt.Errorf("failed to fetch token %s: %w", tokenID, err)
	}

	var raw RawMetadata
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return rarity.Item{}, &APIError{
			Type:    ErrParseError,
			Message: fmt.Sprintf("failed to parse metadata for token %s", tokenID),
			Err:     err,
		}
	}

	return Normalize(tokenID, raw)
}

// doRequest performs a GET with rate limiting, retrying network errors,
// 429 and 5xx responses with exponential backoff.
func (c *Client) doRequest(ctx context.Context, u string) ([]byte, error) {
	var lastErr error
	backoff := c.opts.InitialBackoff

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			c.counters.retries.Add(1)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &APIError{Type: ErrRateLimited, Message: "rate limiter error", Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, &APIError{Type: ErrInvalidParams, Message: "failed to create request", Err: err}
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")

		c.counters.requests.Add(1)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.counters.failures.Add(1)
			lastErr = &APIError{Type: ErrUnavailable, Message: "HTTP request failed", Err: err}
			if ctx.Err() != nil {
				return nil, lastErr
			}
			if attempt < c.opts.MaxRetries {
				if err := c.sleep(ctx, backoff); err != nil {
					return nil, lastErr
				}
			}
			backoff = min(backoff*2, c.opts.MaxBackoff)
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				return nil, &APIError{Type: ErrUnavailable, Message: "failed to read response body", Err: readErr}
			}
			return body, nil

		case resp.StatusCode == http.StatusNotFound:
			c.counters.failures.Add(1)
			return nil, &APIError{Type: ErrNotFound, StatusCode: resp.StatusCode, Message: "metadata not found"}

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			c.counters.failures.Add(1)
			errType := ErrUnavailable
			if resp.StatusCode == http.StatusTooManyRequests {
				errType = ErrRateLimited
			}
			lastErr = &APIError{
				Type:       errType,
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			}
			wait := backoff
			if ra := retryAfter(resp.Header.Get("Retry-After")); ra > 0 {
				wait = min(ra, c.opts.MaxBackoff)
			}
			if attempt < c.opts.MaxRetries {
				if err := c.sleep(ctx, wait); err != nil {
					return nil, lastErr
				}
			}
			backoff = min(backoff*2, c.opts.MaxBackoff)

		default:
			c.counters.failures.Add(1)
			return nil, &APIError{
				Type:       ErrUnavailable,
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("unexpected status code: %d, body: %s", resp.StatusCode, string(body)),
			}
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// GetStats returns a snapshot of the client counters.
func (c *Client) GetStats() ClientStats {
	return ClientStats{
		TotalRequests:  c.counters.requests.Load(),
		FailedRequests: c.counters.failures.Load(),
		Retries:        c.counters.retries.Load(),
	}
}
