package nuget

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matzehuels/setupdb/pkg/buildinfo"
	"github.com/matzehuels/setupdb/pkg/cache"
	"github.com/matzehuels/setupdb/pkg/errors"
	"github.com/matzehuels/setupdb/pkg/httputil"
	"github.com/matzehuels/setupdb/pkg/observability"
)

// Default feed endpoints (nuget.org).
const (
	DefaultIndexURL = "https://api.nuget.org/v3/registration3"
	DefaultFlatURL  = "https://api.nuget.org/v3-flatcontainer"
)

const defaultTimeout = 10 * time.Second

// Options configures a [Client]. Zero values select the defaults.
type Options struct {
	IndexURL   string        // Registration base URL (default [DefaultIndexURL])
	FlatURL    string        // Flat container base URL (default [DefaultFlatURL])
	Timeout    time.Duration // Per-request timeout (default 10s)
	Retries    int           // Total attempts per request (default 3)
	RetryDelay time.Duration // Delay before the first retry, doubled after each (default 1s)
	UserAgent  string        // User-Agent header (default "setupdb/{version}")

	// Cache stores version lookups and manifests. Nil disables caching.
	Cache cache.Cache
	// Keyer builds cache keys (default [cache.NewDefaultKeyer]).
	Keyer cache.Keyer
	// CacheTTL is how long a version lookup is reused. Zero disables caching.
	CacheTTL time.Duration
	// Refresh skips cached version lookups; fresh results are still written.
	Refresh bool

	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client talks to a NuGet v3 feed.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	http      *http.Client
	indexURL  string
	flatURL   string
	userAgent string
	policy    httputil.Policy

	cache    cache.Cache
	keyer    cache.Keyer
	cacheTTL time.Duration
	refresh  bool
}

// NewClient creates a client. Feed URLs must be http or https.
func NewClient(opts Options) (*Client, error) {
	c := &Client{
		http:      opts.HTTPClient,
		indexURL:  strings.TrimRight(or(opts.IndexURL, DefaultIndexURL), "/"),
		flatURL:   strings.TrimRight(or(opts.FlatURL, DefaultFlatURL), "/"),
		userAgent: or(opts.UserAgent, buildinfo.UserAgent()),
		policy:    httputil.Policy{Attempts: opts.Retries, Delay: opts.RetryDelay},
		cache:     opts.Cache,
		keyer:     opts.Keyer,
		cacheTTL:  opts.CacheTTL,
		refresh:   opts.Refresh,
	}
	if err := errors.ValidateURL(c.indexURL); err != nil {
		return nil, err
	}
	if err := errors.ValidateURL(c.flatURL); err != nil {
		return nil, err
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.policy.Attempts <= 0 {
		c.policy.Attempts = httputil.DefaultPolicy.Attempts
	}
	if c.policy.Delay <= 0 {
		c.policy.Delay = httputil.DefaultPolicy.Delay
	}
	if c.cache == nil || c.cacheTTL <= 0 {
		c.cache = cache.NewNullCache()
	}
	if c.keyer == nil {
		c.keyer = cache.NewDefaultKeyer()
	}
	return c, nil
}

// IndexURL returns the registration base URL in use.
func (c *Client) IndexURL() string { return c.indexURL }

// FlatURL returns the flat container base URL in use.
func (c *Client) FlatURL() string { return c.flatURL }

// get fetches url with retries and returns the whole body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := httputil.Retry(ctx, c.policy, func() error {
		var err error
		body, err = c.doRequest(ctx, url)
		return err
	})
	return body, err
}

func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request for %s", url)
	}
	req.Header.Set("User-Agent", c.userAgent)

	host, path := req.URL.Host, req.URL.Path
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, httputil.Retryable(&errors.RemoteFetchError{URL: url, Err: err})
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(url, resp.StatusCode); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, httputil.Retryable(&errors.RemoteFetchError{URL: url, Err: fmt.Errorf("read body: %w", err)})
	}
	return data, nil
}

func checkStatus(url string, code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	err := &errors.RemoteFetchError{URL: url, Status: code}
	if err.Temporary() {
		return httputil.Retryable(err)
	}
	return err
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
