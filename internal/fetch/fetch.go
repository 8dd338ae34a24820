// Package fetch performs the outbound page and asset requests for the grid
// server. A single Client carries the timeout, redirect, rate-limit, and
// body-size policy shared by thumbnail resolution and article composition.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrTooManyRedirects indicates the redirect chain exceeded the cap.
var ErrTooManyRedirects = errors.New("too many redirects")

// ErrHTTPStatus indicates a response outside the accepted status range.
var ErrHTTPStatus = errors.New("unexpected HTTP status")

const (
	maxRedirects   = 10
	maxBodyBytes   = 5 << 20
	globalBurst    = 5
	domainRate     = 1
	domainBurst    = 2
	defaultTimeout = 15 * time.Second
	defaultAccept  = "text/html,application/xhtml+xml,*/*;q=0.9"
	acceptLanguage = "en-US,en;q=0.9"
)

// Result is the outcome of a successful GET: the status, the URL after
// redirects, and the body as text. Relative references in the body must be
// resolved against FinalURL, not the requested URL.
type Result struct {
	StatusCode int
	FinalURL   string
	Body       string
}

// Client is a rate-limited HTTP fetcher.
type Client struct {
	httpClient     *http.Client
	globalLimiter  *rate.Limiter
	domainLimiters map[string]*rate.Limiter
	mu             sync.Mutex
	userAgent      string
	timeout        time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithTransport replaces the underlying round tripper. Tests use this to
// serve canned pages without a network.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// New returns a Client enforcing the given per-request timeout and a global
// requests-per-second budget. Each domain is additionally limited to one
// request per second so a page of thirty stories cannot hammer one host.
func New(rps float64, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if rps <= 0 {
		rps = 1
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return ErrTooManyRedirects
				}
				return nil
			},
		},
		globalLimiter:  rate.NewLimiter(rate.Limit(rps), globalBurst),
		domainLimiters: make(map[string]*rate.Limiter),
		userAgent:      "hngrid/1.0",
		timeout:        timeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Timeout reports the per-request timeout the client enforces.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Get fetches rawURL and returns its status, final URL, and body text.
// Responses with a status outside [200,400) return ErrHTTPStatus.
func (c *Client) Get(ctx context.Context, rawURL string) (*Result, error) {
	if err := c.globalLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("global rate limiter wait: %w", err)
	}
	if limiter := c.domainLimiter(rawURL); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("domain rate limiter wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", defaultAccept)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		StatusCode: resp.StatusCode,
		FinalURL:   finalURL,
		Body:       string(body),
	}, nil
}

// IsTimeout reports whether err stems from a timed-out request rather than
// any other network failure. Callers treat both the same way, but logs keep
// the distinction.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) domainLimiter(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}
	domain := strings.ToLower(u.Host)

	c.mu.Lock()
	defer c.mu.Unlock()

	limiter, ok := c.domainLimiters[domain]
	if !ok {
		limiter = rate.NewLimiter(domainRate, domainBurst)
		c.domainLimiters[domain] = limiter
	}
	return limiter
}
