// Package github is a small client for the GitHub Actions REST API: workflow
// runs, run artifacts and artifact downloads.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/rescale/commit-semver/internal/config"
	"github.com/rescale/commit-semver/internal/constants"
	ihttp "github.com/rescale/commit-semver/internal/http"
	"github.com/rescale/commit-semver/internal/ratelimit"
	"github.com/rescale/commit-semver/internal/version"
)

// retryLogger implements the retryablehttp.LeveledLogger interface on zerolog
type retryLogger struct {
	log zerolog.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings, not all info
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Fields(keysAndValues).Msg(msg)
}

// authTransport adds the API headers. The token is only sent to the API
// host, so redirects to blob storage for artifact downloads go without it.
type authTransport struct {
	base    nethttp.RoundTripper
	apiHost string
	token   string
}

func (t *authTransport) RoundTrip(req *nethttp.Request) (*nethttp.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", version.UserAgent())
	if req.URL.Host == t.apiHost {
		req.Header.Set("Accept", constants.GitHubAcceptHeader)
		req.Header.Set("X-GitHub-Api-Version", constants.GitHubAPIVersion)
		if t.token != "" {
			req.Header.Set("Authorization", "Bearer "+t.token)
		}
	} else {
		req.Header.Del("Authorization")
	}
	return t.base.RoundTrip(req)
}

// Client talks to the Actions API of one repository.
type Client struct {
	httpClient *nethttp.Client
	baseURL    *url.URL
	owner      string
	repo       string
	limiter    *ratelimit.RateLimiter
	log        zerolog.Logger

	retryWaitMin time.Duration
	retryWaitMax time.Duration
	// bodyAttempts bounds restarts of a download whose body read failed.
	bodyAttempts int
}

// Option adjusts a Client at construction.
type Option func(*options)

type options struct {
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	limiter      *ratelimit.RateLimiter
}

// WithRetryWait overrides the retry backoff bounds.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(o *options) {
		o.retryWaitMin = minWait
		o.retryWaitMax = maxWait
	}
}

// WithLimiter replaces the default core-scope limiter.
func WithLimiter(l *ratelimit.RateLimiter) Option {
	return func(o *options) { o.limiter = l }
}

// NewClient wraps httpClient with authentication, retries and pacing.
// httpClient comes from ihttp.NewClient; its Transport is reused.
func NewClient(cfg config.GitHubConfig, httpClient *nethttp.Client, log zerolog.Logger, opts ...Option) (*Client, error) {
	o := options{
		retryWaitMin: constants.RetryInitialDelay,
		retryWaitMax: constants.RetryMaxDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.limiter == nil {
		o.limiter = ratelimit.NewCoreScopeRateLimiter()
	}

	owner, repo, err := cfg.OwnerRepo()
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.APIURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q", cfg.APIURL)
	}

	transport := httpClient.Transport
	if transport == nil {
		transport = nethttp.DefaultTransport
	}
	inner := &nethttp.Client{
		Transport: &authTransport{base: transport, apiHost: base.Host, token: cfg.Token},
		Timeout:   httpClient.Timeout,
	}

	// Wrap with retry logic
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = inner
	retryClient.RetryMax = max(cfg.MaxRetries, 0)
	retryClient.RetryWaitMin = o.retryWaitMin
	retryClient.RetryWaitMax = o.retryWaitMax
	retryClient.CheckRetry = ihttp.CheckRetry
	retryClient.Backoff = ihttp.Backoff
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = &retryLogger{log: log}

	return &Client{
		httpClient: retryClient.StandardClient(),
		baseURL:    base,
		owner:      owner,
		repo:       repo,
		limiter:    o.limiter,
		log:        log,

		retryWaitMin: o.retryWaitMin,
		retryWaitMax: o.retryWaitMax,
		bodyAttempts: max(cfg.MaxRetries, 1),
	}, nil
}

// Repository returns owner/repo.
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

// repoPath returns the API path below /repos/{owner}/{repo}.
func (c *Client) repoPath(parts ...string) string {
	escaped := make([]string, 0, len(parts)+3)
	escaped = append(escaped, "repos", url.PathEscape(c.owner), url.PathEscape(c.repo))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return "/" + strings.Join(escaped, "/")
}

// doRequest performs a GET with rate limiting. Non-2xx answers become
// *StatusError; failures that outlived the retries wrap errs.ErrTransientAPI.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) (*nethttp.Response, error) {
	// Wait for rate limiter to allow request
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}

	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = query.Encode()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("path", path).Msg("API call failed")
		return nil, classify(ctx, fmt.Errorf("GET %s: %w", path, err))
	}
	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("API call")

	c.observeRateLimit(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, classify(ctx, newStatusError(req, resp))
	}
	return resp, nil
}

// observeRateLimit pauses the limiter when GitHub reports an exhausted budget,
// so later calls wait for the reset instead of burning retries.
func (c *Client) observeRateLimit(resp *nethttp.Response) {
	if resp.Header.Get("X-RateLimit-Remaining") != "0" {
		return
	}
	c.limiter.Drain()
	if wait, ok := ihttp.RateLimitWait(resp, time.Now()); ok && wait > 0 {
		c.log.Warn().Dur("wait", wait).Msg("GitHub rate limit exhausted")
		c.limiter.SetCooldown(wait)
	}
}

// getJSON GETs path and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) (*nethttp.Response, error) {
	resp, err := c.doRequest(ctx, path, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp, nil
}
