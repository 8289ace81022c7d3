package constants

import (
	"time"
)

// Version generation defaults
const (
	// DefaultBranch - branch treated as the release line when REPO_DEFAULT_BRANCH is unset
	DefaultBranch = "main"
)

// Version retrieval defaults
const (
	// DefaultArtifactName - artifact that carries the version payload
	DefaultArtifactName = "version"

	// DefaultWorkflowName - workflow searched when neither a flag nor GITHUB_WORKFLOW names one
	DefaultWorkflowName = "generate-version"

	// DefaultMaxPages - lookback bound for workflow run pagination
	// 10 pages of 100 runs covers several weeks of history for busy repositories
	DefaultMaxPages = 10

	// DefaultPageSize - runs requested per page (GitHub maximum is 100)
	DefaultPageSize = 100

	// MaxArtifactPayloadBytes - upper bound on the decompressed version payload
	// A version string is at most 255 bytes; anything far larger is not a version artifact
	MaxArtifactPayloadBytes = 64 * 1024

	// MaxArtifactArchiveBytes - upper bound on the downloaded artifact zip
	MaxArtifactArchiveBytes = 10 * 1024 * 1024
)

// GitHub API
const (
	// DefaultGitHubAPIURL - public GitHub REST endpoint (GHES sets GITHUB_API_URL)
	DefaultGitHubAPIURL = "https://api.github.com"

	// GitHubAPIVersion - value of the X-GitHub-Api-Version header
	GitHubAPIVersion = "2022-11-28"

	// GitHubAcceptHeader - media type requested from the REST API
	GitHubAcceptHeader = "application/vnd.github+json"
)

// Retry configuration
const (
	// MaxRetries - maximum number of retries for transient errors
	MaxRetries = 5

	// RetryInitialDelay - initial delay before first retry (500ms)
	RetryInitialDelay = 500 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (30s)
	// Exponential backoff with jitter caps at this value
	RetryMaxDelay = 30 * time.Second

	// RetryAfterCap - longest server-requested wait (Retry-After / X-RateLimit-Reset) we honour
	// A longer wait would outlive most CI step timeouts; failing is more useful
	RetryAfterCap = 2 * time.Minute
)

// HTTP Client Timeouts
const (
	// HTTPRequestTimeout - per-request timeout including body read (30 seconds)
	HTTPRequestTimeout = 30 * time.Second

	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (15 seconds)
	HTTPTLSHandshakeTimeout = 15 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second
)
