package ratelimit

import "time"

// GitHub REST API limits
//
// Requests made with a workflow's GITHUB_TOKEN count against the repository's
// "core" resource. Personal access tokens get the larger user budget, so the
// workflow token is the binding constraint.
//
// Source: GitHub REST API documentation, "Rate limits for the REST API"
const (
	// CoreScopeLimitPerHour is the GITHUB_TOKEN limit per repository.
	CoreScopeLimitPerHour = 1000 // 0.278 requests per second
)

// CoreScopeTargetPercent: pace at 85% of the hard limit.
// The cooldown set from X-RateLimit-Reset covers the case where other jobs
// sharing the token push us over anyway.
const CoreScopeTargetPercent = 85

// CoreScopeRatePerSec is 85% of 0.278 req/sec = 0.236 req/sec
const CoreScopeRatePerSec = 0.236

// CoreScopeBurstCapacity covers one full lookup: 10 pages of runs, artifact
// listings for the matched run, one download and its redirect.
const CoreScopeBurstCapacity = 30

// NotifyMinInterval is the minimum time between consecutive wait warnings.
// Prevents log spam during sustained throttling.
const NotifyMinInterval = 10 * time.Second
