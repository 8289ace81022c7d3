// Package ratelimit provides client-side pacing for GitHub API calls using a
// token bucket, plus a cooldown that honours server-reported exhaustion.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RateLimiter implements a token bucket rate limiter.
// It allows bursts up to maxTokens, then refills at refillRate tokens/second.
// A cooldown, once set, blocks Wait regardless of the bucket.
type RateLimiter struct {
	tokens        float64   // Current number of tokens available
	maxTokens     float64   // Maximum bucket capacity
	refillRate    float64   // Tokens added per second
	lastRefill    time.Time // Last time tokens were refilled
	cooldownUntil time.Time // Wait blocks until this instant
	lastWarnTime  time.Time // Last time we warned user about rate limiting
	mu            sync.Mutex
}

// NewRateLimiter creates a new rate limiter.
//
// Parameters:
//   - tokensPerSecond: Rate at which tokens are added (e.g., 3.0 for 3 tokens/second)
//   - burstSize: Maximum tokens that can accumulate (allows brief bursts)
func NewRateLimiter(tokensPerSecond float64, burstSize float64) *RateLimiter {
	return &RateLimiter{
		tokens:     burstSize, // Start with full bucket
		maxTokens:  burstSize,
		refillRate: tokensPerSecond,
		lastRefill: time.Now(),
	}
}

// NewCoreScopeRateLimiter creates a rate limiter for the GitHub REST "core"
// resource as seen by a workflow's GITHUB_TOKEN (1000 requests/hour per
// repository).
//
// A single lookup issues at most MaxPages run listings plus a handful of
// artifact calls, so the burst covers a whole invocation and the sustained
// rate only matters when many jobs share a token.
func NewCoreScopeRateLimiter() *RateLimiter {
	return NewRateLimiter(CoreScopeRatePerSec, CoreScopeBurstCapacity)
}

// Wait blocks until a token is available or context is cancelled.
// Returns an error if the context is cancelled before a token becomes available.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	startTime := time.Now()

	// Try immediate acquire first
	if rl.CooldownRemaining() == 0 && rl.tryAcquire() {
		return nil
	}

	// Need to wait - warn user if wait might be long
	waitTime := max(rl.timeUntilNextToken(), rl.CooldownRemaining())
	if waitTime > 2*time.Second {
		rl.mu.Lock()
		// Only warn every 10 seconds to avoid spam
		if time.Since(rl.lastWarnTime) > NotifyMinInterval {
			log.Warn().Msgf("rate limited: waiting ~%.1fs for API capacity", waitTime.Seconds())
			rl.lastWarnTime = time.Now()
		}
		rl.mu.Unlock()
	}

	for {
		// Check if context is already cancelled
		if err := ctx.Err(); err != nil {
			return err
		}

		waitDuration := rl.CooldownRemaining()
		if waitDuration == 0 {
			if rl.tryAcquire() {
				if actualWait := time.Since(startTime); actualWait > 5*time.Second {
					log.Info().Msgf("rate limit wait completed after %.1fs", actualWait.Seconds())
				}
				return nil
			}
			waitDuration = rl.timeUntilNextToken()
		}

		// Wait for either a token to be available or context cancellation
		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			// Loop again to try acquiring
		}
	}
}

// Drain empties the bucket. Called when the server reports that the budget
// is gone, so local pacing restarts from zero.
func (rl *RateLimiter) Drain() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = 0
	rl.lastRefill = time.Now()
}

// SetCooldown blocks Wait for d. An active longer cooldown is never shortened.
func (rl *RateLimiter) SetCooldown(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	until := time.Now().Add(d)
	if until.After(rl.cooldownUntil) {
		rl.cooldownUntil = until
	}
}

// CooldownRemaining returns how long Wait is still blocked by a cooldown.
func (rl *RateLimiter) CooldownRemaining() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if d := time.Until(rl.cooldownUntil); d > 0 {
		return d
	}
	return 0
}

// tryAcquire attempts to acquire one token without blocking.
// Returns true if a token was acquired, false otherwise.
func (rl *RateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked(time.Now())

	// Try to consume a token
	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return true
	}

	return false
}

func (rl *RateLimiter) refillLocked(now time.Time) {
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate

	// Cap at max tokens (don't accumulate infinitely)
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}

// timeUntilNextToken calculates how long to wait until at least one token is available.
func (rl *RateLimiter) timeUntilNextToken() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	tokensNeeded := 1.0 - rl.tokens
	if tokensNeeded <= 0 {
		return 0
	}

	secondsNeeded := tokensNeeded / rl.refillRate
	return time.Duration(secondsNeeded * float64(time.Second))
}

// GetCurrentTokens returns the current number of tokens (for testing/debugging).
func (rl *RateLimiter) GetCurrentTokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Refill based on elapsed time before returning
	elapsed := time.Since(rl.lastRefill).Seconds()
	tokens := rl.tokens + (elapsed * rl.refillRate)

	if tokens > rl.maxTokens {
		tokens = rl.maxTokens
	}

	return tokens
}
