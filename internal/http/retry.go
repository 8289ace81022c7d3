package http

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rescale/commit-semver/internal/constants"
)

// ErrorType represents different classes of errors for retry strategy
type ErrorType int

const (
	// ErrorTypeSuccess indicates operation succeeded
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential indicates authentication/authorization failure (401, 403 without rate-limit signal)
	ErrorTypeCredential
	// ErrorTypeNetwork indicates network/connection issues (timeouts, connection refused, etc.)
	ErrorTypeNetwork
	// ErrorTypeRetryable indicates server errors that can be retried (500, 502, 503, 429, exhausted rate limit)
	ErrorTypeRetryable
	// ErrorTypeFatal indicates client errors that should not be retried (400, 404, 422)
	ErrorTypeFatal
)

// Config holds retry parameters for ExecuteWithRetry
type Config struct {
	// MaxRetries is the maximum number of attempts (default: 5)
	MaxRetries int
	// InitialDelay is the base delay for exponential backoff (default: 500ms)
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries (default: 30s)
	MaxDelay time.Duration
	// OnRetry is an optional callback invoked before each retry attempt
	OnRetry func(attempt int, err error, errorType ErrorType)
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxRetries:   constants.MaxRetries,
		InitialDelay: constants.RetryInitialDelay,
		MaxDelay:     constants.RetryMaxDelay,
	}
}

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// ClassifyStatus maps an HTTP status code to a retry class.
// 403 is a credential failure unless rateLimited says the budget is exhausted.
func ClassifyStatus(code int, rateLimited bool) ErrorType {
	switch {
	case code < 400:
		return ErrorTypeSuccess
	case code == nethttp.StatusTooManyRequests:
		return ErrorTypeRetryable
	case code == nethttp.StatusForbidden && rateLimited:
		return ErrorTypeRetryable
	case code == nethttp.StatusUnauthorized || code == nethttp.StatusForbidden:
		return ErrorTypeCredential
	case code == nethttp.StatusNotImplemented:
		return ErrorTypeFatal
	case code >= 500:
		return ErrorTypeRetryable
	default:
		return ErrorTypeFatal
	}
}

// ClassifyResponse classifies a completed HTTP exchange. GitHub signals an
// exhausted rate limit with 403 plus X-RateLimit-Remaining: 0 or Retry-After.
func ClassifyResponse(resp *nethttp.Response) ErrorType {
	if resp == nil {
		return ErrorTypeNetwork
	}
	return ClassifyStatus(resp.StatusCode, IsRateLimited(resp))
}

// IsRateLimited reports whether resp carries a rate-limit signal.
func IsRateLimited(resp *nethttp.Response) bool {
	if resp == nil {
		return false
	}
	if resp.StatusCode == nethttp.StatusTooManyRequests {
		return true
	}
	if resp.Header.Get("Retry-After") != "" {
		return true
	}
	return resp.Header.Get("X-RateLimit-Remaining") == "0"
}

// permanentError marks a failure ExecuteWithRetry must not retry.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so ExecuteWithRetry returns it at once. Use it for
// failures another layer has already retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// ClassifyError determines the error type for retry strategy.
// Errors carrying a status (StatusCoder) are classified by status; transport
// errors are classified by message, which is what net/http gives us.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}

	// A per-request client timeout also satisfies errors.Is(DeadlineExceeded)
	// but is a network failure, not a cancelled caller.
	if strings.Contains(strings.ToLower(err.Error()), "client.timeout exceeded") {
		return ErrorTypeNetwork
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeFatal
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		var rl interface{ RateLimited() bool }
		limited := errors.As(err, &rl) && rl.RateLimited()
		return ClassifyStatus(sc.StatusCode(), limited)
	}

	errStr := strings.ToLower(err.Error())

	// Network errors - retryable with backoff
	if strings.Contains(errStr, "tls handshake timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") {
		return ErrorTypeNetwork
	}

	// Server side trouble reported in plain text
	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "bad gateway") {
		return ErrorTypeRetryable
	}

	// Unknown errors - treat as fatal to avoid retrying on unexpected errors
	return ErrorTypeFatal
}

// IsTransient reports whether t is worth another attempt.
func IsTransient(t ErrorType) bool {
	return t == ErrorTypeNetwork || t == ErrorTypeRetryable
}

// CalculateBackoff returns exponential backoff duration with full jitter
// Full jitter prevents thundering herd problem when many clients retry simultaneously
//
// Formula: random(0, min(maxDelay, initialDelay * 2^attempt))
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || initialDelay <= 0 {
		return 0
	}

	// Exponential: 2^attempt * initialDelay, guarding the shift
	base := maxDelay
	if attempt < 31 {
		base = time.Duration(1<<uint(attempt)) * initialDelay
	}

	// Cap at maxDelay
	if base > maxDelay || base <= 0 {
		base = maxDelay
	}
	if base <= 0 {
		return 0
	}

	// Full jitter: random value between 0 and base
	return time.Duration(rand.Int63n(int64(base)))
}

// RateLimitWait returns the wait the server asked for via Retry-After
// (seconds) or X-RateLimit-Reset (unix seconds), capped at
// constants.RetryAfterCap. ok is false when neither header is usable.
func RateLimitWait(resp *nethttp.Response, now time.Time) (wait time.Duration, ok bool) {
	if resp == nil {
		return 0, false
	}
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return min(time.Duration(secs)*time.Second, constants.RetryAfterCap), true
		}
	}
	if resp.Header.Get("X-RateLimit-Remaining") == "0" {
		if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
			if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
				wait := time.Unix(epoch, 0).Sub(now)
				if wait < 0 {
					wait = 0
				}
				return min(wait, constants.RetryAfterCap), true
			}
		}
	}
	return 0, false
}

// CheckRetry is a retryablehttp.CheckRetry policy built on ClassifyResponse.
func CheckRetry(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return IsTransient(ClassifyError(err)), nil
	}
	return IsTransient(ClassifyResponse(resp)), nil
}

// Backoff is a retryablehttp.Backoff honouring server-requested waits and
// falling back to full-jitter exponential backoff.
func Backoff(minDelay, maxDelay time.Duration, attemptNum int, resp *nethttp.Response) time.Duration {
	if wait, ok := RateLimitWait(resp, time.Now()); ok {
		return wait
	}
	return CalculateBackoff(attemptNum+1, minDelay, maxDelay)
}

// ExecuteWithRetry runs an operation with intelligent retry logic
//
// Retry strategy:
//   - Network/Retryable errors: Exponential backoff with full jitter
//   - Credential and fatal errors: Return immediately without retry
//   - Context cancellation: Return immediately, also while sleeping
//
// The function will make up to config.MaxRetries attempts. If all attempts fail,
// it returns an error wrapping the last failure.
func ExecuteWithRetry(ctx context.Context, config Config, operation func() error) error {
	var lastErr error
	attempts := max(config.MaxRetries, 1)

	for attempt := 0; attempt < attempts; attempt++ {
		// Check context cancellation before each attempt
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		errType := ClassifyError(err)
		if !IsTransient(errType) {
			return err
		}

		if attempt < attempts-1 {
			if config.OnRetry != nil {
				config.OnRetry(attempt+1, err, errType)
			}
			backoff := CalculateBackoff(attempt+1, config.InitialDelay, config.MaxDelay)
			if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < backoff {
				return fmt.Errorf("deadline too close to retry after %d attempts: %w", attempt+1, err)
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
