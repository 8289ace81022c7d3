package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"

	"github.com/rescale/commit-semver/internal/errs"
	ihttp "github.com/rescale/commit-semver/internal/http"
)

// maxErrorBody bounds how much of an error response is kept for the message.
const maxErrorBody = 4 * 1024

// StatusError is a non-2xx answer from the GitHub API.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string // GitHub's "message" field, or the raw body
	Limited bool   // response carried a rate-limit signal
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	switch {
	case e.Status == nethttp.StatusUnauthorized:
		msg += " (check GITHUB_TOKEN)"
	case e.Status == nethttp.StatusForbidden && !e.Limited:
		msg += " (the token needs the actions:read permission)"
	}
	return msg
}

// StatusCode implements ihttp.StatusCoder.
func (e *StatusError) StatusCode() int { return e.Status }

// RateLimited reports whether the response carried a rate-limit signal.
func (e *StatusError) RateLimited() bool { return e.Limited }

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == nethttp.StatusNotFound
}

// newStatusError reads the body of a failed response.
func newStatusError(req *nethttp.Request, resp *nethttp.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	se := &StatusError{
		Method:  req.Method,
		Path:    req.URL.Path,
		Status:  resp.StatusCode,
		Limited: ihttp.IsRateLimited(resp),
	}

	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		se.Message = payload.Message
	} else {
		se.Message = strings.TrimSpace(string(body))
	}
	return se
}

// classify wraps err with ErrTransientAPI when it is a network or rate-limit
// failure that outlived the retry budget. Other errors, and any error once
// ctx is done, pass through.
func classify(ctx context.Context, err error) error {
	if err == nil || ctx.Err() != nil || errors.Is(err, errs.ErrTransientAPI) {
		return err
	}
	if ihttp.IsTransient(ihttp.ClassifyError(err)) {
		return fmt.Errorf("%w: %w", errs.ErrTransientAPI, err)
	}
	return err
}
