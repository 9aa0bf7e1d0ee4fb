package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"

	"github.com/anthropics/cabinet-engine/internal/domain"
)

const (
	maxAttempts  = 5
	retryBackoff = 2 * time.Second
)

// classify maps a go-github error to the engine taxonomy. Rate limits
// keep their own kind so the engine can apply the long cooldown; network
// failures and 5xx responses are transient; other 4xx responses are
// fatal.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: quota exhausted until %s", domain.ErrRateLimited, rateErr.Rate.Reset.Time.Format(time.RFC3339))
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: secondary rate limit", domain.ErrRateLimited)
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		code := respErr.Response.StatusCode
		if code >= http.StatusInternalServerError || code == http.StatusTooManyRequests {
			return fmt.Errorf("%w: status %d", domain.ErrTrackerTransient, code)
		}
		return fmt.Errorf("%w: status %d: %s", domain.ErrTrackerFatal, code, respErr.Message)
	}
	// No structured response at all: treat as a network-level failure.
	return fmt.Errorf("%w: %v", domain.ErrTrackerTransient, err)
}

// retryAfter extracts a server-mandated wait, when one exists.
func retryAfter(err error) time.Duration {
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.RetryAfter != nil {
		return *abuseErr.RetryAfter
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		if wait := time.Until(rateErr.Rate.Reset.Time); wait > 0 {
			return wait
		}
	}
	return 0
}

// withRetry runs op up to maxAttempts times with exponential backoff on
// transient and rate-limit errors, honoring Retry-After. Transient
// exhaustion becomes a fatal tracker error; rate-limit exhaustion keeps
// its kind so the engine can apply the long cooldown.
func withRetry(ctx context.Context, name string, op func() error) error {
	log := clog.FromContext(ctx)
	backoff := retryBackoff

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw := op()
		classified := classify(raw)
		if classified == nil {
			return nil
		}
		if !errors.Is(classified, domain.ErrTrackerTransient) && !errors.Is(classified, domain.ErrRateLimited) {
			return classified
		}
		lastErr = classified

		if attempt == maxAttempts {
			break
		}
		wait := backoff
		if mandated := retryAfter(raw); mandated > wait {
			wait = mandated
		}
		log.Warnf("%s failed (attempt %d/%d), retrying in %s: %v", name, attempt, maxAttempts, wait, classified)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	if errors.Is(lastErr, domain.ErrRateLimited) {
		return fmt.Errorf("%s exhausted %d attempts: %w", name, maxAttempts, lastErr)
	}
	return domain.WrapEngineError(domain.ErrTrackerFatal.Code, fmt.Sprintf("%s exhausted %d attempts", name, maxAttempts), lastErr)
}
