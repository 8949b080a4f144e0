// ABOUTME: Rate-limit-aware retry with exponential backoff, ported from the
// ABOUTME: teacher's own llm/mux_adapter.go (rateLimitRetryPolicy,
// ABOUTME: isRateLimitError, retryOnRateLimit) and llm/retry.go (RetryPolicy
// ABOUTME: itself). The mux SDKs surface 429s as plain error-string text
// ABOUTME: rather than a typed error, hence the substring sniff.
package llm

import (
	"context"
	"log"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// RetryPolicy configures exponential backoff for a retryable call.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
	OnRetry           func(err error, attempt int, delay time.Duration)
}

// CalculateDelay computes the backoff for a given 0-indexed attempt, capped
// at MaxDelay and full-jittered when Jitter is set.
func (p RetryPolicy) CalculateDelay(attempt int) time.Duration {
	delayFloat := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if delayFloat > float64(p.MaxDelay) {
		delayFloat = float64(p.MaxDelay)
	}
	delay := time.Duration(delayFloat)
	if p.Jitter {
		delay = time.Duration(rand.Int64N(int64(delay) + 1))
	}
	return delay
}

// rateLimitRetryPolicy mirrors the teacher's tuning: up to 5 retries with a
// 2s base delay and 3x backoff, giving the API roughly 3 minutes to recover
// from a 429 before the ReAct agent's think step gives up.
func rateLimitRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        5,
		BaseDelay:         2 * time.Second,
		MaxDelay:          90 * time.Second,
		BackoffMultiplier: 3.0,
		Jitter:            true,
		OnRetry: func(err error, attempt int, delay time.Duration) {
			log.Printf("component=llm action=rate_limit_retry attempt=%d delay=%s err=%v", attempt+1, delay, err)
		},
	}
}

// isRateLimitError sniffs for a 429 the way the mux-backed SDKs (and the
// teacher's own adapter) surface it: as substring text in the error, not a
// typed error.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") || strings.Contains(msg, "overloaded")
}

// retryOnRateLimit retries fn on a detected rate-limit error using policy's
// backoff; any other error returns immediately without retry.
func retryOnRateLimit(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRateLimitError(lastErr) || attempt >= policy.MaxRetries {
			return lastErr
		}

		delay := policy.CalculateDelay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(lastErr, attempt, delay)
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
	}
}
