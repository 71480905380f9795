package llm

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryConfig returns sensible defaults for rate limit retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// RetryProvider wraps a Provider with automatic retry on transient errors
// (rate limits, gateway/connection failures), matching the config surface's
// max_retries setting.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
}

// WrapWithRetry wraps a provider with retry logic.
func WrapWithRetry(p Provider, config RetryConfig) Provider {
	return &RetryProvider{inner: p, config: config}
}

func (r *RetryProvider) Name() string             { return r.inner.Name() }
func (r *RetryProvider) Credential() string       { return r.inner.Credential() }
func (r *RetryProvider) Capabilities() Capabilities { return r.inner.Capabilities() }

func (r *RetryProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	s, _ := newChanStream(ctx, func(runCtx context.Context, emit func(Event) bool) {
		var lastErr error

		for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
			stream, err := r.inner.Stream(runCtx, req)
			if err != nil {
				if !isRetryable(err) {
					emit(Event{Type: EventError, Err: err})
					return
				}
				lastErr = err
			} else {
				err = forwardEvents(runCtx, stream, emit)
				if err == nil {
					return
				}
				if !isRetryable(err) {
					emit(Event{Type: EventError, Err: err})
					return
				}
				lastErr = err
			}

			if runCtx.Err() != nil {
				emit(Event{Type: EventError, Err: runCtx.Err()})
				return
			}
			if attempt >= r.config.MaxAttempts {
				break
			}

			wait := r.calculateBackoff(attempt, lastErr)
			slog.Debug("retrying provider stream", "attempt", attempt, "max_attempts", r.config.MaxAttempts, "wait", wait, "error", lastErr)

			select {
			case <-runCtx.Done():
				emit(Event{Type: EventError, Err: runCtx.Err()})
				return
			case <-time.After(wait):
			}
		}

		emit(Event{Type: EventError, Err: lastErr})
	})
	return s, nil
}

// forwardEvents reads events from the inner stream and re-emits them,
// stopping (without error) at EventDone. An EventError from the inner
// stream is returned to the caller so the retry loop can decide whether to
// retry.
func forwardEvents(ctx context.Context, stream Stream, emit func(Event) bool) error {
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		event, err := stream.Recv()
		if err != nil {
			return err
		}
		if event.Type == EventError && event.Err != nil {
			return event.Err
		}
		if !emit(event) {
			return ctx.Err()
		}
		if event.Type == EventDone {
			return nil
		}
	}
}

// isRetryable returns true if the error is a transient error worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "high concurrency") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "overloaded") {
		return true
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "no such host") {
		return true
	}

	return false
}

// retryAfterRegex matches Retry-After values in error messages.
var retryAfterRegex = regexp.MustCompile(`(?i)retry[- ]?after[:\s]+(\d+)`)

// calculateBackoff computes the wait duration for a retry attempt.
func (r *RetryProvider) calculateBackoff(attempt int, err error) time.Duration {
	if err != nil {
		if matches := retryAfterRegex.FindStringSubmatch(err.Error()); len(matches) > 1 {
			if secs, parseErr := strconv.Atoi(matches[1]); parseErr == nil && secs > 0 {
				wait := time.Duration(secs) * time.Second
				if wait > r.config.MaxBackoff {
					wait = r.config.MaxBackoff
				}
				return wait
			}
		}
	}

	backoff := float64(r.config.BaseBackoff) * math.Pow(2, float64(attempt-1))
	jitter := (rand.Float64() - 0.5) * 0.5 * backoff
	backoff += jitter

	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}

	return time.Duration(backoff)
}
