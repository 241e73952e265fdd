// Package generate is the boundary to the remote text-generation service.
// The retrieval core only depends on the [Service] interface; [Client] is the
// production implementation over any eino chat model and owns retrying
// rate-limited calls.
package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultRetryDelay is the wait before the first retry of a rate-limited
	// call. Each further retry doubles it.
	DefaultRetryDelay = 2 * time.Second

	// DefaultMaxAttempts is the total number of calls made for one answer
	// while the service keeps reporting rate limits.
	DefaultMaxAttempts = 3
)

// Answer is the outcome of one generation request.
type Answer struct {
	// Success is false when no text could be produced.
	Success bool `json:"success"`
	// Text is the generated answer, possibly containing citation markers.
	Text string `json:"text"`
	// Model names the model that produced the answer.
	Model string `json:"model"`
	// TokensUsed is the total token usage reported by the service, or 0.
	TokensUsed int `json:"tokens_used"`
}

// Service produces an answer to question grounded in contextBlock, the
// string built by citation.BuildContext. contextBlock may be empty.
type Service interface {
	Generate(ctx context.Context, question, contextBlock string) (Answer, error)
}

// RateLimitExceeded reports that the service was still rate limiting after
// every allowed attempt. Callers should ask the user to wait.
type RateLimitExceeded struct {
	Attempts int
	// RetryDelay is the client's configured first backoff delay.
	RetryDelay time.Duration
	Cause      error
}

func (e *RateLimitExceeded) Error() string {
	return fmt.Sprintf("generate: rate limit exceeded after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *RateLimitExceeded) Unwrap() error { return e.Cause }

// rateLimiter is implemented by SDK errors that know whether they are a
// rate-limit response.
type rateLimiter interface {
	RateLimited() bool
}

// IsRateLimit reports whether err is a rate-limit signal from the service:
// an error implementing RateLimited() bool, or one whose message mentions
// HTTP 429, "rate limit" or "too many requests".
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rl rateLimiter
	if errors.As(err, &rl) {
		return rl.RateLimited()
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"429", "rate limit", "ratelimit", "too many requests"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Config controls retry and pacing of generation calls.
type Config struct {
	// RetryDelay is the initial backoff after a rate-limited call.
	RetryDelay time.Duration
	// MaxAttempts is the total number of calls per answer, first try included.
	MaxAttempts int
	// RequestsPerSecond paces outgoing calls. Zero or less disables pacing.
	RequestsPerSecond float64
}

// DefaultConfig returns a 2s initial delay, 3 attempts and no pacing.
func DefaultConfig() Config {
	return Config{RetryDelay: DefaultRetryDelay, MaxAttempts: DefaultMaxAttempts}
}

// ConfigFromEnv reads GENERATION_RETRY_DELAY (a Go duration or whole
// seconds), GENERATION_MAX_RETRIES and GENERATION_RPS.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("GENERATION_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RetryDelay = d
		} else if n, err := strconv.Atoi(v); err == nil {
			cfg.RetryDelay = time.Duration(n) * time.Second
		}
	}
	if v, err := strconv.Atoi(os.Getenv("GENERATION_MAX_RETRIES")); err == nil && v > 0 {
		cfg.MaxAttempts = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("GENERATION_RPS"), 64); err == nil {
		cfg.RequestsPerSecond = v
	}
	return cfg
}
