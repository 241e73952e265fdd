package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/budget"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
)

// RetryFunc is called before each retry of a rate-limited call.
type RetryFunc func(attempt int, wait time.Duration, err error)

// Client implements [Service] over an eino chat model.
type Client struct {
	chat      model.BaseChatModel
	modelName string
	cfg       Config
	limiter   *rate.Limiter
	onRetry   RetryFunc
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithRetryHook registers fn to observe retries, e.g. for metrics.
func WithRetryHook(fn RetryFunc) ClientOption {
	return func(c *Client) { c.onRetry = fn }
}

// NewClient wraps chat. modelName is reported in every [Answer].
func NewClient(chat model.BaseChatModel, modelName string, cfg Config, opts ...ClientOption) (*Client, error) {
	if chat == nil {
		return nil, fmt.Errorf("generate: chat model must not be nil")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	c := &Client{
		chat:      chat,
		modelName: modelName,
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.modelName }

// Generate implements [Service]. Rate-limited calls are retried with
// exponential backoff; once attempts run out the error is a
// [*RateLimitExceeded]. Any other failure is returned immediately.
func (c *Client) Generate(ctx context.Context, question, contextBlock string) (Answer, error) {
	msgs := BuildMessages(question, contextBlock)
	log := logging.FromContext(ctx)
	log.Debug("generation request",
		slog.String("model", c.modelName),
		slog.Int("prompt_tokens_est", budget.EstimateMessages(msgs)),
	)

	resp, err := c.call(ctx, msgs)
	if err != nil {
		return Answer{Model: c.modelName}, err
	}

	text := strings.TrimSpace(resp.Content)
	ans := Answer{
		Success: text != "",
		Text:    text,
		Model:   c.modelName,
	}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		ans.TokensUsed = resp.ResponseMeta.Usage.TotalTokens
	}
	log.Info("generation complete",
		slog.String("model", c.modelName),
		slog.Int("tokens", ans.TokensUsed),
		slog.Bool("success", ans.Success),
	)
	return ans, nil
}

// TestConnection sends a fixed probe and reports whether the model replied.
func (c *Client) TestConnection(ctx context.Context) error {
	resp, err := c.call(ctx, []*schema.Message{schema.UserMessage(probePrompt)})
	if err != nil {
		return fmt.Errorf("generate: connection test: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return fmt.Errorf("generate: connection test: empty reply from %s", c.modelName)
	}
	return nil
}

func (c *Client) call(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	var (
		resp     *schema.Message
		attempts int
		lastErr  error
	)
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		r, err := c.chat.Generate(ctx, msgs)
		if err != nil {
			lastErr = err
			if IsRateLimit(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if r == nil {
			return backoff.Permanent(errors.New("nil response"))
		}
		resp = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logging.FromContext(ctx).Warn("generation rate limited, retrying",
			slog.Int("attempt", attempts),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
		if c.onRetry != nil {
			c.onRetry(attempts, wait, err)
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxAttempts-1)), ctx)
	err := backoff.RetryNotify(op, policy, notify)
	if err == nil {
		return resp, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("generate: %w", ctxErr)
	}
	if IsRateLimit(lastErr) && errors.Is(err, lastErr) {
		return nil, &RateLimitExceeded{Attempts: attempts, RetryDelay: c.cfg.RetryDelay, Cause: lastErr}
	}
	return nil, fmt.Errorf("generate: %s: %w", c.modelName, err)
}
