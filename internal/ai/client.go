package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Completer sends a prompt and returns the text of the answer
type Completer interface {
	Complete(ctx context.Context, operation, prompt string) (string, error)
}

// Sender performs a single model call without any retry policy
type Sender interface {
	Send(ctx context.Context, prompt string) (string, error)
}

// anthropicSender calls the Messages API
type anthropicSender struct {
	client    anthropic.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

func (s *anthropicSender) Send(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(s.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	s.logger.Debug("ai call",
		"model", s.model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)
	return text, nil
}

// Client applies the call policy around a Sender: a shared rate limiter, a
// concurrency cap and retry with exponential backoff
type Client struct {
	sender  Sender
	config  Config
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	logger  *slog.Logger
}

// NewClient creates a client backed by the Anthropic Messages API
func NewClient(config Config, logger *slog.Logger, opts ...option.RequestOption) (*Client, error) {
	if config.APIKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is required for the ai capabilities")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Retries are ours, the SDK must not retry underneath them
	opts = append([]option.RequestOption{option.WithAPIKey(config.APIKey), option.WithMaxRetries(0)}, opts...)
	sender := &anthropicSender{
		client:    anthropic.NewClient(opts...),
		model:     config.Model,
		maxTokens: config.MaxTokens,
		logger:    logger,
	}
	return NewClientWithSender(config, sender, logger), nil
}

// NewClientWithSender creates a client around any sender
func NewClientWithSender(config Config, sender Sender, logger *slog.Logger) *Client {
	c := &Client{
		sender:  sender,
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		logger:  logger,
	}
	if config.MaxConcurrentCalls > 0 {
		c.sem = semaphore.NewWeighted(config.MaxConcurrentCalls)
	}
	return c
}

// Complete sends prompt, retrying transient failures
func (c *Client) Complete(ctx context.Context, operation, prompt string) (string, error) {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return "", fmt.Errorf("failed to acquire concurrency slot for %s: %w", operation, err)
		}
		defer c.sem.Release(1)
	}

	var text string
	err := c.retryWithBackoff(ctx, operation, func(attemptCtx context.Context) error {
		if err := c.limiter.Wait(attemptCtx); err != nil {
			return err
		}
		out, err := c.sender.Send(attemptCtx, prompt)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// retryWithBackoff executes an operation with retry and exponential backoff
func (c *Client) retryWithBackoff(ctx context.Context, operation string, fn func(context.Context) error) error {
	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if attempt > 0 {
				c.logger.Info("ai call succeeded after retries", "operation", operation, "retries", attempt)
			}
			return nil
		}

		lastErr = err

		if !isRetriableError(err) {
			return fmt.Errorf("%s failed: %w", operation, err)
		}

		if attempt == c.config.MaxRetries {
			break
		}

		if ctx.Err() != nil {
			return fmt.Errorf("%s failed: %w", operation, ctx.Err())
		}

		c.logger.Warn("ai call failed, retrying",
			"operation", operation,
			"attempt", attempt+1,
			"max_attempts", c.config.MaxRetries+1,
			"backoff", backoff,
			"error", err)

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * c.config.BackoffMultiplier)
			if backoff > c.config.MaxBackoff {
				backoff = c.config.MaxBackoff
			}
		case <-ctx.Done():
			return fmt.Errorf("%s failed during backoff: %w", operation, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, c.config.MaxRetries+1, lastErr)
}

// isRetriableError is true for timeouts, rate limits, overload and 5xx
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429, apiErr.StatusCode == 529:
			return true
		case apiErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	var transient interface{ Temporary() bool }
	if errors.As(err, &transient) {
		return transient.Temporary()
	}

	return false
}
