package embed

import (
	"context"
	"errors"
	"time"

	riskerr "github.com/shohbitgupta/contract-risk-agent/internal/errors"
)

// TimeoutEmbedder wraps an Embedder with a per-call deadline. No embedding
// call may block a clause's retrieval indefinitely; exceeding the deadline
// surfaces a retryable retrieval-timeout error and the orchestrator can fall
// back to lexical-only retrieval for that clause.
type TimeoutEmbedder struct {
	inner   Embedder
	timeout time.Duration
}

// NewTimeoutEmbedder wraps inner with the given per-call timeout.
// A non-positive timeout falls back to DefaultTimeout.
func NewTimeoutEmbedder(inner Embedder, timeout time.Duration) *TimeoutEmbedder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TimeoutEmbedder{inner: inner, timeout: timeout}
}

// Embed generates an embedding, failing with a retrieval-timeout error if
// the backend exceeds the deadline.
func (t *TimeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	vec, err := t.inner.Embed(ctx, text)
	if err != nil {
		return nil, t.classify(err)
	}
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts under one deadline.
func (t *TimeoutEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	vecs, err := t.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, t.classify(err)
	}
	return vecs, nil
}

// classify maps context deadline errors onto the engine's retryable
// retrieval-timeout code; other errors pass through unchanged.
func (t *TimeoutEmbedder) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return riskerr.RetrievalTimeout("embedding", err)
	}
	return err
}

// Dimensions returns the inner embedder's dimension.
func (t *TimeoutEmbedder) Dimensions() int { return t.inner.Dimensions() }

// ModelName returns the inner embedder's model identifier.
func (t *TimeoutEmbedder) ModelName() string { return t.inner.ModelName() }

// Close releases the inner embedder's resources.
func (t *TimeoutEmbedder) Close() error { return t.inner.Close() }

// Verify interface implementation.
var _ Embedder = (*TimeoutEmbedder)(nil)

// RetryConfig configures retry behavior for retryable backend failures.
type RetryConfig struct {
	MaxRetries   int           // retry attempts, not counting the initial call
	InitialDelay time.Duration // delay before first retry
	MaxDelay     time.Duration // cap on delay between retries
	Multiplier   float64       // exponential backoff multiplier
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
	}
}

// WithRetry executes fn with exponential backoff on retryable errors.
// Non-retryable errors abort immediately; context cancellation wins over
// any pending backoff sleep.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !riskerr.IsRetryable(err) || attempt >= cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return lastErr
}
