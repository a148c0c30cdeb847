// Package llm wraps the OpenAI chat completions API with streaming and
// bounded retry. The agent runner is its only consumer.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	json "github.com/goccy/go-json"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/kawashishu/spec-agent/pkg/slogx"
)

const (
	maxAttempts = 3
	baseDelay   = 500 * time.Millisecond
)

// Client issues chat completions. Zero value is not usable; construct with New.
type Client struct {
	oai *openai.Client
}

// New builds a client. Request options are passed straight to the OpenAI SDK,
// which reads OPENAI_API_KEY from the environment when none are given.
func New(options ...option.RequestOption) *Client {
	return &Client{oai: openai.NewClient(options...)}
}

// Stream issues the completion, feeding assistant text deltas to onDelta as
// they arrive, and returns the accumulated final completion. Transient
// failures (429, 5xx, connection errors) retry with exponential backoff and
// jitter, but only while no delta has been delivered: once the caller has
// seen output, a failure surfaces rather than replaying partial text.
func (c *Client) Stream(ctx context.Context, params openai.ChatCompletionNewParams, onDelta func(string)) (*openai.ChatCompletion, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		completion, delivered, err := c.streamOnce(ctx, params, onDelta)
		if err == nil {
			return completion, nil
		}
		lastErr = err

		if delivered || !isTransient(err) {
			return nil, err
		}
		slog.Warn("completion failed, retrying",
			slog.Int("attempt", attempt+1), slogx.Error(err))
	}
	return nil, lastErr
}

func (c *Client) streamOnce(ctx context.Context, params openai.ChatCompletionNewParams, onDelta func(string)) (*openai.ChatCompletion, bool, error) {
	strm := c.oai.Chat.Completions.NewStreaming(ctx, params)
	defer strm.Close()

	var acc openai.ChatCompletionAccumulator
	var delivered bool
	for strm.Next() {
		if err := ctx.Err(); err != nil {
			return nil, delivered, err
		}
		chunk := strm.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			delivered = true
			if onDelta != nil {
				onDelta(delta)
			}
		}
	}
	if err := strm.Err(); err != nil {
		return nil, delivered, err
	}
	return &acc.ChatCompletion, delivered, nil
}

// Complete issues a non-streaming completion with the same retry policy.
func (c *Client) Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		completion, err := c.oai.Chat.Completions.New(ctx, params)
		if err == nil {
			return completion, nil
		}
		lastErr = err
		if !isTransient(err) {
			return nil, err
		}
		slog.Warn("completion failed, retrying",
			slog.Int("attempt", attempt+1), slogx.Error(err))
	}
	return nil, lastErr
}

// CompleteJSON forces a JSON object response and unmarshals it into out.
func (c *Client) CompleteJSON(ctx context.Context, params openai.ChatCompletionNewParams, out any) error {
	params.ResponseFormat = openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
		shared.ResponseFormatJSONObjectParam{
			Type: openai.F(shared.ResponseFormatJSONObjectTypeJSONObject),
		})

	completion, err := c.Complete(ctx, params)
	if err != nil {
		return err
	}
	if len(completion.Choices) == 0 {
		return errors.New("llm: empty completion")
	}
	content := completion.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("llm: decode structured output: %w", err)
	}
	return nil
}

// isTransient reports whether the request is worth retrying: rate limits,
// server-side failures, and anything that never produced an HTTP status
// (connection resets, DNS).
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func sleepBackoff(ctx context.Context, attempt int) error {
	delay := baseDelay << (attempt - 1)
	delay += time.Duration(rand.Int64N(int64(delay)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
