package llm

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&openai.Error{StatusCode: 429}))
	assert.True(t, isTransient(&openai.Error{StatusCode: 500}))
	assert.True(t, isTransient(&openai.Error{StatusCode: 503}))
	assert.False(t, isTransient(&openai.Error{StatusCode: 400}))
	assert.False(t, isTransient(&openai.Error{StatusCode: 401}))

	// No HTTP status at all means the request may never have arrived.
	assert.True(t, isTransient(&net.OpError{Op: "dial", Err: errors.New("refused")}))

	// Cancellation is the caller's decision, never retried.
	assert.False(t, isTransient(context.Canceled))
	assert.False(t, isTransient(context.DeadlineExceeded))
}

func TestSleepBackoffHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepBackoff(ctx, 1), context.Canceled)
}
