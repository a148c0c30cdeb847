package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/kawashishu/spec-agent/agent"
	"github.com/kawashishu/spec-agent/sessions"
	"github.com/kawashishu/spec-agent/stream"
)

// cannedClassifier maps user content (the specbook body) to an outcome.
type cannedClassifier struct {
	outcomes map[string]RelevanceOutcome
	errs     map[string]error
}

func (c *cannedClassifier) CompleteJSON(_ context.Context, params openai.ChatCompletionNewParams, out any) error {
	// The param structs marshal to their wire shape; matching on the rendered
	// request avoids depending on the SDK's union internals.
	rendered, err := json.Marshal(params.Messages.Value)
	if err != nil {
		return err
	}
	for body, cerr := range c.errs {
		if strings.Contains(string(rendered), body) {
			return cerr
		}
	}
	for body, outcome := range c.outcomes {
		if strings.Contains(string(rendered), body) {
			*(out.(*RelevanceOutcome)) = outcome
			return nil
		}
	}
	return nil
}

func testCorpus() *Corpus {
	return NewCorpus([]Specbook{
		{Number: "SB-002", Content: "brake specs"},
		{Number: "SB-001", Content: "battery specs"},
		{Number: "SB-003", Content: "chassis specs"},
	})
}

func TestCorpusOrderAndLookup(t *testing.T) {
	c := testCorpus()
	assert.Equal(t, []string{"SB-001", "SB-002", "SB-003"}, c.Numbers())
	assert.Equal(t, 3, c.Len())

	b, ok := c.Get("SB-002")
	require.True(t, ok)
	assert.Equal(t, "brake specs", b.Content)

	_, ok = c.Get("SB-404")
	assert.False(t, ok)
}

func TestClassifyAllDegradesFailuresToNotRelevant(t *testing.T) {
	llm := &cannedClassifier{
		outcomes: map[string]RelevanceOutcome{
			"battery specs": {IsRelevant: true, RelevanceContent: "battery voltage table"},
			"chassis specs": {IsRelevant: true, RelevanceContent: "chassis dimensions"},
		},
		errs: map[string]error{
			"brake specs": errors.New("rate limited"),
		},
	}
	st := NewSpecbookTools(llm, testCorpus())
	st.perBookTimeout = time.Second

	outcomes := st.classifyAll(context.Background(), "voltage")
	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].IsRelevant)  // SB-001
	assert.False(t, outcomes[1].IsRelevant) // SB-002 failed, degraded
	assert.Equal(t, "LIMIT TOKEN / TIMEOUT", outcomes[1].Reasoning)
	assert.True(t, outcomes[2].IsRelevant) // SB-003
}

func TestAggregateHonorsTokenBudget(t *testing.T) {
	st := NewSpecbookTools(nil, testCorpus())
	st.tokenBudget = 80 // enough for one entry, not two

	outcomes := []RelevanceOutcome{
		{IsRelevant: true, RelevanceContent: "battery voltage table"},
		{IsRelevant: false},
		{IsRelevant: true, RelevanceContent: "chassis dimensions"},
	}
	out := st.aggregate(outcomes)
	assert.Contains(t, out, "SB-001")
	assert.Contains(t, out, "battery voltage table")
	assert.NotContains(t, out, "chassis dimensions")
}

func TestContentByNumbersUnknownNumber(t *testing.T) {
	st := NewSpecbookTools(nil, testCorpus())
	tool := st.ContentByNumbers()

	out, err := tool.Fn(context.Background(), nil,
		gjson.Parse(`{"specbook_numbers":["SB-001","SB-404"]}`))
	require.NoError(t, err)
	assert.Contains(t, out, "battery specs")
	assert.Contains(t, out, "Specbook number not found")
}

func TestNumbersTableStreamsDataFrame(t *testing.T) {
	st := NewSpecbookTools(nil, testCorpus())
	sink := &captureSink{}
	rc := &agent.RunContext{Session: &sessions.Session{ID: "sid"}, Sink: sink}

	out, err := st.NumbersTable().Fn(context.Background(), rc, gjson.Result{})
	require.NoError(t, err)
	assert.Equal(t, "SB-001\nSB-002\nSB-003", out)

	require.Len(t, sink.messages, 1)
	assert.Equal(t, stream.KindDataFrame, sink.messages[0].Kind)
}
