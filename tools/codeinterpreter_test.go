package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/kawashishu/spec-agent/agent"
	"github.com/kawashishu/spec-agent/notebook"
	"github.com/kawashishu/spec-agent/sessions"
	"github.com/kawashishu/spec-agent/stream"
)

// echoWorker responds to every exec request with a canned payload.
type echoWorker struct {
	respond func(req gjson.Result) string
}

func (w *echoWorker) Roundtrip(_ context.Context, line []byte) ([]byte, error) {
	return []byte(w.respond(gjson.ParseBytes(line))), nil
}

func (w *echoWorker) Close() error { return nil }

type echoRunner struct {
	worker *echoWorker
}

func (r *echoRunner) Start(context.Context) (notebook.Worker, error) {
	return r.worker, nil
}

// captureSink records stream writes.
type captureSink struct {
	messages []stream.Message
}

func (c *captureSink) Write(_ context.Context, msg stream.Message) error {
	c.messages = append(c.messages, msg)
	return nil
}

func (c *captureSink) Close() error { return nil }

func newRunContext(t *testing.T, respond func(req gjson.Result) string) (*agent.RunContext, *captureSink) {
	t.Helper()
	nb, err := notebook.New(notebook.WithRunner(&echoRunner{worker: &echoWorker{respond: respond}}))
	require.NoError(t, err)
	sink := &captureSink{}
	return &agent.RunContext{
		Session: &sessions.Session{ID: "sid", User: "alice", Notebook: nb},
		Sink:    sink,
	}, sink
}

func TestCodeInterpreterReturnsConsoleAndStreamsResults(t *testing.T) {
	rc, sink := newRunContext(t, func(req gjson.Result) string {
		return fmt.Sprintf(
			`{"id":%q,"console":"42\n","results":[{"kind":"dataframe","data":{"columns":["a"],"index":[0],"data":[[1]]}}]}`,
			req.Get("id").String())
	})

	tool := CodeInterpreter()
	out, err := tool.Fn(context.Background(), rc, gjson.Parse(`{"python_code":"df"}`))
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	require.Len(t, sink.messages, 1)
	assert.Equal(t, stream.KindDataFrame, sink.messages[0].Kind)
}

func TestCodeInterpreterConvertsPolicyViolationToText(t *testing.T) {
	rc, sink := newRunContext(t, func(gjson.Result) string {
		t.Fatal("worker must not run for rejected code")
		return ""
	})

	tool := CodeInterpreter()
	out, err := tool.Fn(context.Background(), rc,
		gjson.Parse(`{"python_code":"import os\nos.system('ls')"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "Error executing Python code:")
	assert.Contains(t, out, "Suspicious code detected")
	assert.Empty(t, sink.messages)
}
