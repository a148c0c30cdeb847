package notebook

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/kawashishu/spec-agent/guardrail"
)

type fakeWorker struct {
	requests []gjson.Result
	respond  func(req gjson.Result) string
	closed   bool
}

func (w *fakeWorker) Roundtrip(_ context.Context, request []byte) ([]byte, error) {
	req := gjson.ParseBytes(request)
	w.requests = append(w.requests, req)
	return []byte(w.respond(req) + "\n"), nil
}

func (w *fakeWorker) Close() error {
	w.closed = true
	return nil
}

type fakeRunner struct {
	starts  int
	workers []*fakeWorker
	respond func(req gjson.Result) string
}

func (r *fakeRunner) Start(context.Context) (Worker, error) {
	r.starts++
	w := &fakeWorker{respond: r.respond}
	r.workers = append(r.workers, w)
	return w, nil
}

func emptyCell(gjson.Result) string {
	return `{"console":"","results":[]}`
}

func newTestNotebook(t *testing.T, runner *fakeRunner) *Notebook {
	t.Helper()
	nb, err := New(WithRunner(runner))
	require.NoError(t, err)
	return nb
}

func TestExecRejectsSuspiciousCodeBeforeExecution(t *testing.T) {
	runner := &fakeRunner{respond: emptyCell}
	nb := newTestNotebook(t, runner)

	_, err := nb.Exec(context.Background(), "import os\nos.system(\"ls\")")
	require.Error(t, err)

	var suspicious *guardrail.SuspiciousCodeError
	require.ErrorAs(t, err, &suspicious)
	assert.NotEmpty(t, suspicious.Findings)

	// Rejection happens before the worker even starts: no side effect possible.
	assert.Zero(t, runner.starts)
	assert.Empty(t, nb.Cells())
}

func TestExecAllowlistProfile(t *testing.T) {
	runner := &fakeRunner{respond: emptyCell}
	nb, err := New(WithRunner(runner), WithPolicy(PolicyAllowlist))
	require.NoError(t, err)

	_, err = nb.Exec(context.Background(), "import json\nx = 1")
	var policyErr *ImportPolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, "json", policyErr.Module)
	assert.Zero(t, runner.starts)

	_, err = nb.Exec(context.Background(), "import numpy as np\nnp.zeros(3)")
	require.NoError(t, err)
	assert.Equal(t, 1, runner.starts)
}

func TestExecSplitsBodyAndLastLine(t *testing.T) {
	runner := &fakeRunner{respond: emptyCell}
	nb := newTestNotebook(t, runner)

	_, err := nb.Exec(context.Background(), "x = 5\n\nx * 2\n")
	require.NoError(t, err)

	require.Len(t, runner.workers, 1)
	require.Len(t, runner.workers[0].requests, 1)
	req := runner.workers[0].requests[0]
	assert.Equal(t, "exec", req.Get("op").String())
	assert.Equal(t, "x = 5", req.Get("body").String())
	assert.Equal(t, "x * 2", req.Get("last").String())
	assert.NotEmpty(t, req.Get("id").String())
}

func TestExecDecodesResults(t *testing.T) {
	png := base64.StdEncoding.EncodeToString([]byte("not-really-png"))
	runner := &fakeRunner{respond: func(gjson.Result) string {
		return `{"console":"10\n","results":[` +
			`{"kind":"text","data":"hello"},` +
			`{"kind":"dataframe","data":{"columns":["part"],"index":[0],"data":[["VF8-123"]]}},` +
			`{"kind":"image/png","b64":"` + png + `"},` +
			`{"kind":"mystery","type":"Thing","b64":"` + png + `"}]}`
	}}
	nb := newTestNotebook(t, runner)

	out, err := nb.Exec(context.Background(), "x = 5\nx * 2")
	require.NoError(t, err)
	assert.Equal(t, "10\n", out.Console)
	require.Len(t, out.Results, 4)

	assert.Equal(t, Text("hello"), out.Results[0])

	table, ok := out.Results[1].(Table)
	require.True(t, ok)
	assert.Equal(t, []string{"part"}, table.Columns)
	require.Len(t, table.Data, 1)
	assert.Equal(t, "VF8-123", table.Data[0][0])

	img, ok := out.Results[2].(Image)
	require.True(t, ok)
	assert.Equal(t, []byte("not-really-png"), img.PNG)

	// Unknown tags never fail the cell; they degrade to Opaque.
	opaque, ok := out.Results[3].(Opaque)
	require.True(t, ok)
	assert.Equal(t, "Thing", opaque.TypeName)
	assert.NotEmpty(t, opaque.Payload)
}

func TestExecAppendsHistory(t *testing.T) {
	runner := &fakeRunner{respond: emptyCell}
	nb := newTestNotebook(t, runner)

	_, err := nb.Exec(context.Background(), "a = 1")
	require.NoError(t, err)
	_, err = nb.Exec(context.Background(), "a + 1")
	require.NoError(t, err)

	cells := nb.Cells()
	require.Len(t, cells, 2)
	assert.Equal(t, "a = 1", cells[0].Source)
	assert.Equal(t, "a + 1", cells[1].Source)

	// Both cells went to the same worker: the environment persists.
	assert.Equal(t, 1, runner.starts)
}

func TestExecDropsWorkerOnProtocolError(t *testing.T) {
	calls := 0
	runner := &fakeRunner{}
	runner.respond = func(gjson.Result) string {
		calls++
		if calls == 1 {
			return `{"error":"unknown op: 'bogus'"}`
		}
		return `{"console":"","results":[]}`
	}
	nb := newTestNotebook(t, runner)

	_, err := nb.Exec(context.Background(), "x = 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown op")

	// A worker-level error is not fatal to the session; but note the worker
	// is only replaced when the transport itself failed.
	_, err = nb.Exec(context.Background(), "x = 1")
	require.NoError(t, err)
}

func TestVars(t *testing.T) {
	runner := &fakeRunner{respond: func(req gjson.Result) string {
		if req.Get("op").String() == "vars" {
			return `{"vars":{"a":"1","df":"DataFrame(3x2)"}}`
		}
		return `{"console":"","results":[]}`
	}}
	nb := newTestNotebook(t, runner)

	vars, err := nb.Vars(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "df": "DataFrame(3x2)"}, vars)
}

func TestResetClearsHistoryAndWorker(t *testing.T) {
	runner := &fakeRunner{respond: emptyCell}
	nb := newTestNotebook(t, runner)

	_, err := nb.Exec(context.Background(), "a = 1")
	require.NoError(t, err)
	require.NoError(t, nb.Reset())

	assert.Empty(t, nb.Cells())
	assert.True(t, runner.workers[0].closed)

	_, err = nb.Exec(context.Background(), "a = 1")
	require.NoError(t, err)
	assert.Equal(t, 2, runner.starts)
}

func TestSplitSource(t *testing.T) {
	body, last := splitSource("x = 5\nx * 2")
	assert.Equal(t, "x = 5", body)
	assert.Equal(t, "x * 2", last)

	body, last = splitSource("x * 2")
	assert.Empty(t, body)
	assert.Equal(t, "x * 2", last)

	body, last = splitSource("   ")
	assert.Empty(t, body)
	assert.Empty(t, last)
}
