package tools

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/kawashishu/spec-agent/notebook"
)

func TestPythonString(t *testing.T) {
	assert.Equal(t, `"plain"`, pythonString("plain"))
	assert.Equal(t, `"a\nb"`, pythonString("a\nb"))
	assert.Equal(t, `"say \"hi\""`, pythonString(`say "hi"`))
	assert.Equal(t, `"back\\slash"`, pythonString(`back\slash`))
	assert.Equal(t, `"tab\there"`, pythonString("tab\there"))
	assert.Equal(t, `"bell\x07"`, pythonString("bell\a"))
	assert.Equal(t, `"phần"`, pythonString("phần"))
}

func TestBOMBootstrapCell(t *testing.T) {
	cell := BOMBootstrapCell([]byte("part_id,child_part_id\nP1,C1\n"))
	assert.Contains(t, cell, "import pandas as pd")
	assert.Contains(t, cell, `BOM_df = pd.read_csv(io.StringIO("part_id,child_part_id\nP1,C1\n"))`)
}

func TestBootstrapBOMExecutesCell(t *testing.T) {
	var executed string
	rc, _ := newRunContext(t, func(req gjson.Result) string {
		executed = req.Get("body").String() + "\n" + req.Get("last").String()
		return `{"id":"` + req.Get("id").String() + `","console":"","results":[]}`
	})

	path := t.TempDir() + "/bom.csv"
	require.NoError(t, os.WriteFile(path, []byte("part_id,child_part_id\nP1,C1\n"), 0o644))
	require.NoError(t, BootstrapBOM(context.Background(), rc.Session.Notebook, path))
	assert.Contains(t, executed, "BOM_df = pd.read_csv")
}

func TestBootstrapBOMUnderAllowlistPolicy(t *testing.T) {
	var executed bool
	worker := &echoWorker{respond: func(req gjson.Result) string {
		executed = true
		return `{"id":"` + req.Get("id").String() + `","console":"","results":[]}`
	}}
	nb, err := notebook.New(
		notebook.WithRunner(&echoRunner{worker: worker}),
		notebook.WithPolicy(notebook.PolicyAllowlist),
	)
	require.NoError(t, err)

	path := t.TempDir() + "/bom.csv"
	require.NoError(t, os.WriteFile(path, []byte("part_id,child_part_id\nP1,C1\n"), 0o644))

	// The bootstrap cell imports io and pandas; both must clear the strict
	// import profile or every session with a BOM would fail to start.
	require.NoError(t, BootstrapBOM(context.Background(), nb, path))
	assert.True(t, executed)
}

func TestBootstrapBOMMissingFile(t *testing.T) {
	rc, _ := newRunContext(t, func(gjson.Result) string { return "{}" })
	err := BootstrapBOM(context.Background(), rc.Session.Notebook, "/does/not/exist.csv")
	assert.Error(t, err)
}
