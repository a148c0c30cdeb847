package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSuspiciousImport(t *testing.T) {
	findings := Detect("import os\nos.system(\"ls\")")
	require.NotEmpty(t, findings)

	assert.Contains(t, findings, Finding("Importing suspicious module 'os' at line 1"))
	assert.Contains(t, findings, Finding("Call to suspicious function 'os.system' at line 2"))
	assert.Contains(t, findings, Finding("Code contains suspicious pattern: 'os\\.system'"))
}

func TestDetectFromImport(t *testing.T) {
	findings := Detect("from subprocess import run")
	require.NotEmpty(t, findings)
	assert.Contains(t, findings, Finding("Importing from suspicious module 'subprocess' at line 1"))
}

func TestDetectSuspiciousBuiltin(t *testing.T) {
	findings := Detect("x = eval(\"1 + 1\")")
	require.NotEmpty(t, findings)
	assert.Contains(t, findings, Finding("Call to suspicious builtin 'eval' at line 1"))
}

func TestDetectDottedImportRoot(t *testing.T) {
	findings := Detect("import os.path")
	assert.Contains(t, findings, Finding("Importing suspicious module 'os.path' at line 1"))
}

func TestDetectCleanCode(t *testing.T) {
	src := "import pandas as pd\ndf = pd.DataFrame({\"a\": [1, 2]})\ndf.shape"
	assert.Empty(t, Detect(src))
}

func TestDetectIgnoresStrings(t *testing.T) {
	// A method named like a suspicious builtin inside a string literal is not
	// a structural finding; only the raw-text pass may still fire.
	findings := Detect("s = 'do not exec this'")
	for _, f := range findings {
		assert.NotContains(t, string(f), "suspicious builtin")
	}
}

func TestDetectSyntaxError(t *testing.T) {
	findings := Detect("x = (1 + 2")
	require.NotEmpty(t, findings)
	assert.Contains(t, string(findings[0]), "Cannot parse code")
}

func TestDetectIsIdempotent(t *testing.T) {
	src := "import socket\nsocket.create_connection((\"example.com\", 80))"
	first := Detect(src)
	second := Detect(src)
	assert.Equal(t, first, second)
}

func TestImports(t *testing.T) {
	src := "import math, statistics as st\nfrom pandas.io import parsers\nimport numpy.linalg"
	imports := Imports(src)
	require.Len(t, imports, 4)

	assert.Equal(t, Import{Module: "math", Line: 1}, imports[0])
	assert.Equal(t, Import{Module: "statistics", Line: 1}, imports[1])
	assert.Equal(t, Import{Module: "pandas.io", Line: 2, From: true}, imports[2])
	assert.Equal(t, "numpy", imports[3].Root())
}

func TestImportsSkipsStringsAndComments(t *testing.T) {
	src := "s = \"import os\"\n# import subprocess\nx = 1"
	assert.Empty(t, Imports(src))
}

func TestSuspiciousCodeError(t *testing.T) {
	err := &SuspiciousCodeError{Findings: []Finding{"a", "b"}}
	assert.Equal(t, "Suspicious code detected: a; b", err.Error())
}
