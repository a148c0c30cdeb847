// Package notebook implements the stateful per-session Python interpreter.
// Each Notebook owns one persistent worker process and the variable
// environment inside it; successive Exec calls see each other's mutations,
// which is the whole point of the stateful contract the code-interpreter tool
// promises to the agent.
package notebook

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/kawashishu/spec-agent/guardrail"
	"github.com/kawashishu/spec-agent/pkg/uuidx"
)

// CellOutput is the result of one execution: everything the cell wrote to
// standard output, and zero or more result values. Today a cell yields the
// single trailing-expression value (or its tuple elements, plus any figures
// left open), but the slice shape keeps the API open.
type CellOutput struct {
	Console string
	Results []Value
}

// Cell is an immutable record of one execution request, kept for audit and
// debugging. Cells are never replayed.
type Cell struct {
	Source string
	Output CellOutput
}

// Notebook executes snippets one cell at a time against a persistent
// environment. Concurrent Exec calls are not supported; the internal lock
// makes them safe but they still serialize, and callers are expected to hold
// the per-session lock anyway.
type Notebook struct {
	runner  Runner
	policy  ImportPolicy
	allowed []string

	mu     sync.Mutex
	worker Worker
	cells  []Cell
}

var (
	// WithRunner sets the worker placement. Defaults to LocalRunner.
	WithRunner = opts.ForName[Notebook, Runner]("runner")
	// WithPolicy selects the import control profile.
	WithPolicy = opts.ForName[Notebook, ImportPolicy]("policy")
	// WithAllowedModules overrides the allow-list used by PolicyAllowlist.
	WithAllowedModules = opts.ForName[Notebook, []string]("allowed")
)

// New builds a notebook. The worker process is started lazily on the first
// Exec so that creating a session stays cheap.
func New(options ...opts.Option[Notebook]) (*Notebook, error) {
	nb := &Notebook{
		policy:  PolicyDenylist,
		allowed: DefaultAllowedModules,
	}
	if err := opts.Apply(nb, options); err != nil {
		return nil, err
	}
	if nb.runner == nil {
		nb.runner = &LocalRunner{}
	}
	return nb, nil
}

type execRequest struct {
	ID   string `json:"id"`
	Op   string `json:"op"`
	Body string `json:"body,omitempty"`
	Last string `json:"last,omitempty"`
}

// Exec runs one cell. Policy failures (guardrail findings, allow-list
// violations) are returned as errors before anything executes; failures
// raised by the user code itself are captured into the console text and the
// cell still returns normally, keeping the interpreter alive for the next
// cell.
func (n *Notebook) Exec(ctx context.Context, source string) (CellOutput, error) {
	if findings := guardrail.Detect(source); len(findings) > 0 {
		return CellOutput{}, &guardrail.SuspiciousCodeError{Findings: findings}
	}
	if n.policy == PolicyAllowlist {
		if err := validateImports(source, n.allowed); err != nil {
			return CellOutput{}, err
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	worker, err := n.ensureWorker(ctx)
	if err != nil {
		return CellOutput{}, err
	}

	body, last := splitSource(source)
	req, err := json.Marshal(execRequest{ID: uuidx.NewString(), Op: "exec", Body: body, Last: last})
	if err != nil {
		return CellOutput{}, fmt.Errorf("encoding cell request: %w", err)
	}

	line, err := worker.Roundtrip(ctx, req)
	if err != nil {
		// The worker is unusable; drop it so the next cell starts fresh.
		n.dropWorkerLocked()
		return CellOutput{}, fmt.Errorf("notebook worker: %w", err)
	}

	jv := gjson.ParseBytes(line)
	if msg := jv.Get("error").String(); msg != "" {
		return CellOutput{}, fmt.Errorf("notebook worker: %s", msg)
	}

	out := CellOutput{Console: jv.Get("console").String()}
	for _, rv := range jv.Get("results").Array() {
		out.Results = append(out.Results, decodeValue(rv))
	}

	n.cells = append(n.cells, Cell{Source: source, Output: out})
	return out, nil
}

// Vars lists the user-defined variables of the environment as repr strings.
// Bootstrap dunder entries are never included.
func (n *Notebook) Vars(ctx context.Context) (map[string]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	worker, err := n.ensureWorker(ctx)
	if err != nil {
		return nil, err
	}

	req, err := json.Marshal(execRequest{ID: uuidx.NewString(), Op: "vars"})
	if err != nil {
		return nil, err
	}
	line, err := worker.Roundtrip(ctx, req)
	if err != nil {
		n.dropWorkerLocked()
		return nil, fmt.Errorf("notebook worker: %w", err)
	}

	vars := make(map[string]string)
	gjson.ParseBytes(line).Get("vars").ForEach(func(key, value gjson.Result) bool {
		vars[key.String()] = value.String()
		return true
	})
	return vars, nil
}

// Cells returns the append-only execution history.
func (n *Notebook) Cells() []Cell {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Cell, len(n.cells))
	copy(out, n.cells)
	return out
}

// Reset drops the environment and the history. Must not race a running cell;
// callers serialize resets behind the per-session lock.
func (n *Notebook) Reset() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cells = nil
	return n.closeWorkerLocked()
}

// Close tears down the worker process. The notebook is unusable afterward.
func (n *Notebook) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closeWorkerLocked()
}

func (n *Notebook) ensureWorker(ctx context.Context) (Worker, error) {
	if n.worker != nil {
		return n.worker, nil
	}
	worker, err := n.runner.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting notebook worker: %w", err)
	}
	n.worker = worker
	return worker, nil
}

func (n *Notebook) dropWorkerLocked() {
	if n.worker != nil {
		_ = n.worker.Close()
		n.worker = nil
	}
}

func (n *Notebook) closeWorkerLocked() error {
	if n.worker == nil {
		return nil
	}
	err := n.worker.Close()
	n.worker = nil
	return err
}

// splitSource splits a snippet into its statement body and the final line,
// mirroring REPL semantics: the last non-empty line is the eval candidate.
func splitSource(source string) (body, last string) {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(source), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", ""
	}
	return strings.Join(lines[:len(lines)-1], "\n"), lines[len(lines)-1]
}
