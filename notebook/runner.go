package notebook

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/kawashishu/spec-agent/pkg/slogx"
)

// Runner decides where the Python worker process for a session lives: on the
// host (LocalRunner) or inside a container (DockerRunner). Placement is an
// operational choice, not a security boundary the guardrail relies on.
type Runner interface {
	Start(ctx context.Context) (Worker, error)
}

// Worker is one live worker process. Roundtrip writes a single request line
// and blocks until the matching response line arrives. Callers must serialize
// Roundtrip calls; the notebook guarantees this with its exec lock.
type Worker interface {
	Roundtrip(ctx context.Context, request []byte) ([]byte, error)
	Close() error
}

// LocalRunner starts the worker as a plain subprocess on the host.
type LocalRunner struct {
	// Python is the interpreter binary, "python3" when empty.
	Python string
}

func (r *LocalRunner) Start(ctx context.Context) (Worker, error) {
	bin := r.Python
	if bin == "" {
		bin = "python3"
	}

	// The worker outlives the request that started it, so the command is not
	// bound to ctx; Close owns the teardown.
	cmd := exec.Command(bin, "-u", "-c", bootstrapSource)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting python worker: %w", err)
	}

	go logWorkerStderr(stderr)

	return &pipeWorker{
		in:  stdin,
		out: bufio.NewReader(stdout),
		stop: func() error {
			_ = stdin.Close()
			_ = cmd.Process.Kill()
			return cmd.Wait()
		},
	}, nil
}

func logWorkerStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		slog.Debug("python worker stderr", slogx.ByteString("line", scanner.Bytes()))
	}
}

// pipeWorker speaks the line protocol over a pair of byte streams. It is
// shared by the local and docker runners, which differ only in how the
// streams are obtained and torn down.
type pipeWorker struct {
	in   io.Writer
	out  *bufio.Reader
	stop func() error

	closeOnce sync.Once
	closeErr  error
}

type roundtripResult struct {
	line []byte
	err  error
}

func (w *pipeWorker) Roundtrip(ctx context.Context, request []byte) ([]byte, error) {
	if _, err := w.in.Write(append(request, '\n')); err != nil {
		return nil, fmt.Errorf("writing to worker: %w", err)
	}

	done := make(chan roundtripResult, 1)
	go func() {
		line, err := w.out.ReadBytes('\n')
		done <- roundtripResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		// The worker is mid-cell and its next output line would answer a
		// request nobody is waiting for; the session must be reset.
		_ = w.Close()
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("reading from worker: %w", res.err)
		}
		return res.line, nil
	}
}

func (w *pipeWorker) Close() error {
	w.closeOnce.Do(func() {
		if w.stop != nil {
			w.closeErr = w.stop()
		}
	})
	return w.closeErr
}
