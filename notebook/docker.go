package notebook

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

const (
	// DefaultSandboxImage is the worker container image. It only needs a
	// python3 binary; the analysis libraries on the allow-list should be
	// baked in for the interpreter to be useful.
	DefaultSandboxImage = "sandbox-python:latest"

	containerStopTimeout = 5 // seconds
)

// DockerRunner places each session's worker in its own container with
// networking disabled. The same line protocol runs over the attached stdio.
type DockerRunner struct {
	client *client.Client
	image  string
}

// NewDockerRunner builds a runner from the ambient Docker environment
// (DOCKER_HOST and friends).
func NewDockerRunner(image string) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	if image == "" {
		image = DefaultSandboxImage
	}
	return &DockerRunner{client: cli, image: image}, nil
}

func (r *DockerRunner) Start(ctx context.Context) (Worker, error) {
	cfg := &container.Config{
		Image:        r.image,
		Cmd:          []string{"python3", "-u", "-c", bootstrapSource},
		OpenStdin:    true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		NetworkDisabled: true,
		Labels: map[string]string{
			"manager": "spec-agent",
		},
	}
	created, err := r.client.ContainerCreate(ctx, cfg, &container.HostConfig{}, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("creating sandbox container: %w", err)
	}

	attach, err := r.client.ContainerAttach(ctx, created.ID, types.ContainerAttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		r.remove(created.ID)
		return nil, fmt.Errorf("attaching to sandbox container: %w", err)
	}

	if err := r.client.ContainerStart(ctx, created.ID, types.ContainerStartOptions{}); err != nil {
		attach.Close()
		r.remove(created.ID)
		return nil, fmt.Errorf("starting sandbox container: %w", err)
	}

	// The attach stream is multiplexed; demux stdout into a pipe the worker
	// reads lines from, and route stderr to the log.
	outR, outW := io.Pipe()
	go func() {
		defer outW.Close()
		if _, err := stdcopy.StdCopy(outW, workerLogWriter{containerID: created.ID}, attach.Reader); err != nil && err != io.EOF {
			slog.Debug("sandbox stream closed", slog.String("container", created.ID), slog.String("error", err.Error()))
		}
	}()

	return &pipeWorker{
		in:  attach.Conn,
		out: bufio.NewReader(outR),
		stop: func() error {
			attach.Close()
			r.remove(created.ID)
			return nil
		},
	}, nil
}

func (r *DockerRunner) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	timeout := containerStopTimeout
	if err := r.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		slog.Debug("stopping sandbox container", slog.String("container", id), slog.String("error", err.Error()))
	}
	if err := r.client.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true}); err != nil {
		slog.Debug("removing sandbox container", slog.String("container", id), slog.String("error", err.Error()))
	}
}

// workerLogWriter forwards container stderr lines to the host log.
type workerLogWriter struct {
	containerID string
}

func (w workerLogWriter) Write(p []byte) (int, error) {
	slog.Debug("sandbox stderr",
		slog.String("container", w.containerID),
		slog.String("output", string(p)))
	return len(p), nil
}
