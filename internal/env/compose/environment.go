// Package compose scales the worker fleet through docker compose.
package compose

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Config names the compose project and the scalable service.
type Config struct {
	Project string
	Service string
}

// Environment shells out to `docker compose` to inspect and resize the
// worker service. Calls are synchronous; the autoscaler tolerates failures
// and retries on its next tick.
type Environment struct {
	project string
	service string
}

// New constructs an Environment.
func New(cfg Config) (*Environment, error) {
	if strings.TrimSpace(cfg.Project) == "" {
		return nil, fmt.Errorf("compose project is required")
	}
	if strings.TrimSpace(cfg.Service) == "" {
		return nil, fmt.Errorf("compose service is required")
	}
	return &Environment{project: cfg.Project, service: cfg.Service}, nil
}

// SetWorkerCount scales the worker service to n replicas.
func (e *Environment) SetWorkerCount(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("worker count must be non-negative, got %d", n)
	}
	args := []string{
		"compose", "-p", e.project,
		"up", "-d", "--no-recreate",
		"--scale", fmt.Sprintf("%s=%d", e.service, n),
		e.service,
	}
	cmd := exec.CommandContext(ctx, "docker", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("scale %s to %d: %w: %s", e.service, n, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// WorkerCount counts the service's running containers.
func (e *Environment) WorkerCount(ctx context.Context) (int, error) {
	args := []string{
		"compose", "-p", e.project,
		"ps", "-q", e.service,
	}
	cmd := exec.CommandContext(ctx, "docker", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("list %s containers: %w: %s", e.service, err, strings.TrimSpace(stderr.String()))
	}
	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return 0, nil
	}
	return len(strings.Split(out, "\n")), nil
}
