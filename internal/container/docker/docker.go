package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/g8/uafrepro/internal/log"
	"github.com/g8/uafrepro/internal/model"
	"github.com/g8/uafrepro/internal/session"
)

// DefaultStopTimeoutSeconds is the graceful shutdown time used on stop and restart.
const DefaultStopTimeoutSeconds = 10

// DockerClient is the subset of the Docker SDK used to manage the target containers.
type DockerClient interface {
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
}

// Stdio are the streams attached to a docker CLI invocation.
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// CommandRunner runs the docker CLI.
type CommandRunner interface {
	Run(ctx context.Context, args []string, stdio Stdio) error
}

type cliRunner struct{}

func (cliRunner) Run(ctx context.Context, args []string, stdio Stdio) error {
	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Stdin = stdio.Stdin
	cmd.Stdout = stdio.Stdout
	cmd.Stderr = stdio.Stderr
	return cmd.Run()
}

// ManagerConfig is the configuration of the container manager.
type ManagerConfig struct {
	Client DockerClient
	Runner CommandRunner
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

func (c *ManagerConfig) defaults() error {
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.Runner == nil {
		c.Runner = cliRunner{}
	}
	if c.Stdin == nil {
		c.Stdin = os.Stdin
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "docker.Manager"})
	return nil
}

// Manager controls the lifecycle of the target containers.
type Manager struct {
	client DockerClient
	runner CommandRunner
	stdio  Stdio
	logger log.Logger
}

// NewManager returns a new Docker container manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Manager{
		client: cfg.Client,
		runner: cfg.Runner,
		stdio:  Stdio{Stdin: cfg.Stdin, Stdout: cfg.Stdout, Stderr: cfg.Stderr},
		logger: cfg.Logger,
	}, nil
}

// Start starts a container, an already running container is not an error.
func (m *Manager) Start(ctx context.Context, name string) error {
	m.logger.Infof("Starting container: %s", name)
	if err := m.client.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		if strings.Contains(err.Error(), "already started") || strings.Contains(err.Error(), "is already running") {
			m.logger.Debugf("Container %s is already running", name)
			return nil
		}
		return containerErr(name, "start", err)
	}
	return nil
}

// Stop stops a container, an already stopped container is not an error.
func (m *Manager) Stop(ctx context.Context, name string) error {
	m.logger.Infof("Stopping container: %s", name)
	timeout := DefaultStopTimeoutSeconds
	if err := m.client.ContainerStop(ctx, name, container.StopOptions{Timeout: &timeout}); err != nil {
		if strings.Contains(err.Error(), "is already stopped") || strings.Contains(err.Error(), "is not running") {
			m.logger.Debugf("Container %s is already stopped", name)
			return nil
		}
		return containerErr(name, "stop", err)
	}
	return nil
}

// Restart restarts a container.
func (m *Manager) Restart(ctx context.Context, name string) error {
	m.logger.Infof("Restarting container: %s", name)
	timeout := DefaultStopTimeoutSeconds
	if err := m.client.ContainerRestart(ctx, name, container.StopOptions{Timeout: &timeout}); err != nil {
		return containerErr(name, "restart", err)
	}
	return nil
}

// State returns the Docker state of a container (running, exited...).
func (m *Manager) State(ctx context.Context, name string) (string, error) {
	info, err := m.client.ContainerInspect(ctx, name)
	if err != nil {
		return "", containerErr(name, "inspect", err)
	}
	if info.ContainerJSONBase == nil || info.State == nil {
		return "unknown", nil
	}
	return info.State.Status, nil
}

// CopyTo copies a local file or directory into a container with `docker cp`.
func (m *Manager) CopyTo(ctx context.Context, name, srcLocal, dstContainer string) error {
	if _, err := os.Stat(srcLocal); err != nil {
		return fmt.Errorf("could not stat %s: %w", srcLocal, err)
	}

	args := []string{"cp", srcLocal, name + ":" + dstContainer}
	m.logger.Debugf("Running: docker %s", strings.Join(args, " "))

	var stderr strings.Builder
	if err := m.runner.Run(ctx, args, Stdio{Stderr: &stderr}); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "No such container") {
			return fmt.Errorf("container %s: %w", name, model.ErrNotFound)
		}
		if msg != "" {
			return fmt.Errorf("docker cp failed: %s: %w", msg, err)
		}
		return fmt.Errorf("docker cp failed: %w", err)
	}

	return nil
}

// Upload implements session.Uploader.
func (m *Manager) Upload(ctx context.Context, target model.Target, srcLocal string) error {
	if target.ContainerName == "" {
		return fmt.Errorf("%s has no container name: %w", target.ProjectName, model.ErrNotValid)
	}
	return m.CopyTo(ctx, target.ContainerName, srcLocal, target.UploadPath)
}

// Raw runs the docker CLI with the manager streams attached and returns the CLI exit code.
func (m *Manager) Raw(ctx context.Context, args []string) (int, error) {
	if len(args) == 0 {
		return -1, fmt.Errorf("docker arguments are required: %w", model.ErrNotValid)
	}

	m.logger.Debugf("Running: docker %s", strings.Join(args, " "))
	err := m.runner.Run(ctx, args, m.stdio)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("could not run docker: %w", err)
	}

	return 0, nil
}

func containerErr(name, op string, err error) error {
	if strings.Contains(err.Error(), "No such container") {
		return fmt.Errorf("container %s: %w", name, model.ErrNotFound)
	}
	return fmt.Errorf("failed to %s container %s: %w", op, name, err)
}

var _ session.Uploader = &Manager{}
