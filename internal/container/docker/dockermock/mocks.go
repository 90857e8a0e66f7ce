package dockermock

import (
	"context"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/mock"

	"github.com/g8/uafrepro/internal/container/docker"
)

// MockDockerClient is a mock implementation of docker.DockerClient.
type MockDockerClient struct {
	mock.Mock
}

// ContainerStart provides a mock function with given fields: ctx, containerID, options.
func (m *MockDockerClient) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	args := m.Called(ctx, containerID, options)
	return args.Error(0)
}

// ContainerStop provides a mock function with given fields: ctx, containerID, options.
func (m *MockDockerClient) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	args := m.Called(ctx, containerID, options)
	return args.Error(0)
}

// ContainerRestart provides a mock function with given fields: ctx, containerID, options.
func (m *MockDockerClient) ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error {
	args := m.Called(ctx, containerID, options)
	return args.Error(0)
}

// ContainerInspect provides a mock function with given fields: ctx, containerID.
func (m *MockDockerClient) ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	args := m.Called(ctx, containerID)
	return args.Get(0).(container.InspectResponse), args.Error(1)
}

// MockCommandRunner is a mock implementation of docker.CommandRunner.
type MockCommandRunner struct {
	mock.Mock
}

// Run provides a mock function with given fields: ctx, args, stdio. When the
// first return value is a function it is called with the stdio streams.
func (m *MockCommandRunner) Run(ctx context.Context, cliArgs []string, stdio docker.Stdio) error {
	args := m.Called(ctx, cliArgs, stdio)
	if fn, ok := args.Get(0).(func(docker.Stdio) error); ok {
		return fn(stdio)
	}
	return args.Error(0)
}

var (
	_ docker.DockerClient  = &MockDockerClient{}
	_ docker.CommandRunner = &MockCommandRunner{}
)
