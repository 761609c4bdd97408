package docker

import (
	"context"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// Client wraps the official Docker client for the few calls the manager needs
// against the game-server container.
type Client struct {
	cli *client.Client
}

// New creates a new Docker client wrapper from the DOCKER_* environment.
func New() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &Client{cli: cli}, nil
}

// RestartContainer restarts a container by name or ID, giving it 30 seconds
// to save and exit.
func (c *Client) RestartContainer(ctx context.Context, name string) error {
	timeout := 30
	return c.cli.ContainerRestart(ctx, name, container.StopOptions{Timeout: &timeout})
}

// ContainerState returns the container's status string, e.g. "running".
func (c *Client) ContainerState(ctx context.Context, name string) (string, error) {
	info, err := c.cli.ContainerInspect(ctx, name)
	if err != nil {
		return "", err
	}
	if info.State == nil {
		return "unknown", nil
	}
	return string(info.State.Status), nil
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.cli.Close()
}
