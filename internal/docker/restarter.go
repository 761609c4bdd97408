package docker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ContainerRestarter restarts one named container. It satisfies the
// restarter used by world creation when the server cannot be reached over
// the remote console.
type ContainerRestarter struct {
	client *Client
	name   string
}

// NewContainerRestarter binds client to the container called name.
func NewContainerRestarter(client *Client, name string) *ContainerRestarter {
	return &ContainerRestarter{client: client, name: name}
}

// Restart restarts the bound container.
func (r *ContainerRestarter) Restart(ctx context.Context) error {
	if err := r.client.RestartContainer(ctx, r.name); err != nil {
		return fmt.Errorf("restart container %s: %w", r.name, err)
	}
	log.Info().Str("container", r.name).Msg("Game server container restarted")
	return nil
}

// State returns the bound container's status.
func (r *ContainerRestarter) State(ctx context.Context) (string, error) {
	return r.client.ContainerState(ctx, r.name)
}
