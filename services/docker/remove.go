package docker

import (
	"context"
	"fmt"
	"time"

	"github.com/moby/moby/client"
)

// Stop stops the container, killing it once StopTimeout has passed. Stopping
// a container that is already stopped or gone returns an error matched by
// errdefs.IsNotModified or errdefs.IsNotFound.
func (d *DockerDriver) Stop(ctx context.Context, containerID string) error {
	timeout := int(d.StopTimeout / time.Second)
	if _, err := d.client.ContainerStop(ctx, containerID, client.ContainerStopOptions{
		Timeout: &timeout,
	}); err != nil {
		return fmt.Errorf("stop container %q: %w", containerID, err)
	}
	return nil
}

// Remove force-removes the container together with its anonymous volumes.
func (d *DockerDriver) Remove(ctx context.Context, containerID string) error {
	if _, err := d.client.ContainerRemove(ctx, containerID, client.ContainerRemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	}); err != nil {
		return fmt.Errorf("remove container %q: %w", containerID, err)
	}
	return nil
}
