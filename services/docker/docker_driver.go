package docker

import (
	"context"
	"time"

	"github.com/ezenkico/useintest/interfaces"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/moby/moby/client"
)

// apiClient is the part of the Docker Engine API the driver uses.
// *client.Client satisfies it.
type apiClient interface {
	ImageInspect(ctx context.Context, image string, opts ...client.ImageInspectOption) (client.ImageInspectResult, error)
	ImagePull(ctx context.Context, ref string, opts client.ImagePullOptions) (client.ImagePullResponse, error)
	ContainerCreate(ctx context.Context, opts client.ContainerCreateOptions) (client.ContainerCreateResult, error)
	ContainerStart(ctx context.Context, container string, opts client.ContainerStartOptions) (client.ContainerStartResult, error)
	ContainerLogs(ctx context.Context, container string, opts client.ContainerLogsOptions) (client.ContainerLogsResult, error)
	ContainerStop(ctx context.Context, container string, opts client.ContainerStopOptions) (client.ContainerStopResult, error)
	ContainerRemove(ctx context.Context, container string, opts client.ContainerRemoveOptions) (client.ContainerRemoveResult, error)
	ContainerList(ctx context.Context, opts client.ContainerListOptions) (client.ContainerListResult, error)
	Close() error
}

const defaultStopTimeout = 10 * time.Second

// DockerDriver implements interfaces.ContainerDriver for plain Docker (Engine API).
type DockerDriver struct {
	client apiClient
	log    zerolog.Logger

	// Deduplicates concurrent pulls of the same image
	pulls singleflight.Group

	// Grace period before a stopping container is killed
	StopTimeout time.Duration
}

// NewDockerDriver initializes the Docker driver using environment variables
// (e.g. DOCKER_HOST) and API version negotiation.
func NewDockerDriver(log zerolog.Logger) (*DockerDriver, error) {
	c, err := client.New(
		client.FromEnv,
	)
	if err != nil {
		return nil, err
	}

	return newDockerDriver(c, log), nil
}

func newDockerDriver(c apiClient, log zerolog.Logger) *DockerDriver {
	return &DockerDriver{
		client:      c,
		log:         log,
		StopTimeout: defaultStopTimeout,
	}
}

// Close releases the connection to the Docker daemon.
func (d *DockerDriver) Close() error {
	return d.client.Close()
}

var _ interfaces.ContainerDriver = (*DockerDriver)(nil)
