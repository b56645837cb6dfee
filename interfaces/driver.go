package interfaces

import (
	"context"
	"io"

	"github.com/ezenkico/useintest/models"
)

// CreateRequest carries everything a driver needs to create one container.
type CreateRequest struct {
	Image   string
	Name    string
	Ports   models.PortMapping
	Runtime models.RuntimeOptions
	Labels  map[string]string
}

// ContainerDriver is the container runtime as seen by the lifecycle controller.
//
// Stop and Remove must be safe to call on containers that are already
// stopped or gone; drivers report those cases with errors matched by
// errdefs.IsNotFound or errdefs.IsNotModified.
type ContainerDriver interface {
	PullIfAbsent(ctx context.Context, image string) error
	Create(ctx context.Context, req CreateRequest) (string, error)
	Start(ctx context.Context, containerID string) error

	// Logs follows the combined output of the container until it exits or
	// the returned reader is closed. Every call starts a fresh stream.
	Logs(ctx context.Context, containerID string) (io.ReadCloser, error)

	Stop(ctx context.Context, containerID string) error
	Remove(ctx context.Context, containerID string) error
}
