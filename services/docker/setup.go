package docker

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"strconv"

	"github.com/containerd/errdefs"
	"github.com/ezenkico/useintest/interfaces"
	"github.com/ezenkico/useintest/models"
	"github.com/ezenkico/useintest/services"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/client"
)

var publishAddr = netip.MustParseAddr("127.0.0.1")

// PullIfAbsent pulls image unless the daemon already has it. Concurrent
// callers asking for the same image share one pull.
func (d *DockerDriver) PullIfAbsent(ctx context.Context, image string) error {
	_, err, _ := d.pulls.Do(image, func() (any, error) {
		return nil, d.pullIfAbsent(ctx, image)
	})
	return err
}

func (d *DockerDriver) pullIfAbsent(ctx context.Context, image string) error {
	// If it already exists, treat as success.
	_, err := d.client.ImageInspect(ctx, image)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect image %q: %w", image, err)
	}

	d.log.Info().Str("image", image).Msg("pulling image")
	resp, err := d.client.ImagePull(ctx, image, client.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %q: %w", image, err)
	}
	defer resp.Close()

	// The pull only completes once its progress stream has been read.
	if _, err := io.Copy(io.Discard, resp); err != nil {
		return fmt.Errorf("pull image %q: %w", image, err)
	}
	return nil
}

// Create creates (but does not start) the container described by req.
func (d *DockerDriver) Create(ctx context.Context, req interfaces.CreateRequest) (string, error) {
	if err := CheckRequest(req); err != nil {
		return "", err
	}

	// Port bindings (TCP only, published on the loopback interface)
	exposed := network.PortSet{}
	portMap := network.PortMap{}
	for _, b := range req.Ports.Bindings() {
		port, ok := network.PortFrom(uint16(b.ContainerPort), network.IPProtocol("tcp"))
		if !ok {
			return "", fmt.Errorf("container %q has invalid port %d", req.Name, b.ContainerPort)
		}
		exposed[port] = struct{}{}
		portMap[port] = append(portMap[port], network.PortBinding{
			HostIP:   publishAddr,
			HostPort: strconv.Itoa(b.HostPort),
		})
	}

	mounts := make([]mount.Mount, 0, len(req.Runtime.Volumes))
	for _, vm := range req.Runtime.Volumes {
		t := mount.TypeBind
		if vm.Type == models.MountTypeVolume {
			t = mount.TypeVolume
		}
		mounts = append(mounts, mount.Mount{
			Type:     t,
			Source:   vm.Source,
			Target:   vm.MountPath,
			ReadOnly: vm.ReadOnly,
		})
	}

	cCfg := &container.Config{
		Image:        req.Image,
		Env:          services.EnvList(req.Runtime.Environment),
		Labels:       req.Labels,
		ExposedPorts: exposed,
		Tty:          false, // keeps the log stream multiplexed
	}
	if len(req.Runtime.Entrypoint) > 0 {
		cCfg.Entrypoint = req.Runtime.Entrypoint
	}
	if len(req.Runtime.Command) > 0 {
		cCfg.Cmd = req.Runtime.Command
	}

	hCfg := &container.HostConfig{
		Mounts:       mounts,
		PortBindings: portMap,
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyDisabled,
		},
	}

	created, err := d.client.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     cCfg,
		HostConfig: hCfg,
		Name:       req.Name,
		Image:      req.Image,
	})
	if err != nil {
		return "", fmt.Errorf("create container %q: %w", req.Name, err)
	}

	d.log.Debug().Str("container", req.Name).Str("id", created.ID).Msg("container created")
	return created.ID, nil
}

// Start starts a created container.
func (d *DockerDriver) Start(ctx context.Context, containerID string) error {
	if _, err := d.client.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("start container %q: %w", containerID, err)
	}
	return nil
}
