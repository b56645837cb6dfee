package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/ezenkico/useintest/interfaces"
	"github.com/ezenkico/useintest/models"
	"github.com/ezenkico/useintest/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/client"
)

// fakeAPI is a function-field fake of apiClient. Unset fields fail the call.
type fakeAPI struct {
	ImageInspectFn    func(ctx context.Context, image string) (client.ImageInspectResult, error)
	ImagePullFn       func(ctx context.Context, ref string, opts client.ImagePullOptions) (client.ImagePullResponse, error)
	ContainerCreateFn func(ctx context.Context, opts client.ContainerCreateOptions) (client.ContainerCreateResult, error)
	ContainerStartFn  func(ctx context.Context, id string) error
	ContainerLogsFn   func(ctx context.Context, id string, opts client.ContainerLogsOptions) (client.ContainerLogsResult, error)
	ContainerStopFn   func(ctx context.Context, id string, opts client.ContainerStopOptions) error
	ContainerRemoveFn func(ctx context.Context, id string, opts client.ContainerRemoveOptions) error
	ContainerListFn   func(ctx context.Context, opts client.ContainerListOptions) (client.ContainerListResult, error)

	closed bool
}

var errNotConfigured = errors.New("fake api: not configured")

func (f *fakeAPI) ImageInspect(ctx context.Context, image string, _ ...client.ImageInspectOption) (client.ImageInspectResult, error) {
	if f.ImageInspectFn == nil {
		return client.ImageInspectResult{}, errNotConfigured
	}
	return f.ImageInspectFn(ctx, image)
}

func (f *fakeAPI) ImagePull(ctx context.Context, ref string, opts client.ImagePullOptions) (client.ImagePullResponse, error) {
	if f.ImagePullFn == nil {
		return nil, errNotConfigured
	}
	return f.ImagePullFn(ctx, ref, opts)
}

func (f *fakeAPI) ContainerCreate(ctx context.Context, opts client.ContainerCreateOptions) (client.ContainerCreateResult, error) {
	if f.ContainerCreateFn == nil {
		return client.ContainerCreateResult{}, errNotConfigured
	}
	return f.ContainerCreateFn(ctx, opts)
}

func (f *fakeAPI) ContainerStart(ctx context.Context, id string, _ client.ContainerStartOptions) (client.ContainerStartResult, error) {
	if f.ContainerStartFn == nil {
		return client.ContainerStartResult{}, errNotConfigured
	}
	return client.ContainerStartResult{}, f.ContainerStartFn(ctx, id)
}

func (f *fakeAPI) ContainerLogs(ctx context.Context, id string, opts client.ContainerLogsOptions) (client.ContainerLogsResult, error) {
	if f.ContainerLogsFn == nil {
		return nil, errNotConfigured
	}
	return f.ContainerLogsFn(ctx, id, opts)
}

func (f *fakeAPI) ContainerStop(ctx context.Context, id string, opts client.ContainerStopOptions) (client.ContainerStopResult, error) {
	if f.ContainerStopFn == nil {
		return client.ContainerStopResult{}, errNotConfigured
	}
	return client.ContainerStopResult{}, f.ContainerStopFn(ctx, id, opts)
}

func (f *fakeAPI) ContainerRemove(ctx context.Context, id string, opts client.ContainerRemoveOptions) (client.ContainerRemoveResult, error) {
	if f.ContainerRemoveFn == nil {
		return client.ContainerRemoveResult{}, errNotConfigured
	}
	return client.ContainerRemoveResult{}, f.ContainerRemoveFn(ctx, id, opts)
}

func (f *fakeAPI) ContainerList(ctx context.Context, opts client.ContainerListOptions) (client.ContainerListResult, error) {
	if f.ContainerListFn == nil {
		return client.ContainerListResult{}, errNotConfigured
	}
	return f.ContainerListFn(ctx, opts)
}

func (f *fakeAPI) Close() error {
	f.closed = true
	return nil
}

func notFound(what string) error {
	return fmt.Errorf("%s not found: %w", what, errdefs.ErrNotFound)
}

func newTestDriver(api *fakeAPI) *DockerDriver {
	return newDockerDriver(api, zerolog.Nop())
}

func TestPullIfAbsentImagePresent(t *testing.T) {
	pulled := false
	api := &fakeAPI{
		ImageInspectFn: func(context.Context, string) (client.ImageInspectResult, error) {
			return client.ImageInspectResult{}, nil
		},
		ImagePullFn: func(context.Context, string, client.ImagePullOptions) (client.ImagePullResponse, error) {
			pulled = true
			return nil, errNotConfigured
		},
	}

	require.NoError(t, newTestDriver(api).PullIfAbsent(context.Background(), "mongo:3"))
	assert.False(t, pulled)
}

func TestPullIfAbsentPullsMissingImage(t *testing.T) {
	var pulledRef string
	pullErr := errors.New("registry unreachable")
	api := &fakeAPI{
		ImageInspectFn: func(_ context.Context, image string) (client.ImageInspectResult, error) {
			return client.ImageInspectResult{}, notFound(image)
		},
		ImagePullFn: func(_ context.Context, ref string, _ client.ImagePullOptions) (client.ImagePullResponse, error) {
			pulledRef = ref
			return nil, pullErr
		},
	}

	err := newTestDriver(api).PullIfAbsent(context.Background(), "mongo:3")
	require.Error(t, err)
	assert.ErrorIs(t, err, pullErr)
	assert.Equal(t, "mongo:3", pulledRef)
}

func TestPullIfAbsentInspectError(t *testing.T) {
	inspectErr := errors.New("daemon down")
	api := &fakeAPI{
		ImageInspectFn: func(context.Context, string) (client.ImageInspectResult, error) {
			return client.ImageInspectResult{}, inspectErr
		},
	}

	err := newTestDriver(api).PullIfAbsent(context.Background(), "mongo:3")
	assert.ErrorIs(t, err, inspectErr)
}

func createRequest(t *testing.T) interfaces.CreateRequest {
	t.Helper()
	ports, err := models.NewPortMapping(
		models.BindingSpec{ContainerPort: 27017, HostPort: 41000},
		models.BindingSpec{ContainerPort: 28017, HostPort: 41001},
	)
	require.NoError(t, err)
	return interfaces.CreateRequest{
		Image: "mongo:3",
		Name:  "mongo-0123456789ab",
		Ports: ports,
		Runtime: models.RuntimeOptions{
			Environment: map[string]string{"B": "2", "A": "1"},
			Entrypoint:  []string{"/entry.sh"},
			Volumes: []models.VolumeMount{
				{Type: models.MountTypeBind, Source: "/tmp/data", MountPath: "/data", ReadOnly: true},
				{Type: models.MountTypeVolume, Source: "cache", MountPath: "/cache"},
			},
		},
		Labels: services.InstanceLabels("session-1", "instance-1", "mongo:3"),
	}
}

func TestCreateBuildsContainerConfig(t *testing.T) {
	var got client.ContainerCreateOptions
	api := &fakeAPI{
		ContainerCreateFn: func(_ context.Context, opts client.ContainerCreateOptions) (client.ContainerCreateResult, error) {
			got = opts
			return client.ContainerCreateResult{ID: "abc123"}, nil
		},
	}

	id, err := newTestDriver(api).Create(context.Background(), createRequest(t))
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	assert.Equal(t, "mongo-0123456789ab", got.Name)
	require.NotNil(t, got.Config)
	assert.Equal(t, "mongo:3", got.Config.Image)
	assert.Equal(t, []string{"A=1", "B=2"}, got.Config.Env)
	assert.Equal(t, []string{"/entry.sh"}, []string(got.Config.Entrypoint))
	assert.Empty(t, got.Config.Cmd)
	assert.False(t, got.Config.Tty)
	assert.Equal(t, "true", got.Config.Labels[services.LabelManaged])
	assert.Equal(t, "session-1", got.Config.Labels[services.LabelSession])
	assert.Equal(t, "instance-1", got.Config.Labels[services.LabelInstance])

	require.NotNil(t, got.HostConfig)
	assert.Equal(t, container.RestartPolicyDisabled, got.HostConfig.RestartPolicy.Name)

	port, ok := network.PortFrom(27017, network.IPProtocol("tcp"))
	require.True(t, ok)
	assert.Contains(t, got.Config.ExposedPorts, port)
	bindings := got.HostConfig.PortBindings[port]
	require.Len(t, bindings, 1)
	assert.Equal(t, "41000", bindings[0].HostPort)
	assert.Equal(t, "127.0.0.1", bindings[0].HostIP.String())
	assert.Len(t, got.HostConfig.PortBindings, 2)

	require.Len(t, got.HostConfig.Mounts, 2)
	assert.Equal(t, mount.TypeBind, got.HostConfig.Mounts[0].Type)
	assert.Equal(t, "/data", got.HostConfig.Mounts[0].Target)
	assert.True(t, got.HostConfig.Mounts[0].ReadOnly)
	assert.Equal(t, mount.TypeVolume, got.HostConfig.Mounts[1].Type)
	assert.Equal(t, "cache", got.HostConfig.Mounts[1].Source)
}

func TestCreateRejectsInvalidRequest(t *testing.T) {
	called := false
	api := &fakeAPI{
		ContainerCreateFn: func(context.Context, client.ContainerCreateOptions) (client.ContainerCreateResult, error) {
			called = true
			return client.ContainerCreateResult{}, nil
		},
	}
	req := createRequest(t)
	req.Image = ""

	_, err := newTestDriver(api).Create(context.Background(), req)
	require.Error(t, err)
	assert.False(t, called)
}

func TestLogsDemultiplexesStreams(t *testing.T) {
	var raw bytes.Buffer
	_, err := stdcopy.NewStdWriter(&raw, stdcopy.Stdout).Write([]byte("booting\n"))
	require.NoError(t, err)
	_, err = stdcopy.NewStdWriter(&raw, stdcopy.Stderr).Write([]byte("warning: low memory\n"))
	require.NoError(t, err)
	_, err = stdcopy.NewStdWriter(&raw, stdcopy.Stdout).Write([]byte("ready\n"))
	require.NoError(t, err)

	var opts client.ContainerLogsOptions
	api := &fakeAPI{
		ContainerLogsFn: func(_ context.Context, _ string, o client.ContainerLogsOptions) (client.ContainerLogsResult, error) {
			opts = o
			return io.NopCloser(&raw), nil
		},
	}

	rc, err := newTestDriver(api).Logs(context.Background(), "abc123")
	require.NoError(t, err)
	out, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.NoError(t, rc.Close())

	assert.Equal(t, "booting\nwarning: low memory\nready\n", string(out))
	assert.True(t, opts.Follow)
	assert.True(t, opts.ShowStdout)
	assert.True(t, opts.ShowStderr)
}

func TestLogsError(t *testing.T) {
	api := &fakeAPI{
		ContainerLogsFn: func(_ context.Context, id string, _ client.ContainerLogsOptions) (client.ContainerLogsResult, error) {
			return nil, notFound(id)
		},
	}

	_, err := newTestDriver(api).Logs(context.Background(), "abc123")
	assert.True(t, errdefs.IsNotFound(err))
}

func TestStopUsesStopTimeout(t *testing.T) {
	var timeout *int
	api := &fakeAPI{
		ContainerStopFn: func(_ context.Context, _ string, opts client.ContainerStopOptions) error {
			timeout = opts.Timeout
			return nil
		},
	}

	require.NoError(t, newTestDriver(api).Stop(context.Background(), "abc123"))
	require.NotNil(t, timeout)
	assert.Equal(t, 10, *timeout)
}

func TestStopKeepsErrorClass(t *testing.T) {
	api := &fakeAPI{
		ContainerStopFn: func(context.Context, string, client.ContainerStopOptions) error {
			return errdefs.ErrNotModified
		},
		ContainerRemoveFn: func(_ context.Context, id string, _ client.ContainerRemoveOptions) error {
			return notFound(id)
		},
	}
	d := newTestDriver(api)

	err := d.Stop(context.Background(), "abc123")
	assert.True(t, errdefs.IsNotModified(err))
	assert.Contains(t, err.Error(), "abc123")

	err = d.Remove(context.Background(), "abc123")
	assert.True(t, errdefs.IsNotFound(err))
}

func TestRemoveForcesAndDropsVolumes(t *testing.T) {
	var opts client.ContainerRemoveOptions
	api := &fakeAPI{
		ContainerRemoveFn: func(_ context.Context, _ string, o client.ContainerRemoveOptions) error {
			opts = o
			return nil
		},
	}

	require.NoError(t, newTestDriver(api).Remove(context.Background(), "abc123"))
	assert.True(t, opts.Force)
	assert.True(t, opts.RemoveVolumes)
}

func TestRemoveManaged(t *testing.T) {
	var listOpts client.ContainerListOptions
	var stopped, removed []string
	api := &fakeAPI{
		ContainerListFn: func(_ context.Context, opts client.ContainerListOptions) (client.ContainerListResult, error) {
			listOpts = opts
			return client.ContainerListResult{Items: []container.Summary{
				{ID: "one"}, {ID: "gone"}, {ID: "two"},
			}}, nil
		},
		ContainerStopFn: func(_ context.Context, id string, _ client.ContainerStopOptions) error {
			stopped = append(stopped, id)
			return nil
		},
		ContainerRemoveFn: func(_ context.Context, id string, _ client.ContainerRemoveOptions) error {
			if id == "gone" {
				return notFound(id)
			}
			removed = append(removed, id)
			return nil
		},
	}

	n, err := newTestDriver(api).RemoveManaged(context.Background(), map[string]string{
		services.LabelSession: "session-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, listOpts.All)
	assert.Equal(t, []string{"one", "gone", "two"}, stopped)
	assert.Equal(t, []string{"one", "two"}, removed)
}

func TestRemoveManagedListError(t *testing.T) {
	listErr := errors.New("daemon down")
	api := &fakeAPI{
		ContainerListFn: func(context.Context, client.ContainerListOptions) (client.ContainerListResult, error) {
			return client.ContainerListResult{}, listErr
		},
	}

	n, err := newTestDriver(api).RemoveManaged(context.Background(), nil)
	assert.ErrorIs(t, err, listErr)
	assert.Zero(t, n)
}

func TestClose(t *testing.T) {
	api := &fakeAPI{}
	require.NoError(t, newTestDriver(api).Close())
	assert.True(t, api.closed)
}
