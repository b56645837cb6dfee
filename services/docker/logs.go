package docker

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/moby/moby/client"
)

// logStream is the demultiplexed output of a container. Closing it ends the
// follow request to the daemon.
type logStream struct {
	*io.PipeReader
	body io.Closer
	once sync.Once
}

func (s *logStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.body.Close()
		_ = s.PipeReader.Close()
	})
	return err
}

// Logs follows stdout and stderr of the container from its creation until
// it exits. Both streams are merged into one reader.
func (d *DockerDriver) Logs(ctx context.Context, containerID string) (io.ReadCloser, error) {
	rc, err := d.client.ContainerLogs(ctx, containerID, client.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Timestamps: false,
		Since:      "0",
	})
	if err != nil {
		return nil, fmt.Errorf("logs container %q: %w", containerID, err)
	}

	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, rc)
		// A nil error surfaces as io.EOF on the reader.
		pw.CloseWithError(err)
	}()

	return &logStream{PipeReader: pr, body: rc}, nil
}
