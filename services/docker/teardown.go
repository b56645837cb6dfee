package docker

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/ezenkico/useintest/services"

	"github.com/moby/moby/client"
)

// RemoveManaged removes every container carrying the managed label plus all
// of the given labels. It is the sweep for containers a crashed process left
// behind and returns how many containers were removed.
func (d *DockerDriver) RemoveManaged(ctx context.Context, labels map[string]string) (int, error) {
	f := make(client.Filters).
		Add("label", services.LabelManaged+"=true")
	for k, v := range labels {
		f = f.Add("label", k+"="+v)
	}

	containers, err := d.client.ContainerList(ctx, client.ContainerListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return 0, fmt.Errorf("list managed containers: %w", err)
	}

	removed := 0
	for _, c := range containers.Items {
		// Stop (best-effort) then remove
		_ = d.Stop(ctx, c.ID)
		if err := d.Remove(ctx, c.ID); err != nil {
			// If it vanished between list and remove, ignore.
			if errdefs.IsNotFound(err) {
				continue
			}
			return removed, err
		}
		d.log.Info().Str("id", c.ID).Msg("removed leftover container")
		removed++
	}

	return removed, nil
}
