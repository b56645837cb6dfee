package cmd

import (
	"fmt"

	"github.com/ezenkico/useintest/logger"
	"github.com/ezenkico/useintest/services"
	"github.com/ezenkico/useintest/services/docker"
	"github.com/spf13/cobra"
)

func newCleanupCmd(o *options) *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove containers left behind by useintest",
		Long: `Removes every container labelled as managed by useintest. Containers are
normally removed when their test finishes; this sweeps up after processes
that crashed or were killed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			driver, err := docker.NewDockerDriver(logger.Component("docker"))
			if err != nil {
				return err
			}
			defer driver.Close()
			if o.cfg.StopTimeout > 0 {
				driver.StopTimeout = o.cfg.StopTimeout
			}

			labels := map[string]string{}
			if session != "" {
				labels[services.LabelSession] = session
			}
			n, err := driver.RemoveManaged(cmd.Context(), labels)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d container(s)\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "only remove containers of this session")
	return cmd
}
