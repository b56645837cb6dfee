package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/ezenkico/useintest/services/flavors"
	"github.com/spf13/cobra"
)

func newFlavorsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "flavors",
		Short: "List the services that can be started",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := flavors.LoadFile(o.cfg.FlavorsFile)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tIMAGE\tPORTS\tREADY BY\tDESCRIPTION")
			for _, name := range table.Names() {
				f, err := table.Get(name)
				if err != nil {
					return err
				}
				readyBy := "logs"
				if f.Probe != nil {
					readyBy = "http"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, f.Spec().Image(), joinPorts(f.Ports), readyBy, f.Description)
			}
			return w.Flush()
		},
	}
}

func joinPorts(ports []int) string {
	s := make([]string, 0, len(ports))
	for _, p := range ports {
		s = append(s, strconv.Itoa(p))
	}
	return strings.Join(s, ",")
}
