package main

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/salahayoub/blockvote/pkg/registry"
)

func newScanCmd(c *cli) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Probe the port range once and list the nodes found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := c.logger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			reg := registry.New(c.cfg.Registry(logger), c.dialer(logger))
			defer reg.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			spinner, _ := pterm.DefaultSpinner.Start("Scanning ports...")
			reg.Refresh(ctx)
			nodes := reg.Nodes()
			if len(nodes) == 0 {
				spinner.Warning("No nodes found")
				return nil
			}
			spinner.Success("Scan complete")

			if err := renderTable(nodesTable(nodes)); err != nil {
				return err
			}
			pterm.Info.Printfln("%d of %d nodes online", len(reg.Online()), len(nodes))

			graph := reg.Graph()
			for _, e := range graph.Edges {
				pterm.Printfln("  %d -> %d", e.From, e.To)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "give up on slow probes after this long")
	return cmd
}
