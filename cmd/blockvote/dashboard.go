package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/salahayoub/blockvote/pkg/registry"
	"github.com/salahayoub/blockvote/pkg/selection"
	"github.com/salahayoub/blockvote/pkg/tally"
	"github.com/salahayoub/blockvote/pkg/tui"
)

func newDashboardCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the terminal dashboard (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDashboard()
		},
	}
}

// runDashboard wires the registry, the selection coordinator and the
// election fetcher into the TUI and blocks until the user quits.
func (c *cli) runDashboard() error {
	logger, err := c.fileLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	arch, err := c.openArchive()
	if err != nil {
		return err
	}
	if arch != nil {
		defer arch.Close()
		logger.Info("archiving to", zap.String("path", arch.Path()))
	}

	cache, err := tally.NewCache(tally.DefaultCacheSize)
	if err != nil {
		return fmt.Errorf("failed to create ranking cache: %w", err)
	}

	dialer := c.dialer(logger)
	reg := registry.New(c.cfg.Registry(logger), dialer)
	defer reg.Close()

	fetcher := tui.NewElectionFetcher(dialer, arch, logger)
	sel := selection.New(fetcher,
		selection.WithRankingCache(cache),
		selection.WithKeyLength(c.cfg.KeyLength))
	fetcher.Bind(sel)
	defer fetcher.Wait()

	router := tui.NewCommandRouter(reg, sel, dialer, fetcher, logger, c.cfg.CasterOptions(logger)...)
	app := tui.NewApp(reg, sel, fetcher, router, tui.Options{Logger: logger})

	logger.Info("dashboard starting",
		zap.String("host", c.cfg.Host),
		zap.Int("base_port", c.cfg.BasePort),
		zap.Int("port_count", c.cfg.PortCount))
	if err := app.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	logger.Info("dashboard stopped")
	return nil
}
