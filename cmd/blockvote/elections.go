package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/salahayoub/blockvote/pkg/tally"
	"github.com/salahayoub/blockvote/pkg/transport"
	"github.com/salahayoub/blockvote/pkg/types"
)

// requestTimeout bounds one-shot requests.
const requestTimeout = 30 * time.Second

var (
	// ErrElectionNotFound is returned when no election matches an id.
	ErrElectionNotFound = errors.New("election not found")
	// ErrAmbiguousElection is returned when an id prefix matches several elections.
	ErrAmbiguousElection = errors.New("election id prefix is ambiguous")
)

// findElection returns the ledger whose id equals or, failing that,
// uniquely starts with id.
func findElection(ledgers []types.Ledger, id string) (*types.Ledger, error) {
	for i := range ledgers {
		if ledgers[i].ID == id {
			return &ledgers[i], nil
		}
	}

	var match *types.Ledger
	for i := range ledgers {
		if !strings.HasPrefix(ledgers[i].ID, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: %s", ErrAmbiguousElection, id)
		}
		match = &ledgers[i]
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrElectionNotFound, id)
	}
	return match, nil
}

// fetchElection loads the elections of a node and picks one by id.
func fetchElection(ctx context.Context, client transport.Client, id string) (*types.Ledger, error) {
	ledgers, err := client.Elections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch elections from node %d: %w", client.Port(), err)
	}
	return findElection(ledgers, id)
}

func newElectionsCmd(c *cli) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "elections",
		Short: "List the elections held by a node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := c.logger()
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
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			ledgers, err := c.dialer(logger).Dial(port).Elections(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch elections from node %d: %w", port, err)
			}
			if arch != nil {
				if err := arch.PutLedgers(port, ledgers); err != nil {
					pterm.Warning.Printfln("Archive: %v", err)
				}
			}
			if len(ledgers) == 0 {
				pterm.Info.Printfln("No elections on node %d", port)
				return nil
			}
			return renderTable(electionsTable(ledgers))
		},
	}
	cmd.Flags().IntVarP(&port, "node", "n", 0, "port of the node to query")
	_ = cmd.MarkFlagRequired("node")
	return cmd
}

func newResultsCmd(c *cli) *cobra.Command {
	var (
		port     int
		election string
		system   string
	)
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Tally an election held by a node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := tally.ParseSystem(system)
			if err != nil {
				return err
			}
			logger, err := c.logger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			ledger, err := fetchElection(ctx, c.dialer(logger).Dial(port), election)
			if err != nil {
				return err
			}
			return printResults(ledger, sys)
		},
	}
	cmd.Flags().IntVarP(&port, "node", "n", 0, "port of the node to query")
	cmd.Flags().StringVarP(&election, "election", "e", "", "election id or unique id prefix")
	cmd.Flags().StringVarP(&system, "system", "s", "borda", "electoral system ('borda' or 'irv')")
	_ = cmd.MarkFlagRequired("node")
	_ = cmd.MarkFlagRequired("election")
	return cmd
}
