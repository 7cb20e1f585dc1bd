package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/salahayoub/blockvote/pkg/selection"
	"github.com/salahayoub/blockvote/pkg/types"
)

// ErrEmptyElection is returned when a new election lacks a label or
// candidates or has no ballots.
var ErrEmptyElection = errors.New("an election needs a label, at least one candidate and a positive ballot count")

func newNewElectionCmd(c *cli) *cobra.Command {
	var (
		port       int
		label      string
		candidates []string
		ballots    int
	)
	cmd := &cobra.Command{
		Use:   "new-election",
		Short: "Create an election and print its signing keys",
		Long: `Create an election on a node. The node issues one signing key per
ballot and keeps no copy of them: save the printed keys or pass --archive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &types.NewElectionRequest{
				Label:       strings.TrimSpace(label),
				BallotCount: ballots,
			}
			for _, name := range candidates {
				if name = strings.TrimSpace(name); name != "" {
					req.Candidates = append(req.Candidates, name)
				}
			}
			if req.Label == "" || len(req.Candidates) == 0 || req.BallotCount <= 0 {
				return ErrEmptyElection
			}

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

			resp, err := c.dialer(logger).Dial(port).NewElection(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to create election on node %d: %w", port, err)
			}
			if arch != nil {
				if err := arch.PutElection(resp); err != nil {
					pterm.Warning.Printfln("Archive: %v", err)
				}
			}

			pterm.Success.Printfln("Created %q [%s] with %d ballots", resp.Label, resp.ID, len(resp.SigningKeys))
			pterm.DefaultSection.Println("Signing keys")
			for _, k := range resp.SigningKeys {
				pterm.Println(k)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "node", "n", 0, "port of the node that creates the election")
	cmd.Flags().StringVarP(&label, "label", "l", selection.DefaultElectionLabel, "election label")
	cmd.Flags().StringSliceVarP(&candidates, "candidates", "c", selection.DefaultElectionCandidates(), "candidate names")
	cmd.Flags().IntVarP(&ballots, "ballots", "b", selection.DefaultElectionBallotCount, "number of signing keys to issue")
	_ = cmd.MarkFlagRequired("node")
	return cmd
}
