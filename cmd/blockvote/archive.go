package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/salahayoub/blockvote/pkg/archive"
	"github.com/salahayoub/blockvote/pkg/tally"
	"github.com/salahayoub/blockvote/pkg/types"
)

// openArchiveForRead opens the configured archive, falling back to the
// default location when --archive was not given.
func (c *cli) openArchiveForRead() (*archive.Archive, error) {
	path := c.cfg.Archive
	if path == "" {
		p, err := archive.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return archive.Open(path)
}

func newArchiveCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect ledgers and elections recorded with --archive",
	}
	cmd.AddCommand(newArchiveListCmd(c), newArchiveResultsCmd(c), newArchiveKeysCmd(c))
	return cmd
}

func newArchiveListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived ledgers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, err := c.openArchiveForRead()
			if err != nil {
				return err
			}
			defer arch.Close()

			entries, err := arch.ListLedgers()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				pterm.Info.Printfln("Archive %s is empty", arch.Path())
				return nil
			}
			data := pterm.TableData{{"ID", "Label", "Ballots", "Blocks", "Node", "Fetched"}}
			for i := range entries {
				e := &entries[i]
				data = append(data, []string{
					e.Ledger.ID,
					e.Ledger.ElectionLabel(),
					strconv.Itoa(e.Ledger.BallotCount()),
					strconv.Itoa(len(e.Ledger.Chain)),
					strconv.Itoa(e.Port),
					e.FetchedAt.Format("2006-01-02 15:04:05"),
				})
			}
			return renderTable(data)
		},
	}
}

func newArchiveResultsCmd(c *cli) *cobra.Command {
	var system string
	cmd := &cobra.Command{
		Use:   "results <election id>",
		Short: "Tally an archived ledger offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := tally.ParseSystem(system)
			if err != nil {
				return err
			}
			arch, err := c.openArchiveForRead()
			if err != nil {
				return err
			}
			defer arch.Close()

			ledger, err := archivedLedger(arch, args[0])
			if err != nil {
				return err
			}
			return printResults(ledger, sys)
		},
	}
	cmd.Flags().StringVarP(&system, "system", "s", "borda", "electoral system ('borda' or 'irv')")
	return cmd
}

func newArchiveKeysCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "keys <election id>",
		Short: "Print the signing keys issued for an archived election",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, err := c.openArchiveForRead()
			if err != nil {
				return err
			}
			defer arch.Close()

			resp, err := arch.GetElection(args[0])
			if err != nil {
				return err
			}
			pterm.DefaultSection.Printfln("%s [%s]: %s", resp.Label, resp.ID, strings.Join(resp.Candidates, ", "))
			for _, k := range resp.SigningKeys {
				pterm.Println(k)
			}
			return nil
		},
	}
}

// archivedLedger looks an election up by id, then by unique id prefix.
func archivedLedger(arch *archive.Archive, id string) (*types.Ledger, error) {
	entry, err := arch.GetLedger(id)
	if err == nil {
		return &entry.Ledger, nil
	}
	if !errors.Is(err, archive.ErrNotFound) {
		return nil, err
	}

	entries, err := arch.ListLedgers()
	if err != nil {
		return nil, err
	}
	ledgers := make([]types.Ledger, len(entries))
	for i, e := range entries {
		ledgers[i] = e.Ledger
	}
	ledger, err := findElection(ledgers, id)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	return ledger, nil
}
