package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/salahayoub/blockvote/pkg/ballot"
	"github.com/salahayoub/blockvote/pkg/types"
)

// ErrInvalidOrder is returned when --order is not a permutation of the
// election's candidates.
var ErrInvalidOrder = errors.New("order must list every candidate exactly once")

// ballotOrder returns order when it is a permutation of candidates, or a
// shuffled copy of candidates when order is empty.
func ballotOrder(candidates, order []types.Candidate, rng *rand.Rand) ([]types.Candidate, error) {
	if len(order) == 0 {
		out := append([]types.Candidate(nil), candidates...)
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out, nil
	}
	if len(order) != len(candidates) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOrder, strings.Join(candidates, ", "))
	}
	seen := make(map[types.Candidate]bool, len(order))
	valid := make(map[types.Candidate]bool, len(candidates))
	for _, c := range candidates {
		valid[c] = true
	}
	for _, c := range order {
		if !valid[c] || seen[c] {
			return nil, fmt.Errorf("%w: %s", ErrInvalidOrder, strings.Join(candidates, ", "))
		}
		seen[c] = true
	}
	return order, nil
}

func newVoteCmd(c *cli) *cobra.Command {
	var (
		port     int
		election string
		key      string
		order    []string
	)
	cmd := &cobra.Command{
		Use:   "vote",
		Short: "Cast one ballot with a signing key",
		Long: `Cast one ballot with a signing key. Without --order the candidates are
ranked in a random order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key = ballot.TrimQuotes(strings.TrimSpace(key))
			if err := ballot.ValidateKey(key, c.cfg.KeyLength); err != nil {
				return err
			}
			logger, err := c.logger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			client := c.dialer(logger).Dial(port)
			ledger, err := fetchElection(ctx, client, election)
			if err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			ranked, err := ballotOrder(ledger.Candidates(), order, rng)
			if err != nil {
				return err
			}

			rec, err := ballot.NewCaster(client, c.cfg.CasterOptions(logger)...).Cast(ctx, ledger.ID, ranked, key)
			if err != nil {
				return err
			}
			pterm.Success.Printfln("Ballot %s cast on node %d: %s", rec.Ballot.ID, port, strings.Join(ranked, " > "))
			pterm.Info.Println("It is counted once a miner includes it in a block")
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "node", "n", 0, "port of the node to vote through")
	cmd.Flags().StringVarP(&election, "election", "e", "", "election id or unique id prefix")
	cmd.Flags().StringVarP(&key, "key", "k", "", "signing key")
	cmd.Flags().StringSliceVarP(&order, "order", "o", nil, "candidates from most to least preferred")
	_ = cmd.MarkFlagRequired("node")
	_ = cmd.MarkFlagRequired("election")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newBatchVoteCmd(c *cli) *cobra.Command {
	var (
		port     int
		election string
		keys     string
		keysFile string
	)
	cmd := &cobra.Command{
		Use:   "batch-vote",
		Short: "Cast one randomly ranked ballot per signing key",
		Long: `Cast one ballot per signing key, each with its own random ranking.
Ballots are sent one at a time, spaced by --batch-interval. A rejected
ballot does not stop the rest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keysFile != "" {
				raw, err := os.ReadFile(keysFile)
				if err != nil {
					return fmt.Errorf("failed to read keys file: %w", err)
				}
				keys = strings.ReplaceAll(string(raw), "\n", ",")
			}
			list := ballot.SplitKeys(keys)
			for _, k := range list {
				if err := ballot.ValidateKey(k, c.cfg.KeyLength); err != nil {
					return fmt.Errorf("key %s: %w", ballot.Fingerprint(k), err)
				}
			}

			logger, err := c.logger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout+time.Duration(len(list))*c.cfg.BatchInterval)
			defer cancel()

			client := c.dialer(logger).Dial(port)
			ledger, err := fetchElection(ctx, client, election)
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			shuffle := func(cs []types.Candidate) {
				rng.Shuffle(len(cs), func(i, j int) { cs[i], cs[j] = cs[j], cs[i] })
			}
			caster := ballot.NewCaster(client, c.cfg.CasterOptions(logger)...)
			results, err := caster.CastBatch(ctx, ledger.ID, ledger.Candidates(), list, shuffle)
			if err != nil {
				return err
			}

			data := pterm.TableData{{"Key", "Result"}}
			failed := 0
			for _, r := range results {
				status := pterm.LightGreen("cast")
				if r.Err != nil {
					failed++
					status = pterm.LightRed(r.Err.Error())
				}
				data = append(data, []string{ballot.Fingerprint(r.Key), status})
			}
			if err := renderTable(data); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d ballots rejected", failed, len(results))
			}
			pterm.Success.Printfln("%d ballots cast on node %d", len(results), port)
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "node", "n", 0, "port of the node to vote through")
	cmd.Flags().StringVarP(&election, "election", "e", "", "election id or unique id prefix")
	cmd.Flags().StringVarP(&keys, "keys", "k", "", "comma separated signing keys")
	cmd.Flags().StringVar(&keysFile, "keys-file", "", "file with one signing key per line")
	_ = cmd.MarkFlagRequired("node")
	_ = cmd.MarkFlagRequired("election")
	cmd.MarkFlagsOneRequired("keys", "keys-file")
	cmd.MarkFlagsMutuallyExclusive("keys", "keys-file")
	return cmd
}
