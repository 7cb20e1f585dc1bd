package main

import (
	"errors"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/salahayoub/blockvote/pkg/archive"
	"github.com/salahayoub/blockvote/pkg/types"
)

func TestBallotOrder(t *testing.T) {
	candidates := []types.Candidate{"Ann", "Ben", "Cy"}
	rng := rand.New(rand.NewSource(7))

	got, err := ballotOrder(candidates, nil, rng)
	if err != nil {
		t.Fatalf("Expected random order, got %v", err)
	}
	sorted := append([]types.Candidate(nil), got...)
	sort.Strings(sorted)
	if strings.Join(sorted, ",") != "Ann,Ben,Cy" {
		t.Errorf("Expected a permutation, got %v", got)
	}
	if strings.Join(candidates, ",") != "Ann,Ben,Cy" {
		t.Error("Expected candidates left untouched")
	}

	got, err = ballotOrder(candidates, []types.Candidate{"Cy", "Ann", "Ben"}, rng)
	if err != nil || strings.Join(got, ",") != "Cy,Ann,Ben" {
		t.Errorf("Expected explicit order kept, got %v / %v", got, err)
	}

	for _, bad := range [][]types.Candidate{
		{"Ann", "Ben"},
		{"Ann", "Ben", "Ben"},
		{"Ann", "Ben", "Dee"},
	} {
		if _, err := ballotOrder(candidates, bad, rng); !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("ballotOrder(%v): expected ErrInvalidOrder, got %v", bad, err)
		}
	}
}

func archivedFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.db")
	arch, err := archive.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer arch.Close()

	ballotFor := func(cs ...types.Candidate) types.BallotRecord {
		return types.BallotRecord{Ballot: types.Ballot{Candidates: cs}}
	}
	ledger := types.Ledger{
		ID:    "f00dfeed",
		Label: "Mayor",
		Chain: []types.Block{
			{Header: types.BlockHeader{Label: "Mayor", Candidates: []types.Candidate{"Ann", "Ben", "Cy"}}},
			{Ballots: []types.BallotRecord{
				ballotFor("Ann", "Ben", "Cy"),
				ballotFor("Ben", "Ann", "Cy"),
				ballotFor("Cy", "Ben", "Ann"),
			}},
		},
	}
	if err := arch.PutLedgers(5000, []types.Ledger{ledger}); err != nil {
		t.Fatalf("PutLedgers failed: %v", err)
	}
	if err := arch.PutElection(&types.NewElectionResponse{ID: "f00dfeed", Label: "Mayor", SigningKeys: []string{"k1"}}); err != nil {
		t.Fatalf("PutElection failed: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(append([]string{"--config", writeConfig(t, "")}, args...))
	return root.Execute()
}

func TestArchiveCommands(t *testing.T) {
	path := archivedFixture(t)

	if err := runCLI(t, "--archive", path, "archive", "list"); err != nil {
		t.Errorf("archive list failed: %v", err)
	}
	if err := runCLI(t, "--archive", path, "archive", "results", "f00d", "--system", "irv"); err != nil {
		t.Errorf("archive results failed: %v", err)
	}
	if err := runCLI(t, "--archive", path, "archive", "keys", "f00dfeed"); err != nil {
		t.Errorf("archive keys failed: %v", err)
	}

	err := runCLI(t, "--archive", path, "archive", "results", "beef")
	if !errors.Is(err, ErrElectionNotFound) {
		t.Errorf("Expected ErrElectionNotFound, got %v", err)
	}
	err = runCLI(t, "--archive", path, "archive", "keys", "beef")
	if !errors.Is(err, archive.ErrNotFound) {
		t.Errorf("Expected archive.ErrNotFound, got %v", err)
	}
}

func TestCommandsRejectBadInputBeforeDialing(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"bad system", []string{"results", "-n", "5000", "-e", "x", "-s", "approval"}, nil},
		{"short key", []string{"vote", "-n", "5000", "-e", "x", "-k", "abc"}, nil},
		{"no candidates", []string{"new-election", "-n", "5000", "-c", " , "}, ErrEmptyElection},
		{"zero ballots", []string{"new-election", "-n", "5000", "-b", "0"}, ErrEmptyElection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runCLI(t, tt.args...)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}
