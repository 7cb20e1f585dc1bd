package tui

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/salahayoub/blockvote/pkg/archive"
	"github.com/salahayoub/blockvote/pkg/selection"
	"github.com/salahayoub/blockvote/pkg/transport"
	"github.com/salahayoub/blockvote/pkg/transport/nodetest"
	"github.com/salahayoub/blockvote/pkg/types"
)

func TestFetcherDeliversToSelectedNode(t *testing.T) {
	h := newHarness(t, 0, 5000)
	election := h.createElection(t, 5000, "Mayor", 1)

	var mu sync.Mutex
	var loaded []int
	h.fetcher.OnLoaded(func(port int, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			t.Errorf("Unexpected fetch error: %v", err)
		}
		loaded = append(loaded, port)
	})

	h.sel.SelectNode(5000)
	h.fetcher.Wait()

	if len(h.sel.Elections()) != 1 || h.sel.SelectedElectionID() != election.ID {
		t.Errorf("Expected election %s delivered, got %v", election.ID, h.sel.Elections())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(loaded) != 1 || loaded[0] != 5000 {
		t.Errorf("Expected one load callback for 5000, got %v", loaded)
	}
}

func TestFetcherDropsStaleNode(t *testing.T) {
	dialer := nodetest.NewDialer(5000, 5001)
	if _, err := dialer.Node(5000).NewElection(t.Context(), &types.NewElectionRequest{
		Label: "Old", Candidates: []types.Candidate{"A"}, BallotCount: 1,
	}); err != nil {
		t.Fatalf("NewElection failed: %v", err)
	}

	fetcher := NewElectionFetcher(dialer, nil, nil)
	// The loader ignores requests so the test controls when fetches run.
	sel := selection.New(selection.LoaderFunc(func(int) {}))
	fetcher.Bind(sel)

	sel.SelectNode(5001)
	fetcher.LoadElections(5000)
	fetcher.Wait()

	if len(sel.Elections()) != 0 {
		t.Errorf("Expected elections of an unselected node to be dropped, got %d", len(sel.Elections()))
	}
}

func TestFetcherReportsUnreachable(t *testing.T) {
	h := newHarness(t, 0)

	errs := make(chan error, 1)
	h.fetcher.OnLoaded(func(port int, err error) { errs <- err })
	h.fetcher.LoadElections(5007)
	h.fetcher.Wait()

	if err := <-errs; !errors.Is(err, transport.ErrUnreachable) {
		t.Errorf("Expected ErrUnreachable, got %v", err)
	}
}

func TestFetcherArchivesLedgers(t *testing.T) {
	arch, err := archive.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer arch.Close()

	dialer := nodetest.NewDialer(5000)
	fetcher := NewElectionFetcher(dialer, arch, nil)
	sel := selection.New(fetcher)
	fetcher.Bind(sel)

	resp, err := dialer.Node(5000).NewElection(t.Context(), &types.NewElectionRequest{
		Label: "Mayor", Candidates: []types.Candidate{"Ann", "Ben"}, BallotCount: 2,
	})
	if err != nil {
		t.Fatalf("NewElection failed: %v", err)
	}
	fetcher.ArchiveElection(resp)

	sel.SelectNode(5000)
	fetcher.Wait()

	entry, err := arch.GetLedger(resp.ID)
	if err != nil {
		t.Fatalf("GetLedger failed: %v", err)
	}
	if entry.Port != 5000 || entry.Ledger.ID != resp.ID {
		t.Errorf("Expected ledger %s from 5000, got %s from %d", resp.ID, entry.Ledger.ID, entry.Port)
	}

	stored, err := arch.GetElection(resp.ID)
	if err != nil {
		t.Fatalf("GetElection failed: %v", err)
	}
	if len(stored.SigningKeys) != 2 {
		t.Errorf("Expected 2 archived signing keys, got %d", len(stored.SigningKeys))
	}
}
