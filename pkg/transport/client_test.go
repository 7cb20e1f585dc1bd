package transport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/salahayoub/blockvote/pkg/transport"
	"github.com/salahayoub/blockvote/pkg/transport/nodetest"
	"github.com/salahayoub/blockvote/pkg/types"
)

func startServer(t *testing.T, port int) *nodetest.Server {
	t.Helper()
	srv, err := nodetest.NewServer(nodetest.NewNode(port))
	if err != nil {
		t.Fatalf("Failed to start fake node: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func TestClientAlive(t *testing.T) {
	srv := startServer(t, 5000)
	client := srv.Client(transport.Options{})

	if err := client.Alive(context.Background()); err != nil {
		t.Fatalf("Alive returned error: %v", err)
	}
	if client.Port() != 5000 {
		t.Errorf("Expected port 5000, got %d", client.Port())
	}
}

func TestClientAliveRejected(t *testing.T) {
	srv := startServer(t, 5000)
	srv.Node.SetDown(true)
	client := srv.Client(transport.Options{})

	err := client.Alive(context.Background())
	if !errors.Is(err, transport.ErrRequestFailed) {
		t.Fatalf("Expected ErrRequestFailed, got %v", err)
	}
	var se *transport.StatusError
	if !errors.As(err, &se) || se.Code != 503 {
		t.Errorf("Expected StatusError with 503, got %v", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	srv := startServer(t, 5000)
	client := srv.Client(transport.Options{HTTPTimeout: time.Second})
	srv.Close()

	if err := client.Alive(context.Background()); !errors.Is(err, transport.ErrUnreachable) {
		t.Fatalf("Expected ErrUnreachable, got %v", err)
	}
}

func TestClientElectionLifecycle(t *testing.T) {
	srv := startServer(t, 5000)
	client := srv.Client(transport.Options{})
	ctx := context.Background()

	resp, err := client.NewElection(ctx, &types.NewElectionRequest{
		Label:       "Man of the Year",
		Candidates:  []string{"Kanye West", "Bruce Lee"},
		BallotCount: 2,
	})
	if err != nil {
		t.Fatalf("NewElection returned error: %v", err)
	}
	if len(resp.SigningKeys) != 2 {
		t.Fatalf("Expected 2 signing keys, got %d", len(resp.SigningKeys))
	}

	rec, err := client.CastBallot(ctx, &types.CastBallotRequest{
		Election:   resp.ID,
		Candidates: []string{"Bruce Lee", "Kanye West"},
		SigningKey: resp.SigningKeys[0],
	})
	if err != nil {
		t.Fatalf("CastBallot returned error: %v", err)
	}
	if rec.Ballot.Election != resp.ID {
		t.Errorf("Expected ballot for %s, got %s", resp.ID, rec.Ballot.Election)
	}

	// Reusing a key is rejected by the node.
	_, err = client.CastBallot(ctx, &types.CastBallotRequest{
		Election:   resp.ID,
		Candidates: []string{"Bruce Lee"},
		SigningKey: resp.SigningKeys[0],
	})
	if !errors.Is(err, transport.ErrRequestFailed) {
		t.Errorf("Expected ErrRequestFailed for reused key, got %v", err)
	}

	srv.Node.Mine(resp.ID)
	ledgers, err := client.Elections(ctx)
	if err != nil {
		t.Fatalf("Elections returned error: %v", err)
	}
	if len(ledgers) != 1 {
		t.Fatalf("Expected 1 ledger, got %d", len(ledgers))
	}
	l := ledgers[0]
	if l.ElectionLabel() != "Man of the Year" {
		t.Errorf("Expected label from genesis, got %q", l.ElectionLabel())
	}
	if l.BallotCount() != 1 {
		t.Errorf("Expected 1 confirmed ballot, got %d", l.BallotCount())
	}
	if got := l.Candidates(); len(got) != 2 || got[0] != "Kanye West" {
		t.Errorf("Unexpected genesis candidates %v", got)
	}
}

func TestClientSubscribe(t *testing.T) {
	srv := startServer(t, 5000)
	srv.Node.SetNeighbors(5001, 5002)
	if err := srv.Publish(); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	client := srv.Client(transport.Options{})
	sub, err := client.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer sub.Close()

	if sub.Port() != 5000 || sub.ID() == "" {
		t.Errorf("Unexpected subscription identity %d/%q", sub.Port(), sub.ID())
	}

	first := receive(t, sub)
	if len(first.Nodes) != 2 || first.Nodes[0] != 5001 {
		t.Errorf("Expected neighbors [5001 5002], got %v", first.Nodes)
	}
	if first.Mining != nil {
		t.Errorf("Expected no mining progress, got %v", *first.Mining)
	}

	waitFor(t, func() bool { return srv.Info.StreamCount() == 1 })

	block := 3
	srv.Node.SetMiner(true, &block)
	if err := srv.Publish(); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	second := receive(t, sub)
	if !second.IsMiner || second.Mining == nil || *second.Mining != 3 {
		t.Errorf("Expected miner mining block 3, got %+v", second)
	}

	if err := sub.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
	if _, ok := <-sub.Snapshots(); ok {
		t.Errorf("Expected snapshot channel closed after Close")
	}
	// Second close is a no-op.
	sub.Close()
}

func TestDialerBuildsEndpoints(t *testing.T) {
	d := transport.NewDialer(transport.Options{})
	c := d.Dial(5003)
	if c.Port() != 5003 {
		t.Errorf("Expected port 5003, got %d", c.Port())
	}
}

func TestSnapshotEncoding(t *testing.T) {
	mining := 7
	in := types.NodeSnapshot{Nodes: []int{5000, 5004}, BlockchainCount: 2, IsMiner: true, Mining: &mining}

	msg, err := transport.EncodeSnapshot(in)
	if err != nil {
		t.Fatalf("EncodeSnapshot returned error: %v", err)
	}
	out, err := transport.DecodeSnapshot(msg)
	if err != nil {
		t.Fatalf("DecodeSnapshot returned error: %v", err)
	}
	if out.BlockchainCount != 2 || !out.IsMiner || out.Mining == nil || *out.Mining != 7 {
		t.Errorf("Unexpected decoded snapshot %+v", out)
	}
	if len(out.Nodes) != 2 || out.Nodes[1] != 5004 {
		t.Errorf("Unexpected decoded neighbors %v", out.Nodes)
	}
}

func receive(t *testing.T, sub transport.Subscription) types.NodeSnapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		if !ok {
			t.Fatalf("Snapshot channel closed unexpectedly")
		}
		return snap
	case <-time.After(5 * time.Second):
		t.Fatalf("Timed out waiting for snapshot")
	}
	return types.NodeSnapshot{}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for condition")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
