package ballot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salahayoub/blockvote/pkg/transport"
	"github.com/salahayoub/blockvote/pkg/transport/nodetest"
	"github.com/salahayoub/blockvote/pkg/types"
)

var candidates = []types.Candidate{"Alice", "Bob", "Carol"}

func newElection(t *testing.T, node *nodetest.Node, ballots int) *types.NewElectionResponse {
	t.Helper()
	resp, err := node.NewElection(context.Background(), &types.NewElectionRequest{
		Label:       "Test",
		Candidates:  candidates,
		BallotCount: ballots,
	})
	require.NoError(t, err)
	return resp
}

func TestCast(t *testing.T) {
	node := nodetest.NewNode(5000)
	election := newElection(t, node, 1)
	caster := NewCaster(node)

	rec, err := caster.Cast(context.Background(), election.ID, candidates, election.SigningKeys[0])
	require.NoError(t, err)
	assert.Equal(t, candidates, rec.Ballot.Candidates)

	casts := node.Casts()
	require.Len(t, casts, 1)
	assert.Equal(t, election.ID, casts[0].Election)
	assert.Equal(t, election.SigningKeys[0], casts[0].SigningKey)

	// A key can only be used once.
	_, err = caster.Cast(context.Background(), election.ID, candidates, election.SigningKeys[0])
	var statusErr *transport.StatusError
	assert.True(t, errors.As(err, &statusErr), "expected StatusError, got %v", err)
}

func TestCastRejectsMalformedKeyLocally(t *testing.T) {
	node := nodetest.NewNode(5000)
	election := newElection(t, node, 1)
	caster := NewCaster(node)

	_, err := caster.Cast(context.Background(), election.ID, candidates, "short")
	assert.ErrorIs(t, err, ErrKeyLength)
	assert.Empty(t, node.Casts())
}

func TestCastUnreachable(t *testing.T) {
	node := nodetest.NewNode(5000)
	election := newElection(t, node, 1)
	node.SetDown(true)

	_, err := NewCaster(node).Cast(context.Background(), election.ID, candidates, election.SigningKeys[0])
	assert.ErrorIs(t, err, transport.ErrUnreachable)
}

func TestCastBatch(t *testing.T) {
	node := nodetest.NewNode(5000)
	election := newElection(t, node, 3)
	caster := NewCaster(node, WithInterval(20*time.Millisecond))

	unknown := strings.Repeat("0", DefaultKeyLength)
	keys := []string{election.SigningKeys[0], unknown, election.SigningKeys[1], election.SigningKeys[2]}

	shuffled := 0
	reverse := func(c []types.Candidate) {
		shuffled++
		for i, j := 0, len(c)-1; i < j; i, j = i+1, j-1 {
			c[i], c[j] = c[j], c[i]
		}
	}

	start := time.Now()
	results, err := caster.CastBatch(context.Background(), election.ID, candidates, keys, reverse)
	require.NoError(t, err)
	elapsed := time.Since(start)

	require.Len(t, results, 4)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err, "unknown key must fail")
	assert.NoError(t, results[2].Err)
	assert.NoError(t, results[3].Err)
	assert.True(t, Failed(results))
	for i, r := range results {
		assert.Equal(t, keys[i], r.Key)
	}

	// Four submissions spaced 20ms apart take at least 60ms.
	assert.GreaterOrEqual(t, elapsed, 55*time.Millisecond)

	assert.Equal(t, 4, shuffled)
	assert.Equal(t, []types.Candidate{"Alice", "Bob", "Carol"}, candidates, "caller's ordering must not change")
	for _, c := range node.Casts() {
		assert.Equal(t, []types.Candidate{"Carol", "Bob", "Alice"}, c.Candidates)
	}
}

func TestCastBatchNoKeys(t *testing.T) {
	_, err := NewCaster(nodetest.NewNode(5000)).CastBatch(context.Background(), "e", candidates, nil, nil)
	assert.ErrorIs(t, err, ErrNoKeys)
}

func TestCastBatchCancelled(t *testing.T) {
	node := nodetest.NewNode(5000)
	election := newElection(t, node, 2)
	caster := NewCaster(node, WithInterval(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	results, err := caster.CastBatch(ctx, election.ID, candidates, election.SigningKeys, nil)
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.False(t, Failed(results[:1]))
	assert.Len(t, node.Casts(), 1)
}
