package tally

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/salahayoub/blockvote/pkg/types"
)

// DefaultCacheSize is the number of rankings kept by NewCache(0).
const DefaultCacheSize = 64

// cacheKey identifies a ranking by everything it depends on. Ledgers are
// append-only, so id + length + tip pins the content.
type cacheKey struct {
	id      string
	blocks  int
	ballots int
	tip     string
	system  System
}

// Cache memoizes rankings so that redraws don't recount unchanged ledgers.
// It is safe for concurrent use.
type Cache struct {
	rankings *lru.Cache
}

// NewCache creates a ranking cache holding up to size entries.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create ranking cache: %w", err)
	}
	return &Cache{rankings: c}, nil
}

// Ranking returns ComputeRanking(ledger, system), reusing a previous result
// when the ledger has not grown since. The returned slice is a copy.
func (c *Cache) Ranking(ledger *types.Ledger, system System) []Rank {
	if c == nil || ledger == nil {
		return ComputeRanking(ledger, system)
	}

	key := cacheKey{
		id:      ledger.ID,
		blocks:  len(ledger.Chain),
		ballots: ledger.BallotCount(),
		tip:     ledger.TipID(),
		system:  system,
	}
	if v, ok := c.rankings.Get(key); ok {
		return copyRanks(v.([]Rank))
	}

	ranks := ComputeRanking(ledger, system)
	c.rankings.Add(key, copyRanks(ranks))
	return ranks
}

// Len returns the number of cached rankings.
func (c *Cache) Len() int {
	return c.rankings.Len()
}

// Purge drops every cached ranking.
func (c *Cache) Purge() {
	c.rankings.Purge()
}

func copyRanks(ranks []Rank) []Rank {
	out := make([]Rank, len(ranks))
	copy(out, ranks)
	return out
}
