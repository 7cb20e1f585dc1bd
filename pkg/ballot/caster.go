package ballot

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/salahayoub/blockvote/pkg/transport"
	"github.com/salahayoub/blockvote/pkg/types"
)

// DefaultInterval spaces consecutive batch submissions to one node.
const DefaultInterval = 100 * time.Millisecond

// Result is the outcome of one batch submission.
type Result struct {
	Key    string
	Record *types.BallotRecord
	Err    error
}

// Shuffler reorders candidates in place.
type Shuffler func([]types.Candidate)

// Caster submits ballots to a single node.
type Caster struct {
	client    transport.Client
	logger    *zap.Logger
	interval  time.Duration
	keyLength int
}

// Option configures a Caster.
type Option func(*Caster)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Caster) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithInterval sets the spacing between batch submissions. Zero disables
// spacing.
func WithInterval(d time.Duration) Option {
	return func(c *Caster) {
		if d >= 0 {
			c.interval = d
		}
	}
}

// WithKeyLength sets the expected signing key length.
func WithKeyLength(n int) Option {
	return func(c *Caster) {
		if n > 0 {
			c.keyLength = n
		}
	}
}

// NewCaster creates a Caster bound to client.
func NewCaster(client transport.Client, opts ...Option) *Caster {
	c := &Caster{
		client:    client,
		logger:    zap.NewNop(),
		interval:  DefaultInterval,
		keyLength: DefaultKeyLength,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("ballot").With(zap.Int("port", client.Port()))
	return c
}

// Cast submits one ballot ranking candidates in order. Malformed keys are
// rejected locally without contacting the node.
func (c *Caster) Cast(ctx context.Context, election string, candidates []types.Candidate, key string) (*types.BallotRecord, error) {
	if err := ValidateKey(key, c.keyLength); err != nil {
		return nil, err
	}
	req := &types.CastBallotRequest{
		Election:   election,
		Candidates: append([]types.Candidate(nil), candidates...),
		SigningKey: key,
	}
	rec, err := c.client.CastBallot(ctx, req)
	if err != nil {
		c.logger.Warn("ballot rejected",
			zap.String("election", election),
			zap.String("key", Fingerprint(key)),
			zap.Error(err))
		return nil, err
	}
	c.logger.Info("ballot cast",
		zap.String("election", election),
		zap.String("key", Fingerprint(key)))
	return rec, nil
}

// CastBatch submits one ballot per key, serially and spaced by the
// configured interval. Each ballot gets its own copy of candidates,
// reordered by shuffle when it is non-nil. A failed submission does not
// stop the rest; once ctx is done the remaining keys fail with its error.
func (c *Caster) CastBatch(ctx context.Context, election string, candidates []types.Candidate, keys []string, shuffle Shuffler) ([]Result, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}

	limit := rate.Inf
	if c.interval > 0 {
		limit = rate.Every(c.interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	results := make([]Result, len(keys))
	for i, key := range keys {
		results[i].Key = key
		if err := limiter.Wait(ctx); err != nil {
			results[i].Err = err
			continue
		}
		order := append([]types.Candidate(nil), candidates...)
		if shuffle != nil {
			shuffle(order)
		}
		results[i].Record, results[i].Err = c.Cast(ctx, election, order, key)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	c.logger.Info("batch finished",
		zap.String("election", election),
		zap.Int("submitted", len(keys)),
		zap.Int("failed", failed))
	return results, nil
}

// Failed reports whether any result carries an error.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}
