// Package tui is the terminal dashboard for a local blockvote cluster. It
// shows discovered nodes, the elections of the selected node and their
// results, and lets the user vote and create elections.
package tui

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/salahayoub/blockvote/pkg/archive"
	"github.com/salahayoub/blockvote/pkg/selection"
	"github.com/salahayoub/blockvote/pkg/transport"
	"github.com/salahayoub/blockvote/pkg/types"
)

// ElectionFetcher loads election lists in the background on behalf of the
// selection coordinator. It implements selection.ElectionLoader.
//
// Results for a node that is no longer selected when the fetch completes
// are dropped.
type ElectionFetcher struct {
	dialer  transport.Dialer
	archive *archive.Archive
	logger  *zap.Logger
	timeout time.Duration

	mu       sync.RWMutex
	target   *selection.Coordinator
	onLoaded func(port int, err error)

	wg sync.WaitGroup
}

// NewElectionFetcher creates a fetcher. The archive is optional.
func NewElectionFetcher(dialer transport.Dialer, arch *archive.Archive, logger *zap.Logger) *ElectionFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ElectionFetcher{
		dialer:  dialer,
		archive: arch,
		logger:  logger.Named("elections"),
		timeout: 10 * time.Second,
	}
}

// Bind sets the coordinator that receives fetched lists. It is set after
// construction because the coordinator itself needs the fetcher.
func (f *ElectionFetcher) Bind(c *selection.Coordinator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target = c
}

// OnLoaded registers a callback run after every fetch, successful or not.
func (f *ElectionFetcher) OnLoaded(fn func(port int, err error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onLoaded = fn
}

// LoadElections starts fetching the elections of port and returns at once.
func (f *ElectionFetcher) LoadElections(port int) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		err := f.load(port)

		f.mu.RLock()
		fn := f.onLoaded
		f.mu.RUnlock()
		if fn != nil {
			fn(port, err)
		}
	}()
}

// Wait blocks until every started fetch has finished.
func (f *ElectionFetcher) Wait() {
	f.wg.Wait()
}

func (f *ElectionFetcher) load(port int) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	ledgers, err := f.dialer.Dial(port).Elections(ctx)
	if err != nil {
		f.logger.Warn("failed to fetch elections", zap.Int("port", port), zap.Error(err))
		return err
	}
	f.logger.Debug("fetched elections", zap.Int("port", port), zap.Int("count", len(ledgers)))

	if f.archive != nil {
		if err := f.archive.PutLedgers(port, ledgers); err != nil {
			f.logger.Warn("failed to archive ledgers", zap.Int("port", port), zap.Error(err))
		}
	}

	f.mu.RLock()
	target := f.target
	f.mu.RUnlock()
	if target == nil || target.SelectedNode() != port {
		return nil
	}
	target.OnElectionsChange(ledgers)
	return nil
}

// ArchiveElection stores a created election when an archive is configured.
func (f *ElectionFetcher) ArchiveElection(resp *types.NewElectionResponse) {
	if f.archive == nil || resp == nil {
		return
	}
	if err := f.archive.PutElection(resp); err != nil {
		f.logger.Warn("failed to archive election", zap.String("election", resp.ID), zap.Error(err))
	}
}
