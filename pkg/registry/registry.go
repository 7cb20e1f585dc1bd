// Package registry discovers the nodes of a local cluster by probing a
// fixed port range, and keeps one snapshot subscription open per live node.
//
// Thread Safety: all Registry methods are safe for concurrent use. The node
// list is replaced wholesale on every change and never edited in place, so
// slices handed out by Nodes stay valid.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/salahayoub/blockvote/pkg/transport"
	"github.com/salahayoub/blockvote/pkg/types"
)

// Registry tracks which ports in the range host a reachable node.
type Registry struct {
	cfg    Config
	dialer transport.Dialer
	logger *zap.Logger

	mu        sync.RWMutex
	nodes     []NodeInfo
	subs      map[int]transport.Subscription
	inFlight  int
	closed    bool
	updates   chan []NodeInfo
	consumers sync.WaitGroup
}

// New creates a registry over cfg's port range. Nothing is probed until
// Refresh is called.
func New(cfg Config, dialer transport.Dialer) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cfg:     cfg,
		dialer:  dialer,
		logger:  logger.Named("registry"),
		nodes:   []NodeInfo{},
		subs:    make(map[int]transport.Subscription),
		updates: make(chan []NodeInfo, 1),
	}
}

// Refresh probes every port in the range concurrently and waits for all
// probes to settle, then holds the refreshing flag for SettleDelay.
//
// Overlapping refreshes are allowed. A probe from an older refresh that
// resolves after a newer one has no ordering guarantee against it.
func (r *Registry) Refresh(ctx context.Context) {
	r.mu.Lock()
	r.inFlight++
	r.mu.Unlock()
	r.refresh(ctx)
}

// RefreshAsync starts a refresh in the background unless one is already
// running. It reports whether a refresh was started.
func (r *Registry) RefreshAsync(ctx context.Context) bool {
	r.mu.Lock()
	if r.inFlight > 0 || r.closed {
		r.mu.Unlock()
		return false
	}
	r.inFlight++
	r.mu.Unlock()

	go r.refresh(ctx)
	return true
}

func (r *Registry) refresh(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	// Probe errors are recorded per node, so the group never cancels.
	var g errgroup.Group
	for _, port := range r.cfg.Ports() {
		g.Go(func() error {
			r.probe(ctx, port)
			return nil
		})
	}
	_ = g.Wait()

	if r.cfg.SettleDelay <= 0 {
		return
	}
	timer := time.NewTimer(r.cfg.SettleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (r *Registry) probe(ctx context.Context, port int) {
	client := r.dialer.Dial(port)
	if err := client.Alive(ctx); err != nil {
		r.logger.Debug("probe failed", zap.Int("port", port), zap.Error(err))
		r.markOffline(port)
		return
	}
	r.logger.Debug("probe succeeded", zap.Int("port", port))

	r.closeSubscription(port)
	sub, err := client.Subscribe(ctx)
	if err != nil {
		r.logger.Warn("subscribe failed", zap.Int("port", port), zap.Error(err))
		r.markOffline(port)
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = sub.Close()
		return
	}
	// A concurrent refresh may have registered its own subscription
	// meanwhile. Last writer wins; the loser is released.
	prev := r.subs[port]
	r.subs[port] = sub
	r.consumers.Add(1)
	r.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	r.logger.Info("subscription opened", zap.Int("port", port), zap.String("subscription", sub.ID()))
	go r.consume(port, sub)
}

// consume drains sub until it is closed. Snapshots that arrive after sub
// has been replaced or released are dropped.
func (r *Registry) consume(port int, sub transport.Subscription) {
	defer r.consumers.Done()
	for snap := range sub.Snapshots() {
		r.applySnapshot(port, sub, snap)
	}
}

func (r *Registry) applySnapshot(port int, sub transport.Subscription, snap types.NodeSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.subs[port] != sub {
		return
	}
	r.replaceLocked(infoFromSnapshot(port, snap))
}

// replaceLocked swaps in a new list with info replacing any entry on the
// same port, sorted by port.
func (r *Registry) replaceLocked(info NodeInfo) {
	next := make([]NodeInfo, 0, len(r.nodes)+1)
	for _, n := range r.nodes {
		if n.Port != info.Port {
			next = append(next, n)
		}
	}
	next = append(next, info)
	sort.Slice(next, func(i, j int) bool { return next[i].Port < next[j].Port })
	r.nodes = next
	r.publishLocked()
}

// markOffline flips an existing entry offline and releases its
// subscription. Ports never seen stay absent.
func (r *Registry) markOffline(port int) {
	r.mu.Lock()
	sub := r.subs[port]
	delete(r.subs, port)
	if !r.closed {
		for _, n := range r.nodes {
			if n.Port == port && n.Online {
				n = n.clone()
				n.Online = false
				r.replaceLocked(n)
				break
			}
		}
	}
	r.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
		r.logger.Info("subscription closed", zap.Int("port", port), zap.String("subscription", sub.ID()))
	}
}

func (r *Registry) closeSubscription(port int) {
	r.mu.Lock()
	sub := r.subs[port]
	delete(r.subs, port)
	r.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
		r.logger.Info("subscription closed", zap.Int("port", port), zap.String("subscription", sub.ID()))
	}
}

// publishLocked hands the current list to Updates, replacing any list the
// reader has not picked up yet.
func (r *Registry) publishLocked() {
	if r.closed {
		return
	}
	select {
	case <-r.updates:
	default:
	}
	r.updates <- r.nodes
}

// Nodes returns every known node, sorted by port.
func (r *Registry) Nodes() []NodeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneNodes(r.nodes)
}

// Online returns the nodes currently online, sorted by port.
func (r *Registry) Online() []NodeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var online []NodeInfo
	for _, n := range r.nodes {
		if n.Online {
			online = append(online, n.clone())
		}
	}
	return online
}

// Node returns the entry for port.
func (r *Registry) Node(port int) (NodeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.nodes {
		if n.Port == port {
			return n.clone(), true
		}
	}
	return NodeInfo{}, false
}

// Graph returns the topology reported by online nodes.
func (r *Registry) Graph() Graph {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return BuildGraph(r.nodes)
}

// Refreshing reports whether a refresh is in progress.
func (r *Registry) Refreshing() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inFlight > 0
}

// Subscriptions returns the ports holding an open subscription.
func (r *Registry) Subscriptions() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ports := make([]int, 0, len(r.subs))
	for p := range r.subs {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}

// Updates delivers the node list after every change. Only the newest
// undelivered list is kept. Lists received here must not be modified.
func (r *Registry) Updates() <-chan []NodeInfo {
	return r.updates
}

// Close releases every subscription and waits for their consumers to
// finish. The registry stops accepting snapshots afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := r.subs
	r.subs = make(map[int]transport.Subscription)
	r.mu.Unlock()

	for port, sub := range subs {
		_ = sub.Close()
		r.logger.Info("subscription closed", zap.Int("port", port), zap.String("subscription", sub.ID()))
	}
	r.consumers.Wait()
	return nil
}

func cloneNodes(nodes []NodeInfo) []NodeInfo {
	out := make([]NodeInfo, len(nodes))
	for i, n := range nodes {
		out[i] = n.clone()
	}
	return out
}
