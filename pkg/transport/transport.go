// Package transport talks to blockvote nodes. Each node exposes a small
// HTTP API on its port and a gRPC snapshot stream on port+StreamOffset.
//
// Thread Safety: Client and Subscription implementations must be safe for
// concurrent use by multiple goroutines.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/salahayoub/blockvote/pkg/types"
)

// Error variables for transport operations.
var (
	// ErrUnreachable is returned when the node could not be contacted at all.
	ErrUnreachable = errors.New("node unreachable")
	// ErrRequestFailed is returned when the node answered with a non-2xx status.
	ErrRequestFailed = errors.New("node rejected request")
	// ErrSubscriptionClosed is returned when using a closed subscription.
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// Client is the per-node view of the remote voting node.
type Client interface {
	// Port returns the node's HTTP port, which is also its identity.
	Port() int

	// Alive performs a liveness probe. Any error means unreachable.
	Alive(ctx context.Context) error

	// Elections fetches every election ledger the node holds.
	Elections(ctx context.Context) ([]types.Ledger, error)

	// NewElection asks the node to create an election and issue keys.
	NewElection(ctx context.Context, req *types.NewElectionRequest) (*types.NewElectionResponse, error)

	// CastBallot asks the node to sign and broadcast a ballot.
	CastBallot(ctx context.Context, req *types.CastBallotRequest) (*types.BallotRecord, error)

	// Subscribe opens the node's snapshot stream. The subscription outlives
	// ctx cancellation; it ends when closed or when the stream breaks.
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription is a live snapshot stream bound to one node. It must be
// closed by its owner; leaving it open leaks the underlying connection.
type Subscription interface {
	// ID uniquely identifies this subscription, for logging.
	ID() string

	// Port returns the node the subscription is bound to.
	Port() int

	// Snapshots delivers snapshots in arrival order. The channel is closed
	// once the stream ends, either by Close or by a transport failure.
	Snapshots() <-chan types.NodeSnapshot

	// Close releases the stream. Calling it more than once is harmless.
	Close() error
}

// Dialer creates clients for nodes by port.
type Dialer interface {
	Dial(port int) Client
}

// StatusError carries the status of a rejected request.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("node returned status %d", e.Code)
	}
	return fmt.Sprintf("node returned status %d: %s", e.Code, e.Body)
}

// Unwrap lets errors.Is match ErrRequestFailed.
func (e *StatusError) Unwrap() error {
	return ErrRequestFailed
}
