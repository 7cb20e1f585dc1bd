package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/salahayoub/blockvote/pkg/types"
)

const (
	// DefaultHost is where the local cluster runs.
	DefaultHost = "localhost"
	// DefaultStreamOffset separates a node's snapshot stream port from its
	// HTTP port.
	DefaultStreamOffset = 1000
	// maxErrorBody bounds how much of a rejected response we keep.
	maxErrorBody = 512
)

// Options configures how clients reach nodes.
type Options struct {
	Host         string
	StreamOffset int
	// HTTPTimeout bounds each HTTP request. Zero leaves it to net/http.
	HTTPTimeout time.Duration
	Logger      *zap.Logger
	// DialOptions are appended to the gRPC dial options of every stream.
	DialOptions []grpc.DialOption
}

// NodeDialer builds NodeClients for a host with the configured options.
type NodeDialer struct {
	opts   Options
	client *http.Client
}

// NewDialer creates a Dialer sharing one HTTP client across nodes.
func NewDialer(opts Options) *NodeDialer {
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.StreamOffset == 0 {
		opts.StreamOffset = DefaultStreamOffset
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &NodeDialer{
		opts:   opts,
		client: &http.Client{Timeout: opts.HTTPTimeout},
	}
}

// Dial returns a client for the node listening on port.
func (d *NodeDialer) Dial(port int) Client {
	baseURL := fmt.Sprintf("http://%s:%d", d.opts.Host, port)
	streamTarget := fmt.Sprintf("%s:%d", d.opts.Host, port+d.opts.StreamOffset)
	return newNodeClient(port, baseURL, streamTarget, d.client, d.opts)
}

// NodeClient implements Client with the HTTP API and the gRPC stream.
type NodeClient struct {
	port         int
	baseURL      string
	streamTarget string
	client       *http.Client
	dialOpts     []grpc.DialOption
	logger       *zap.Logger
}

// NewClient creates a client with explicit endpoints. Most callers should
// go through a NodeDialer; this exists for nodes that don't follow the
// port+offset convention.
func NewClient(port int, baseURL, streamTarget string, opts Options) *NodeClient {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return newNodeClient(port, baseURL, streamTarget, &http.Client{Timeout: opts.HTTPTimeout}, opts)
}

func newNodeClient(port int, baseURL, streamTarget string, client *http.Client, opts Options) *NodeClient {
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	dialOpts = append(dialOpts, opts.DialOptions...)
	return &NodeClient{
		port:         port,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		streamTarget: streamTarget,
		client:       client,
		dialOpts:     dialOpts,
		logger:       opts.Logger.With(zap.Int("port", port)),
	}
}

// Port returns the node's HTTP port.
func (c *NodeClient) Port() int {
	return c.port
}

// Alive hits GET /alive. The body is ignored.
func (c *NodeClient) Alive(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/alive", nil, nil)
}

// Elections fetches GET /elections.
func (c *NodeClient) Elections(ctx context.Context) ([]types.Ledger, error) {
	var ledgers []types.Ledger
	if err := c.do(ctx, http.MethodGet, "/elections", nil, &ledgers); err != nil {
		return nil, err
	}
	return ledgers, nil
}

// NewElection posts to /new_election.
func (c *NodeClient) NewElection(ctx context.Context, req *types.NewElectionRequest) (*types.NewElectionResponse, error) {
	var resp types.NewElectionResponse
	if err := c.do(ctx, http.MethodPost, "/new_election", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CastBallot posts to /cast_ballot.
func (c *NodeClient) CastBallot(ctx context.Context, req *types.CastBallotRequest) (*types.BallotRecord, error) {
	var rec types.BallotRecord
	if err := c.do(ctx, http.MethodPost, "/cast_ballot", req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *NodeClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("path", path), zap.String("request_id", requestID), zap.Error(err))
		return fmt.Errorf("%w: %s %s: %v", ErrUnreachable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("request rejected", zap.String("path", path), zap.String("request_id", requestID), zap.Int("status", resp.StatusCode))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
