package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/salahayoub/blockvote/pkg/types"
)

// The snapshot stream is a single server-streaming method. Messages use
// well-known types so no generated code is needed: the request is Empty
// and every snapshot travels as a Struct holding the info payload.
const (
	infoServiceName = "blockvote.Node"
	infoStreamName  = "Info"
	infoMethod      = "/" + infoServiceName + "/" + infoStreamName

	// snapshotBufferSize is how many undelivered snapshots a subscription
	// holds before older ones are dropped in favor of newer ones.
	snapshotBufferSize = 16
)

var infoStreamDesc = grpc.StreamDesc{
	StreamName:    infoStreamName,
	ServerStreams: true,
}

// Subscribe dials the node's stream port and starts receiving snapshots.
func (c *NodeClient) Subscribe(ctx context.Context) (Subscription, error) {
	conn, err := grpc.NewClient(c.streamTarget, c.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: stream %s: %v", ErrUnreachable, c.streamTarget, err)
	}

	// The stream lives until Close, not until the caller's ctx ends.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := conn.NewStream(streamCtx, &infoStreamDesc, infoMethod)
	if err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("%w: stream %s: %v", ErrUnreachable, c.streamTarget, err)
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("%w: stream %s: %v", ErrUnreachable, c.streamTarget, err)
	}
	if err := stream.CloseSend(); err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("%w: stream %s: %v", ErrUnreachable, c.streamTarget, err)
	}

	sub := &streamSubscription{
		id:        uuid.NewString(),
		port:      c.port,
		conn:      conn,
		cancel:    cancel,
		snapshots: make(chan types.NodeSnapshot, snapshotBufferSize),
		done:      make(chan struct{}),
	}
	sub.logger = c.logger.With(zap.String("subscription", sub.id))
	go sub.recvLoop(stream)
	return sub, nil
}

// streamSubscription is the client end of one Info stream.
type streamSubscription struct {
	id        string
	port      int
	conn      *grpc.ClientConn
	cancel    context.CancelFunc
	snapshots chan types.NodeSnapshot
	done      chan struct{}
	logger    *zap.Logger
	closeOnce sync.Once
}

func (s *streamSubscription) ID() string {
	return s.id
}

func (s *streamSubscription) Port() int {
	return s.port
}

func (s *streamSubscription) Snapshots() <-chan types.NodeSnapshot {
	return s.snapshots
}

// Close cancels the stream and waits for the receive loop to finish, so
// the snapshot channel is closed by the time Close returns.
func (s *streamSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.conn.Close()
		<-s.done
	})
	return err
}

func (s *streamSubscription) recvLoop(stream grpc.ClientStream) {
	defer close(s.done)
	defer close(s.snapshots)

	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("snapshot stream ended", zap.Error(err))
			}
			return
		}

		snap, err := DecodeSnapshot(msg)
		if err != nil {
			s.logger.Warn("dropping malformed snapshot", zap.Error(err))
			continue
		}

		// Newest wins: if the consumer is behind, discard the oldest
		// pending snapshot to make room.
		for {
			select {
			case s.snapshots <- snap:
			default:
				select {
				case <-s.snapshots:
				default:
				}
				continue
			}
			break
		}
	}
}

// EncodeSnapshot converts a snapshot to its wire form.
func EncodeSnapshot(snap types.NodeSnapshot) (*structpb.Struct, error) {
	buf, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(buf, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return structpb.NewStruct(fields)
}

// DecodeSnapshot parses a snapshot from its wire form.
func DecodeSnapshot(msg *structpb.Struct) (types.NodeSnapshot, error) {
	var snap types.NodeSnapshot
	buf, err := protojson.Marshal(msg)
	if err != nil {
		return snap, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if err := json.Unmarshal(buf, &snap); err != nil {
		return snap, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}
