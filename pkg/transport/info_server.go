package transport

import (
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/salahayoub/blockvote/pkg/types"
)

// infoService is the handler type registered for the Info stream.
type infoService interface {
	serveInfo(req *emptypb.Empty, stream grpc.ServerStream) error
}

var infoServiceDesc = grpc.ServiceDesc{
	ServiceName: infoServiceName,
	HandlerType: (*infoService)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{{
		StreamName:    infoStreamName,
		Handler:       infoStreamHandler,
		ServerStreams: true,
	}},
	Metadata: "blockvote/node.proto",
}

func infoStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(emptypb.Empty)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(infoService).serveInfo(req, stream)
}

// InfoServer is the node side of the snapshot stream. Every open stream
// receives each published snapshot; a newly connected stream first gets
// the latest one, the way a node announces itself on connect.
type InfoServer struct {
	server   *grpc.Server
	listener net.Listener
	logger   *zap.Logger

	mu          sync.Mutex
	latest      *structpb.Struct
	subscribers map[chan *structpb.Struct]struct{}
	closed      bool
}

// NewInfoServer starts serving the Info stream on the listener.
func NewInfoServer(lis net.Listener, logger *zap.Logger) *InfoServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &InfoServer{
		server:      grpc.NewServer(),
		listener:    lis,
		logger:      logger,
		subscribers: make(map[chan *structpb.Struct]struct{}),
	}
	s.server.RegisterService(&infoServiceDesc, s)

	go func() {
		if err := s.server.Serve(lis); err != nil {
			s.logger.Debug("info server stopped", zap.Error(err))
		}
	}()
	return s
}

// Addr returns the listening address.
func (s *InfoServer) Addr() string {
	return s.listener.Addr().String()
}

// Publish sends a snapshot to every open stream.
func (s *InfoServer) Publish(snap types.NodeSnapshot) error {
	msg, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = msg
	for ch := range s.subscribers {
		select {
		case ch <- msg:
		default:
			// Slow reader; it will catch up on the next publish.
		}
	}
	return nil
}

// StreamCount returns the number of open streams.
func (s *InfoServer) StreamCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// Close stops the server and ends every open stream.
func (s *InfoServer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.server.Stop()
}

func (s *InfoServer) serveInfo(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ch := make(chan *structpb.Struct, snapshotBufferSize)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.latest != nil {
		ch <- s.latest
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subscribers, ch)
		s.mu.Unlock()
	}()

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case msg := <-ch:
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}
