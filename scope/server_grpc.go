package scope

import (
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	serviceName      = "tracescope.Scope"
	getFramesMethod  = "/" + serviceName + "/GetFrames"
	getFramesStreams = 0
)

// frameService is the server side of the scope service. Frames are sent as structpb.Struct.
type frameService interface {
	GetFrames(*emptypb.Empty, grpc.ServerStream) error
}

var scopeServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*frameService)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "GetFrames",
			Handler:       getFramesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "scope.proto",
}

func getFramesHandler(srv any, stream grpc.ServerStream) error {
	request := new(emptypb.Empty)
	if err := stream.RecvMsg(request); err != nil {
		return err
	}
	return srv.(frameService).GetFrames(request, stream)
}

type grpcServer struct {
	address  string
	frames   *hub
	listener net.Listener
	server   *grpc.Server
	lock     sync.Mutex
}

func newGRPCServer(address string, frames *hub) *grpcServer {
	return &grpcServer{
		address: address,
		frames:  frames,
	}
}

// Listen opens the listener, so the address is known before Serve is called.
func (s *grpcServer) Listen() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listener != nil {
		return fmt.Errorf("server already listening")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("cannot listen on address %s: %w", s.address, err)
	}
	s.listener = listener
	s.server = grpc.NewServer()
	s.server.RegisterService(&scopeServiceDesc, s)
	return nil
}

func (s *grpcServer) Serve() error {
	s.lock.Lock()
	server, listener := s.server, s.listener
	s.lock.Unlock()
	if server == nil {
		return fmt.Errorf("server is not listening")
	}
	return server.Serve(listener)
}

func (s *grpcServer) Addr() net.Addr {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *grpcServer) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.server == nil {
		return
	}
	s.server.Stop()
	s.server = nil
	s.listener = nil
}

func (s *grpcServer) GetFrames(_ *emptypb.Empty, stream grpc.ServerStream) error {
	frames := s.frames.Subscribe()
	defer s.frames.Unsubscribe(frames)
	for {
		select {
		case frame, open := <-frames:
			if !open {
				return nil
			}
			if err := stream.SendMsg(frame); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

// frameStreamDesc describes the client side of GetFrames.
func frameStreamDesc() *grpc.StreamDesc {
	return &scopeServiceDesc.Streams[getFramesStreams]
}
