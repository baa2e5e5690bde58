package scope

import (
	"fmt"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/types/known/structpb"
)

// ScopeServer is a scope that serves frames over the network to remote clients, using gRPC
// and optionally a websocket endpoint for browsers.
type ScopeServer struct {
	grpcAddress      string
	websocketAddress string

	frames     *hub
	grpc       *grpcServer
	websocket  *websocketServer
	serverLock *sync.Mutex
}

// NewScopeServer creates a new scope server. An empty websocket address disables the
// websocket endpoint.
func NewScopeServer(grpcAddress string, websocketAddress string) *ScopeServer {
	return &ScopeServer{
		grpcAddress:      grpcAddress,
		websocketAddress: websocketAddress,
		serverLock:       &sync.Mutex{},
	}
}

func (s *ScopeServer) Active() bool {
	s.serverLock.Lock()
	defer s.serverLock.Unlock()
	return s.frames != nil
}

// Addr returns the address of the gRPC listener.
func (s *ScopeServer) Addr() net.Addr {
	s.serverLock.Lock()
	defer s.serverLock.Unlock()
	if s.grpc != nil {
		return s.grpc.Addr()
	}
	return nil
}

// WebsocketAddr returns the address of the websocket listener.
func (s *ScopeServer) WebsocketAddr() net.Addr {
	s.serverLock.Lock()
	defer s.serverLock.Unlock()
	if s.websocket != nil {
		return s.websocket.Addr()
	}
	return nil
}

func (s *ScopeServer) Start() error {
	s.serverLock.Lock()
	defer s.serverLock.Unlock()
	if s.frames != nil {
		return fmt.Errorf("scope was already started")
	}

	frames := newHub(defaultOutBufferSize)
	grpcServer := newGRPCServer(s.grpcAddress, frames)
	err := grpcServer.Listen()
	if err != nil {
		return err
	}

	var wsServer *websocketServer
	if s.websocketAddress != "" {
		wsServer = newWebsocketServer(s.websocketAddress, frames)
		err = wsServer.Listen()
		if err != nil {
			grpcServer.Stop()
			return err
		}
	}

	go frames.run()
	go func() {
		err := grpcServer.Serve()
		if err != nil {
			log.Warnf("scope server failed: %v", err)
		}
	}()
	if wsServer != nil {
		go func() {
			err := wsServer.Serve()
			if err != nil {
				log.Warnf("scope websocket server failed: %v", err)
			}
		}()
	}

	s.frames = frames
	s.grpc = grpcServer
	s.websocket = wsServer
	log.Debugf("scope server listening on %s", grpcServer.Addr())
	return nil
}

func (s *ScopeServer) Stop() {
	s.serverLock.Lock()
	defer s.serverLock.Unlock()
	if s.frames == nil {
		return
	}

	s.frames.Close()
	s.grpc.Stop()
	if s.websocket != nil {
		s.websocket.Stop()
	}
	s.frames = nil
	s.grpc = nil
	s.websocket = nil
}

func (s *ScopeServer) ShowTimeFrame(timeFrame *TimeFrame) {
	frame, err := encodeTimeFrame(timeFrame)
	if err != nil {
		log.Warnf("cannot encode time frame: %v", err)
		return
	}
	s.send(frame)
}

func (s *ScopeServer) ShowSpectralFrame(spectralFrame *SpectralFrame) {
	frame, err := encodeSpectralFrame(spectralFrame)
	if err != nil {
		log.Warnf("cannot encode spectral frame: %v", err)
		return
	}
	s.send(frame)
}

func (s *ScopeServer) send(frame *structpb.Struct) {
	s.serverLock.Lock()
	frames := s.frames
	s.serverLock.Unlock()
	if frames == nil {
		return
	}
	frames.Send(frame)
}
