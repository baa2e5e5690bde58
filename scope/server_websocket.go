package scope

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/encoding/protojson"
)

const (
	// FramesPath is the websocket endpoint that streams the frames as JSON text messages.
	FramesPath = "/frames"

	writeTimeout = 5 * time.Second
)

type websocketServer struct {
	address  string
	frames   *hub
	upgrader websocket.Upgrader

	listener net.Listener
	server   *http.Server
	lock     sync.Mutex
}

func newWebsocketServer(address string, frames *hub) *websocketServer {
	return &websocketServer{
		address: address,
		frames:  frames,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (s *websocketServer) Listen() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listener != nil {
		return fmt.Errorf("server already listening")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("cannot listen on address %s: %w", s.address, err)
	}
	mux := http.NewServeMux()
	mux.Handle(FramesPath, s)
	s.listener = listener
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return nil
}

func (s *websocketServer) Serve() error {
	s.lock.Lock()
	server, listener := s.server, s.listener
	s.lock.Unlock()
	if server == nil {
		return fmt.Errorf("server is not listening")
	}
	err := server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *websocketServer) Addr() net.Addr {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *websocketServer) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.server.Close()
	}
	s.server = nil
	s.listener = nil
}

func (s *websocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	frames := s.frames.Subscribe()
	defer s.frames.Unsubscribe(frames)

	// the client does not send anything, but reading is required to notice a closed connection
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case frame, open := <-frames:
			if !open {
				conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
				return
			}
			data, err := protojson.Marshal(frame)
			if err != nil {
				log.Warnf("cannot encode frame: %v", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debugf("websocket client gone: %v", err)
				return
			}
		case <-closed:
			return
		}
	}
}
