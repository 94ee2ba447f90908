package ctlsock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"wavebridge/internal/core"
)

// requestTimeout bounds one whole exchange, including the controller
// round trip.
const requestTimeout = 10 * time.Second

// Server answers control requests on a Unix socket. Connections are
// served concurrently; command ordering is preserved by the controller's
// own serialization, not here.
type Server struct {
	path string
	ctrl Commander
	log  *log.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	closed   bool
}

func NewServer(path string, ctrl Commander, logger *log.Logger) *Server {
	return &Server{
		path: path,
		ctrl: ctrl,
		log:  logger.With("component", "ctlsock"),
	}
}

// Start binds the socket and begins accepting connections. A stale
// socket file from a previous run is removed first.
func (s *Server) Start() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen on control socket: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.Info("control socket listening", "path", s.path)
	s.wg.Add(1)
	go s.acceptLoop(listener)
	return nil
}

// Close stops accepting connections, waits for in-flight exchanges and
// removes the socket file.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		_ = listener.Close()
	}
	s.wg.Wait()
	_ = os.Remove(s.path)
	return nil
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			return // listener closed
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

// serveConn handles exactly one request/response exchange.
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(requestTimeout))

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.reply(conn, Response{OK: false, Error: "malformed request"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	s.reply(conn, s.handle(ctx, req))
}

func (s *Server) handle(ctx context.Context, req Request) Response {
	switch req.Action {
	case ActionStatus:
		st := s.ctrl.Status()
		return Response{OK: true, State: &st}
	case ActionPlay:
		return s.result(s.ctrl.Play(ctx))
	case ActionPause:
		return s.result(s.ctrl.Pause(ctx))
	case ActionPlayPause:
		return s.result(s.ctrl.PlayPause(ctx))
	case ActionNext:
		return s.result(s.ctrl.Next(ctx))
	case ActionPrevious:
		return s.result(s.ctrl.Previous(ctx))
	case ActionLike:
		return s.result(s.ctrl.Like(ctx))
	case ActionDislike:
		return s.result(s.ctrl.Dislike(ctx))
	case ActionGetVibe:
		seeds, err := s.ctrl.Vibe(ctx)
		if err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		st := s.ctrl.Status()
		return Response{OK: true, State: &st, Seeds: seeds}
	case ActionSetVibe:
		if len(req.Seeds) == 0 {
			return Response{OK: false, Error: "set_vibe requires seeds"}
		}
		return s.result(s.ctrl.SetVibe(ctx, req.Seeds))
	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown action %q", req.Action)}
	}
}

func (s *Server) result(st core.PlayerState, err error) Response {
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	return Response{OK: true, State: &st}
}

func (s *Server) reply(conn net.Conn, resp Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.log.Debug("failed to write response", "err", err)
	}
}
