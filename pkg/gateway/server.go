package gateway

import (
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// Server is the HTTP front door (spec §6): it accepts plain TCP
// connections, each of which must open with a single
// "GET /<rtsp-url> HTTP/1.x" request line, and hands each accepted
// connection to its own Sink goroutine.
type Server struct {
	Port     int
	Registry *Registry
	Logger   zerolog.Logger

	listener net.Listener
}

// ListenAndServe binds the listener, retrying every 2 seconds on failure
// (spec §5), then accepts connections until the listener is closed.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.Port)

	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			s.listener = ln
			break
		}
		s.Logger.Warn().Err(err).Str("addr", addr).Msg("bind failed, retrying")
		time.Sleep(2 * time.Second)
	}

	s.Logger.Info().Int("port", s.Port).Msg("gateway listening")

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return fmt.Errorf("%w: accept: %v", ErrTransportError, err)
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	sink := newSink(conn, s.Logger)
	if err := sink.Serve(s.Registry); err != nil {
		s.Logger.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("sink closed")
	}
	_ = sink.Close()
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
