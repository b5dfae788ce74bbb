package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/CamLink/internal/capture"
	"github.com/bryanchriswhite/CamLink/internal/codec"
	"github.com/bryanchriswhite/CamLink/internal/logger"
	"github.com/bryanchriswhite/CamLink/internal/protocol"
	"github.com/google/uuid"
)

// ServerState is the state of the accept loop
type ServerState string

const (
	StateIdle      ServerState = "idle"
	StateListening ServerState = "listening"
	StateConnected ServerState = "connected"
	StateStopped   ServerState = "stopped"
)

// ServerConfig holds stream server settings
type ServerConfig struct {
	// Addr is the listen address, e.g. ":12345"
	Addr string

	// WriteTimeout bounds a single frame write. Zero blocks indefinitely, so
	// a slow client throttles capture.
	WriteTimeout time.Duration
}

// ServerStats is a snapshot of server counters
type ServerStats struct {
	State       ServerState `json:"state"`
	ConnID      string      `json:"conn_id,omitempty"`
	Remote      string      `json:"remote,omitempty"`
	Connections uint64      `json:"connections"`
	FramesSent  uint64      `json:"frames_sent"`
	BytesSent   uint64      `json:"bytes_sent"`
}

// Server captures frames and streams them to one client at a time.
//
// The state machine is LISTENING -> CONNECTED -> LISTENING. Further clients
// wait in the OS accept backlog until the current one is gone.
type Server struct {
	config  ServerConfig
	source  capture.Source
	encoder codec.Encoder
	status  StatusSink

	mu         sync.RWMutex
	state      ServerState
	listener   net.Listener
	conn       net.Conn
	connID     string
	remote     string
	sourceOpen bool

	connections atomic.Uint64
	framesSent  atomic.Uint64
	bytesSent   atomic.Uint64
}

// NewServer creates a stream server reading from source
func NewServer(config ServerConfig, source capture.Source, encoder codec.Encoder) *Server {
	if config.Addr == "" {
		config.Addr = fmt.Sprintf(":%d", protocol.DefaultPort)
	}
	return &Server{
		config:  config,
		source:  source,
		encoder: encoder,
		status:  discardStatus{},
		state:   StateIdle,
	}
}

// SetStatusSink sets where connection events are reported
func (s *Server) SetStatusSink(sink StatusSink) {
	if sink == nil {
		sink = discardStatus{}
	}
	s.status = sink
}

// Listen binds the listening socket
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.state = StateListening
	s.mu.Unlock()

	logger.WithComponent("stream-server").Info().
		Str("addr", ln.Addr().String()).
		Msg("Server listening")
	s.status.Report(Event{Time: time.Now(), Kind: EventListening, Message: "listening on " + ln.Addr().String()})
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe binds and runs the accept loop until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve runs the accept loop until ctx is cancelled or Close is called.
// Connection and capture errors never end the loop.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.RLock()
	ln := s.listener
	s.mu.RUnlock()
	if ln == nil {
		return fmt.Errorf("server is not listening")
	}

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	log := logger.WithComponent("stream-server")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Info().Msg("Server stopped")
				return nil
			}
			log.Warn().Err(err).Msg("Accept failed")
			time.Sleep(50 * time.Millisecond)
			continue
		}

		s.serveConn(ctx, conn)
	}
}

// serveConn runs the capture-encode-send loop for one client
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	id := uuid.NewString()
	remote := conn.RemoteAddr().String()
	log := logger.WithComponent("stream-server").With().
		Str("conn_id", id).
		Str("remote", remote).
		Logger()

	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.connID = id
	s.remote = remote
	s.state = StateConnected
	s.mu.Unlock()
	s.connections.Add(1)

	log.Info().Msg("Client connected")
	s.status.Report(Event{Time: time.Now(), Kind: EventConnected, Message: "client connected", Remote: remote})

	var sent uint64
	defer func() {
		conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.connID = ""
		s.remote = ""
		if s.state != StateStopped {
			s.state = StateListening
		}
		s.mu.Unlock()

		log.Info().Uint64("frames", sent).Msg("Connection closed, waiting for new client")
		s.status.Report(Event{Time: time.Now(), Kind: EventDisconnected, Message: "client disconnected", Remote: remote})
	}()

	if err := s.openSource(); err != nil {
		log.Error().Err(err).Msg("Capture source unavailable")
		s.status.Report(ErrorEvent(err, remote))
		return
	}

	for ctx.Err() == nil {
		n, err := s.sendFrame(conn)
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrCaptureFailure):
				// Release the device so the next client gets a fresh open.
				log.Error().Err(err).Msg("Failed to capture frame")
				s.closeSource()
			case errors.Is(err, protocol.ErrFrameTooLarge):
				log.Error().Err(err).Msg("Encoded frame does not fit the length field")
			default:
				log.Warn().Err(err).Msg("Client write failed")
			}
			s.status.Report(ErrorEvent(err, remote))
			return
		}

		sent++
		s.framesSent.Add(1)
		s.bytesSent.Add(uint64(n))
	}
}

// sendFrame captures, encodes and writes one frame, returning bytes written
func (s *Server) sendFrame(conn net.Conn) (int, error) {
	frame, err := s.source.Read()
	if err != nil {
		if !errors.Is(err, protocol.ErrCaptureFailure) {
			err = fmt.Errorf("%w: %v", protocol.ErrCaptureFailure, err)
		}
		return 0, err
	}

	data, err := s.encoder.Encode(frame)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", protocol.ErrCaptureFailure, err)
	}

	if s.config.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	if err := protocol.WriteFrame(conn, data); err != nil {
		return 0, err
	}
	return protocol.HeaderSize + len(data), nil
}

func (s *Server) openSource() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sourceOpen {
		return nil
	}
	if s.state == StateStopped {
		return fmt.Errorf("%w: server stopped", protocol.ErrCaptureFailure)
	}
	if err := s.source.Open(); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrCaptureFailure, err)
	}
	s.sourceOpen = true
	return nil
}

func (s *Server) closeSource() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sourceOpen {
		return
	}
	if err := s.source.Close(); err != nil {
		logger.WithComponent("stream-server").Warn().Err(err).Msg("Failed to release capture source")
	}
	s.sourceOpen = false
}

// Close stops the accept loop, drops the active client and releases the
// capture source
func (s *Server) Close() error {
	s.mu.Lock()
	s.state = StateStopped
	ln := s.listener
	conn := s.conn
	s.mu.Unlock()

	var err error
	if ln != nil {
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	if conn != nil {
		conn.Close()
	}
	s.closeSource()
	return err
}

// State returns the current server state
func (s *Server) State() ServerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Stats returns a snapshot of the server counters
func (s *Server) Stats() ServerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ServerStats{
		State:       s.state,
		ConnID:      s.connID,
		Remote:      s.remote,
		Connections: s.connections.Load(),
		FramesSent:  s.framesSent.Load(),
		BytesSent:   s.bytesSent.Load(),
	}
}
