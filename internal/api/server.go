package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/CamLink/internal/logger"
	"github.com/bryanchriswhite/CamLink/internal/output"
	"github.com/bryanchriswhite/CamLink/internal/protocol"
	"github.com/bryanchriswhite/CamLink/internal/stream"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const connectTimeout = 5 * time.Second

// StreamClient is the connection the viewer page controls
type StreamClient interface {
	Connect(ctx context.Context, host string) error
	Disconnect() error
	Stats() stream.ClientStats
}

// VideoFeed serves the decoded frames back out over HTTP
type VideoFeed interface {
	GetHTTPHandler() http.HandlerFunc
	GetSnapshotHandler() http.HandlerFunc
	Stats() output.MJPEGStats
}

// Server represents the viewer HTTP API server
type Server struct {
	router   *mux.Router
	client   StreamClient
	feed     VideoFeed
	events   *stream.StatusLog
	upgrader websocket.Upgrader

	defaultHost string
	defaultPort int

	mu     sync.Mutex
	http   *http.Server
	closed bool
}

// NewServer creates a new API server
func NewServer(client StreamClient, feed VideoFeed, events *stream.StatusLog) *Server {
	s := &Server{
		router: mux.NewRouter(),
		client: client,
		feed:   feed,
		events: events,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // viewer page may be opened from another host
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Connection control
	handle(api, "/status", s.handleStatus, "GET")
	handle(api, "/connect", s.handleConnect, "POST")
	handle(api, "/disconnect", s.handleDisconnect, "POST")

	// Status log
	api.HandleFunc("/events", s.handleEvents)
	handle(api, "/events/recent", s.handleRecentEvents, "GET")

	handle(api, "/snapshot", s.feed.GetSnapshotHandler(), "GET")
	handle(api, "/health", s.handleHealth, "GET")

	handle(s.router, "/stream", s.feed.GetHTTPHandler(), "GET")
	handle(s.router, "/", s.handleIndex, "GET")
}

// handle registers h for path and methods, and answers 405 for any other
// method on the same path.
func handle(r *mux.Router, path string, h http.HandlerFunc, methods ...string) {
	r.HandleFunc(path, h).Methods(methods...)
	r.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Allow", strings.Join(methods, ", "))
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", req.Method))
	})
}

// SetConnectDefaults pre-fills the connect form of the viewer page
func (s *Server) SetConnectDefaults(host string, port int) {
	s.defaultHost = host
	s.defaultPort = port
}

// Handler returns the routed handler with CORS applied
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves the API on port until Shutdown is called
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.http = srv
	s.mu.Unlock()

	logger.WithComponent("api").Info().
		Str("url", "http://localhost"+addr).
		Msg("Starting viewer server")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.closed = true
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// StatusResponse is the body of GET /api/status
type StatusResponse struct {
	Client stream.ClientStats `json:"client"`
	Video  output.MJPEGStats  `json:"video"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Client: s.client.Stats(),
		Video:  s.feed.Stats(),
	})
}

// ConnectRequest is the body of POST /api/connect
type ConnectRequest struct {
	Host string `json:"host"`
	Port int    `json:"port,omitempty"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Port < 0 || req.Port > 65535 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid port: %d", req.Port))
		return
	}

	host := req.Host
	if host != "" && req.Port > 0 {
		if _, _, err := net.SplitHostPort(host); err == nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("host %q already names a port", host))
			return
		}
		host = net.JoinHostPort(host, strconv.Itoa(req.Port))
	}

	ctx, cancel := context.WithTimeout(r.Context(), connectTimeout)
	defer cancel()

	err := s.client.Connect(ctx, host)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.client.Stats())
	case errors.Is(err, stream.ErrAlreadyConnected):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, protocol.ErrConnectFailure):
		writeError(w, http.StatusBadGateway, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.client.Disconnect(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.client.Stats())
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.events.Events())
}

// handleEvents streams status events over a websocket, starting with the
// retained backlog.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	updates := s.events.Subscribe()
	defer s.events.Unsubscribe(updates)

	for _, ev := range s.events.Events() {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}

	// Reader goroutine notices the peer going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	port := s.defaultPort
	if port == 0 {
		port = protocol.DefaultPort
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, indexData{Host: s.defaultHost, Port: port}); err != nil {
		logger.WithComponent("api").Debug().Err(err).Msg("Failed to render index")
	}
}
