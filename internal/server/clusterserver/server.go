package clusterserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"
)

// ServerConfig configures the cluster RPC server.
type ServerConfig struct {
	// Addr is the listen address (host:port).
	Addr string

	Handler DistroHandler
	Logger  *slog.Logger
}

// Server represents the cluster communication server.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	logger     *slog.Logger
	running    atomic.Bool
}

// NewServer creates a cluster server. Unary Connect calls are served over
// HTTP/1.1 and cleartext HTTP/2.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	l := cfg.Logger.With("component", "cluster_server")

	mux := http.NewServeMux()
	NewHandler(cfg.Handler, l).Mount(mux, connect.WithInterceptors(DefaultInterceptors(l)...))

	protocols := new(http.Protocols)
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)

	return &Server{
		addr:   cfg.Addr,
		logger: l,
		httpServer: &http.Server{
			Handler:           mux,
			Protocols:         protocols,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the HTTP handler, for tests that run their own listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Listen binds the listen address. It is split from Serve so callers learn
// the bound address before gossip announces it.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("cluster server listen %s: %w", s.addr, err)
	}
	s.listener = ln
	s.addr = ln.Addr().String()
	return nil
}

// Addr returns the listen address, resolved after Listen.
func (s *Server) Addr() string {
	return s.addr
}

// Serve accepts connections until Shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.running.Store(true)
	defer s.running.Store(false)

	s.logger.Info("cluster server listening", "addr", s.addr)
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("cluster server: %w", err)
	}
	return nil
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
