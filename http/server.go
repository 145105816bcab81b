package http

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultShutdownTimeout is the default timeout for graceful shutdown.
const DefaultShutdownTimeout = 20 * time.Second

// Server is an abstraction around the http.Server that handles a server
// process's lifetime instead of requiring the caller to do it.
type Server struct {
	ShutdownTimeout time.Duration

	srv *http.Server
	log *zap.Logger
}

// NewServer returns a new server struct that can be used.
func NewServer(log *zap.Logger, handler http.Handler) *Server {
	return &Server{
		ShutdownTimeout: DefaultShutdownTimeout,
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Serve blocks serving on listener until Shutdown is called or the
// listener fails.
func (s *Server) Serve(listener net.Listener) error {
	err := s.srv.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests within ShutdownTimeout, then closes
// whatever remains.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.ShutdownTimeout)
	defer cancel()

	s.log.Info("shutting down server", zap.Duration("timeout", s.ShutdownTimeout))
	if err := s.srv.Shutdown(ctx); err != nil {
		if cErr := s.srv.Close(); cErr != nil {
			return cErr
		}
		return err
	}
	return nil
}
