package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/projecthelena/hello-backend/internal/config"
)

// Server owns the responder listener and, when configured, the metrics
// listener. It moves from stopped to listening once and stays there until
// the context passed to Run is done.
type Server struct {
	cfg    *config.Config
	logger *log.Logger

	srv       *http.Server
	ln        net.Listener
	metrics   *http.Server
	metricsLn net.Listener
}

// New wires the servers. metricsHandler may be nil, and is ignored unless
// cfg.MetricsAddr is set.
func New(cfg *config.Config, handler, metricsHandler http.Handler, logger *log.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		srv: &http.Server{
			Addr:              cfg.ListenAddr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	if cfg.MetricsAddr != "" && metricsHandler != nil {
		s.metrics = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return s
}

// Listen binds the sockets. A bind failure is returned as is and never retried.
func (s *Server) Listen() error {
	if s.ln != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}

	if s.metrics != nil {
		mln, err := net.Listen("tcp", s.metrics.Addr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen for metrics on %s: %w", s.metrics.Addr, err)
		}
		s.metricsLn = mln
	}

	s.ln = ln
	return nil
}

// Addr is the bound responder address, nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// MetricsAddr is the bound metrics address, nil when disabled or before Listen.
func (s *Server) MetricsAddr() net.Addr {
	if s.metricsLn == nil {
		return nil
	}
	return s.metricsLn.Addr()
}

// Run listens if needed, serves until ctx is done and then shuts down within
// cfg.ShutdownTimeout. A nil return means a clean stop.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	errCh := make(chan error, 2)

	go func() {
		if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serve: %w", err)
		}
	}()
	s.logger.Printf("Server running on port %d", s.ln.Addr().(*net.TCPAddr).Port)

	if s.metrics != nil {
		go func() {
			if err := s.metrics.Serve(s.metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("serve metrics: %w", err)
			}
		}()
		s.logger.Printf("Metrics available on http://%s/metrics", s.metricsLn.Addr())
	}

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Println("Shutting down server...")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, fmt.Errorf("shutdown: %w", err))
	}
	if s.metrics != nil {
		if err := s.metrics.Shutdown(shutdownCtx); err != nil {
			serveErr = errors.Join(serveErr, fmt.Errorf("shutdown metrics: %w", err))
		}
	}

	return serveErr
}
