package api

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sqlball/sqlball/internal/config"
	"github.com/sqlball/sqlball/internal/logging"
)

// Server wraps the HTTP server with graceful shutdown
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// NewServer creates a server for the handler using the configured
// address and timeouts.
func NewServer(cfg config.ServerConfig, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  parseDuration(cfg.ReadTimeout, 15*time.Second),
			WriteTimeout: parseDuration(cfg.WriteTimeout, 60*time.Second),
		},
		shutdownTimeout: parseDuration(cfg.ShutdownTimeout, 10*time.Second),
	}
}

// Run serves until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.WithField("addr", s.httpServer.Addr).Infof("HTTP server listening")

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		logging.Infof("shutting down HTTP server")

		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}
