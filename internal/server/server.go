package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Spountil/watermark-gdrive/internal/config"
	"github.com/Spountil/watermark-gdrive/internal/utils"
)

type Server struct {
	config *config.Config
	svc    *Services
	server *http.Server
}

func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	if err := utils.EnsureDir(cfg.DataDir); err != nil {
		return nil, err
	}

	svc, err := NewServices(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Server{
		config: cfg,
		svc:    svc,
		server: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           SetupRoutes(cfg, svc),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Start runs the HTTP listener and the reconcile workers until ctx is
// canceled, then shuts both down.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("watermark-drive server start", "addr", s.config.HTTP.Addr, "backend", s.config.Backend)
	defer slog.Info("watermark-drive server stop")

	s.svc.Pool.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.runHTTPServer(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			return err
		}
		slog.Info("http server stopped")
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return s.Stop(context.Background())
	})

	return g.Wait()
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	s.svc.Pool.Wait()
	return s.svc.Shutdown(shutdownCtx)
}

func (s *Server) runHTTPServer() error {
	if s.config.HTTP.CertFile != "" && s.config.HTTP.KeyFile != "" {
		slog.Info("server start tls", "addr", s.config.HTTP.Addr)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.HTTP.Addr)
	return s.server.ListenAndServe()
}
