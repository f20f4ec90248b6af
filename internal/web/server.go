// Package web serves the watcher status over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/meko-christian/mail-idler/internal/config"
	"github.com/meko-christian/mail-idler/internal/idler"
)

// StatusSource is implemented by *idler.Idler.
type StatusSource interface {
	Status() idler.Status
}

type Server struct {
	port    string
	bind    string
	server  *http.Server
	auth    *AuthManager
	status  StatusSource
	metrics http.Handler
	cfg     config.Config
}

func NewServer(cfg config.Config, status StatusSource, metrics http.Handler) *Server {
	return &Server{
		port:    cfg.Web.Port,
		bind:    cfg.Web.Bind,
		auth:    NewAuthManager(cfg.Web.Username, cfg.Web.PasswordHash),
		status:  status,
		metrics: metrics,
		cfg:     cfg,
	}
}

// Handler returns the routes: /healthz is public, everything else requires
// authentication.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)

	mux.Handle("/status", s.auth.RequireAuth(http.HandlerFunc(s.handleStatus)))
	mux.Handle("/config", s.auth.RequireAuth(http.HandlerFunc(s.handleConfig)))
	if s.metrics != nil {
		mux.Handle("/metrics", s.auth.RequireAuth(s.metrics))
	}

	return mux
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.bind, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Web server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down web server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}
