// Package api is the HTTP surface: public reads, the scheduler trigger, the
// operator endpoints, the live feed and ops endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"time"

	"github.com/KevinGoltermann/moneyline-sub000/pkg/config"
	"github.com/KevinGoltermann/moneyline-sub000/pkg/logger"
)

// Server is the HTTP listener around the router
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	env        string
}

// New builds the server. The write timeout leaves room for a triggered
// generate that waits out the full recommender budget.
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	zl := log.Component("http").Zerolog()
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      cfg.Recommender.Timeout + 30*time.Second,
			IdleTimeout:       60 * time.Second,
			// TLS handshake and hijack errors land in the structured log
			ErrorLog: stdlog.New(zl, "", 0),
		},
		logger: log,
		env:    cfg.Env,
	}
}

// Addr is the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start blocks serving until Shutdown
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"addr": s.httpServer.Addr,
		"env":  s.env,
	}).Info("Starting API server")

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("failed to start server: %w", err)
}

// Shutdown drains in-flight requests; websocket connections are hijacked
// and closed by the hub when its context ends
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
