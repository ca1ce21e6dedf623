package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StatusSource reports the state of supervised tasks.
type StatusSource interface {
	Status() map[string]string
	Healthy() bool
}

// StatsSource exposes pipeline counters.
type StatsSource interface {
	Snapshot() map[string]interface{}
}

// NewRouter constructs a Gin engine with the read-only status routes.
func NewRouter(status StatusSource, stats StatsSource) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		code, state := http.StatusOK, "ok"
		if !status.Healthy() {
			code, state = http.StatusServiceUnavailable, "degraded"
		}
		c.JSON(code, gin.H{"status": state, "tasks": status.Status()})
	})
	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, stats.Snapshot())
	})
	return r
}

// Server serves the status routes until its context ends.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer binds handler to addr.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv:    &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status api listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve status api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown status api: %w", err)
	}
	return ctx.Err()
}
